package notify

import (
	"context"
	"sync"

	"github.com/cuemby/self-healing-controller/pkg/events"
	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/rs/zerolog"
)

// Dispatcher forwards broker events to a Notifier
type Dispatcher struct {
	broker   *events.Broker
	notifier Notifier
	logger   zerolog.Logger

	sub  events.Subscriber
	done chan struct{}
	once sync.Once
}

// NewDispatcher creates a dispatcher. Call Start to begin delivering.
func NewDispatcher(broker *events.Broker, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		broker:   broker,
		notifier: notifier,
		logger:   log.WithComponent("notifier"),
		done:     make(chan struct{}),
	}
}

// Start subscribes to the broker and delivers events until Stop is called
func (d *Dispatcher) Start() {
	d.sub = d.broker.Subscribe()
	metrics.UpdateComponent(metrics.ComponentNotifier, true, "")
	go d.run()
}

// Stop unsubscribes and waits for events already in the subscription to be
// delivered. Stop the broker first to have its queue flushed as well.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		if d.sub == nil {
			close(d.done)
			return
		}
		d.broker.Unsubscribe(d.sub)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)

	// closed by Unsubscribe or Broker.Stop; buffered events are still delivered
	for event := range d.sub {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event *events.Event) {
	err := d.notifier.Notify(context.Background(), event.Title, event.Message)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failure").Inc()
		metrics.UpdateComponent(metrics.ComponentNotifier, false, err.Error())
		d.logger.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("Failed to deliver notification")
		return
	}

	metrics.NotificationsTotal.WithLabelValues("success").Inc()
	metrics.UpdateComponent(metrics.ComponentNotifier, true, "")
	d.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Msg("Notification delivered")
}
