package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventWorkloadFailing      EventType = "workload.failing"
	EventWorkloadCrashLooping EventType = "workload.crashlooping"
	EventRollbackSucceeded    EventType = "rollback.succeeded"
	EventRollbackFailed       EventType = "rollback.failed"
	EventRollbackTimedOut     EventType = "rollback.timedout"
	EventNodeFailing          EventType = "node.failing"
)

// Event represents a remediation event worth telling an operator about
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Title     string
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	done        chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	started     atomic.Bool
	dropped     atomic.Int64
}

// flushTimeout bounds how long Stop waits for slow subscribers to take queued events
const flushTimeout = 5 * time.Second

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.run()
	})
}

// Stop stops the broker. Events already queued are handed to subscribers
// before their channels are closed. It is safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		if b.started.Load() {
			<-b.done
		}
		b.closeSubscribers()
	})
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands an event to the broker without blocking. When the buffer
// is full the event is dropped and counted.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.eventCh <- event:
	default:
		b.dropped.Add(1)
	}
}

func (b *Broker) run() {
	defer close(b.done)
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			b.flush()
			return
		}
	}
}

// flush delivers whatever is left in the queue, waiting for subscribers
// to make room until the flush deadline passes.
func (b *Broker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for {
		select {
		case event := <-b.eventCh:
			for sub := range b.subscribers {
				select {
				case sub <- event:
				case <-ctx.Done():
					b.dropped.Add(1)
				}
			}
		default:
			return
		}
	}
}

func (b *Broker) closeSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		delete(b.subscribers, sub)
		close(sub)
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many events were discarded because a buffer was full
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
