package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerDelivers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventNodeFailing, Title: "Node Failure: n1", Message: "Node n1 has failed"})

	for _, sub := range []Subscriber{sub1, sub2} {
		ev := receive(t, sub)
		assert.Equal(t, EventNodeFailing, ev.Type)
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestBrokerKeepsExplicitFields(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()
	sub := b.Subscribe()

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b.Publish(&Event{ID: "fixed", Timestamp: ts, Type: EventRollbackFailed})

	ev := receive(t, sub)
	assert.Equal(t, "fixed", ev.ID)
	assert.True(t, ev.Timestamp.Equal(ts))
}

func TestPublishNeverBlocks(t *testing.T) {
	b := NewBroker() // not started: nothing drains the buffer

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Publish(&Event{Type: EventWorkloadFailing})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full buffer")
	}
	assert.Equal(t, int64(400), b.Dropped())
}

func TestPublishAfterStop(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	b.Stop()

	b.Publish(&Event{Type: EventWorkloadFailing})
	assert.Zero(t, b.Dropped())
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	assert.Zero(t, b.SubscriberCount())
	_, ok := <-sub
	require.False(t, ok, "channel should be closed")
}

func TestStopFlushesQueuedEvents(t *testing.T) {
	for i := 0; i < 50; i++ {
		b := NewBroker()
		sub := b.Subscribe()
		b.Start()

		b.Publish(&Event{Type: EventNodeFailing, Title: "Node Failure: n1"})
		b.Stop()

		ev, ok := <-sub
		require.True(t, ok, "queued event lost on stop (run %d)", i)
		assert.Equal(t, "Node Failure: n1", ev.Title)

		_, ok = <-sub
		assert.False(t, ok, "subscription closed after flush")
		assert.Zero(t, b.SubscriberCount())
	}
}

func TestStopWithoutStartClosesSubscribers(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	b.Stop()

	_, ok := <-sub
	assert.False(t, ok)
	b.Unsubscribe(sub)
}
