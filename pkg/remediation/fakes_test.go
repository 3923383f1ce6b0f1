package remediation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/events"
	"github.com/cuemby/self-healing-controller/pkg/rollback"
	"github.com/cuemby/self-healing-controller/pkg/types"
)

type fakeDeleter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDeleter) DeleteWorkload(_ context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, namespace+"/"+name)
	return f.err
}

type rollbackCall struct {
	release   string
	namespace string
	timeout   time.Duration
}

type fakeRollbacker struct {
	mu     sync.Mutex
	calls  []rollbackCall
	result rollback.Result
}

func (f *fakeRollbacker) Rollback(ctx context.Context, release, namespace string, timeout time.Duration) rollback.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rollbackCall{release, namespace, timeout})
	return f.result
}

type fakeAnnotator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAnnotator) AnnotateNode(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (f *fakePublisher) Publish(event *events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) types() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.EventType
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeClock is advanced manually by tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, types.Outcome) error { return fmt.Errorf("disk full") }

func (failingRecorder) Recent(context.Context, int) ([]types.Outcome, error) { return nil, nil }

func (failingRecorder) Close() error { return nil }
