package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAdmitContract exercises the ledger semantics shared by every Store
func runAdmitContract(t *testing.T, newStore func(t *testing.T) Store) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := 60 * time.Second

	t.Run("first admit succeeds", func(t *testing.T) {
		s := newStore(t)
		assert.True(t, s.Admit("default/app-1", t0, window))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("denied inside window", func(t *testing.T) {
		s := newStore(t)
		require.True(t, s.Admit("default/app-1", t0, window))

		for _, at := range []time.Time{t0, t0.Add(time.Second), t0.Add(window - time.Nanosecond)} {
			assert.False(t, s.Admit("default/app-1", at, window), "admit at %v", at)
		}
	})

	t.Run("denied admit does not move the timestamp", func(t *testing.T) {
		s := newStore(t)
		require.True(t, s.Admit("default/app-1", t0, window))
		require.False(t, s.Admit("default/app-1", t0.Add(30*time.Second), window))

		// if the denied admit had recorded t0+30s this would still be blocked
		assert.True(t, s.Admit("default/app-1", t0.Add(window), window))
	})

	t.Run("admitted exactly at window boundary", func(t *testing.T) {
		s := newStore(t)
		require.True(t, s.Admit("node/n1", t0, window))
		assert.True(t, s.Admit("node/n1", t0.Add(window), window))
		assert.False(t, s.Admit("node/n1", t0.Add(window+time.Second), window))
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := newStore(t)
		require.True(t, s.Admit("default/app-1", t0, window))
		assert.True(t, s.Admit("default/app-2", t0, window))
		assert.True(t, s.Admit("node/app-1", t0, window))
	})

	t.Run("zero cooldown always admits", func(t *testing.T) {
		s := newStore(t)
		assert.True(t, s.Admit("default/app-1", t0, 0))
		assert.True(t, s.Admit("default/app-1", t0, 0))
	})

	t.Run("prune drops expired entries", func(t *testing.T) {
		s := newStore(t)
		require.True(t, s.Admit("old", t0, window))
		require.True(t, s.Admit("fresh", t0.Add(50*time.Second), window))

		removed, err := s.Prune(t0.Add(70*time.Second), window)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, s.Len())
		assert.False(t, s.Admit("fresh", t0.Add(70*time.Second), window))
	})
}

func TestMemoryStore(t *testing.T) {
	runAdmitContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestBoltStore(t *testing.T) {
	runAdmitContract(t, func(t *testing.T) Store {
		s, err := NewBoltStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Now()

	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.True(t, s.Admit("node/n1", t0, 5*time.Minute))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Admit("node/n1", t0.Add(time.Minute), 5*time.Minute))
}

func TestDeniedAdmitKeepsOriginalRecord(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Now()

	require.True(t, s.Admit("pod/default/app-1", t0, time.Minute))
	require.False(t, s.Admit("pod/default/app-1", t0.Add(30*time.Second), time.Minute))

	// a denied admit must not push the window out
	assert.True(t, s.Admit("pod/default/app-1", t0.Add(time.Minute), time.Minute))
	assert.Equal(t, 1, s.Len())
}

func TestBoltStoreReportsLedgerHealth(t *testing.T) {
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "healthy", metrics.GetComponents().Components[metrics.ComponentLedger])

	require.NoError(t, s.Close())
	assert.True(t, s.Admit("node/n1", time.Now(), time.Minute), "storage failure admits the action")
	assert.Contains(t, metrics.GetComponents().Components[metrics.ComponentLedger], "unhealthy")

	s, err = NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	s.Admit("node/n1", time.Now(), time.Minute)
	assert.Equal(t, "healthy", metrics.GetComponents().Components[metrics.ComponentLedger])
}

// TestMemoryStoreConcurrentAdmit checks that admit-and-record is atomic per key
func TestMemoryStoreConcurrentAdmit(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Admit("default/app-1", now, time.Minute) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}
