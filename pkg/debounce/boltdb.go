package debounce

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var bucketCooldowns = []byte("cooldowns")

type entry struct {
	Last time.Time `json:"last"`
}

// BoltStore persists the ledger so cooldowns survive a controller restart
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// NewBoltStore opens (or creates) the ledger database inside dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "cooldowns.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCooldowns); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketCooldowns, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	metrics.UpdateComponent(metrics.ComponentLedger, true, "")
	return &BoltStore{db: db, logger: log.WithComponent("debounce")}, nil
}

// Admit runs lookup and record in a single write transaction.
// A storage failure admits the action: remediation must not stall because
// the ledger is unavailable.
func (s *BoltStore) Admit(key string, now time.Time, cooldown time.Duration) bool {
	admitted := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCooldowns)
		if data := b.Get([]byte(key)); data != nil {
			var e entry
			if err := json.Unmarshal(data, &e); err == nil && !expired(e.Last, now, cooldown) {
				return nil
			}
		}

		data, err := json.Marshal(entry{Last: now})
		if err != nil {
			return err
		}
		admitted = true
		return b.Put([]byte(key), data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("resource", key).Msg("Failed to persist cooldown entry")
		metrics.UpdateComponent(metrics.ComponentLedger, false, err.Error())
		return true
	}
	metrics.UpdateComponent(metrics.ComponentLedger, true, "")
	return admitted
}

func (s *BoltStore) Prune(now time.Time, maxAge time.Duration) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCooldowns)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || expired(e.Last, now, maxAge) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentLedger, false, err.Error())
	}
	return removed, err
}

func (s *BoltStore) Len() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCooldowns).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
