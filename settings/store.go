// Package settings persists paired peers and preferences in a bbolt file.
// Writes are requested without blocking and performed by Run.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPeers = []byte("peers")
	bucketPrefs = []byte("preferences")
	keyPrefs    = []byte("device")
)

var ErrClosed = errors.New("settings: store closed")

// PeerRecord is the persisted form of a paired peer, keyed by its label.
type PeerRecord struct {
	Label   string `cbor:"-"`
	MAC     string `cbor:"mac_str"`
	Channel uint8  `cbor:"channel"`
}

type Store struct {
	db *bolt.DB

	mu    sync.RWMutex
	prefs Preferences
	peers func() []PeerRecord

	savePeers chan struct{}
	savePrefs chan struct{}

	RetryMin time.Duration
	RetryMax time.Duration
}

// Open creates the file and its buckets if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("settings: create dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("settings: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketPeers, bucketPrefs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: init buckets: %w", err)
	}

	return &Store{
		db:        db,
		prefs:     DefaultPreferences(),
		savePeers: make(chan struct{}, 1),
		savePrefs: make(chan struct{}, 1),
		RetryMin:  100 * time.Millisecond,
		RetryMax:  5 * time.Second,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BindPeers sets the snapshot source used when a peer save runs.
func (s *Store) BindPeers(fn func() []PeerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = fn
}

func (s *Store) LoadPeers() ([]PeerRecord, error) {
	var recs []PeerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).ForEach(func(k, v []byte) error {
			var rec PeerRecord
			if err := cbor.Unmarshal(v, &rec); err != nil {
				slog.Warn("Skipping unreadable peer record", "label", string(k), "error", err)
				return nil
			}
			rec.Label = string(k)
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("settings: load peers: %w", err)
	}
	return recs, nil
}

// LoadPreferences reads stored preferences over the defaults. A missing or
// unreadable record yields the defaults.
func (s *Store) LoadPreferences() (Preferences, error) {
	prefs := DefaultPreferences()
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPrefs).Get(keyPrefs)
		if v == nil {
			return nil
		}
		if err := cbor.Unmarshal(v, &prefs); err != nil {
			slog.Warn("Stored preferences unreadable, using defaults", "error", err)
			prefs = DefaultPreferences()
		}
		return nil
	})
	if err != nil {
		return DefaultPreferences(), fmt.Errorf("settings: load preferences: %w", err)
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return prefs, nil
}

func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// UpdatePreferences applies fn to the cached preferences and requests a save.
func (s *Store) UpdatePreferences(fn func(*Preferences)) {
	s.mu.Lock()
	fn(&s.prefs)
	s.mu.Unlock()
	s.RequestSavePreferences()
}

func (s *Store) RequestSavePeers() {
	select {
	case s.savePeers <- struct{}{}:
	default:
	}
}

func (s *Store) RequestSavePreferences() {
	select {
	case s.savePrefs <- struct{}{}:
	default:
	}
}

// SavePeers replaces every stored peer with recs.
func (s *Store) SavePeers(recs []PeerRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPeers); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketPeers)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			v, err := cbor.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode peer %s: %w", rec.Label, err)
			}
			if err := b.Put([]byte(rec.Label), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SavePreferences(prefs Preferences) error {
	v, err := cbor.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPrefs).Put(keyPrefs, v)
	})
}

// Run performs requested saves until ctx is done, then flushes anything
// still pending.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return nil
		case <-s.savePeers:
			s.retry(ctx, "peers", s.writePeers)
		case <-s.savePrefs:
			s.retry(ctx, "preferences", s.writePrefs)
		}
	}
}

func (s *Store) flush() {
	select {
	case <-s.savePeers:
		if err := s.writePeers(); err != nil {
			slog.Error("Final peer save failed", "error", err)
		}
	default:
	}
	select {
	case <-s.savePrefs:
		if err := s.writePrefs(); err != nil {
			slog.Error("Final preferences save failed", "error", err)
		}
	default:
	}
}

func (s *Store) retry(ctx context.Context, what string, fn func() error) {
	delay := s.RetryMin
	for {
		err := fn()
		if err == nil {
			slog.Debug("Settings saved", "what", what)
			return
		}
		slog.Warn("Settings save failed, retrying", "what", what, "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, s.RetryMax)
	}
}

func (s *Store) writePeers() error {
	s.mu.RLock()
	snapshot := s.peers
	s.mu.RUnlock()
	if snapshot == nil {
		return nil
	}
	return s.SavePeers(snapshot())
}

func (s *Store) writePrefs() error {
	return s.SavePreferences(s.Preferences())
}
