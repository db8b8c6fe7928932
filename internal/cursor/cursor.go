// Package cursor keeps the stream resume position: updated in memory for
// every processed event, written to durable storage at most once per
// interval and once more on shutdown.
package cursor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/flitsinc/skyagent/internal/clock"
)

// Store persists the cursor. Load returns nil if no cursor was saved.
type Store interface {
	Save(ctx context.Context, cursor int64) error
	Load(ctx context.Context) (*int64, error)
	Delete(ctx context.Context) error
}

type KV interface {
	GetKV(ctx context.Context, key string) (string, bool, error)
	SetKV(ctx context.Context, key, value string) error
	DeleteKV(ctx context.Context, key string) error
}

const DefaultKey = "stream.cursor"

// KVStore keeps the cursor under a single key of the state kv table.
type KVStore struct {
	kv  KV
	key string
}

func NewKVStore(kv KV, key string) *KVStore {
	if key == "" {
		key = DefaultKey
	}
	return &KVStore{kv: kv, key: key}
}

func (s *KVStore) Save(ctx context.Context, cursor int64) error {
	if err := s.kv.SetKV(ctx, s.key, strconv.FormatInt(cursor, 10)); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (s *KVStore) Load(ctx context.Context) (*int64, error) {
	raw, ok, err := s.kv.GetKV(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode cursor %q: %w", raw, err)
	}
	return &v, nil
}

func (s *KVStore) Delete(ctx context.Context) error {
	if err := s.kv.DeleteKV(ctx, s.key); err != nil {
		return fmt.Errorf("delete cursor: %w", err)
	}
	return nil
}

// Snapshot is a point-in-time view for diagnostics.
type Snapshot struct {
	Current       *int64    `json:"current,omitempty"`
	Persisted     *int64    `json:"persisted,omitempty"`
	LastPersistAt time.Time `json:"last_persist_at"`
}

// Tracker throttles writes of the cursor to its Store.
type Tracker struct {
	store    Store
	clock    clock.Clock
	interval time.Duration

	mu          sync.Mutex
	current     *int64
	persisted   *int64
	lastPersist time.Time
}

func NewTracker(store Store, clk clock.Clock, interval time.Duration) *Tracker {
	if clk == nil {
		clk = clock.Real()
	}
	return &Tracker{store: store, clock: clk, interval: interval, lastPersist: clk.Now()}
}

// Load reads the persisted cursor and seeds the in-memory value with it.
func (t *Tracker) Load(ctx context.Context) (*int64, error) {
	v, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = copyPtr(v)
	t.persisted = copyPtr(v)
	return copyPtr(v), nil
}

// Update records the time of the most recently processed event. The cursor
// never moves backwards, so redelivered events inside the safety margin
// leave it where it is.
func (t *Tracker) Update(c int64) {
	t.mu.Lock()
	if t.current == nil || c > *t.current {
		t.current = &c
	}
	t.mu.Unlock()
}

// MaybePersist writes the current cursor if more than the interval has
// passed since the last write. It reports whether a write happened.
func (t *Tracker) MaybePersist(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || equal(t.current, t.persisted) {
		return false, nil
	}
	now := t.clock.Now()
	if now.Sub(t.lastPersist) <= t.interval {
		return false, nil
	}
	return true, t.saveLocked(ctx, now)
}

// Flush writes the current cursor regardless of the interval.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || equal(t.current, t.persisted) {
		return nil
	}
	return t.saveLocked(ctx, t.clock.Now())
}

// Reset deletes the persisted cursor so the next connection starts live.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Delete(ctx); err != nil {
		return err
	}
	t.current = nil
	t.persisted = nil
	return nil
}

func (t *Tracker) Current() *int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyPtr(t.current)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Current: copyPtr(t.current), Persisted: copyPtr(t.persisted), LastPersistAt: t.lastPersist}
}

func (t *Tracker) saveLocked(ctx context.Context, now time.Time) error {
	v := *t.current
	if err := t.store.Save(ctx, v); err != nil {
		return err
	}
	t.persisted = &v
	t.lastPersist = now
	return nil
}

func equal(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyPtr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Age converts a cursor in microseconds to its distance from now.
func Age(c int64, now time.Time) time.Duration {
	return now.Sub(time.UnixMicro(c))
}
