// Package threads remembers which reply threads the actor has joined.
package threads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/skyagent/internal/state"
)

type Store interface {
	UpsertThread(ctx context.Context, rootURI string, at time.Time) error
	ThreadExists(ctx context.Context, rootURI string) (bool, error)
	ListThreads(ctx context.Context, limit int) ([]state.Thread, error)
}

// Tracker is a durable set of thread roots keyed by root post URI. Entries
// are never removed; repeated upserts keep the latest activity time.
type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

func (t *Tracker) Upsert(ctx context.Context, rootURI string, at time.Time) error {
	rootURI = strings.TrimSpace(rootURI)
	if rootURI == "" {
		return fmt.Errorf("thread root uri is required")
	}
	return t.store.UpsertThread(ctx, rootURI, at)
}

func (t *Tracker) Contains(ctx context.Context, rootURI string) (bool, error) {
	if rootURI == "" {
		return false, nil
	}
	return t.store.ThreadExists(ctx, rootURI)
}

func (t *Tracker) List(ctx context.Context, limit int) ([]state.Thread, error) {
	return t.store.ListThreads(ctx, limit)
}
