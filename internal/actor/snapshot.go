package actor

import (
	"time"

	"github.com/flitsinc/skyagent/internal/cursor"
)

// Snapshot is the diagnostics view of the actor. It is safe to call from
// any goroutine.
type Snapshot struct {
	Connection      string     `json:"connection"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
	Cursor          *int64     `json:"cursor,omitempty"`
	CursorAgeSecs   *float64   `json:"cursor_age_seconds,omitempty"`
	PersistedCursor *int64     `json:"persisted_cursor,omitempty"`
	LastPersistAt   time.Time  `json:"last_persist_at"`
	EventsReceived  uint64     `json:"events_received"`
	EventsHandled   uint64     `json:"events_handled"`
	Runs            uint64     `json:"runs"`
	EventsPerSecond float64    `json:"events_per_second"`
	LastEventAt     *time.Time `json:"last_event_at,omitempty"`
	LastTickAt      *time.Time `json:"last_tick_at,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	Tasks           []string   `json:"tasks"`
}

func (a *Actor) Snapshot() Snapshot {
	now := a.clock.Now()
	cur := a.cursor.Snapshot()
	snap := Snapshot{
		Connection:      a.conn.State().String(),
		Cursor:          cur.Current,
		PersistedCursor: cur.Persisted,
		LastPersistAt:   cur.LastPersistAt,
		EventsReceived:  a.received.Load(),
		EventsHandled:   a.handled.Load(),
		Runs:            a.runs.Load(),
		EventsPerSecond: a.eps.Rate(now),
		Tasks:           a.sched.Tasks(),
	}
	if at := a.conn.ConnectedAt(); !at.IsZero() {
		snap.ConnectedAt = &at
	}
	if cur.Current != nil {
		age := cursor.Age(*cur.Current, now).Seconds()
		snap.CursorAgeSecs = &age
	}
	a.mu.Lock()
	snap.StartedAt = a.startedAt
	if !a.lastEvent.IsZero() {
		t := a.lastEvent
		snap.LastEventAt = &t
	}
	if !a.lastTick.IsZero() {
		t := a.lastTick
		snap.LastTickAt = &t
	}
	a.mu.Unlock()
	return snap
}
