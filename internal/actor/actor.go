// Package actor owns the agent's mutable state and serializes every
// handler: stream events, schedule ticks and manual triggers run one at a
// time on a single goroutine.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flitsinc/skyagent/internal/admin"
	"github.com/flitsinc/skyagent/internal/clock"
	"github.com/flitsinc/skyagent/internal/cursor"
	"github.com/flitsinc/skyagent/internal/engine"
	"github.com/flitsinc/skyagent/internal/eps"
	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/logging"
	"github.com/flitsinc/skyagent/internal/profiles"
	"github.com/flitsinc/skyagent/internal/scheduler"
	"github.com/flitsinc/skyagent/internal/schema"
	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/stream"
)

// ErrBusy is returned by Trigger when the request queue is full.
var ErrBusy = errors.New("actor busy")

const (
	TriggerEvent      = "event"
	TriggerAdmin      = "admin"
	TriggerReflection = "reflection"
	TriggerThinking   = "thinking"
	TriggerManual     = "manual"
)

// Connection is the upstream event stream.
type Connection interface {
	Inbox() <-chan stream.Message
	State() stream.State
	ConnectedAt() time.Time
	Connect(ctx context.Context, opts stream.Options) error
	Close()
}

type Runner interface {
	Run(ctx context.Context, trigger engine.Trigger) engine.Outcome
}

type ThreadTracker interface {
	Upsert(ctx context.Context, rootURI string, at time.Time) error
	Contains(ctx context.Context, rootURI string) (bool, error)
}

// Store is the durable state the scheduled tasks read.
type Store interface {
	scheduler.KV
	ListActions(ctx context.Context, runID string, limit int) ([]state.Action, error)
	ListNotes(ctx context.Context, kind string, pendingOnly bool, limit int) ([]state.Note, error)
	HasPendingThoughts(ctx context.Context) (bool, error)
	MarkNotesProcessed(ctx context.Context, ids []string, at time.Time) error
}

type Recorder interface {
	Push(ctx context.Context, input eventbus.EventInput) (eventbus.Event, error)
}

type Config struct {
	Self     string
	AdminDID string
	Topics   []string

	TickInterval       time.Duration
	ReflectionInterval time.Duration
	ThinkingInterval   time.Duration
	RetentionWindow    time.Duration
}

type Deps struct {
	Conn     Connection
	Cursor   *cursor.Tracker
	Threads  ThreadTracker
	Profiles profiles.Resolver
	Loop     Runner
	Store    Store
	Inbox    admin.Inbox
	Bus      Recorder
	Clock    clock.Clock
	Logger   *slog.Logger
}

type Actor struct {
	cfg      Config
	conn     Connection
	cursor   *cursor.Tracker
	threads  ThreadTracker
	profiles profiles.Resolver
	loop     Runner
	store    Store
	bus      Recorder
	clock    clock.Clock
	logger   *slog.Logger
	sched    *scheduler.Scheduler
	eps      *eps.Tracker
	requests chan engine.Trigger

	received atomic.Uint64
	handled  atomic.Uint64
	runs     atomic.Uint64

	mu        sync.Mutex
	startedAt time.Time
	lastEvent time.Time
	lastTick  time.Time
}

func New(cfg Config, deps Deps) *Actor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	a := &Actor{
		cfg:      cfg,
		conn:     deps.Conn,
		cursor:   deps.Cursor,
		threads:  deps.Threads,
		profiles: deps.Profiles,
		loop:     deps.Loop,
		store:    deps.Store,
		bus:      deps.Bus,
		clock:    clk,
		logger:   logger.With("component", "actor"),
		eps:      eps.NewTracker(eps.DefaultWindow),
		requests: make(chan engine.Trigger, 8),
	}
	a.sched = scheduler.New(clk, deps.Store, logger, a.tasks(deps.Inbox)...)
	return a
}

// Run drives the actor until ctx is done. It returns early only on storage
// faults; the persisted cursor is flushed either way.
func (a *Actor) Run(ctx context.Context) (err error) {
	a.mu.Lock()
	a.startedAt = a.clock.Now()
	a.mu.Unlock()
	stored, err := a.cursor.Load(ctx)
	if err != nil {
		return err
	}
	a.warnIfStale(stored)

	defer func() {
		a.conn.Close()
		if flushErr := a.cursor.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			err = errors.Join(err, flushErr)
		} else if c := a.cursor.Current(); c != nil {
			a.logger.Info("cursor flushed", "cursor", *c)
		}
	}()

	if err := a.connect(ctx); err != nil {
		a.logger.Warn("initial connect failed, retrying on next tick", "error", err)
	}
	timer := a.clock.After(a.cfg.TickInterval)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("actor stopping")
			return nil

		case msg := <-a.conn.Inbox():
			if msg.Disconnected {
				a.logger.Warn("stream closed, reconnecting on next tick", "error", msg.Err)
				a.record(ctx, eventbus.EventInput{
					Stream:  schema.StreamErrors,
					Subject: "stream disconnected",
					Body:    fmt.Sprint(msg.Err),
				})
				continue
			}
			if msg.Event == nil {
				continue
			}
			if err := a.handleEvent(ctx, *msg.Event); err != nil {
				return err
			}

		case <-timer:
			a.mu.Lock()
			a.lastTick = a.clock.Now()
			a.mu.Unlock()
			if err := a.sched.Tick(ctx); err != nil {
				return err
			}
			timer = a.clock.After(a.cfg.TickInterval)

		case trigger := <-a.requests:
			a.run(ctx, trigger)
		}
	}
}

// Trigger queues a manual run with text as the trigger.
func (a *Actor) Trigger(ctx context.Context, text string) error {
	select {
	case a.requests <- engine.Trigger{Kind: TriggerManual, Text: text}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBusy
	}
}

func (a *Actor) connect(ctx context.Context) error {
	opts := stream.Options{Topics: a.cfg.Topics, ResumeFrom: a.cursor.Current()}
	return a.conn.Connect(ctx, opts)
}

func (a *Actor) ensureConnected(ctx context.Context) error {
	if a.conn.State() != stream.StateDisconnected {
		return nil
	}
	a.logger.Info("reconnecting stream")
	if err := a.connect(ctx); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return nil
}

func (a *Actor) warnIfStale(stored *int64) {
	if stored == nil {
		a.logger.Info("no stored cursor, starting live")
		return
	}
	age := cursor.Age(*stored, a.clock.Now())
	if a.cfg.RetentionWindow > 0 && age > a.cfg.RetentionWindow {
		a.logger.Warn("stored cursor is older than upstream retention, events were missed",
			"cursor", *stored, "age", age.Round(time.Second), "retention", a.cfg.RetentionWindow)
		return
	}
	a.logger.Info("resuming from stored cursor", "cursor", *stored, "age", age.Round(time.Second))
}

func (a *Actor) run(ctx context.Context, trigger engine.Trigger) engine.Outcome {
	a.runs.Add(1)
	return a.loop.Run(ctx, trigger)
}

// record pushes to the activity feed; failures are only logged.
func (a *Actor) record(ctx context.Context, input eventbus.EventInput) {
	if a.bus == nil {
		return
	}
	if _, err := a.bus.Push(context.WithoutCancel(ctx), input); err != nil {
		a.logger.Warn("activity push failed", "stream", input.Stream, "error", err)
	}
}
