// Package scheduler evaluates the actor's periodic tasks on each tick of
// its single timer.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flitsinc/skyagent/internal/clock"
	"github.com/flitsinc/skyagent/internal/logging"
)

// ErrStorage marks task failures that came from durable storage. Tick
// returns them instead of logging them.
var ErrStorage = errors.New("scheduler storage")

type KV interface {
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// Task is one periodic job. A zero Interval means due on every tick. When
// StateKey is set the last start time is persisted there before Run, so a
// crash mid-run does not re-trigger the task right after restart.
type Task struct {
	Name     string
	Interval time.Duration
	StateKey string
	Ready    func(ctx context.Context) (bool, error)
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	clock  clock.Clock
	kv     KV
	tasks  []Task
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(clk clock.Clock, kv KV, logger *slog.Logger, tasks ...Task) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		clock:    clk,
		kv:       kv,
		tasks:    tasks,
		logger:   logger.With("component", "scheduler"),
		inFlight: map[string]bool{},
	}
}

func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.Name)
	}
	return names
}

// Tick evaluates every task in order. Storage faults abort the tick and
// are returned; other task failures are logged.
func (s *Scheduler) Tick(ctx context.Context) error {
	for _, task := range s.tasks {
		if err := s.evaluate(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) evaluate(ctx context.Context, task Task) error {
	if !s.claim(task.Name) {
		s.logger.Debug("task still running, skipped", "task", task.Name)
		return nil
	}
	defer s.release(task.Name)

	now := s.clock.Now()
	if task.Interval > 0 && task.StateKey != "" {
		last, err := s.kv.GetTime(ctx, task.StateKey)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrStorage, task.StateKey, err)
		}
		if !last.IsZero() && now.Sub(last) <= task.Interval {
			return nil
		}
	}

	if task.Ready != nil {
		ready, err := task.Ready(ctx)
		if err != nil {
			return fmt.Errorf("%w: %s prerequisite: %w", ErrStorage, task.Name, err)
		}
		if !ready {
			return nil
		}
	}

	if task.StateKey != "" {
		if err := s.kv.SetTime(ctx, task.StateKey, now); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrStorage, task.StateKey, err)
		}
	}

	s.logger.Debug("running task", "task", task.Name)
	if err := s.run(ctx, task); err != nil {
		if errors.Is(err, ErrStorage) {
			return err
		}
		s.logger.Warn("task failed", "task", task.Name, "error", err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, p)
		}
	}()
	return task.Run(ctx)
}

func (s *Scheduler) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[name] {
		return false
	}
	s.inFlight[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	delete(s.inFlight, name)
	s.mu.Unlock()
}

// Storage wraps err so Tick propagates it.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
