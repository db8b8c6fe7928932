package actor

import (
	"context"
	"fmt"

	"github.com/flitsinc/skyagent/internal/admin"
	"github.com/flitsinc/skyagent/internal/engine"
	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/prompt"
	"github.com/flitsinc/skyagent/internal/scheduler"
	"github.com/flitsinc/skyagent/internal/schema"
	"github.com/flitsinc/skyagent/internal/state"
)

const (
	reflectionActions = 30
	thinkingBatch     = 20
)

func (a *Actor) tasks(inbox admin.Inbox) []scheduler.Task {
	tasks := []scheduler.Task{scheduler.ReconnectTask(a.ensureConnected)}
	if inbox != nil && a.cfg.AdminDID != "" {
		tasks = append(tasks, scheduler.AdminPollTask(inbox, a.cfg.AdminDID, a.store, a.adminRun))
	}
	if a.cfg.ReflectionInterval > 0 {
		tasks = append(tasks, scheduler.ReflectionTask(a.cfg.ReflectionInterval, a.reflect))
	}
	if a.cfg.ThinkingInterval > 0 {
		tasks = append(tasks, scheduler.ThinkingTask(a.cfg.ThinkingInterval, a.store.HasPendingThoughts, a.think))
	}
	return tasks
}

func (a *Actor) adminRun(ctx context.Context, msgs []admin.Message) error {
	a.logger.Info("admin messages received", "count", len(msgs))
	a.runTask(ctx, scheduler.TaskAdminPoll, engine.Trigger{Kind: TriggerAdmin, Text: prompt.AdminTrigger(msgs)})
	return nil
}

func (a *Actor) reflect(ctx context.Context) error {
	recent, err := a.store.ListActions(ctx, "", reflectionActions)
	if err != nil {
		return scheduler.Storage(err)
	}
	a.runTask(ctx, scheduler.TaskReflection, engine.Trigger{Kind: TriggerReflection, Text: prompt.ReflectionTrigger(recent)})
	return nil
}

// think hands queued thoughts to a run and marks them processed whatever
// the outcome, so a failing model does not replay the same queue forever.
func (a *Actor) think(ctx context.Context) error {
	thoughts, err := a.store.ListNotes(ctx, state.NoteThought, true, thinkingBatch)
	if err != nil {
		return scheduler.Storage(err)
	}
	if len(thoughts) == 0 {
		return nil
	}
	a.runTask(ctx, scheduler.TaskThinking, engine.Trigger{Kind: TriggerThinking, Text: prompt.ThinkingTrigger(thoughts)})

	ids := make([]string, 0, len(thoughts))
	for _, n := range thoughts {
		ids = append(ids, n.ID)
	}
	if err := a.store.MarkNotesProcessed(ctx, ids, a.clock.Now()); err != nil {
		return scheduler.Storage(err)
	}
	return nil
}

func (a *Actor) runTask(ctx context.Context, task string, trigger engine.Trigger) {
	out := a.run(ctx, trigger)
	a.record(ctx, eventbus.EventInput{
		Stream:  schema.StreamSchedule,
		RunID:   out.RunID,
		Subject: "task " + task,
		Body:    fmt.Sprintf("%s after %d step(s)", out.Status, out.Steps),
		Metadata: map[string]any{
			schema.MetaTask:    task,
			schema.MetaOutcome: out.Status,
		},
	})
}
