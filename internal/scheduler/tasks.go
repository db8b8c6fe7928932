package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/flitsinc/skyagent/internal/admin"
)

const (
	TaskReconnect  = "reconnect"
	TaskAdminPoll  = "admin_poll"
	TaskReflection = "reflection"
	TaskThinking   = "thinking"

	KeyLastReflection = "schedule.last_reflection"
	KeyLastThinking   = "schedule.last_thinking"
	KeyLastDMCheck    = "schedule.last_dm_check"
)

// ReconnectTask runs check on every tick. check reopens the upstream
// connection when it is not open.
func ReconnectTask(check func(ctx context.Context) error) Task {
	return Task{Name: TaskReconnect, Run: check}
}

// AdminPollTask runs on every tick and hands messages from sender that are
// newer than the stored checkpoint to run. The checkpoint moves to the
// newest handed-over message.
func AdminPollTask(inbox admin.Inbox, sender string, kv KV, run func(ctx context.Context, msgs []admin.Message) error) Task {
	return Task{
		Name: TaskAdminPoll,
		Run: func(ctx context.Context) error {
			last, err := kv.GetTime(ctx, KeyLastDMCheck)
			if err != nil {
				return Storage(err)
			}
			var since *time.Time
			if !last.IsZero() {
				since = &last
			}
			msgs, err := inbox.FetchLatest(ctx, since)
			if err != nil {
				return fmt.Errorf("poll admin inbox: %w", err)
			}
			fresh := admin.FromSender(msgs, sender, last)
			if len(fresh) == 0 {
				return nil
			}
			newest := fresh[0].SentAt
			for _, m := range fresh[1:] {
				if m.SentAt.After(newest) {
					newest = m.SentAt
				}
			}
			if err := kv.SetTime(ctx, KeyLastDMCheck, newest); err != nil {
				return Storage(err)
			}
			return run(ctx, fresh)
		},
	}
}

func ReflectionTask(interval time.Duration, run func(ctx context.Context) error) Task {
	return Task{Name: TaskReflection, Interval: interval, StateKey: KeyLastReflection, Run: run}
}

// ThinkingTask is due when interval has passed and pending reports queued
// thoughts.
func ThinkingTask(interval time.Duration, pending func(ctx context.Context) (bool, error), run func(ctx context.Context) error) Task {
	return Task{Name: TaskThinking, Interval: interval, StateKey: KeyLastThinking, Ready: pending, Run: run}
}
