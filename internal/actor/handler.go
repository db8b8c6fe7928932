package actor

import (
	"context"
	"fmt"

	"github.com/flitsinc/skyagent/internal/engine"
	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/profiles"
	"github.com/flitsinc/skyagent/internal/prompt"
	"github.com/flitsinc/skyagent/internal/relevance"
	"github.com/flitsinc/skyagent/internal/schema"
	"github.com/flitsinc/skyagent/internal/stream"
)

// handleEvent processes one stream event to completion. Redelivered events
// are handled again; every write on this path is an upsert.
func (a *Actor) handleEvent(ctx context.Context, ev stream.Event) error {
	now := a.clock.Now()
	a.received.Add(1)
	a.eps.Record(now)
	a.mu.Lock()
	a.lastEvent = now
	a.mu.Unlock()

	if err := a.trackOwnReply(ctx, ev); err != nil {
		return err
	}

	reason, err := relevance.Classify(ctx, ev, a.cfg.Self, a.threads)
	if err != nil {
		return fmt.Errorf("classify event: %w", err)
	}
	if reason != relevance.ReasonNone {
		a.handled.Add(1)
		a.respond(ctx, ev, reason)
	}

	a.cursor.Update(ev.TimeUS)
	if _, err := a.cursor.MaybePersist(ctx); err != nil {
		return err
	}
	return nil
}

// trackOwnReply keeps threads the account replied in from any client, not
// only through the reply tool.
func (a *Actor) trackOwnReply(ctx context.Context, ev stream.Event) error {
	if ev.DID != a.cfg.Self || ev.Commit == nil || ev.Commit.Operation != stream.OpCreate ||
		ev.Commit.Collection != relevance.CollectionPost {
		return nil
	}
	root := relevance.ReplyRefs(ev.Commit.Record).Root
	if root == "" {
		return nil
	}
	if err := a.threads.Upsert(ctx, root, ev.Time()); err != nil {
		return fmt.Errorf("track own reply: %w", err)
	}
	return nil
}

func (a *Actor) respond(ctx context.Context, ev stream.Event, reason relevance.Reason) {
	author, err := profiles.Lookup(ctx, a.profiles, ev.DID)
	if err != nil {
		a.logger.Warn("profile lookup failed, continuing with did only", "did", ev.DID, "error", err)
	}

	meta := map[string]any{
		schema.MetaCollection: ev.Collection(),
		schema.MetaAuthor:     ev.DID,
		schema.MetaURI:        ev.URI(),
	}
	text := prompt.EventTrigger(ev, reason, author)
	a.logger.Info("relevant event", "reason", reason, "author", author.Label(), "uri", ev.URI())
	a.record(ctx, eventbus.EventInput{
		Stream:   schema.StreamDecisions,
		Subject:  string(reason) + " from " + author.Label(),
		Body:     text,
		Metadata: meta,
	})

	a.run(ctx, engine.Trigger{Kind: TriggerEvent, Text: text, Metadata: meta})
}
