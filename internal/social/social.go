// Package social is the boundary to the network's write verbs.
package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/flitsinc/skyagent/internal/agentcontext"
	"github.com/flitsinc/skyagent/internal/state"
)

type PostRef struct {
	URI string `json:"uri"`
	CID string `json:"cid,omitempty"`
}

type Actions interface {
	Post(ctx context.Context, text string) (PostRef, error)
	Reply(ctx context.Context, parentURI, rootURI, text string) (PostRef, error)
	Like(ctx context.Context, uri string) (PostRef, error)
}

type ActionStore interface {
	CreateAction(ctx context.Context, runID, kind, content, status string, metadata map[string]any) (state.Action, error)
}

// Recorder is a dry-run Actions: every request is written to the action
// log and answered with a synthetic record URI in the actor's repo.
type Recorder struct {
	store ActionStore
	self  string
}

func NewRecorder(store ActionStore, self string) *Recorder {
	return &Recorder{store: store, self: self}
}

func (r *Recorder) Post(ctx context.Context, text string) (PostRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return PostRef{}, fmt.Errorf("post text is required")
	}
	ref := r.newRef("app.bsky.feed.post")
	return ref, r.record(ctx, "post", text, map[string]any{"uri": ref.URI})
}

func (r *Recorder) Reply(ctx context.Context, parentURI, rootURI, text string) (PostRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return PostRef{}, fmt.Errorf("reply text is required")
	}
	if parentURI == "" {
		return PostRef{}, fmt.Errorf("parent uri is required")
	}
	if rootURI == "" {
		rootURI = parentURI
	}
	ref := r.newRef("app.bsky.feed.post")
	return ref, r.record(ctx, "reply", text, map[string]any{"uri": ref.URI, "parent": parentURI, "root": rootURI})
}

func (r *Recorder) Like(ctx context.Context, uri string) (PostRef, error) {
	if uri == "" {
		return PostRef{}, fmt.Errorf("subject uri is required")
	}
	ref := r.newRef("app.bsky.feed.like")
	return ref, r.record(ctx, "like", uri, map[string]any{"uri": ref.URI, "subject": uri})
}

func (r *Recorder) record(ctx context.Context, kind, content string, metadata map[string]any) error {
	runID := agentcontext.RunIDFromContext(ctx)
	if _, err := r.store.CreateAction(ctx, runID, kind, content, "recorded", metadata); err != nil {
		return fmt.Errorf("record %s: %w", kind, err)
	}
	return nil
}

func (r *Recorder) newRef(collection string) PostRef {
	rkey := strings.ToLower(ulid.Make().String())
	return PostRef{URI: fmt.Sprintf("at://%s/%s/%s", r.self, collection, rkey)}
}
