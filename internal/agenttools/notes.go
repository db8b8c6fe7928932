package agenttools

import (
	"context"

	"github.com/flitsinc/skyagent/internal/state"
)

type NoteStore interface {
	AddNote(ctx context.Context, kind, body string) (state.Note, error)
}

type NoteParams struct {
	Note string `json:"note"`
}

// AddNoteTool stores lasting guidance that is included in every future
// decision context.
func AddNoteTool(store NoteStore) Tool {
	return Func("add_note",
		"Record a lasting behavioral note, such as guidance from the administrator or a lesson learned.",
		`{"type":"object","properties":{"note":{"type":"string","minLength":1,"maxLength":2000}},"required":["note"],"additionalProperties":false}`,
		func(ctx context.Context, p NoteParams) Result {
			note, err := store.AddNote(ctx, state.NoteBehavior, p.Note)
			if err != nil {
				return ErrorWithLabel("add_note failed", err)
			}
			return Success(map[string]any{"status": "saved", "id": note.ID})
		},
	)
}

type ThoughtParams struct {
	Thought string `json:"thought"`
}

// QueueThoughtTool parks an idea for the next thinking session.
func QueueThoughtTool(store NoteStore) Tool {
	return Func("queue_thought",
		"Queue a thought to revisit during the next quiet thinking session.",
		`{"type":"object","properties":{"thought":{"type":"string","minLength":1,"maxLength":2000}},"required":["thought"],"additionalProperties":false}`,
		func(ctx context.Context, p ThoughtParams) Result {
			note, err := store.AddNote(ctx, state.NoteThought, p.Thought)
			if err != nil {
				return ErrorWithLabel("queue_thought failed", err)
			}
			return Success(map[string]any{"status": "queued", "id": note.ID})
		},
	)
}
