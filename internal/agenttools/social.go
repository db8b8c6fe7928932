package agenttools

import (
	"context"
	"time"

	"github.com/flitsinc/skyagent/internal/clock"
	"github.com/flitsinc/skyagent/internal/social"
)

// ThreadRecorder remembers threads the actor replied in.
type ThreadRecorder interface {
	Upsert(ctx context.Context, rootURI string, at time.Time) error
}

type PostParams struct {
	Text string `json:"text"`
}

func CreatePostTool(actions social.Actions) Tool {
	return Func("create_post",
		"Publish a new top-level post.",
		`{"type":"object","properties":{"text":{"type":"string","minLength":1,"maxLength":300}},"required":["text"],"additionalProperties":false}`,
		func(ctx context.Context, p PostParams) Result {
			ref, err := actions.Post(ctx, p.Text)
			if err != nil {
				return ErrorWithLabel("create_post failed", err)
			}
			return Success(ref)
		},
	)
}

type ReplyParams struct {
	ParentURI string `json:"parent_uri"`
	RootURI   string `json:"root_uri,omitempty"`
	Text      string `json:"text"`
}

// ReplyTool posts a reply and records the thread root so later replies in
// the same thread are seen as relevant. A failed thread write is returned
// to the model as an error result; the reply itself has already been made.
func ReplyTool(actions social.Actions, threads ThreadRecorder, clk clock.Clock) Tool {
	if clk == nil {
		clk = clock.Real()
	}
	return Func("reply_to_post",
		"Reply to a post. root_uri is the first post of the thread; omit it when replying to a top-level post.",
		`{"type":"object","properties":{
			"parent_uri":{"type":"string","pattern":"^at://"},
			"root_uri":{"type":"string","pattern":"^at://"},
			"text":{"type":"string","minLength":1,"maxLength":300}
		},"required":["parent_uri","text"],"additionalProperties":false}`,
		func(ctx context.Context, p ReplyParams) Result {
			root := p.RootURI
			if root == "" {
				root = p.ParentURI
			}
			ref, err := actions.Reply(ctx, p.ParentURI, root, p.Text)
			if err != nil {
				return ErrorWithLabel("reply_to_post failed", err)
			}
			if threads != nil {
				if err := threads.Upsert(ctx, root, clk.Now().UTC()); err != nil {
					return ErrorWithLabel("reply sent but thread not recorded", err)
				}
			}
			return Success(map[string]any{"uri": ref.URI, "root_uri": root})
		},
	)
}

type LikeParams struct {
	URI string `json:"uri"`
}

func LikeTool(actions social.Actions) Tool {
	return Func("like_post",
		"Like a post.",
		`{"type":"object","properties":{"uri":{"type":"string","pattern":"^at://"}},"required":["uri"],"additionalProperties":false}`,
		func(ctx context.Context, p LikeParams) Result {
			ref, err := actions.Like(ctx, p.URI)
			if err != nil {
				return ErrorWithLabel("like_post failed", err)
			}
			return Success(ref)
		},
	)
}

// Defaults builds the registry the actor runs with.
func Defaults(actions social.Actions, notes NoteStore, threads ThreadRecorder, clk clock.Clock) *Registry {
	r := NewRegistry()
	r.MustRegister(
		NoopTool(),
		AddNoteTool(notes),
		QueueThoughtTool(notes),
		CreatePostTool(actions),
		ReplyTool(actions, threads, clk),
		LikeTool(actions),
	)
	return r
}
