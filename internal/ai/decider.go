package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/flitsinc/skyagent/internal/agenttools"
	"github.com/flitsinc/skyagent/internal/engine"
)

const defaultMaxTokens = 4096

// Decider asks a chat model for the next step, offering the registry's
// tools as function calls.
type Decider struct {
	model     llms.Model
	maxTokens int
}

func NewDecider(cfg Config) (*Decider, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	return WithModel(model, cfg.MaxTokens), nil
}

// WithModel wraps an existing model.
func WithModel(model llms.Model, maxTokens int) *Decider {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Decider{model: model, maxTokens: maxTokens}
}

func (d *Decider) Next(ctx context.Context, req engine.Request) (engine.Step, error) {
	opts := []llms.CallOption{llms.WithMaxTokens(d.maxTokens)}
	if tools := toolDefinitions(req.Tools); len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	resp, err := d.model.GenerateContent(ctx, messages(req), opts...)
	if err != nil {
		return engine.Step{}, fmt.Errorf("generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return engine.Step{}, errors.Join(engine.ErrMalformedStep, errors.New("no response choices"))
	}

	choice := resp.Choices[0]
	step := engine.Step{Text: strings.TrimSpace(choice.Content)}
	for _, tc := range choice.ToolCalls {
		call := engine.ToolCall{ID: tc.ID}
		if tc.FunctionCall != nil {
			call.Name = tc.FunctionCall.Name
			if args := strings.TrimSpace(tc.FunctionCall.Arguments); args != "" {
				call.Arguments = json.RawMessage(args)
			}
		}
		step.ToolCalls = append(step.ToolCalls, call)
	}
	return step, nil
}

func toolDefinitions(specs []agenttools.Spec) []llms.Tool {
	out := make([]llms.Tool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return out
}

// messages replays the run so far: system context, the trigger, then each
// step as an assistant turn followed by its tool results.
func messages(req engine.Request) []llms.MessageContent {
	out := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Trigger),
	}
	for _, turn := range req.Transcript {
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if turn.Step.Text != "" {
			assistant.Parts = append(assistant.Parts, llms.TextContent{Text: turn.Step.Text})
		}
		for _, call := range turn.Step.ToolCalls {
			args := string(call.Arguments)
			if args == "" {
				args = "{}"
			}
			assistant.Parts = append(assistant.Parts, llms.ToolCall{
				ID:           call.ID,
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: call.Name, Arguments: args},
			})
		}
		if len(assistant.Parts) > 0 {
			out = append(out, assistant)
		}
		for _, res := range turn.Results {
			content := res.Content
			if res.IsError {
				content = "error: " + content
			}
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: res.CallID,
					Name:       res.Name,
					Content:    content,
				}},
			})
		}
	}
	if n := len(req.Transcript); n > 0 && req.StepIndex >= req.StepBudget {
		out = append(out, llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("This is your last step (%d of %d). Finish without further tool calls if you can.", req.StepIndex, req.StepBudget)))
	}
	return out
}
