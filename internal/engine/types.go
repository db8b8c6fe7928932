package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/flitsinc/skyagent/internal/agenttools"
)

// ErrMalformedStep marks decider output the loop cannot act on.
var ErrMalformedStep = errors.New("malformed step")

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Step is one decision: optional text plus the tools to run. A step with
// no tool calls ends the run.
type Step struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Turn is a step together with the results of its tool calls.
type Turn struct {
	Step    Step         `json:"step"`
	Results []ToolResult `json:"results,omitempty"`
}

type Request struct {
	System     string
	Trigger    string
	Tools      []agenttools.Spec
	Transcript []Turn
	StepIndex  int
	StepBudget int
}

// Decider is the external decision procedure.
type Decider interface {
	Next(ctx context.Context, req Request) (Step, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, req Request) (Step, error)

func (f DeciderFunc) Next(ctx context.Context, req Request) (Step, error) {
	return f(ctx, req)
}

// Trigger is what starts a run.
type Trigger struct {
	Kind     string
	Text     string
	Metadata map[string]any
}

const (
	StatusCompleted       = "completed"
	StatusBudgetExhausted = "budget_exhausted"
	StatusAbandoned       = "abandoned"
)

// Outcome summarizes a finished run.
type Outcome struct {
	RunID     string
	Status    string
	Steps     int
	ToolCalls int
	Err       error
}

func (s Step) validate() error {
	for _, call := range s.ToolCalls {
		if call.Name == "" {
			return errors.Join(ErrMalformedStep, errors.New("tool call without a name"))
		}
		if len(call.Arguments) > 0 && !json.Valid(call.Arguments) {
			return errors.Join(ErrMalformedStep, errors.New("tool "+call.Name+" arguments are not JSON"))
		}
	}
	return nil
}
