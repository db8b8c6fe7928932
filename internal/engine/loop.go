package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flitsinc/skyagent/internal/agentcontext"
	"github.com/flitsinc/skyagent/internal/agenttools"
	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/idgen"
	"github.com/flitsinc/skyagent/internal/logging"
	"github.com/flitsinc/skyagent/internal/schema"
)

const DefaultStepBudget = 8

type ToolExecutor interface {
	Specs() []agenttools.Spec
	Execute(ctx context.Context, name string, args json.RawMessage) (agenttools.Result, error)
}

type SystemContext interface {
	Build(ctx context.Context) (string, error)
}

type Recorder interface {
	Push(ctx context.Context, input eventbus.EventInput) (eventbus.Event, error)
}

// Loop runs the bounded decide/act cycle for one trigger at a time.
type Loop struct {
	Decider    Decider
	Tools      ToolExecutor
	Context    SystemContext
	Bus        Recorder
	StepBudget int
	Logger     *slog.Logger
}

// Run never fails outward: decider faults, malformed output and panics
// abandon the run and are logged. Side effects of tool calls already
// executed stay in place.
func (l *Loop) Run(ctx context.Context, trigger Trigger) (out Outcome) {
	out.RunID = idgen.NewRun()
	ctx = agentcontext.WithRunID(ctx, out.RunID)
	ctx = agentcontext.WithTrigger(ctx, trigger.Kind)
	logger := l.logger().With("run_id", out.RunID, "trigger", trigger.Kind)
	started := time.Now()

	defer func() {
		if p := recover(); p != nil {
			out.Status = StatusAbandoned
			out.Err = fmt.Errorf("panic: %v", p)
		}
		l.finish(ctx, logger, trigger, out, time.Since(started))
	}()

	budget := l.StepBudget
	if budget <= 0 {
		budget = DefaultStepBudget
	}

	var system string
	if l.Context != nil {
		var err error
		if system, err = l.Context.Build(ctx); err != nil {
			out.Status, out.Err = StatusAbandoned, err
			return out
		}
	}

	body := trigger.Text
	if body == "" {
		body = trigger.Kind
	}
	l.record(ctx, logger, eventbus.EventInput{
		Stream:   schema.StreamDecisions,
		RunID:    out.RunID,
		Subject:  "run started: " + trigger.Kind,
		Body:     body,
		Metadata: mergeMeta(trigger.Metadata, map[string]any{schema.MetaTrigger: trigger.Kind}),
	})

	var specs []agenttools.Spec
	if l.Tools != nil {
		specs = l.Tools.Specs()
	}
	var transcript []Turn

	for out.Steps < budget {
		out.Steps++
		step, err := l.Decider.Next(ctx, Request{
			System:     system,
			Trigger:    trigger.Text,
			Tools:      specs,
			Transcript: transcript,
			StepIndex:  out.Steps,
			StepBudget: budget,
		})
		if err == nil {
			err = step.validate()
		}
		if err != nil {
			out.Status, out.Err = StatusAbandoned, err
			return out
		}

		turn := Turn{Step: step}
		for _, call := range step.ToolCalls {
			turn.Results = append(turn.Results, l.execute(ctx, logger, call))
			out.ToolCalls++
		}
		transcript = append(transcript, turn)
		l.recordStep(ctx, logger, out.RunID, out.Steps, turn)

		if len(step.ToolCalls) == 0 {
			out.Status = StatusCompleted
			return out
		}
	}

	out.Status = StatusBudgetExhausted
	return out
}

func (l *Loop) execute(ctx context.Context, logger *slog.Logger, call ToolCall) ToolResult {
	res := ToolResult{CallID: call.ID, Name: call.Name}
	if l.Tools == nil {
		res.Content, res.IsError = "no tools available", true
		return res
	}
	result, err := l.Tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		logger.Warn("tool rejected", "tool", call.Name, "error", err)
		res.Content, res.IsError = err.Error(), true
		return res
	}
	if result.IsError {
		logger.Warn("tool failed", "tool", call.Name, "result", result.Text())
	}
	res.Content, res.IsError = result.Text(), result.IsError
	return res
}

func (l *Loop) recordStep(ctx context.Context, logger *slog.Logger, runID string, index int, turn Turn) {
	tools := make([]string, 0, len(turn.Step.ToolCalls))
	for _, c := range turn.Step.ToolCalls {
		tools = append(tools, c.Name)
	}
	logger.Info("step", "step", index, "tools", tools)

	body := turn.Step.Text
	if body == "" {
		body = fmt.Sprintf("%d tool call(s)", len(tools))
	}
	payload := map[string]any{}
	if data, err := json.Marshal(turn); err == nil {
		_ = json.Unmarshal(data, &payload)
	}
	l.record(ctx, logger, eventbus.EventInput{
		Stream:   schema.StreamSteps,
		RunID:    runID,
		Subject:  fmt.Sprintf("step %d", index),
		Body:     body,
		Metadata: map[string]any{schema.MetaStep: index},
		Payload:  payload,
	})
}

func (l *Loop) finish(ctx context.Context, logger *slog.Logger, trigger Trigger, out Outcome, elapsed time.Duration) {
	attrs := []any{"status", out.Status, "steps", out.Steps, "tool_calls", out.ToolCalls, "elapsed", elapsed}
	switch out.Status {
	case StatusCompleted:
		logger.Info("run finished", attrs...)
	case StatusBudgetExhausted:
		logger.Warn("run hit step budget", attrs...)
	default:
		logger.Error("run abandoned", append(attrs, "error", out.Err)...)
		l.record(ctx, logger, eventbus.EventInput{
			Stream:   schema.StreamErrors,
			RunID:    out.RunID,
			Subject:  "run abandoned: " + trigger.Kind,
			Body:     fmt.Sprint(out.Err),
			Metadata: map[string]any{schema.MetaTrigger: trigger.Kind, schema.MetaStep: out.Steps},
		})
	}
}

// record pushes to the activity feed. The feed is observational, so a
// failed push is logged and otherwise ignored.
func (l *Loop) record(ctx context.Context, logger *slog.Logger, input eventbus.EventInput) {
	if l.Bus == nil {
		return
	}
	if _, err := l.Bus.Push(context.WithoutCancel(ctx), input); err != nil {
		logger.Warn("activity push failed", "stream", input.Stream, "error", err)
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return logging.Discard()
	}
	return l.Logger.With("component", "engine")
}

func mergeMeta(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
