package agentcontext

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	triggerKey contextKey = "trigger"
)

func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(runIDKey).(string); ok {
		return val
	}
	return ""
}

// WithTrigger records what started the current run, e.g. "mention" or
// "reflection".
func WithTrigger(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, triggerKey, kind)
}

func TriggerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(triggerKey).(string); ok {
		return val
	}
	return ""
}
