package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/flitsinc/skyagent/internal/agenttools"
	"github.com/flitsinc/skyagent/internal/config"
	"github.com/flitsinc/skyagent/internal/engine"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestDeciderMapsToolCalls(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: "liking it",
		ToolCalls: []llms.ToolCall{{
			ID:           "call-1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "like_post", Arguments: `{"uri":"at://x"}`},
		}},
	}}}}
	d := WithModel(model, 0)

	step, err := d.Next(context.Background(), engine.Request{
		System:  "sys",
		Trigger: "someone replied",
		Tools: []agenttools.Spec{{
			Name:        "like_post",
			Description: "Like a post.",
			Parameters:  map[string]any{"type": "object"},
		}},
		StepIndex:  1,
		StepBudget: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, "liking it", step.Text)
	require.Len(t, step.ToolCalls, 1)
	assert.Equal(t, "like_post", step.ToolCalls[0].Name)
	assert.JSONEq(t, `{"uri":"at://x"}`, string(step.ToolCalls[0].Arguments))

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	require.Len(t, model.opts.Tools, 1)
	assert.Equal(t, "like_post", model.opts.Tools[0].Function.Name)
	assert.Equal(t, defaultMaxTokens, model.opts.MaxTokens)
}

func TestDeciderReplaysTranscript(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "done"}}}}
	d := WithModel(model, 512)

	step, err := d.Next(context.Background(), engine.Request{
		System:  "sys",
		Trigger: "go",
		Transcript: []engine.Turn{{
			Step:    engine.Step{ToolCalls: []engine.ToolCall{{ID: "c1", Name: "noop", Arguments: json.RawMessage(`{}`)}}},
			Results: []engine.ToolResult{{CallID: "c1", Name: "noop", Content: "boom", IsError: true}},
		}},
		StepIndex:  2,
		StepBudget: 8,
	})
	require.NoError(t, err)
	assert.Empty(t, step.ToolCalls)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	call, ok := model.messages[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "c1", call.ID)

	assert.Equal(t, llms.ChatMessageTypeTool, model.messages[3].Role)
	resp, ok := model.messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c1", resp.ToolCallID)
	assert.Equal(t, "error: boom", resp.Content)
	assert.Equal(t, 512, model.opts.MaxTokens)
}

func TestDeciderLastStepNudge(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	d := WithModel(model, 0)

	_, err := d.Next(context.Background(), engine.Request{
		Transcript: []engine.Turn{{Step: engine.Step{Text: "hmm"}}},
		StepIndex:  3,
		StepBudget: 3,
	})
	require.NoError(t, err)
	last := model.messages[len(model.messages)-1]
	assert.Equal(t, llms.ChatMessageTypeHuman, last.Role)
}

func TestDeciderErrors(t *testing.T) {
	_, err := WithModel(&fakeModel{err: errors.New("overloaded")}, 0).Next(context.Background(), engine.Request{})
	assert.ErrorContains(t, err, "overloaded")

	_, err = WithModel(&fakeModel{resp: &llms.ContentResponse{}}, 0).Next(context.Background(), engine.Request{})
	assert.ErrorIs(t, err, engine.ErrMalformedStep)
}

func TestNewModelValidation(t *testing.T) {
	_, err := NewModel(Config{})
	assert.Error(t, err)

	_, err = NewModel(Config{Provider: "gemini"})
	assert.ErrorContains(t, err, "unsupported")

	_, err = NewModel(Config{Provider: config.ProviderAnthropic})
	assert.ErrorContains(t, err, "API key")
}

func TestResolveModelAlias(t *testing.T) {
	assert.Equal(t, "claude-3-5-haiku-latest", resolveModelAlias(config.ProviderAnthropic, "fast"))
	assert.Equal(t, "gpt-4o-mini", resolveModelAlias(config.ProviderOpenAI, "FAST"))
	assert.Equal(t, "llama3", resolveModelAlias(config.ProviderOllama, "llama3"))
}
