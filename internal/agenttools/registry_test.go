package agenttools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopTool(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NoopTool())

	res, err := r.Execute(context.Background(), "noop", json.RawMessage(`{"comment":"  waiting  "}`))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"status":"idle","comment":"waiting"}`, res.Text())

	res, err = r.Execute(context.Background(), "noop", nil)
	require.NoError(t, err)
	assert.False(t, res.IsError)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "exec", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestExecuteValidatesBeforeInvoking(t *testing.T) {
	called := false
	r := NewRegistry()
	r.MustRegister(Func("echo", "echo", `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`,
		func(_ context.Context, p struct {
			Text string `json:"text"`
		}) Result {
			called = true
			return Success(p.Text)
		}))

	_, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":42}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, called)

	_, err = r.Execute(context.Background(), "echo", json.RawMessage(`{`))
	require.ErrorIs(t, err, ErrInvalidInput)

	res, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text())
	assert.True(t, called)
}

func TestExecuteRecoversPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Tool{Name: "boom", Handler: func(context.Context, json.RawMessage) Result { panic("kaboom") }})

	res, err := r.Execute(context.Background(), "boom", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "kaboom")
}

func TestRegisterRejects(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(Tool{Name: "", Handler: func(context.Context, json.RawMessage) Result { return Result{} }}))
	require.Error(t, r.Register(Tool{Name: "nohandler"}))
	require.Error(t, r.Register(Tool{Name: "badschema", Schema: json.RawMessage(`{"type":7}`), Handler: func(context.Context, json.RawMessage) Result { return Result{} }}))

	require.NoError(t, r.Register(NoopTool()))
	require.Error(t, r.Register(NoopTool()))
}

func TestSpecsSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NoopTool(), Func("alpha", "a", `{"type":"object"}`, func(context.Context, struct{}) Result { return Success("ok") }))
	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "object", specs[1].Parameters["type"])
}
