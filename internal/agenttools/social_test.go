package agenttools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/skyagent/internal/clock"
	"github.com/flitsinc/skyagent/internal/social"
	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/testutil"
	"github.com/flitsinc/skyagent/internal/threads"
)

type failingActions struct{ social.Actions }

func (failingActions) Reply(context.Context, string, string, string) (social.PostRef, error) {
	return social.PostRef{}, errors.New("rate limited")
}

func TestReplyToolRecordsThread(t *testing.T) {
	store := testutil.OpenTestStore(t)
	tracker := threads.NewTracker(store)
	reg := Defaults(social.NewRecorder(store, "did:plc:self"), store, tracker, nil)
	ctx := context.Background()

	args := json.RawMessage(`{"parent_uri":"at://did:plc:a/app.bsky.feed.post/p","root_uri":"at://did:plc:b/app.bsky.feed.post/r","text":"hello"}`)
	res, err := reg.Execute(ctx, "reply_to_post", args)
	require.NoError(t, err)
	require.False(t, res.IsError, res.Text())

	ok, err := tracker.Contains(ctx, "at://did:plc:b/app.bsky.feed.post/r")
	require.NoError(t, err)
	assert.True(t, ok)

	actions, err := store.ListActions(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "reply", actions[0].Kind)
}

func TestReplyToolFailureLeavesThreadUntracked(t *testing.T) {
	store := testutil.OpenTestStore(t)
	tracker := threads.NewTracker(store)
	reg := NewRegistry()
	reg.MustRegister(ReplyTool(failingActions{}, tracker, nil))

	res, err := reg.Execute(context.Background(), "reply_to_post", json.RawMessage(`{"parent_uri":"at://did:plc:a/app.bsky.feed.post/p","text":"x"}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "rate limited")

	ok, err := tracker.Contains(context.Background(), "at://did:plc:a/app.bsky.feed.post/p")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplyToolRejectsNonATURI(t *testing.T) {
	store := testutil.OpenTestStore(t)
	reg := Defaults(social.NewRecorder(store, "did:plc:self"), store, threads.NewTracker(store), nil)
	_, err := reg.Execute(context.Background(), "reply_to_post", json.RawMessage(`{"parent_uri":"https://bsky.app/post/1","text":"x"}`))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNoteTools(t *testing.T) {
	store := testutil.OpenTestStore(t)
	reg := Defaults(social.NewRecorder(store, "did:plc:self"), store, threads.NewTracker(store), nil)
	ctx := context.Background()

	res, err := reg.Execute(ctx, "add_note", json.RawMessage(`{"note":"never reply to spam"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)

	res, err = reg.Execute(ctx, "queue_thought", json.RawMessage(`{"thought":"what makes a good reply?"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)

	behavior, err := store.ListNotes(ctx, state.NoteBehavior, false, 10)
	require.NoError(t, err)
	require.Len(t, behavior, 1)

	pending, err := store.HasPendingThoughts(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = reg.Execute(ctx, "add_note", json.RawMessage(`{"note":""}`))
	require.ErrorIs(t, err, ErrInvalidInput)
}

type faultyThreads struct{}

func (faultyThreads) Upsert(context.Context, string, time.Time) error {
	return errors.New("disk I/O error")
}

func TestReplyToolStampsThreadWithClock(t *testing.T) {
	store := testutil.OpenTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry()
	reg.MustRegister(ReplyTool(social.NewRecorder(store, "did:plc:self"), threads.NewTracker(store), clock.Fake(at)))

	res, err := reg.Execute(context.Background(), "reply_to_post", json.RawMessage(`{"parent_uri":"at://did:plc:a/app.bsky.feed.post/p","text":"hi"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, res.Text())

	list, err := store.ListThreads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].LastActivity.Equal(at), "last activity %v", list[0].LastActivity)
}

func TestReplyToolThreadFaultIsErrorResult(t *testing.T) {
	store := testutil.OpenTestStore(t)
	reg := NewRegistry()
	reg.MustRegister(ReplyTool(social.NewRecorder(store, "did:plc:self"), faultyThreads{}, nil))

	res, err := reg.Execute(context.Background(), "reply_to_post", json.RawMessage(`{"parent_uri":"at://did:plc:a/app.bsky.feed.post/p","text":"hi"}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "thread not recorded")
}
