package social

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/skyagent/internal/agentcontext"
	"github.com/flitsinc/skyagent/internal/testutil"
)

func TestRecorderWritesActionLog(t *testing.T) {
	store := testutil.OpenTestStore(t)
	rec := NewRecorder(store, "did:plc:self")
	ctx := agentcontext.WithRunID(context.Background(), "run-7")

	ref, err := rec.Reply(ctx, "at://did:plc:a/app.bsky.feed.post/p", "", "thanks!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.URI, "at://did:plc:self/app.bsky.feed.post/"))

	_, err = rec.Like(ctx, "at://did:plc:a/app.bsky.feed.post/p")
	require.NoError(t, err)

	actions, err := store.ListActions(context.Background(), "run-7", 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	var reply = actions[0]
	if reply.Kind != "reply" {
		reply = actions[1]
	}
	assert.Equal(t, "reply", reply.Kind)
	assert.Equal(t, "thanks!", reply.Content)
	assert.Equal(t, "at://did:plc:a/app.bsky.feed.post/p", reply.Metadata["root"])
}

func TestRecorderValidates(t *testing.T) {
	rec := NewRecorder(testutil.OpenTestStore(t), "did:plc:self")
	_, err := rec.Post(context.Background(), "  ")
	require.Error(t, err)
	_, err = rec.Reply(context.Background(), "", "", "x")
	require.Error(t, err)
	_, err = rec.Like(context.Background(), "")
	require.Error(t, err)
}
