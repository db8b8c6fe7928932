package state_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/testutil"
)

func TestStoreKV(t *testing.T) {
	store := testutil.OpenTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetKV(ctx, "cursor")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetKV(ctx, "cursor", "100"))
	require.NoError(t, store.SetKV(ctx, "cursor", "200"))
	v, ok, err := store.GetKV(ctx, "cursor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "200", v)

	require.NoError(t, store.DeleteKV(ctx, "cursor"))
	_, ok, err = store.GetKV(ctx, "cursor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreTimes(t *testing.T) {
	store := testutil.OpenTestStore(t)
	ctx := context.Background()

	zero, err := store.GetTime(ctx, "schedule.last_reflection")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	require.NoError(t, store.SetTime(ctx, "schedule.last_reflection", at))
	got, err := store.GetTime(ctx, "schedule.last_reflection")
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestStoreThreadsLastWriteWins(t *testing.T) {
	store := testutil.OpenTestStore(t)
	ctx := context.Background()
	root := "at://did:plc:alice/app.bsky.feed.post/1"

	ok, err := store.ThreadExists(ctx, root)
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, store.UpsertThread(ctx, root, first))
	require.NoError(t, store.UpsertThread(ctx, root, second))

	ok, err = store.ThreadExists(ctx, root)
	require.NoError(t, err)
	assert.True(t, ok)

	threads, err := store.ListThreads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.True(t, threads[0].LastActivity.Equal(second))
}

func TestStoreNotes(t *testing.T) {
	store := testutil.OpenTestStore(t)
	ctx := context.Background()

	_, err := store.AddNote(ctx, "mood", "x")
	require.Error(t, err)

	_, err = store.AddNote(ctx, state.NoteBehavior, "keep replies short")
	require.NoError(t, err)

	pending, err := store.HasPendingThoughts(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	first, err := store.AddNote(ctx, state.NoteThought, "look into the thread about gardens")
	require.NoError(t, err)
	_, err = store.AddNote(ctx, state.NoteThought, "second thought")
	require.NoError(t, err)

	thoughts, err := store.ListNotes(ctx, state.NoteThought, true, 10)
	require.NoError(t, err)
	require.Len(t, thoughts, 2)
	assert.Equal(t, first.ID, thoughts[0].ID)

	require.NoError(t, store.MarkNotesProcessed(ctx, []string{thoughts[0].ID, thoughts[1].ID}, time.Now()))
	pending, err = store.HasPendingThoughts(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	all, err := store.ListNotes(ctx, state.NoteThought, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].ProcessedAt)
}

func TestStoreActions(t *testing.T) {
	store := testutil.OpenTestStore(t)
	ctx := context.Background()

	action, err := store.CreateAction(ctx, "run-1", "reply", "hello", "recorded", map[string]any{"parent": "at://x"})
	require.NoError(t, err)
	_, err = store.CreateAction(ctx, "run-2", "like", "at://y", "recorded", nil)
	require.NoError(t, err)

	all, err := store.ListActions(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byRun, err := store.ListActions(ctx, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, action.ID, byRun[0].ID)
	assert.Equal(t, "at://x", byRun[0].Metadata["parent"])
}

func TestStorePropagatesFaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1 FROM tracked_threads").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec("INSERT INTO kv").WillReturnError(errors.New("database is locked"))

	store := state.NewStore(db)
	_, err = store.ThreadExists(context.Background(), "at://root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")

	err = store.SetKV(context.Background(), "cursor", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set kv cursor")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecentNotesKeepsNewest(t *testing.T) {
	store := testutil.OpenTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := store.AddNote(ctx, state.NoteBehavior, fmt.Sprintf("note-%d", i))
		require.NoError(t, err)
	}

	recent, err := store.RecentNotes(ctx, state.NoteBehavior, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "note-3", recent[0].Body)
	assert.Equal(t, "note-5", recent[2].Body)
}
