package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/flitsinc/skyagent/internal/idgen"
)

// Store is the durable state of the actor. Every method returns storage
// faults wrapped; callers on the ingestion path treat them as fatal.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// GetKV returns the value for key and whether it exists.
func (s *Store) GetKV(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteKV(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}

// GetTime reads a timestamp stored with SetTime. A missing key yields the
// zero time.
func (s *Store) GetTime(ctx context.Context, key string) (time.Time, error) {
	raw, ok, err := s.GetKV(ctx, key)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time %s: %w", key, err)
	}
	return t, nil
}

func (s *Store) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.SetKV(ctx, key, formatTime(t))
}

type Thread struct {
	RootURI      string    `json:"root_uri"`
	LastActivity time.Time `json:"last_activity"`
}

func (s *Store) UpsertThread(ctx context.Context, rootURI string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_threads (root_uri, last_activity) VALUES (?, ?)
		ON CONFLICT(root_uri) DO UPDATE SET last_activity = excluded.last_activity
	`, rootURI, formatTime(at))
	if err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}
	return nil
}

func (s *Store) ThreadExists(ctx context.Context, rootURI string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tracked_threads WHERE root_uri = ?`, rootURI).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup thread: %w", err)
	}
	return true, nil
}

func (s *Store) ListThreads(ctx context.Context, limit int) ([]Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT root_uri, last_activity FROM tracked_threads ORDER BY last_activity DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		var th Thread
		var lastActivity string
		if err := rows.Scan(&th.RootURI, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		th.LastActivity = parseTime(lastActivity)
		out = append(out, th)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return out, nil
}

const (
	NoteBehavior = "behavior"
	NoteThought  = "thought"
)

type Note struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func (s *Store) AddNote(ctx context.Context, kind, body string) (Note, error) {
	if kind != NoteBehavior && kind != NoteThought {
		return Note{}, fmt.Errorf("unknown note kind %q", kind)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, fmt.Errorf("note body is required")
	}
	note := Note{ID: idgen.New(), Kind: kind, Body: body, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO notes (id, kind, body, created_at) VALUES (?, ?, ?, ?)`,
		note.ID, note.Kind, note.Body, formatTime(note.CreatedAt))
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

// ListNotes returns notes of kind, oldest first. pendingOnly restricts the
// result to notes that have not been marked processed.
func (s *Store) ListNotes(ctx context.Context, kind string, pendingOnly bool, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, kind, body, created_at, processed_at FROM notes WHERE kind = ?`
	if pendingOnly {
		query += ` AND processed_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, rowid ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		var createdAt string
		var processedAt sql.NullString
		if err := rows.Scan(&n.ID, &n.Kind, &n.Body, &createdAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		if processedAt.Valid {
			t := parseTime(processedAt.String)
			n.ProcessedAt = &t
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return out, nil
}

// RecentNotes returns the newest limit notes of kind, oldest first.
func (s *Store) RecentNotes(ctx context.Context, kind string, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, body, created_at, processed_at FROM notes
		WHERE kind = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent notes: %w", err)
	}
	out, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (s *Store) HasPendingThoughts(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notes WHERE kind = ? AND processed_at IS NULL`, NoteThought).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending thoughts: %w", err)
	}
	return count > 0, nil
}

func (s *Store) MarkNotesProcessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{formatTime(at)}
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE notes SET processed_at = ? WHERE id IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notes processed: %w", err)
	}
	return nil
}

// Action is a record of a side effect requested through the social
// boundary.
type Action struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id,omitempty"`
	Kind      string         `json:"kind"`
	Content   string         `json:"content"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s *Store) CreateAction(ctx context.Context, runID, kind, content, status string, metadata map[string]any) (Action, error) {
	id := idgen.New()
	now := time.Now().UTC()
	metadataJSON, err := encodeJSON(metadata)
	if err != nil {
		return Action{}, fmt.Errorf("encode action metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO actions (id, run_id, kind, content, status, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(runID), kind, content, status, nullString(metadataJSON), formatTime(now), formatTime(now))
	if err != nil {
		return Action{}, fmt.Errorf("insert action: %w", err)
	}
	return Action{ID: id, RunID: runID, Kind: kind, Content: content, Status: status, Metadata: metadata, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) ListActions(ctx context.Context, runID string, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, run_id, kind, content, status, metadata, created_at, updated_at FROM actions`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var action Action
		var runIDStr, statusStr, metadataStr sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&action.ID, &runIDStr, &action.Kind, &action.Content, &statusStr, &metadataStr, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		action.RunID = runIDStr.String
		action.Status = statusStr.String
		action.Metadata = decodeJSONMap(metadataStr.String)
		action.CreatedAt = parseTime(createdAt)
		action.UpdatedAt = parseTime(updatedAt)
		out = append(out, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}
