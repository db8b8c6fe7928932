package eventbus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("event not found")

// Bus persists activity events in sqlite and fans them out to live
// subscribers. Slow subscribers miss events rather than block Push.
type Bus struct {
	db *sql.DB

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	streams map[string]struct{}
	ch      chan Event
}

func NewBus(db *sql.DB) *Bus {
	return &Bus{db: db, subs: map[string]*subscriber{}}
}

func (b *Bus) Push(ctx context.Context, input EventInput) (Event, error) {
	if strings.TrimSpace(input.Stream) == "" {
		return Event{}, fmt.Errorf("stream is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return Event{}, fmt.Errorf("body is required")
	}

	event := Event{
		ID:        ulid.Make().String(),
		Stream:    input.Stream,
		RunID:     input.RunID,
		Subject:   input.Subject,
		Body:      input.Body,
		Metadata:  input.Metadata,
		Payload:   input.Payload,
		CreatedAt: time.Now().UTC(),
	}
	metadataJSON, err := encodeJSON(input.Metadata)
	if err != nil {
		return Event{}, fmt.Errorf("encode metadata: %w", err)
	}
	payloadJSON, err := encodeJSON(input.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode payload: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO events (id, stream, run_id, subject, body, metadata, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Stream, nullString(event.RunID), nullString(event.Subject), event.Body,
		nullString(metadataJSON), nullString(payloadJSON), event.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	b.broadcast(event)
	return event, nil
}

// List returns events of one stream. ULIDs sort by creation time, so
// ordering is by id.
func (b *Bus) List(ctx context.Context, stream string, opts ListOptions) ([]Event, error) {
	if strings.TrimSpace(stream) == "" {
		return nil, fmt.Errorf("stream is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	order := strings.ToLower(opts.Order)
	if order == "" {
		order = DefaultOrder(stream)
	}
	orderBy := "id DESC"
	if order == "fifo" {
		orderBy = "id ASC"
	}

	where := "WHERE stream = ?"
	args := []any{stream}
	if opts.RunID != "" {
		where += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT id, stream, run_id, subject, body, metadata, payload, created_at FROM events %s ORDER BY %s LIMIT ?`, where, orderBy)
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (b *Bus) Get(ctx context.Context, id string) (Event, error) {
	row := b.db.QueryRowContext(ctx, `SELECT id, stream, run_id, subject, body, metadata, payload, created_at FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	return e, err
}

// Subscribe delivers events pushed after the call on the named streams
// (all streams when empty) until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, streams []string) <-chan Event {
	ch := make(chan Event, 64)
	streamSet := map[string]struct{}{}
	for _, s := range streams {
		if s != "" {
			streamSet[s] = struct{}{}
		}
	}
	id := ulid.Make().String()

	b.mu.Lock()
	b.subs[id] = &subscriber{streams: streamSet, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if len(sub.streams) > 0 {
			if _, ok := sub.streams[event.Stream]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var e Event
	var runID, subject, metadataStr, payloadStr sql.NullString
	var createdAt string
	if err := row.Scan(&e.ID, &e.Stream, &runID, &subject, &e.Body, &metadataStr, &payloadStr, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.RunID = runID.String
	e.Subject = subject.String
	e.Metadata = decodeJSONMap(metadataStr.String)
	e.Payload = decodeJSONMap(payloadStr.String)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

func encodeJSON(v map[string]any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSONMap(v string) map[string]any {
	if v == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
