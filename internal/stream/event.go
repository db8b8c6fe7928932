// Package stream consumes the commit-event firehose over a websocket.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMalformedFrame = errors.New("malformed frame")

type Kind string

const (
	KindCommit   Kind = "commit"
	KindIdentity Kind = "identity"
	KindAccount  Kind = "account"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type Commit struct {
	Rev        string         `json:"rev,omitempty"`
	Operation  Operation      `json:"operation"`
	Collection string         `json:"collection"`
	RKey       string         `json:"rkey"`
	Record     map[string]any `json:"record,omitempty"`
	CID        string         `json:"cid,omitempty"`
}

// Event is one decoded frame. TimeUS is the logical time in microseconds
// and doubles as the resume cursor.
type Event struct {
	DID    string  `json:"did"`
	TimeUS int64   `json:"time_us"`
	Kind   Kind    `json:"kind"`
	Commit *Commit `json:"commit,omitempty"`
}

// Parse decodes a single text frame.
func Parse(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if ev.DID == "" {
		return Event{}, fmt.Errorf("%w: missing did", ErrMalformedFrame)
	}
	if ev.TimeUS <= 0 {
		return Event{}, fmt.Errorf("%w: missing time_us", ErrMalformedFrame)
	}
	switch ev.Kind {
	case KindCommit:
		if ev.Commit == nil || ev.Commit.Collection == "" {
			return Event{}, fmt.Errorf("%w: commit without collection", ErrMalformedFrame)
		}
	case KindIdentity, KindAccount:
	default:
		return Event{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedFrame, ev.Kind)
	}
	return ev, nil
}

func (e Event) Time() time.Time {
	return time.UnixMicro(e.TimeUS)
}

// URI is the at-URI of the committed record, or "" for non-commit events.
func (e Event) URI() string {
	if e.Commit == nil {
		return ""
	}
	return fmt.Sprintf("at://%s/%s/%s", e.DID, e.Commit.Collection, e.Commit.RKey)
}

func (e Event) Collection() string {
	if e.Commit == nil {
		return ""
	}
	return e.Commit.Collection
}
