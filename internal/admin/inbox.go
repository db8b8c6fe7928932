// Package admin reads direct messages from the administrator channel.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

type Message struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Inbox returns messages newer than since (all messages when since is
// nil), oldest first.
type Inbox interface {
	FetchLatest(ctx context.Context, since *time.Time) ([]Message, error)
}

// HTTPInbox polls a JSON endpoint: GET <url>?since=<RFC3339Nano>.
type HTTPInbox struct {
	URL    string
	Client *http.Client
}

func NewHTTPInbox(endpoint string) *HTTPInbox {
	return &HTTPInbox{URL: endpoint, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (i *HTTPInbox) FetchLatest(ctx context.Context, since *time.Time) ([]Message, error) {
	u, err := url.Parse(i.URL)
	if err != nil {
		return nil, fmt.Errorf("parse inbox url: %w", err)
	}
	if since != nil {
		q := u.Query()
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build inbox request: %w", err)
	}
	resp, err := i.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch inbox: status %d", resp.StatusCode)
	}
	var msgs []Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("decode inbox: %w", err)
	}
	sort.SliceStable(msgs, func(a, b int) bool { return msgs[a].SentAt.Before(msgs[b].SentAt) })
	return msgs, nil
}

// FromSender keeps messages sent by sender strictly after since.
func FromSender(msgs []Message, sender string, since time.Time) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Sender == sender && m.SentAt.After(since) {
			out = append(out, m)
		}
	}
	return out
}
