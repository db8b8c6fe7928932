// Package events mirrors the activity feed onto NATS so other processes
// can follow the actor without polling its HTTP API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/logging"
)

const SubjectPrefix = "skyagent."

func Subject(stream string) string {
	return SubjectPrefix + stream
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NATSPublisher publishes JSON-encoded events to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{
		nats.Name("skyagent"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.conn.Publish(topic, data)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	return nil
}

type Source interface {
	Subscribe(ctx context.Context, streams []string) <-chan eventbus.Event
}

// Forward publishes every event from streams to skyagent.<stream> until ctx
// is done. Publish failures are logged and the event is dropped.
func Forward(ctx context.Context, src Source, pub Publisher, streams []string, logger *slog.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("component", "events")
	ch := src.Subscribe(ctx, streams)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := pub.Publish(ctx, Subject(ev.Stream), ev); err != nil {
				logger.Warn("publish failed", "stream", ev.Stream, "event_id", ev.ID, "error", err)
			}
		}
	}
}
