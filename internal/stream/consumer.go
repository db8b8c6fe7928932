package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/flitsinc/skyagent/internal/logging"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Message is what the consumer hands to its owner: either one event or
// the end of a connection. Exactly one Disconnected message follows the
// last event of every connection.
type Message struct {
	Event        *Event
	Disconnected bool
	Err          error
}

type Options struct {
	Topics     []string
	ResumeFrom *int64
}

type Config struct {
	Endpoint string
	// SafetyMargin is subtracted from the resume cursor.
	SafetyMargin time.Duration
	Buffer       int
	ReadLimit    int64
	DialTimeout  time.Duration
	Logger       *slog.Logger
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	inbox  chan Message

	mu          sync.Mutex
	state       State
	connectedAt time.Time
	cancel      context.CancelFunc
}

func NewConsumer(cfg Config) *Consumer {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 2 << 20
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger.With("component", "stream"),
		inbox:  make(chan Message, cfg.Buffer),
	}
}

// Inbox delivers events in receive order. The reader blocks when it is
// full, which paces the connection to the speed of dispatch.
func (c *Consumer) Inbox() <-chan Message {
	return c.inbox
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) ConnectedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedAt
}

// Connect opens a connection unless one is already open or opening, in
// which case it does nothing. ctx bounds the lifetime of the connection.
func (c *Consumer) Connect(ctx context.Context, opts Options) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	target, err := BuildURL(c.cfg.Endpoint, opts.Topics, opts.ResumeFrom, c.cfg.SafetyMargin)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, target, nil)
	dialCancel()
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial stream: %w", err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)

	readCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.state = StateConnected
	c.connectedAt = time.Now().UTC()
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("stream connected", "url", target)
	go c.readLoop(ctx, readCtx, conn)
	return nil
}

// Close ends the current connection, if any. The Disconnected message is
// still delivered.
func (c *Consumer) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Consumer) readLoop(ctx, readCtx context.Context, conn *websocket.Conn) {
	var cause error
	defer func() {
		_ = conn.CloseNow()
		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
		}
		c.cancel = nil
		c.state = StateDisconnected
		c.mu.Unlock()

		c.logger.Warn("stream disconnected", "error", cause, "close_status", websocket.CloseStatus(cause))
		select {
		case c.inbox <- Message{Disconnected: true, Err: cause}:
		case <-ctx.Done():
		}
	}()

	for {
		typ, data, err := conn.Read(readCtx)
		if err != nil {
			cause = err
			return
		}
		if typ != websocket.MessageText {
			cause = fmt.Errorf("%w: unexpected binary frame", ErrMalformedFrame)
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}
		ev, err := Parse(data)
		if err != nil {
			c.logger.Warn("dropping frame", "error", err)
			continue
		}
		select {
		case c.inbox <- Message{Event: &ev}:
		case <-ctx.Done():
			cause = ctx.Err()
			return
		}
	}
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// BuildURL adds topic filters and the resume cursor, moved back by margin
// and clamped at zero, to the endpoint.
func BuildURL(endpoint string, topics []string, resumeFrom *int64, margin time.Duration) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse stream endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("stream endpoint must be an absolute url")
	}
	q := u.Query()
	for _, t := range topics {
		q.Add("wantedCollections", t)
	}
	if resumeFrom != nil {
		q.Set("cursor", strconv.FormatInt(ResumePoint(*resumeFrom, margin), 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResumePoint is the cursor to request after a restart or reconnect.
func ResumePoint(persisted int64, margin time.Duration) int64 {
	c := persisted - margin.Microseconds()
	if c < 0 {
		return 0
	}
	return c
}
