package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/schema"
	"github.com/flitsinc/skyagent/internal/testutil"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func waitForSubscribers(t *testing.T, bus *eventbus.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d bus subscribers", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwardPublishesToStreamSubject(t *testing.T) {
	url := startTestNATS(t)
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()
	bus := eventbus.NewBus(db)

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	msgs := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(SubjectPrefix+">", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		Forward(ctx, bus, pub, []string{schema.StreamSteps}, nil)
		close(done)
	}()
	waitForSubscribers(t, bus, 1)

	_, err = bus.Push(ctx, eventbus.EventInput{Stream: schema.StreamDecisions, Body: "not forwarded"})
	require.NoError(t, err)
	pushed, err := bus.Push(ctx, eventbus.EventInput{Stream: schema.StreamSteps, RunID: "run-1", Body: "step 1"})
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "skyagent.steps", msg.Subject)
		var got eventbus.Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, pushed.ID, got.ID)
		assert.Equal(t, "run-1", got.RunID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not return after cancel")
	}
}

type failingPublisher struct{ calls chan string }

func (p failingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.calls <- topic
	return errors.New("no responders")
}

func (failingPublisher) Close() error { return nil }

func TestForwardSurvivesPublishErrors(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()
	bus := eventbus.NewBus(db)
	pub := failingPublisher{calls: make(chan string, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Forward(ctx, bus, pub, nil, nil)
	waitForSubscribers(t, bus, 1)

	for _, body := range []string{"a", "b"} {
		_, err := bus.Push(ctx, eventbus.EventInput{Stream: schema.StreamErrors, Body: body})
		require.NoError(t, err)
	}
	for range 2 {
		select {
		case topic := <-pub.calls:
			assert.Equal(t, "skyagent.errors", topic)
		case <-time.After(2 * time.Second):
			t.Fatal("expected publish attempt")
		}
	}
}
