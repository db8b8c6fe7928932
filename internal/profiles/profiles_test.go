package profiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPResolverAndCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/xrpc/app.bsky.actor.getProfile", r.URL.Path)
		if r.URL.Query().Get("actor") == "did:plc:missing" {
			http.Error(w, `{"error":"NotFound"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"did":"did:plc:alice","handle":"alice.test","displayName":"Alice"}`))
	}))
	defer srv.Close()

	cached := NewCached(NewHTTPResolver(srv.URL+"/"), 10, time.Hour)
	ctx := context.Background()

	p, err := cached.Resolve(ctx, "did:plc:alice")
	require.NoError(t, err)
	assert.Equal(t, "alice.test", p.Handle)
	assert.Equal(t, "Alice (@alice.test, did:plc:alice)", p.Label())

	_, err = cached.Resolve(ctx, "did:plc:alice")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = cached.Resolve(ctx, "did:plc:missing")
	require.Error(t, err)
	_, err = cached.Resolve(ctx, "did:plc:missing")
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestLookupDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := Lookup(context.Background(), NewHTTPResolver(srv.URL), "did:plc:bob")
	require.Error(t, err)
	assert.Equal(t, "did:plc:bob", p.DID)
	assert.Equal(t, "did:plc:bob", p.Label())

	p, err = Lookup(context.Background(), nil, "did:plc:bob")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:bob", p.Label())
}
