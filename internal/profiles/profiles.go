// Package profiles resolves account DIDs to display information.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}

// Label renders the profile for a prompt: "@handle (did)" or just the DID
// when the lookup failed.
func (p Profile) Label() string {
	if p.Handle == "" {
		return p.DID
	}
	if p.DisplayName != "" {
		return fmt.Sprintf("%s (@%s, %s)", p.DisplayName, p.Handle, p.DID)
	}
	return fmt.Sprintf("@%s (%s)", p.Handle, p.DID)
}

type Resolver interface {
	Resolve(ctx context.Context, did string) (Profile, error)
}

// HTTPResolver calls app.bsky.actor.getProfile on a public AppView.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, did string) (Profile, error) {
	endpoint := r.BaseURL + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(did)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build profile request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", did, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("get profile %s: status %d", did, resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", did, err)
	}
	if p.DID == "" {
		p.DID = did
	}
	return p, nil
}

// Cached wraps a Resolver with an expiring LRU. Failures are not cached.
type Cached struct {
	next  Resolver
	cache *expirable.LRU[string, Profile]
}

func NewCached(next Resolver, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1024
	}
	return &Cached{next: next, cache: expirable.NewLRU[string, Profile](size, nil, ttl)}
}

func (c *Cached) Resolve(ctx context.Context, did string) (Profile, error) {
	if p, ok := c.cache.Get(did); ok {
		return p, nil
	}
	p, err := c.next.Resolve(ctx, did)
	if err != nil {
		return Profile{}, err
	}
	c.cache.Add(did, p)
	return p, nil
}

// Lookup resolves did and degrades to an identifier-only profile on any
// failure. The error is returned for logging only.
func Lookup(ctx context.Context, r Resolver, did string) (Profile, error) {
	if r == nil {
		return Profile{DID: did}, nil
	}
	p, err := r.Resolve(ctx, did)
	if err != nil {
		return Profile{DID: did}, err
	}
	return p, nil
}
