// Package relevance decides whether a stream event concerns the actor.
package relevance

import (
	"context"
	"strings"

	"github.com/flitsinc/skyagent/internal/stream"
)

const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionFollow = "app.bsky.graph.follow"

	mentionFeature = "app.bsky.richtext.facet#mention"
)

// ThreadLookup reports whether the actor has joined the thread rooted at
// rootURI.
type ThreadLookup interface {
	Contains(ctx context.Context, rootURI string) (bool, error)
}

// Reason names why an event was kept.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonFollow   Reason = "follow"
	ReasonLike     Reason = "like"
	ReasonMention  Reason = "mention"
	ReasonReply    Reason = "reply"
	ReasonInThread Reason = "thread"
)

// IsRelevant applies the decision table. The only error source is the
// thread lookup.
func IsRelevant(ctx context.Context, ev stream.Event, self string, threads ThreadLookup) (bool, error) {
	reason, err := Classify(ctx, ev, self, threads)
	return reason != ReasonNone, err
}

// Classify is IsRelevant with the matching rule.
func Classify(ctx context.Context, ev stream.Event, self string, threads ThreadLookup) (Reason, error) {
	if ev.Kind != stream.KindCommit || ev.Commit == nil || ev.Commit.Operation != stream.OpCreate {
		return ReasonNone, nil
	}
	record := ev.Commit.Record

	switch ev.Commit.Collection {
	case CollectionFollow:
		if subject, _ := record["subject"].(string); subject != "" && subject == self {
			return ReasonFollow, nil
		}
		return ReasonNone, nil

	case CollectionLike:
		subject, _ := record["subject"].(map[string]any)
		uri, _ := subject["uri"].(string)
		if AuthorOf(uri) == self {
			return ReasonLike, nil
		}
		return ReasonNone, nil

	case CollectionPost:
		if ev.DID == self {
			return ReasonNone, nil
		}
		for _, did := range Mentions(record) {
			if did == self {
				return ReasonMention, nil
			}
		}
		refs := ReplyRefs(record)
		if refs.Parent != "" && AuthorOf(refs.Parent) == self {
			return ReasonReply, nil
		}
		if refs.Root != "" && AuthorOf(refs.Root) == self {
			return ReasonReply, nil
		}
		if refs.Root != "" && threads != nil {
			ok, err := threads.Contains(ctx, refs.Root)
			if err != nil {
				return ReasonNone, err
			}
			if ok {
				return ReasonInThread, nil
			}
		}
		return ReasonNone, nil
	}
	return ReasonNone, nil
}

// AuthorOf returns the repository DID of an at-URI, or "" when uri is not
// one.
func AuthorOf(uri string) string {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return ""
	}
	author, _, _ := strings.Cut(rest, "/")
	return author
}

type Refs struct {
	Root   string
	Parent string
}

// ReplyRefs extracts the root and parent URIs of a reply post.
func ReplyRefs(record map[string]any) Refs {
	reply, _ := record["reply"].(map[string]any)
	if reply == nil {
		return Refs{}
	}
	return Refs{Root: refURI(reply["root"]), Parent: refURI(reply["parent"])}
}

func refURI(v any) string {
	ref, _ := v.(map[string]any)
	uri, _ := ref["uri"].(string)
	return uri
}

// Mentions lists the DIDs mentioned through rich-text facets.
func Mentions(record map[string]any) []string {
	facets, _ := record["facets"].([]any)
	var out []string
	for _, f := range facets {
		facet, _ := f.(map[string]any)
		features, _ := facet["features"].([]any)
		for _, ft := range features {
			feature, _ := ft.(map[string]any)
			if kind, _ := feature["$type"].(string); kind != mentionFeature {
				continue
			}
			if did, _ := feature["did"].(string); did != "" {
				out = append(out, did)
			}
		}
	}
	return out
}

// Text returns the text of a post record.
func Text(record map[string]any) string {
	text, _ := record["text"].(string)
	return text
}
