package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/skyagent/internal/admin"
	"github.com/flitsinc/skyagent/internal/profiles"
	"github.com/flitsinc/skyagent/internal/relevance"
	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/stream"
)

// EventTrigger describes a relevant stream event for the decision
// procedure.
func EventTrigger(ev stream.Event, reason relevance.Reason, author profiles.Profile) string {
	var sb strings.Builder
	who := author.Label()
	record := map[string]any(nil)
	if ev.Commit != nil {
		record = ev.Commit.Record
	}

	switch reason {
	case relevance.ReasonFollow:
		fmt.Fprintf(&sb, "%s followed you.", who)
	case relevance.ReasonLike:
		subject, _ := record["subject"].(map[string]any)
		uri, _ := subject["uri"].(string)
		fmt.Fprintf(&sb, "%s liked your post %s.", who, uri)
	case relevance.ReasonMention:
		fmt.Fprintf(&sb, "%s mentioned you in a post.", who)
	case relevance.ReasonReply:
		fmt.Fprintf(&sb, "%s replied to you.", who)
	case relevance.ReasonInThread:
		fmt.Fprintf(&sb, "%s posted in a thread you are part of.", who)
	default:
		fmt.Fprintf(&sb, "Activity from %s.", who)
	}

	if ev.Collection() == relevance.CollectionPost {
		fmt.Fprintf(&sb, "\n\nPost URI: %s", ev.URI())
		refs := relevance.ReplyRefs(record)
		if refs.Parent != "" {
			fmt.Fprintf(&sb, "\nIn reply to: %s", refs.Parent)
		}
		if refs.Root != "" {
			fmt.Fprintf(&sb, "\nThread root: %s", refs.Root)
		}
		fmt.Fprintf(&sb, "\nText:\n%s", relevance.Text(record))
	}
	fmt.Fprintf(&sb, "\n\nTime: %s", ev.Time().UTC().Format(time.RFC3339))
	return sb.String()
}

func AdminTrigger(msgs []admin.Message) string {
	var sb strings.Builder
	sb.WriteString("New direct messages from your administrator:\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "\n[%s] %s", m.SentAt.UTC().Format(time.RFC3339), m.Text)
	}
	sb.WriteString("\n\nFollow their instructions. Record lasting guidance with add_note.")
	return sb.String()
}

func ReflectionTrigger(recent []state.Action) string {
	var sb strings.Builder
	sb.WriteString("Time to reflect. Review what you have done recently and decide whether anything about how you behave should change.")
	if len(recent) == 0 {
		sb.WriteString("\n\nYou have taken no actions since the last reflection.")
		return sb.String()
	}
	sb.WriteString("\n\nRecent actions:")
	for _, a := range recent {
		fmt.Fprintf(&sb, "\n- %s %s: %s", a.CreatedAt.UTC().Format(time.RFC3339), a.Kind, a.Content)
	}
	return sb.String()
}

func ThinkingTrigger(thoughts []state.Note) string {
	var sb strings.Builder
	sb.WriteString("Quiet time. Think through the ideas you queued earlier and act on any that deserve it.\n")
	for _, n := range thoughts {
		fmt.Fprintf(&sb, "\n- %s", n.Body)
	}
	return sb.String()
}
