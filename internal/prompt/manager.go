package prompt

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/flitsinc/skyagent/internal/state"
)

type NoteLister interface {
	RecentNotes(ctx context.Context, kind string, limit int) ([]state.Note, error)
}

// Manager assembles the system context for every action loop run: the
// identity followed by the newest MaxNotes behavioral notes.
type Manager struct {
	Identity string
	Self     string
	Notes    NoteLister
	MaxNotes int
}

// LoadIdentity reads the identity text from path, or returns the default
// when path is empty.
func LoadIdentity(path string) (string, error) {
	if path == "" {
		return DefaultIdentity, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read identity: %w", err)
	}
	return string(data), nil
}

func (m *Manager) Build(ctx context.Context) (string, error) {
	identity := m.Identity
	if strings.TrimSpace(identity) == "" {
		identity = DefaultIdentity
	}

	builder := NewBuilder()
	builder.Add(Block{ID: "identity", Priority: 100, Content: identity})
	if m.Self != "" {
		builder.Add(Block{ID: "self", Title: "Account", Priority: 90, Content: "Your DID is " + m.Self + "."})
	}

	if m.Notes != nil {
		limit := m.MaxNotes
		if limit <= 0 {
			limit = 50
		}
		notes, err := m.Notes.RecentNotes(ctx, state.NoteBehavior, limit)
		if err != nil {
			return "", fmt.Errorf("load behavior notes: %w", err)
		}
		var sb strings.Builder
		for _, n := range notes {
			fmt.Fprintf(&sb, "- %s\n", n.Body)
		}
		builder.Add(Block{ID: "notes", Title: "Behavior notes", Priority: 60, Content: sb.String()})
	}

	return builder.Build(), nil
}
