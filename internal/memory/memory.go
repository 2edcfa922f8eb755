package memory

import (
	"context"
	"strings"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
)

// Entry is one conversation line handed to the memory service.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is long-term, per-user conversational memory.
type Store interface {
	// Search returns memory text relevant to query, or "" when nothing matches.
	Search(ctx context.Context, userID, query string) (string, error)
	Add(ctx context.Context, userID string, entries []Entry) error
}

// Noop is used when no memory backend is configured.
type Noop struct{}

func (Noop) Search(context.Context, string, string) (string, error) { return "", nil }
func (Noop) Add(context.Context, string, []Entry) error           { return nil }

// EntriesFrom builds one entry per text part of each message, in order.
func EntriesFrom(msgs ...*chat.Message) []Entry {
	var out []Entry
	for _, m := range msgs {
		if m == nil {
			continue
		}
		for _, t := range m.Parts.Texts() {
			if strings.TrimSpace(t) == "" {
				continue
			}
			out = append(out, Entry{Role: string(m.Role), Content: t})
		}
	}
	return out
}
