package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
)

func TestEntriesFromKeepsTextPartsInOrder(t *testing.T) {
	user := &chat.Message{Role: chat.RoleUser, Parts: chat.Parts{
		chat.FilePart{URL: "https://cdn.example.com/a.png", MediaType: "image/png"},
		chat.TextPart{Text: "what is this?"},
	}}
	assistant := &chat.Message{Role: chat.RoleAssistant, Parts: chat.Parts{
		chat.ReasoningPart{Text: "looking"},
		chat.TextPart{Text: "A cat."},
		chat.TextPart{Text: "  "},
		chat.SourceURLPart{SourceID: "s", URL: "https://example.com"},
	}}

	got := EntriesFrom(user, nil, assistant)
	require.Equal(t, []Entry{
		{Role: "user", Content: "what is this?"},
		{Role: "assistant", Content: "A cat."},
	}, got)
	require.Empty(t, EntriesFrom())
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	found, err := s.Search(context.Background(), "u", "q")
	require.NoError(t, err)
	require.Empty(t, found)
	require.NoError(t, s.Add(context.Background(), "u", []Entry{{Role: "user", Content: "x"}}))
}
