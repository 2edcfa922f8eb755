package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/stream"
)

const (
	ContentText  = "text"
	ContentImage = "image_url"
)

// Content is one segment of a model-facing message.
type Content struct {
	Type     string
	Text     string
	ImageURL string
}

// Message is a conversation entry in the form every backend accepts.
type Message struct {
	Role    chat.Role
	Content []Content
}

// Text joins the text segments of m.
func (m Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type != ContentText {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Text)
	}
	return b.String()
}

type Request struct {
	Model    string
	System   string
	Messages []Message
}

// Emit receives stream events in order. Returning an error stops the model.
type Emit func(e stream.Event) error

// Model streams one assistant step. Implementations emit start-step, the
// reasoning/text/source events and finish-step; the caller owns start, data and
// finish. The returned usage is the provider's final accounting.
type Model interface {
	Stream(ctx context.Context, req Request, emit Emit) (chat.Usage, error)
}

// Completer produces a single non-streamed completion.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// FromParts converts stored parts into model content. Images travel as image
// inputs, other files as a text reference, and reasoning and sources stay out of
// the prompt.
func FromParts(role chat.Role, parts chat.Parts) Message {
	m := Message{Role: role}
	for _, p := range parts {
		switch v := p.(type) {
		case chat.TextPart:
			if v.Text == "" {
				continue
			}
			m.Content = append(m.Content, Content{Type: ContentText, Text: v.Text})
		case chat.FilePart:
			if strings.HasPrefix(v.MediaType, "image/") && role == chat.RoleUser {
				m.Content = append(m.Content, Content{Type: ContentImage, ImageURL: v.URL})
				continue
			}
			name := v.Filename
			if name == "" {
				name = v.MediaType
			}
			m.Content = append(m.Content, Content{Type: ContentText, Text: fmt.Sprintf("[attachment %s: %s]", name, v.URL)})
		case chat.ReasoningPart, chat.SourceURLPart:
		}
	}
	return m
}

// FromMessages converts a stored history, dropping entries left without content.
func FromMessages(msgs []*chat.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		m := FromParts(msg.Role, msg.Parts)
		if len(m.Content) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}
