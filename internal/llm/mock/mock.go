package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/stream"
)

// Model replays a fixed event script. With Hang set it blocks after the script
// until the context ends, which lets tests abort a turn mid-stream.
type Model struct {
	Events []stream.Event
	Usage  chat.Usage
	Err    error
	Hang   bool
	// Started, when set, is closed once the script has been emitted.
	Started chan struct{}

	mu       sync.Mutex
	requests []llm.Request
	once     sync.Once
}

var _ llm.Model = (*Model)(nil)

// Echo returns a model that answers with the last user text.
func Echo() *EchoModel { return &EchoModel{} }

func (m *Model) Stream(ctx context.Context, req llm.Request, emit llm.Emit) (chat.Usage, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	for _, e := range m.Events {
		if err := ctx.Err(); err != nil {
			return chat.Usage{}, err
		}
		if err := emit(e); err != nil {
			return chat.Usage{}, err
		}
	}
	if m.Started != nil {
		m.once.Do(func() { close(m.Started) })
	}
	if m.Hang {
		<-ctx.Done()
		return chat.Usage{}, ctx.Err()
	}
	if m.Err != nil {
		return chat.Usage{}, m.Err
	}
	return m.Usage, nil
}

// Requests returns every request the model received.
func (m *Model) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// TextScript is the event sequence of a single text answer.
func TextScript(id string, deltas ...string) []stream.Event {
	out := []stream.Event{stream.StartStep{}, stream.TextStart{ID: id}}
	for _, d := range deltas {
		out = append(out, stream.TextDelta{ID: id, Delta: d})
	}
	return append(out, stream.TextEnd{ID: id}, stream.FinishStep{})
}

// EchoModel is the offline backend selected by MODEL_BACKEND=mock.
type EchoModel struct{}

func (EchoModel) Stream(ctx context.Context, req llm.Request, emit llm.Emit) (chat.Usage, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == chat.RoleUser {
			last = req.Messages[i].Text()
			break
		}
	}
	reply := "You said: " + last
	for _, e := range TextScript("text-0", strings.Fields(reply)...) {
		if err := ctx.Err(); err != nil {
			return chat.Usage{}, err
		}
		if d, ok := e.(stream.TextDelta); ok {
			d.Delta += " "
			e = d
		}
		if err := emit(e); err != nil {
			return chat.Usage{}, err
		}
	}
	in := int64(0)
	for _, m := range req.Messages {
		in += int64(len(strings.Fields(m.Text())))
	}
	out := int64(len(strings.Fields(reply)))
	return chat.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}, nil
}

// Completer returns Reply, or Err when set.
type Completer struct {
	Reply string
	Err   error
	Block bool
}

func (c Completer) Complete(ctx context.Context, _, _, prompt string) (string, error) {
	if c.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.Err != nil {
		return "", c.Err
	}
	if c.Reply == "" {
		return prompt, nil
	}
	return c.Reply, nil
}
