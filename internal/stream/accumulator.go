package stream

import (
	"encoding/json"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
)

// UIMessage is an assistant message rebuilt from the stream.
type UIMessage struct {
	ID    string
	Role  chat.Role
	Parts chat.Parts
}

// Accumulator folds a stream into UI messages, in the order the parts arrived.
// A start event carrying a new message id opens a new message.
type Accumulator struct {
	genID func() string

	messages  []*UIMessage
	cur       *UIMessage
	text      map[string]int
	reasoning map[string]int

	data     map[string]json.RawMessage
	finished bool
	errText  string
}

func NewAccumulator(genID func() string) *Accumulator {
	return &Accumulator{
		genID: genID,
		data:  map[string]json.RawMessage{},
	}
}

func (a *Accumulator) Write(e Event) error {
	switch v := e.(type) {
	case Start:
		if a.cur == nil || (v.MessageID != "" && v.MessageID != a.cur.ID) {
			a.open(v.MessageID)
		}
	case StartStep, FinishStep:
	case TextStart:
		a.ensure()
		a.text[v.ID] = len(a.cur.Parts)
		a.cur.Parts = append(a.cur.Parts, chat.TextPart{})
	case TextDelta:
		a.ensure()
		idx, ok := a.text[v.ID]
		if !ok {
			idx = len(a.cur.Parts)
			a.text[v.ID] = idx
			a.cur.Parts = append(a.cur.Parts, chat.TextPart{})
		}
		p := a.cur.Parts[idx].(chat.TextPart)
		p.Text += v.Delta
		a.cur.Parts[idx] = p
	case TextEnd:
		if a.text != nil {
			delete(a.text, v.ID)
		}
	case ReasoningStart:
		a.ensure()
		a.reasoning[v.ID] = len(a.cur.Parts)
		a.cur.Parts = append(a.cur.Parts, chat.ReasoningPart{})
	case ReasoningDelta:
		a.ensure()
		idx, ok := a.reasoning[v.ID]
		if !ok {
			idx = len(a.cur.Parts)
			a.reasoning[v.ID] = idx
			a.cur.Parts = append(a.cur.Parts, chat.ReasoningPart{})
		}
		p := a.cur.Parts[idx].(chat.ReasoningPart)
		p.Text += v.Delta
		a.cur.Parts[idx] = p
	case ReasoningEnd:
		if a.reasoning != nil {
			delete(a.reasoning, v.ID)
		}
	case SourceURL:
		a.ensure()
		a.cur.Parts = append(a.cur.Parts, chat.SourceURLPart{SourceID: v.SourceID, URL: v.URL, Title: v.Title})
	case Data:
		a.data[v.Name] = v.Payload
	case Finish:
		a.finished = true
	case Error:
		a.errText = v.ErrorText
	default:
		return ErrUnknownEvent
	}
	return nil
}

func (a *Accumulator) open(id string) {
	if id == "" && a.genID != nil {
		id = a.genID()
	}
	a.cur = &UIMessage{ID: id, Role: chat.RoleAssistant}
	a.messages = append(a.messages, a.cur)
	a.text = map[string]int{}
	a.reasoning = map[string]int{}
}

func (a *Accumulator) ensure() {
	if a.cur == nil {
		a.open("")
	}
}

// Messages returns the messages that received at least one part.
func (a *Accumulator) Messages() []*UIMessage {
	out := make([]*UIMessage, 0, len(a.messages))
	for _, m := range a.messages {
		if len(m.Parts) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// Data returns the latest payload of the named data event.
func (a *Accumulator) Data(name string) (json.RawMessage, bool) {
	d, ok := a.data[name]
	return d, ok
}

func (a *Accumulator) Finished() bool { return a.finished }

// Err returns the error text of a terminal error event, or "".
func (a *Accumulator) Err() string { return a.errText }

// Tee forwards each event to every writer in order, stopping at the first failure.
type Tee []Writer

func (t Tee) Write(e Event) error {
	for _, w := range t {
		if err := w.Write(e); err != nil {
			return err
		}
	}
	return nil
}

// Recorder keeps every event; used by tests and by callers that replay a stream.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Write(e Event) error {
	r.Events = append(r.Events, e)
	return nil
}
