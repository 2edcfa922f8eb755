package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	TypeStart          = "start"
	TypeStartStep      = "start-step"
	TypeTextStart      = "text-start"
	TypeTextDelta      = "text-delta"
	TypeTextEnd        = "text-end"
	TypeReasoningStart = "reasoning-start"
	TypeReasoningDelta = "reasoning-delta"
	TypeReasoningEnd   = "reasoning-end"
	TypeSourceURL      = "source-url"
	TypeFinishStep     = "finish-step"
	TypeFinish         = "finish"
	TypeError          = "error"

	dataPrefix = "data-"
)

// GenericErrorText is the only error text ever sent to clients.
const GenericErrorText = "Oops, an error occurred!"

// Event is one frame of the UI message stream. The variants below are the complete set.
type Event interface {
	EventType() string
	isEvent()
}

type Start struct {
	MessageID string `json:"messageId,omitempty"`
}

type StartStep struct{}

type TextStart struct {
	ID string `json:"id"`
}

type TextDelta struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

type TextEnd struct {
	ID string `json:"id"`
}

type ReasoningStart struct {
	ID string `json:"id"`
}

type ReasoningDelta struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

type ReasoningEnd struct {
	ID string `json:"id"`
}

type SourceURL struct {
	SourceID string `json:"sourceId"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

type FinishStep struct{}

// Data is an application event, sent as {"type":"data-<Name>","data":...}.
type Data struct {
	Name    string
	Payload json.RawMessage
}

type Finish struct{}

type Error struct {
	ErrorText string `json:"errorText"`
}

func (Start) EventType() string          { return TypeStart }
func (StartStep) EventType() string      { return TypeStartStep }
func (TextStart) EventType() string      { return TypeTextStart }
func (TextDelta) EventType() string      { return TypeTextDelta }
func (TextEnd) EventType() string        { return TypeTextEnd }
func (ReasoningStart) EventType() string { return TypeReasoningStart }
func (ReasoningDelta) EventType() string { return TypeReasoningDelta }
func (ReasoningEnd) EventType() string   { return TypeReasoningEnd }
func (SourceURL) EventType() string      { return TypeSourceURL }
func (FinishStep) EventType() string     { return TypeFinishStep }
func (d Data) EventType() string         { return dataPrefix + d.Name }
func (Finish) EventType() string         { return TypeFinish }
func (Error) EventType() string          { return TypeError }

func (Start) isEvent()          {}
func (StartStep) isEvent()      {}
func (TextStart) isEvent()      {}
func (TextDelta) isEvent()      {}
func (TextEnd) isEvent()        {}
func (ReasoningStart) isEvent() {}
func (ReasoningDelta) isEvent() {}
func (ReasoningEnd) isEvent()   {}
func (SourceURL) isEvent()      {}
func (FinishStep) isEvent()     {}
func (Data) isEvent()           {}
func (Finish) isEvent()         {}
func (Error) isEvent()          {}

var ErrUnknownEvent = errors.New("unknown stream event")

// NewData marshals payload into a Data event.
func NewData(name string, payload interface{}) (Data, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Data{}, fmt.Errorf("marshal data-%s: %w", name, err)
	}
	return Data{Name: name, Payload: b}, nil
}

func typed(t string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head := `{"type":` + quote(t)
	if string(body) == "{}" {
		return []byte(head + "}"), nil
	}
	return []byte(head + "," + string(body[1:])), nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Marshal encodes e as a single JSON object tagged with "type".
func Marshal(e Event) ([]byte, error) {
	switch v := e.(type) {
	case Start:
		return typed(TypeStart, v)
	case StartStep:
		return typed(TypeStartStep, v)
	case TextStart:
		return typed(TypeTextStart, v)
	case TextDelta:
		return typed(TypeTextDelta, v)
	case TextEnd:
		return typed(TypeTextEnd, v)
	case ReasoningStart:
		return typed(TypeReasoningStart, v)
	case ReasoningDelta:
		return typed(TypeReasoningDelta, v)
	case ReasoningEnd:
		return typed(TypeReasoningEnd, v)
	case SourceURL:
		return typed(TypeSourceURL, v)
	case FinishStep:
		return typed(TypeFinishStep, v)
	case Data:
		if strings.TrimSpace(v.Name) == "" {
			return nil, fmt.Errorf("data event without name")
		}
		payload := v.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		return typed(v.EventType(), struct {
			Data json.RawMessage `json:"data"`
		}{payload})
	case Finish:
		return typed(TypeFinish, v)
	case Error:
		return typed(TypeError, v)
	case nil:
		return nil, fmt.Errorf("marshal event: nil")
	default:
		return nil, fmt.Errorf("marshal %T: %w", e, ErrUnknownEvent)
	}
}

// Unmarshal decodes one JSON event object.
func Unmarshal(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	decode := func(dst interface{}) error {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return nil
	}
	switch head.Type {
	case TypeStart:
		var e Start
		err := decode(&e)
		return e, err
	case TypeStartStep:
		return StartStep{}, nil
	case TypeTextStart:
		var e TextStart
		err := decode(&e)
		return e, err
	case TypeTextDelta:
		var e TextDelta
		err := decode(&e)
		return e, err
	case TypeTextEnd:
		var e TextEnd
		err := decode(&e)
		return e, err
	case TypeReasoningStart:
		var e ReasoningStart
		err := decode(&e)
		return e, err
	case TypeReasoningDelta:
		var e ReasoningDelta
		err := decode(&e)
		return e, err
	case TypeReasoningEnd:
		var e ReasoningEnd
		err := decode(&e)
		return e, err
	case TypeSourceURL:
		var e SourceURL
		err := decode(&e)
		return e, err
	case TypeFinishStep:
		return FinishStep{}, nil
	case TypeFinish:
		return Finish{}, nil
	case TypeError:
		var e Error
		err := decode(&e)
		return e, err
	}
	if name := strings.TrimPrefix(head.Type, dataPrefix); name != head.Type && name != "" {
		var body struct {
			Data json.RawMessage `json:"data"`
		}
		if err := decode(&body); err != nil {
			return nil, err
		}
		return Data{Name: name, Payload: body.Data}, nil
	}
	return nil, fmt.Errorf("decode event %q: %w", head.Type, ErrUnknownEvent)
}
