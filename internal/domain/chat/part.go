package chat

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	PartTypeText      = "text"
	PartTypeFile      = "file"
	PartTypeReasoning = "reasoning"
	PartTypeSourceURL = "source-url"
)

// Part is one segment of a message. The set of variants is closed: TextPart,
// FilePart, ReasoningPart and SourceURLPart.
type Part interface {
	PartType() string
	isPart()
}

type TextPart struct {
	Text string `json:"text"`
}

type FilePart struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
	Filename  string `json:"filename,omitempty"`
}

type ReasoningPart struct {
	Text string `json:"text"`
}

type SourceURLPart struct {
	SourceID string `json:"sourceId"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

func (TextPart) PartType() string      { return PartTypeText }
func (FilePart) PartType() string      { return PartTypeFile }
func (ReasoningPart) PartType() string { return PartTypeReasoning }
func (SourceURLPart) PartType() string { return PartTypeSourceURL }

func (TextPart) isPart()      {}
func (FilePart) isPart()      {}
func (ReasoningPart) isPart() {}
func (SourceURLPart) isPart() {}

var ErrUnknownPartType = errors.New("unknown part type")

// MarshalPart encodes p as a {"type": ...} tagged object.
func MarshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			TextPart
		}{PartTypeText, v})
	case FilePart:
		return json.Marshal(struct {
			Type string `json:"type"`
			FilePart
		}{PartTypeFile, v})
	case ReasoningPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ReasoningPart
		}{PartTypeReasoning, v})
	case SourceURLPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			SourceURLPart
		}{PartTypeSourceURL, v})
	case nil:
		return nil, fmt.Errorf("marshal part: nil part")
	default:
		return nil, fmt.Errorf("marshal part %T: %w", p, ErrUnknownPartType)
	}
}

// UnmarshalPart decodes a tagged object. Unknown tags are rejected.
func UnmarshalPart(data []byte) (Part, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode part: %w", err)
	}
	switch head.Type {
	case PartTypeText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode text part: %w", err)
		}
		return p, nil
	case PartTypeFile:
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode file part: %w", err)
		}
		return p, nil
	case PartTypeReasoning:
		var p ReasoningPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode reasoning part: %w", err)
		}
		return p, nil
	case PartTypeSourceURL:
		var p SourceURLPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode source-url part: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("decode part %q: %w", head.Type, ErrUnknownPartType)
	}
}

// Parts is the ordered part list of a message. It is stored as a single JSON column.
type Parts []Part

func (ps Parts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalPart(p)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode parts: %w", err)
	}
	out := make(Parts, 0, len(raws))
	for i, raw := range raws {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("parts[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}

func (ps Parts) Value() (driver.Value, error) {
	if ps == nil {
		ps = Parts{}
	}
	b, err := ps.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (ps *Parts) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*ps = Parts{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan parts: unsupported type %T", value)
	}
	return ps.UnmarshalJSON(data)
}

func (Parts) GormDataType() string { return "json" }

func (Parts) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}

// FirstText returns the text of the first text part, or "".
func (ps Parts) FirstText() string {
	for _, p := range ps {
		if t, ok := p.(TextPart); ok {
			return t.Text
		}
	}
	return ""
}

// Texts returns the text of every text part in order.
func (ps Parts) Texts() []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		switch v := p.(type) {
		case TextPart:
			out = append(out, v.Text)
		case FilePart, ReasoningPart, SourceURLPart:
		}
	}
	return out
}

// HasFile reports whether any part is a file reference.
func (ps Parts) HasFile() bool {
	for _, p := range ps {
		if _, ok := p.(FilePart); ok {
			return true
		}
	}
	return false
}

// ValidateUserParts checks the parts a client may submit: non-empty, text and file
// variants only, file parts with a url and media type.
func ValidateUserParts(ps Parts) error {
	if len(ps) == 0 {
		return errors.New("message has no parts")
	}
	for i, p := range ps {
		switch v := p.(type) {
		case TextPart:
		case FilePart:
			if strings.TrimSpace(v.URL) == "" || strings.TrimSpace(v.MediaType) == "" {
				return fmt.Errorf("parts[%d]: file part requires url and mediaType", i)
			}
		case ReasoningPart, SourceURLPart:
			return fmt.Errorf("parts[%d]: %s parts are not accepted from clients", i, p.PartType())
		default:
			return fmt.Errorf("parts[%d]: %w", i, ErrUnknownPartType)
		}
	}
	return nil
}
