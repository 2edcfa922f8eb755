package gateway

import (
	"fmt"
	"strings"

	"github.com/yungbote/galaxychat-backend/internal/llm"
	"github.com/yungbote/galaxychat-backend/internal/stream"
)

const (
	blockNone = iota
	blockText
	blockReasoning
)

// stepState turns provider deltas into one UI step. At most one text or reasoning
// block is open at a time; switching kinds closes the open block first.
type stepState struct {
	emit    llm.Emit
	started bool
	open    int
	openID  string
	n       int
	sources map[string]bool
}

func newStepState(emit llm.Emit) *stepState {
	return &stepState{emit: emit, sources: map[string]bool{}}
}

func (s *stepState) begin() error {
	if s.started {
		return nil
	}
	s.started = true
	return s.emit(stream.StartStep{})
}

func (s *stepState) nextID(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, s.n)
	s.n++
	return id
}

func (s *stepState) text(delta string) error {
	if s.open != blockText {
		if err := s.closeBlock(); err != nil {
			return err
		}
		s.open, s.openID = blockText, s.nextID("text")
		if err := s.emit(stream.TextStart{ID: s.openID}); err != nil {
			return err
		}
	}
	return s.emit(stream.TextDelta{ID: s.openID, Delta: delta})
}

func (s *stepState) reasoning(delta string) error {
	if s.open != blockReasoning {
		if err := s.closeBlock(); err != nil {
			return err
		}
		s.open, s.openID = blockReasoning, s.nextID("reasoning")
		if err := s.emit(stream.ReasoningStart{ID: s.openID}); err != nil {
			return err
		}
	}
	return s.emit(stream.ReasoningDelta{ID: s.openID, Delta: delta})
}

// source emits each distinct url once; providers repeat citations on every chunk.
func (s *stepState) source(url, title string) error {
	url = strings.TrimSpace(url)
	if url == "" || s.sources[url] {
		return nil
	}
	s.sources[url] = true
	return s.emit(stream.SourceURL{SourceID: s.nextID("source"), URL: url, Title: title})
}

func (s *stepState) closeBlock() error {
	var err error
	switch s.open {
	case blockText:
		err = s.emit(stream.TextEnd{ID: s.openID})
	case blockReasoning:
		err = s.emit(stream.ReasoningEnd{ID: s.openID})
	}
	s.open, s.openID = blockNone, ""
	return err
}

func (s *stepState) finish() error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.closeBlock(); err != nil {
		return err
	}
	return s.emit(stream.FinishStep{})
}
