package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
)

func TestMarshalWireShapes(t *testing.T) {
	cases := []struct {
		e    Event
		want string
	}{
		{Start{MessageID: "m1"}, `{"type":"start","messageId":"m1"}`},
		{StartStep{}, `{"type":"start-step"}`},
		{TextDelta{ID: "t", Delta: "hi"}, `{"type":"text-delta","id":"t","delta":"hi"}`},
		{ReasoningEnd{ID: "r"}, `{"type":"reasoning-end","id":"r"}`},
		{SourceURL{SourceID: "s", URL: "https://x"}, `{"type":"source-url","sourceId":"s","url":"https://x"}`},
		{Data{Name: "usage", Payload: json.RawMessage(`{"inputTokens":1}`)}, `{"type":"data-usage","data":{"inputTokens":1}}`},
		{Finish{}, `{"type":"finish"}`},
		{Error{ErrorText: GenericErrorText}, `{"type":"error","errorText":"Oops, an error occurred!"}`},
	}
	for _, tc := range cases {
		b, err := Marshal(tc.e)
		require.NoError(t, err)
		require.JSONEq(t, tc.want, string(b), "%T", tc.e)
	}
}

func TestSSEWriterFramesAndDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)
	require.NoError(t, w.Write(Start{MessageID: "m"}))
	require.NoError(t, w.Write(Finish{}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.Equal(t,
		"data: {\"type\":\"start\",\"messageId\":\"m\"}\n\n"+
			"data: {\"type\":\"finish\"}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
	require.True(t, rec.Flushed)
	require.ErrorIs(t, w.Write(Finish{}), ErrClosed)
}

func TestSSEWriterIsAppendOnlyAfterError(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)
	require.NoError(t, w.Write(TextDelta{ID: "t", Delta: "partial"}))
	require.NoError(t, w.Write(Error{ErrorText: GenericErrorText}))
	require.ErrorIs(t, w.Write(TextDelta{ID: "t", Delta: "more"}), ErrTerminated)
	require.NoError(t, w.Close())

	events, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, TextDelta{ID: "t", Delta: "partial"}, events[0])
	require.Equal(t, Error{ErrorText: GenericErrorText}, events[1])
}

func TestSetHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec.Header())
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	require.Equal(t, "v1", rec.Header().Get("X-Vercel-AI-UI-Message-Stream"))
}

func TestDecoderPreservesProducerOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)
	produced := []Event{
		TextDelta{ID: "a", Delta: "text-a"},
		ReasoningDelta{ID: "b", Delta: "reasoning-b"},
		TextDelta{ID: "a", Delta: "text-c"},
		Finish{},
	}
	for _, e := range produced {
		require.NoError(t, w.Write(e))
	}
	require.NoError(t, w.Close())

	got, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Equal(t, produced, got)
}

func TestDecoderToleratesCommentsCRLFAndMissingDone(t *testing.T) {
	raw := ": ping\r\n\r\ndata: {\"type\":\"start-step\"}\r\n\r\nevent: ignored\ndata: {\"type\":\"finish\"}"
	got, err := ReadAll(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, []Event{StartStep{}, Finish{}}, got)
}

func TestDecoderRejectsUnknownEvent(t *testing.T) {
	_, err := ReadAll(strings.NewReader("data: {\"type\":\"tool-input\"}\n\n"))
	require.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestAccumulatorBuildsPartsInStreamOrder(t *testing.T) {
	acc := NewAccumulator(func() string { return "generated" })
	for _, e := range []Event{
		Start{MessageID: "m1"},
		StartStep{},
		ReasoningStart{ID: "r1"},
		ReasoningDelta{ID: "r1", Delta: "let me "},
		ReasoningDelta{ID: "r1", Delta: "think"},
		ReasoningEnd{ID: "r1"},
		TextStart{ID: "t1"},
		TextDelta{ID: "t1", Delta: "Hel"},
		SourceURL{SourceID: "s1", URL: "https://example.com"},
		TextDelta{ID: "t1", Delta: "lo"},
		TextEnd{ID: "t1"},
		FinishStep{},
		Data{Name: "usage", Payload: json.RawMessage(`{"totalTokens":3}`)},
		Finish{},
	} {
		require.NoError(t, acc.Write(e))
	}
	msgs := acc.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, chat.RoleAssistant, msgs[0].Role)
	require.Equal(t, chat.Parts{
		chat.ReasoningPart{Text: "let me think"},
		chat.TextPart{Text: "Hello"},
		chat.SourceURLPart{SourceID: "s1", URL: "https://example.com"},
	}, msgs[0].Parts)
	usage, ok := acc.Data("usage")
	require.True(t, ok)
	require.JSONEq(t, `{"totalTokens":3}`, string(usage))
	require.True(t, acc.Finished())
}

func TestAccumulatorSplitsOnNewMessageID(t *testing.T) {
	acc := NewAccumulator(nil)
	for _, e := range []Event{
		Start{MessageID: "a"},
		TextDelta{ID: "1", Delta: "first"},
		Start{MessageID: "a"},
		TextDelta{ID: "2", Delta: " still first"},
		Start{MessageID: "b"},
		Start{MessageID: "c"},
		TextDelta{ID: "1", Delta: "third"},
	} {
		require.NoError(t, acc.Write(e))
	}
	msgs := acc.Messages()
	require.Len(t, msgs, 2, "empty message b is dropped")
	require.Equal(t, "a", msgs[0].ID)
	require.Equal(t, chat.Parts{chat.TextPart{Text: "first"}, chat.TextPart{Text: " still first"}}, msgs[0].Parts)
	require.Equal(t, "c", msgs[1].ID)
}

func TestTeeStopsAtFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)
	require.NoError(t, w.Close())
	rec := &Recorder{}
	err := Tee{rec, w, rec}.Write(Finish{})
	require.ErrorIs(t, err, ErrClosed)
	require.Len(t, rec.Events, 1)
}
