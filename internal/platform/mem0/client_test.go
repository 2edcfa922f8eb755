package mem0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/galaxychat-backend/internal/memory"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func TestNewWithoutKeyDisables(t *testing.T) {
	require.Nil(t, New(testLogger(t), Config{}))
}

func TestSearchJoinsMemories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/memories/search/", r.URL.Path)
		require.Equal(t, "Token k", r.Header.Get("Authorization"))
		var in searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "u1", in.UserID)
		require.Equal(t, "where do I live", in.Query)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","memory":"Lives in Lisbon"},{"id":"2","memory":" "},{"id":"3","memory":"Likes tea"}]`))
	}))
	defer srv.Close()

	c := New(testLogger(t), Config{APIKey: "k", BaseURL: srv.URL})
	out, err := c.Search(context.Background(), "u1", "where do I live")
	require.NoError(t, err)
	require.Equal(t, "Lives in Lisbon\nLikes tea", out)
}

func TestSearchReportsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(testLogger(t), Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Search(context.Background(), "u1", "q")
	require.Error(t, err)
}

func TestAddSendsEntries(t *testing.T) {
	var got addRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/memories/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(testLogger(t), Config{APIKey: "k", BaseURL: srv.URL})
	err := c.Add(context.Background(), "u1", []memory.Entry{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}})
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "assistant", got.Messages[1].Role)
}
