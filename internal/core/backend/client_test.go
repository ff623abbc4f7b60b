package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ragchat/internal/core/devserver"
	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/pkg/transcript"
)

func newDevClient(t *testing.T, opts devserver.Options, clientOpts ...Option) (*Client, *devserver.Server) {
	t.Helper()
	dev := devserver.New(opts)
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", clientOpts...), dev
}

func TestSend_StreamsBody(t *testing.T) {
	c, _ := newDevClient(t, devserver.Options{ChunkSize: 3})

	body, err := c.Send(context.Background(), SendRequest{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, devserver.ReplyPrefix+"hi", string(data))
}

func TestSend_ErrorBody(t *testing.T) {
	c, _ := newDevClient(t, devserver.Options{})

	_, err := c.Send(context.Background(), SendRequest{Message: "", SessionID: "s1"})
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusBadRequest, nerr.Status)
	assert.Equal(t, "Message is required", nerr.Message)
	assert.Contains(t, nerr.Error(), "Message is required")
}

func TestSend_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1/api")
	_, err := c.Send(context.Background(), SendRequest{Message: "hi"})
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 0, nerr.Status)
	assert.Equal(t, "send", nerr.Op)
}

func TestSend_TokenHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := New(srv.URL, WithToken("abc")).Send(context.Background(), SendRequest{Message: "x"})
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "Token abc", got)
}

func TestModels_Cached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"models":["llama3","phi3"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithModelCacheTTL(time.Minute))
	for i := 0; i < 3; i++ {
		got, err := c.Models(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"llama3", "phi3"}, got)
	}
	assert.Equal(t, int32(1), calls.Load())

	c.InvalidateModels()
	_, _ = c.Models(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestModels_FailureIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	got, err := New(srv.URL).Models(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestShare_RoundTrip(t *testing.T) {
	c, _ := newDevClient(t, devserver.Options{})

	history := History([]*models.Message{
		{ID: "1", Role: models.RoleHuman, Content: "q", Status: models.StatusSettled},
		{ID: "2", Role: models.RoleAssistant, Content: "a", Status: models.StatusSettled},
		{ID: "3", Role: models.RoleAssistant, Content: "", Status: models.StatusStreaming},
	})
	require.Len(t, history, 2)

	id, err := c.CreateShare(context.Background(), "s1", history)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	tr, err := c.FetchShare(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, tr.ChatID)
	require.Len(t, tr.History, 2)
	assert.Equal(t, "assistant", tr.History[1].Role)
	assert.NotNil(t, tr.History[0].Timestamp)
}

func TestFetchShare_NotFound(t *testing.T) {
	c, _ := newDevClient(t, devserver.Options{})
	_, err := c.FetchShare(context.Background(), "nope")
	assert.True(t, errors.Is(err, transcript.ErrNotFound))
}

func TestFetchShare_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"history": "nope"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchShare(context.Background(), "x")
	assert.ErrorIs(t, err, transcript.ErrMalformed)
}
