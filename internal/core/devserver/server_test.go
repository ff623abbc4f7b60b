package devserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_EchoesInChunks(t *testing.T) {
	srv := httptest.NewServer(New(Options{ChunkSize: 4}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat/", "application/json", strings.NewReader(`{"message":"hello","sessionId":"s1","history":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, ReplyPrefix+"hello", string(body))
}

func TestChat_EmptyMessage(t *testing.T) {
	srv := httptest.NewServer(New(Options{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat/", "application/json", strings.NewReader(`{"message":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"error"`)
}

func TestTokenAuth(t *testing.T) {
	srv := httptest.NewServer(New(Options{Token: "secret"}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/models/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/models/", nil)
	req.Header.Set("Authorization", "Token secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// health stays public
	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShare_NotFound(t *testing.T) {
	srv := httptest.NewServer(New(Options{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/share/missing/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
