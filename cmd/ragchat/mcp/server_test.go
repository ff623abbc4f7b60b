package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/repository"
	"github.com/neilberkman/ragchat/internal/core/store"
)

func seededRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo := repository.New(store.NewMemory(0))
	require.NoError(t, repo.Init())

	vpn, err := repo.CreateSession("llama3")
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, repo.UpdateMessages(vpn.ID, map[string]*models.Message{
		"m1": {ID: "m1", Role: models.RoleHuman, Content: "How do I get VPN access?", Position: 0, Timestamp: now, Status: models.StatusSettled},
		"m2": {ID: "m2", Role: models.RoleAssistant, Content: "Ask IT for a token.", Position: 1, Timestamp: now, Status: models.StatusSettled,
			Sources: []models.SourceRef{{Name: "onboarding.pdf"}}},
	}))

	_, err = repo.CreateSession("mistral")
	require.NoError(t, err)
	return repo
}

func call(t *testing.T, h handler, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

func TestListSessions(t *testing.T) {
	repo := seededRepo(t)
	res, body := call(t, makeListSessionsHandler(repo), map[string]any{"limit": 1})
	assert.False(t, res.IsError)

	var out struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, repo.Order()[0], out.Sessions[0].SessionID)
	assert.Equal(t, 1, out.Sessions[0].Position)
}

func TestSearchSessions(t *testing.T) {
	repo := seededRepo(t)

	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"message text", map[string]any{"query": "vpn"}, 1},
		{"model mismatch", map[string]any{"query": "vpn", "model": "mistral"}, 0},
		{"after today", map[string]any{"query": "vpn", "after_date": "2000-01-01"}, 1},
		{"no match", map[string]any{"query": "payroll"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := call(t, makeSearchSessionsHandler(repo), tt.args)
			require.False(t, res.IsError, body)
			var out struct {
				Sessions []SessionSummary `json:"sessions"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &out))
			assert.Len(t, out.Sessions, tt.want)
		})
	}

	res, _ := call(t, makeSearchSessionsHandler(repo), map[string]any{"query": "  "})
	assert.True(t, res.IsError)

	res, _ = call(t, makeSearchSessionsHandler(repo), map[string]any{"query": "vpn", "after_date": "zzz"})
	assert.True(t, res.IsError)
}

func TestGetSessionDetail(t *testing.T) {
	repo := seededRepo(t)
	var id string
	for _, s := range repo.List() {
		if s.Model == "llama3" {
			id = s.ID
		}
	}

	res, body := call(t, makeGetSessionDetailHandler(repo), map[string]any{"session_id": id, "search_query": "token"})
	require.False(t, res.IsError, body)

	var detail SessionDetail
	require.NoError(t, json.Unmarshal([]byte(body), &detail))
	assert.Equal(t, "How do I get VPN access?", detail.Title)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "human", detail.Messages[0].Role)
	assert.Equal(t, []string{"onboarding.pdf"}, detail.Messages[1].Sources)
	require.Len(t, detail.MatchingMessages, 1)
	assert.Equal(t, 1, detail.MatchingMessages[0].Position)

	res, _ = call(t, makeGetSessionDetailHandler(repo), map[string]any{"session_id": "missing"})
	assert.True(t, res.IsError)
}
