package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neilberkman/ragchat/internal/core/filter"
	"github.com/neilberkman/ragchat/internal/core/models"
)

// Sessions is the read side of the session repository
type Sessions interface {
	LoadAll() (*models.Collection, error)
	List() []*models.Session
	Get(id string) (*models.Session, bool)
}

// SearchSessionsArgs defines arguments for the search_sessions tool
type SearchSessionsArgs struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit,omitempty"`
	Model      string `json:"model,omitempty"`
	AfterDate  string `json:"after_date,omitempty"`
	BeforeDate string `json:"before_date,omitempty"`
}

// GetSessionDetailArgs defines arguments for the get_session_detail tool
type GetSessionDetailArgs struct {
	SessionID   string `json:"session_id"`
	SearchQuery string `json:"search_query,omitempty"`
}

// ListSessionsArgs defines arguments for the list_sessions tool
type ListSessionsArgs struct {
	Limit int `json:"limit,omitempty"`
}

// SessionSummary represents a session in list and search results
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	Model        string `json:"model,omitempty"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
	Position     int    `json:"position"`
}

// SessionDetail is a session with its messages
type SessionDetail struct {
	SessionSummary
	CreatedAt        string          `json:"created_at"`
	SharedFrom       string          `json:"shared_from,omitempty"`
	Messages         []MessageDetail `json:"messages,omitempty"`
	MatchingMessages []MessageDetail `json:"matching_messages,omitempty"`
}

// MessageDetail represents a single message in a session
type MessageDetail struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
	Position  int      `json:"position"`
	Failed    bool     `json:"failed,omitempty"`
	Sources   []string `json:"sources,omitempty"`
}

const timeLayout = "2006-01-02 15:04:05"

// NewServer registers the session tools
func NewServer(sessions Sessions, version string) *server.MCPServer {
	s := server.NewMCPServer("ragchat", version)

	searchTool := mcp.NewTool("search_sessions",
		mcp.WithDescription("Search saved chat sessions by title and message text. Supports model and date filtering."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to match against titles and message content")),
		mcp.WithNumber("limit",
			mcp.Description("Max number of sessions to return (default: 10)")),
		mcp.WithString("model",
			mcp.Description("Only sessions using this model")),
		mcp.WithString("after_date",
			mcp.Description("Only sessions updated after this date (e.g. '2025-01-01' or 'last week')")),
		mcp.WithString("before_date",
			mcp.Description("Only sessions updated before this date")),
	)
	s.AddTool(searchTool, makeSearchSessionsHandler(sessions))

	detailTool := mcp.NewTool("get_session_detail",
		mcp.WithDescription("Retrieve one chat session with its messages in order"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id to retrieve")),
		mcp.WithString("search_query",
			mcp.Description("Optional text to find matching messages in the session")),
	)
	s.AddTool(detailTool, makeGetSessionDetailHandler(sessions))

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List chat sessions in sidebar order"),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
	)
	s.AddTool(listTool, makeListSessionsHandler(sessions))

	return s
}

// StartServer serves the session tools over stdio
func StartServer(sessions Sessions, version string) error {
	return server.ServeStdio(NewServer(sessions, version))
}

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// decodeArgs reloads the store so other ragchat processes' writes are seen,
// then decodes the tool arguments into out
func decodeArgs(sessions Sessions, request mcp.CallToolRequest, out any) *mcp.CallToolResult {
	if _, err := sessions.LoadAll(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err))
	}
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	if err := json.Unmarshal(argsBytes, out); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func makeSearchSessionsHandler(sessions Sessions) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchSessionsArgs
		if res := decodeArgs(sessions, request, &args); res != nil {
			return res, nil
		}
		if strings.TrimSpace(args.Query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}

		now := time.Now()
		f := filter.Filter{Query: strings.TrimSpace(args.Query), Model: args.Model}
		if args.AfterDate != "" {
			t, ok := filter.ParseDate(args.AfterDate, now)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("invalid after_date: %s", args.AfterDate)), nil
			}
			f.After = t
		}
		if args.BeforeDate != "" {
			t, ok := filter.ParseDate(args.BeforeDate, now)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("invalid before_date: %s", args.BeforeDate)), nil
			}
			f.Before = t
		}

		all := sessions.List()
		results := []SessionSummary{}
		for i, s := range all {
			if !f.Match(s) {
				continue
			}
			results = append(results, summarize(s, i+1))
			if len(results) >= limit {
				break
			}
		}

		return jsonResult(map[string]interface{}{"sessions": results})
	}
}

func makeGetSessionDetailHandler(sessions Sessions) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetSessionDetailArgs
		if res := decodeArgs(sessions, request, &args); res != nil {
			return res, nil
		}

		s, ok := sessions.Get(args.SessionID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", args.SessionID)), nil
		}

		position := 0
		for i, other := range sessions.List() {
			if other.ID == s.ID {
				position = i + 1
				break
			}
		}

		detail := SessionDetail{
			SessionSummary: summarize(s, position),
			CreatedAt:      s.CreatedAt.Format(timeLayout),
			SharedFrom:     s.SharedFrom,
		}
		for _, m := range s.Ordered() {
			detail.Messages = append(detail.Messages, messageDetail(m))
		}

		// If search query provided, pick out matching messages
		if q := strings.ToLower(strings.TrimSpace(args.SearchQuery)); q != "" {
			detail.MatchingMessages = []MessageDetail{}
			for _, m := range detail.Messages {
				if strings.Contains(strings.ToLower(m.Content), q) {
					detail.MatchingMessages = append(detail.MatchingMessages, m)
					if len(detail.MatchingMessages) >= 5 {
						break
					}
				}
			}
		}

		return jsonResult(detail)
	}
}

func makeListSessionsHandler(sessions Sessions) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListSessionsArgs
		if res := decodeArgs(sessions, request, &args); res != nil {
			return res, nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = 20
		}

		all := sessions.List()
		if len(all) > limit {
			all = all[:limit]
		}
		list := make([]SessionSummary, 0, len(all))
		for i, s := range all {
			list = append(list, summarize(s, i+1))
		}

		return jsonResult(map[string]interface{}{"sessions": list})
	}
}

func summarize(s *models.Session, position int) SessionSummary {
	return SessionSummary{
		SessionID:    s.ID,
		Title:        s.DisplayTitle(),
		Model:        s.Model,
		UpdatedAt:    s.UpdatedAt.Format(timeLayout),
		MessageCount: len(s.Messages),
		Position:     position,
	}
}

func messageDetail(m *models.Message) MessageDetail {
	d := MessageDetail{
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.Format(timeLayout),
		Position:  m.Position,
		Failed:    m.Failed,
	}
	for _, src := range m.Sources {
		d.Sources = append(d.Sources, src.Name)
	}
	return d
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}
