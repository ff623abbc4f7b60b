// Package backend talks to the RAG assistant HTTP API
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/config"
	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/pkg/transcript"
)

const modelsCacheKey = "models"

// Client calls the chat, models and share endpoints. Sends use no overall
// timeout since a response may stream for a long time; the other calls
// are bounded by the configured timeout.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	models  *cache.Cache
	logger  *zap.Logger
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithModelCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.models = cache.New(ttl, 2*ttl)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
		http:    &http.Client{},
		models:  cache.New(5*time.Minute, 10*time.Minute),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds a client from the [api] and [models] sections
func FromConfig(cfg *config.Config, logger *zap.Logger) *Client {
	return New(cfg.API.BaseURL,
		WithToken(cfg.API.Token),
		WithTimeout(cfg.API.Timeout.Duration),
		WithModelCacheTTL(cfg.Models.CacheTTL.Duration),
		WithLogger(logger),
	)
}

// HistoryEntry is one prior turn sent along with a message
type HistoryEntry struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// History converts settled messages to the wire form, in order
func History(msgs []*models.Message) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsSettled() || m.Failed {
			continue
		}
		out = append(out, HistoryEntry{Content: m.Content, Role: string(m.Role)})
	}
	return out
}

type SendRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"sessionId"`
	History   []HistoryEntry `json:"history"`
	Model     string         `json:"model,omitempty"`
}

// Send posts a user message and returns the streamed response body. The
// caller must close it. A non-success status is a *NetworkError carrying
// the server's error text.
func (c *Client) Send(ctx context.Context, req SendRequest) (io.ReadCloser, error) {
	if req.History == nil {
		req.History = []HistoryEntry{}
	}
	resp, err := c.do(ctx, http.MethodPost, "/chat/", req)
	if err != nil {
		return nil, &NetworkError{Op: "send", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError("send", resp)
	}
	return resp.Body, nil
}

type modelsResponse struct {
	Models []string `json:"models"`
}

// Models lists the available models. Results are cached; on failure an
// empty list is returned along with the error.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	if cached, ok := c.models.Get(modelsCacheKey); ok {
		return append([]string(nil), cached.([]string)...), nil
	}

	var out modelsResponse
	if err := c.getJSON(ctx, "models", "/models/", &out); err != nil {
		c.logger.Warn("failed to fetch models", zap.Error(err))
		return []string{}, err
	}
	if out.Models == nil {
		out.Models = []string{}
	}
	c.models.Set(modelsCacheKey, out.Models, cache.DefaultExpiration)
	return append([]string(nil), out.Models...), nil
}

// InvalidateModels drops the cached model list
func (c *Client) InvalidateModels() {
	c.models.Delete(modelsCacheKey)
}

type shareRequest struct {
	SessionID string         `json:"sessionId"`
	History   []HistoryEntry `json:"history"`
}

type shareResponse struct {
	ChatID string `json:"chatId"`
}

// CreateShare publishes a conversation and returns its shared id
func (c *Client) CreateShare(ctx context.Context, sessionID string, history []HistoryEntry) (string, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if history == nil {
		history = []HistoryEntry{}
	}
	resp, err := c.do(ctx, http.MethodPost, "/share/", shareRequest{SessionID: sessionID, History: history})
	if err != nil {
		return "", &NetworkError{Op: "share", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError("share", resp)
	}

	var out shareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &NetworkError{Op: "share", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.ChatID == "" {
		return "", &NetworkError{Op: "share", Status: resp.StatusCode, Err: errors.New("response has no chatId")}
	}
	return out.ChatID, nil
}

// FetchShare downloads a shared transcript. A 404 is transcript.ErrNotFound
// and an undecodable body is transcript.ErrMalformed.
func (c *Client) FetchShare(ctx context.Context, id string) (*transcript.Transcript, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/share/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, &NetworkError{Op: "fetch share", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", transcript.ErrNotFound, id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("fetch share", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "fetch share", Status: resp.StatusCode, Err: err}
	}
	return transcript.Parse(data)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	c.logger.Debug("backend request", zap.String("method", method), zap.String("path", path))
	return c.http.Do(req)
}

// statusError reads an {"error": "..."} body when there is one
func statusError(op string, resp *http.Response) error {
	nerr := &NetworkError{Op: op, Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return nerr
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		nerr.Message = body.Error
		if nerr.Message == "" {
			nerr.Message = body.Detail
		}
	}
	return nerr
}
