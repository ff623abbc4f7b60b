// Package devserver is a stand-in for the RAG backend. It echoes messages
// back in chunks the way the reference backend acknowledges them, and keeps
// shared chats in memory.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/pkg/transcript"
)

// ReplyPrefix starts every echoed reply
const ReplyPrefix = "Message well received: "

type Options struct {
	Models     []string
	Token      string        // when set, requests need "Authorization: Token <token>"
	ChunkSize  int           // bytes per streamed chunk
	ChunkDelay time.Duration // pause between chunks
	Logger     *zap.Logger
}

type Server struct {
	opts   Options
	shares *cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

func New(opts Options) *Server {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 8
	}
	if opts.Models == nil {
		opts.Models = []string{"llama3", "mistral"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:   opts,
		shares: cache.New(cache.NoExpiration, 0),
		logger: logger,
		now:    time.Now,
	}
}

// Handler routes everything under /api
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.tokenAuth)

			r.Post("/chat", s.handleChat)
			r.Get("/models", s.handleModels)
			r.Post("/share", s.handleCreateShare)
			r.Get("/share/{chatID}", s.handleFetchShare)
		})
	})

	return r
}

// Share stores a transcript directly, for seeding tests and demos
func (s *Server) Share(t *transcript.Transcript) {
	s.shares.Set(t.ChatID, t, cache.NoExpiration)
}

func (s *Server) tokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Token "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	History   []struct {
		Content string `json:"content"`
		Role    string `json:"role"`
	} `json:"history"`
	Model string `json:"model"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply := ReplyPrefix + req.Message
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	data := []byte(reply)
	for len(data) > 0 {
		n := min(s.opts.ChunkSize, len(data))
		if _, err := w.Write(data[:n]); err != nil {
			return
		}
		data = data[n:]
		if flusher != nil {
			flusher.Flush()
		}
		if s.opts.ChunkDelay > 0 && len(data) > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.opts.ChunkDelay):
			}
		}
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"models": s.opts.Models})
}

type shareRequest struct {
	SessionID string             `json:"sessionId"`
	History   []transcript.Entry `json:"history"`
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id := uuid.NewString()
	now := s.now().UTC()
	for i := range req.History {
		if req.History[i].Timestamp == nil {
			req.History[i].Timestamp = &transcript.Time{Time: now}
		}
	}
	s.Share(&transcript.Transcript{ChatID: id, History: req.History})

	s.logger.Info("shared chat", zap.String("chat_id", id), zap.String("session_id", req.SessionID), zap.Int("entries", len(req.History)))
	writeJSON(w, http.StatusCreated, map[string]string{"chatId": id})
}

func (s *Server) handleFetchShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chatID")
	v, ok := s.shares.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Shared chat %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, v.(*transcript.Transcript))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
