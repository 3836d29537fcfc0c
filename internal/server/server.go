// Package server is the HTTP surface over the pipeline: question answering,
// health, and session management endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hansik-ai/hansik/internal/config"
	"github.com/hansik-ai/hansik/internal/model"
	"github.com/hansik-ai/hansik/internal/pipeline"
	"github.com/hansik-ai/hansik/internal/session"
)

// Service is the part of the pipeline the HTTP layer needs.
type Service interface {
	Ask(ctx context.Context, req pipeline.Request) *pipeline.Response
	Sessions() session.Store
}

type Server struct {
	svc Service
	cfg *config.Config
	log *logrus.Entry
}

func New(svc Service, cfg *config.Config, log *logrus.Entry) *Server {
	return &Server{svc: svc, cfg: cfg, log: log}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/ask", s.handleAsk)
	r.Get("/health", s.handleHealth)
	r.Get("/session/{id}/history", s.handleSessionHistory)
	r.Delete("/session/{id}", s.handleSessionDelete)
	r.Post("/session/cleanup", s.handleSessionCleanup)
	return r
}

// askRequest is the wire shape of POST /ask. MaxImages is a pointer so an
// omitted field gets the default instead of zero.
type askRequest struct {
	Query              string `json:"query"`
	K                  int    `json:"k"`
	Model              string `json:"model"`
	EnableRewrite      *bool  `json:"enable_rewrite"`
	AllowLowConfidence bool   `json:"allow_low_confidence"`
	Decision           string `json:"decision"`
	SessionID          string `json:"session_id"`
	IncludeImages      bool   `json:"include_images"`
	ImagePolicy        string `json:"image_policy"`
	MaxImages          *int   `json:"max_images"`
}

const defaultMaxImages = 3

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON")
		return
	}
	if req.K != 0 && (req.K < 1 || req.K > 50) {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "k must be between 1 and 50")
		return
	}
	maxImages := defaultMaxImages
	if req.MaxImages != nil {
		maxImages = *req.MaxImages
	}
	if maxImages < 0 || maxImages > 12 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "max_images must be between 0 and 12")
		return
	}

	resp := s.svc.Ask(r.Context(), pipeline.Request{
		Query:              req.Query,
		K:                  req.K,
		ModelHint:          req.Model,
		EnableRewrite:      req.EnableRewrite,
		AllowLowConfidence: req.AllowLowConfidence,
		Decision:           req.Decision,
		SessionID:          req.SessionID,
		IncludeImages:      req.IncludeImages,
		ImagePolicy:        req.ImagePolicy,
		MaxImages:          maxImages,
	})
	s.writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Hybrid         bool   `json:"hybrid_search"`
	CERerank       bool   `json:"ce_rerank"`
	CRAG           bool   `json:"crag"`
	LowConfMode    string `json:"lowconf_mode"`
	KDefault       int    `json:"k_default"`
	SessionBackend string `json:"session_backend"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Sessions().Count(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("session count failed")
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		ActiveSessions: count,
		Hybrid:         s.cfg.UseHybridSearch,
		CERerank:       s.cfg.UseCERerank,
		CRAG:           s.cfg.EnableCRAG,
		LowConfMode:    s.cfg.LowConfMode,
		KDefault:       s.cfg.KDefault,
		SessionBackend: s.cfg.SessionBackend,
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.svc.Sessions().History(r.Context(), id)
	if errors.Is(err, model.ErrSessionNotFound) {
		s.writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to read session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "history": history})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Sessions().Clear(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to clear session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "cleared": true})
}

func (s *Server) handleSessionCleanup(w http.ResponseWriter, r *http.Request) {
	// Count sweeps expired entries as a side effect.
	count, err := s.svc.Sessions().Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "cleanup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"active_sessions": count})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	var env errorEnvelope
	env.Error.Code = code
	env.Error.Message = message
	s.writeJSON(w, status, env)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil && !strings.Contains(err.Error(), "broken pipe") {
		s.log.WithError(err).Warn("response encode failed")
	}
}
