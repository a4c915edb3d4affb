// Package server exposes the HTTP surface: the inbound webhook, the
// operational endpoints, and the debug helpers.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tranquileza/leadflow/internal/model"
	"github.com/tranquileza/leadflow/internal/pipeline"
)

// Config holds the HTTP-layer settings.
type Config struct {
	WebhookSecret   string
	DebugToken      string
	ReprocessSecret string
	// MailerKeyPresent feeds the health report; the server never holds the
	// key itself.
	MailerKeyPresent bool
	TriggerGroups    []string
	DefaultBatch     int
	MaxBatch         int
}

type eventLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.RawEvent, error)
}

type storePinger interface {
	Ping(ctx context.Context) error
}

// Server wires the pipeline behind the HTTP routes.
type Server struct {
	gateway     *pipeline.Gateway
	reprocessor *pipeline.Reprocessor
	events      eventLister
	store       storePinger
	cfg         Config
}

func New(gateway *pipeline.Gateway, reprocessor *pipeline.Reprocessor, events eventLister, store storePinger, cfg Config) *Server {
	if cfg.DefaultBatch <= 0 {
		cfg.DefaultBatch = 100
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 200
	}
	if cfg.WebhookSecret == "" {
		// Deliberate for local runs; loud so a production deploy without
		// LEADFLOW_WEBHOOK_SECRET does not go unnoticed.
		zap.L().Warn("webhook secret not configured, inbound deliveries are unauthenticated")
	}
	return &Server{
		gateway:     gateway,
		reprocessor: reprocessor,
		events:      events,
		store:       store,
		cfg:         cfg,
	}
}

// Router builds the chi handler with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Webhook-Secret", "X-Debug-Token", "X-Cron-Secret", "Authorization"},
	}))

	r.Post("/webhook/manychat", s.handleWebhook)
	r.Get("/webhook/manychat", s.handleWebhookLiveness)
	r.Post("/detect-email", s.handleDetectEmail)
	r.Get("/health", s.handleHealth)
	r.Get("/reprocess", s.handleReprocess)
	r.Post("/reprocess", s.handleReprocess)
	r.Get("/debug/events", s.handleDebugEvents)
	return r
}

// requestLogger logs each request with the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// secretEqual is a constant-time string comparison; webhook and cron
// secrets must not be comparable by timing.
func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// decodeJSONBody decodes a small JSON request body into dst.
func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

// contextWithTimeout derives a bounded context from the request.
func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}

// clampLimit parses a limit query parameter with a default and a hard cap.
func clampLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	limit := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return def
		}
		limit = limit*10 + int(c-'0')
		if limit > max {
			return max
		}
	}
	if limit <= 0 {
		return def
	}
	return limit
}
