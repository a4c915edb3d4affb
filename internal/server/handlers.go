package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tranquileza/leadflow/internal/extract"
)

// maxBodyBytes caps inbound payloads; webhook payloads are small JSON.
const maxBodyBytes = 1 << 20

// handleWebhook receives a provider delivery. Auth is the shared secret
// header, or the debug token together with simulate=1 for dry runs. The
// handler answers 200 as soon as the event is durably stored, even when
// the downstream pipeline failed; 503 is reserved for the store being
// unreachable, so the provider retries only deliveries that were lost.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	simulate := r.URL.Query().Get("simulate") == "1"

	if simulate {
		if s.cfg.DebugToken == "" || !secretEqual(r.Header.Get("X-Debug-Token"), s.cfg.DebugToken) {
			writeError(w, http.StatusUnauthorized, "invalid debug token")
			return
		}
	} else if s.cfg.WebhookSecret != "" && !secretEqual(r.Header.Get("X-Webhook-Secret"), s.cfg.WebhookSecret) {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	env, err := extract.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}

	if simulate {
		sim, err := s.gateway.Simulate(r.Context(), env)
		if err != nil {
			zap.L().Error("simulate failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "simulation failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "simulate": true, "plan": sim})
		return
	}

	res, err := s.gateway.HandleDelivery(r.Context(), env, body)
	if err != nil {
		zap.L().Error("event store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

// handleWebhookLiveness answers GETs on the webhook path so platform
// configuration checks and load balancers see a live endpoint.
func (s *Server) handleWebhookLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "leadflow-webhook"})
}

// handleDetectEmail runs the disguised-email scanner over a text buffer.
// Unauthenticated on purpose: it holds no data and performs no writes.
func (s *Server) handleDetectEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Buffer string `json:"buffer"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}

	emails := extract.ExtractEmails(req.Buffer)
	first := ""
	if len(emails) > 0 {
		first = emails[0]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"hasEmail": len(emails) > 0,
		"email":    first,
		"emails":   emails,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()

	storeOK := false
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			zap.L().Warn("health: store ping failed", zap.Error(err))
		} else {
			storeOK = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                       true,
		"store_connectivity_ok":    storeOK,
		"sync_service_key_present": s.cfg.MailerKeyPresent,
		"trigger_group_count":      len(s.cfg.TriggerGroups),
		"timestamp":                time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReprocess drives one bounded batch through the pipeline. Intended
// for cron; the secret is optional so local setups can run it bare.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReprocessSecret != "" && !reprocessAuthorized(r, s.cfg.ReprocessSecret) {
		writeError(w, http.StatusUnauthorized, "invalid reprocess secret")
		return
	}

	limit := clampLimit(r.URL.Query().Get("limit"), s.cfg.DefaultBatch, s.cfg.MaxBatch)
	res, err := s.reprocessor.Run(r.Context(), limit)
	if err != nil {
		zap.L().Error("reprocess batch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reprocess failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

// reprocessAuthorized accepts the cron header or a bearer token.
func reprocessAuthorized(r *http.Request, secret string) bool {
	if secretEqual(r.Header.Get("X-Cron-Secret"), secret) {
		return true
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return bearer != r.Header.Get("Authorization") && secretEqual(bearer, secret)
}

// handleDebugEvents lists recent raw events for troubleshooting. Gated by
// the debug token when one is configured.
func (s *Server) handleDebugEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DebugToken != "" && !secretEqual(r.Header.Get("X-Debug-Token"), s.cfg.DebugToken) {
		writeError(w, http.StatusUnauthorized, "invalid debug token")
		return
	}

	limit := clampLimit(r.URL.Query().Get("limit"), 20, 50)
	events, err := s.events.ListRecent(r.Context(), limit)
	if err != nil {
		zap.L().Error("list recent events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(events), "events": events})
}
