package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/trainlyhq/trainly-core/internal/api/middleware"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/queue"
	"github.com/trainlyhq/trainly-core/internal/token"
)

// WidgetHandler serves embedded-widget queries authenticated by a chat
// integration key instead of a scoped token. The key fixes the chat; the
// end user id still picks the subchat, so widget sessions are partitioned
// exactly like app sessions.
type WidgetHandler struct {
	chats   *chat.Service
	query   *QueryHandler
	limiter *middleware.KeyLimiter
	tasks   *queue.Client
}

func NewWidgetHandler(chats *chat.Service, query *QueryHandler, limiter *middleware.KeyLimiter, tasks *queue.Client) *WidgetHandler {
	return &WidgetHandler{chats: chats, query: query, limiter: limiter, tasks: tasks}
}

type widgetAskRequest struct {
	Question  string `json:"question"`
	EndUserID string `json:"end_user_id"`
}

func (h *WidgetHandler) Ask(w http.ResponseWriter, r *http.Request) {
	presented := r.Header.Get("X-API-Key")
	if presented == "" {
		writeError(w, errs.NotAuthenticated())
		return
	}

	key, err := h.chats.GetKeyByHash(r.Context(), chat.HashKey(presented))
	if err != nil {
		writeError(w, err)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && len(key.AllowedOrigins) > 0 {
		if !originAllowed(origin, key.AllowedOrigins) {
			writeError(w, errs.AccessDenied("origin not allowed for this key"))
			return
		}
	}

	allowed, err := h.limiter.Allow(r.Context(), key.ID, key.RateLimitRPM)
	if err != nil {
		slog.Warn("key rate limit check failed", "key_id", key.ID, "error", err)
	}
	if !allowed {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":             "rate_limited",
			"error_description": "integration key request rate exceeded",
		})
		return
	}

	var req widgetAskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.EndUserID == "" {
		writeError(w, errs.NotAuthenticated())
		return
	}

	hasAsk := false
	for _, c := range key.Capabilities {
		if c == "ask" {
			hasAsk = true
		}
	}
	if !hasAsk {
		writeError(w, errs.InsufficientScope())
		return
	}

	if err := h.tasks.EnqueueKeyUsage(queue.KeyUsagePayload{
		KeyID:  key.ID,
		UsedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		slog.Warn("enqueue key usage", "key_id", key.ID, "error", err)
	}

	h.query.answerScoped(w, r, scopedQuery{
		ChatID:    key.ChatID,
		SubchatID: token.SubchatID(key.ChatID, req.EndUserID),
		Subject:   req.EndUserID,
		Question:  req.Question,
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
