package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/models"
)

// ChatHandler covers chat-owner management: integration keys and app
// registration. Authentication is the chat's own tk_ API key; only its hash
// is stored, so the comparison hashes the presented value first.
type ChatHandler struct {
	chats    *chat.Service
	apps     *app.Service
	auditSvc *audit.Service
}

func NewChatHandler(chats *chat.Service, apps *app.Service, auditSvc *audit.Service) *ChatHandler {
	return &ChatHandler{chats: chats, apps: apps, auditSvc: auditSvc}
}

func (h *ChatHandler) authorize(r *http.Request) (*models.Chat, error) {
	c, err := h.chats.GetByID(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		return nil, errs.AccessDenied("invalid chat credentials")
	}
	presented := chat.HashKey(r.Header.Get("X-Chat-Key"))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(c.APIKey)) != 1 {
		return nil, errs.AccessDenied("invalid chat credentials")
	}
	return c, nil
}

type createKeyRequest struct {
	Capabilities   []string `json:"capabilities"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPM   int      `json:"rate_limit_rpm"`
	Description    string   `json:"description"`
}

func (h *ChatHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	c, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	key, plaintext, err := h.chats.CreateKey(r.Context(), chat.KeyParams{
		ChatID:         c.ID,
		OwnerID:        c.OwnerID,
		Capabilities:   capability.FromNames(req.Capabilities),
		AllowedOrigins: req.AllowedOrigins,
		RateLimitRPM:   req.RateLimitRPM,
		Description:    req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"key": key,
		// Returned exactly once. Only the hash survives.
		"api_key": plaintext,
	})
}

func (h *ChatHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	c, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	keys, err := h.chats.ListKeys(r.Context(), c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys, "count": len(keys)})
}

func (h *ChatHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	c, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if err := h.chats.RevokeKey(r.Context(), c.ID, keyID); err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		UserID:       c.OwnerID,
		Action:       audit.ActionKeyRevoked,
		ResourceType: "integration_key",
		ResourceID:   keyID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"key_id": keyID, "status": "revoked"})
}

type createAppRequest struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// CreateApp registers a developer app on this chat. The response is the
// only place the appSecret and jwtSecret appear in plaintext.
func (h *ChatHandler) CreateApp(w http.ResponseWriter, r *http.Request) {
	c, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createAppRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, errs.InvalidRequest("name is required"))
		return
	}

	a, err := h.apps.Create(r.Context(), app.CreateParams{
		Name:         req.Name,
		ParentChatID: c.ID,
		DeveloperID:  c.OwnerID,
		Capabilities: capability.Names(capability.FromNames(req.Capabilities)),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"app":        appResponse{App: a, ClientID: a.ClientID()},
		"app_secret": a.AppSecret,
		"jwt_secret": a.JWTSecret,
	})
}
