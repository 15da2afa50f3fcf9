package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/token"
)

type AppHandler struct {
	apps     *app.Service
	chats    *chat.Service
	auditSvc *audit.Service
}

func NewAppHandler(apps *app.Service, chats *chat.Service, auditSvc *audit.Service) *AppHandler {
	return &AppHandler{apps: apps, chats: chats, auditSvc: auditSvc}
}

// authorize loads the app and checks the X-App-Secret header. Every
// management operation on an app requires its current appSecret; a rotated
// secret locks the old one out immediately.
func (h *AppHandler) authorize(r *http.Request) (*models.App, error) {
	a, err := h.apps.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, errs.InvalidClient()
	}
	secret := r.Header.Get("X-App-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.AppSecret)) != 1 {
		return nil, errs.InvalidClient()
	}
	return a, nil
}

type appResponse struct {
	*models.App
	ClientID string `json:"client_id"`
}

func (h *AppHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appResponse{App: a, ClientID: a.ClientID()})
}

// RotateAppSecret replaces the backend credential. The new plaintext is in
// the response body and nowhere else.
func (h *AppHandler) RotateAppSecret(w http.ResponseWriter, r *http.Request) {
	a, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rotated, err := h.apps.RotateAppSecret(r.Context(), a.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		AppID:        a.ID,
		Action:       audit.ActionSecretRotated,
		ResourceType: "app_secret",
		ResourceID:   a.ID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"app_id": rotated.ID, "app_secret": rotated.AppSecret})
}

// RotateJWTSecret replaces the scoped-token signing key. Outstanding scoped
// tokens die immediately unless a rotation grace window is configured.
func (h *AppHandler) RotateJWTSecret(w http.ResponseWriter, r *http.Request) {
	a, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rotated, err := h.apps.RotateJWTSecret(r.Context(), a.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		AppID:        a.ID,
		Action:       audit.ActionSecretRotated,
		ResourceType: "jwt_secret",
		ResourceID:   a.ID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"app_id": rotated.ID, "jwt_secret": rotated.JWTSecret})
}

type provisionUserRequest struct {
	EndUserID    string   `json:"end_user_id"`
	Capabilities []string `json:"capabilities"`
}

type provisionUserResponse struct {
	ScopedToken      string `json:"scoped_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope"`
	ChatID           string `json:"chat_id"`
	IsNewUser        bool   `json:"is_new_user"`
	PrivacyGuarantee string `json:"privacy_guarantee"`
}

const privacyGuarantee = "This token only reaches the named end user's private partition. " +
	"It cannot list or download their files, and it must not be persisted server-side."

// ProvisionUser is POST /v1/apps/{id}/provision-user: the developer-backend
// shortcut that mints a scoped token for one end user without the full
// OAuth exchange. The appSecret stands in for the subject assertion: the
// backend is vouching for its own user id namespace, so the token still
// carries every scope and subchat restriction a token-exchange token would.
func (h *AppHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	a, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !a.IsActive || a.IsAPIDisabled {
		writeError(w, errs.AccessDenied("app API access is disabled"))
		return
	}

	var req provisionUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.EndUserID == "" {
		writeError(w, errs.InvalidRequest("end_user_id is required"))
		return
	}

	requested := capability.FromNames(req.Capabilities)
	if len(req.Capabilities) == 0 {
		// No explicit request means everything the app is configured for.
		requested = capability.FromNames(a.Capabilities)
	}
	caps := capability.Validate(requested, a.Capabilities)
	if len(caps) == 0 {
		writeError(w, errs.InsufficientScope())
		return
	}

	c, err := h.chats.GetByID(r.Context(), a.ParentChatID)
	if err != nil {
		writeError(w, errs.InvalidClient())
		return
	}
	if c.IsArchived {
		writeError(w, errs.AccessDenied("chat is archived"))
		return
	}

	subchatID := token.SubchatID(c.ID, req.EndUserID)
	isNew, err := h.chats.EnsureUserLink(r.Context(), req.EndUserID, a.ID, c.ID, subchatID)
	if err != nil {
		writeError(w, err)
		return
	}

	scoped, err := token.Mint(a.JWTSecret, req.EndUserID, c.ID, caps, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		UserID:       req.EndUserID,
		AppID:        a.ID,
		Action:       audit.ActionTokenIssued,
		ResourceType: "scoped_token",
		ResourceID:   c.ID,
		Details:      map[string]string{"via": "provision-user", "scope": capability.ScopeString(caps)},
	})

	writeJSON(w, http.StatusOK, provisionUserResponse{
		ScopedToken:      scoped,
		TokenType:        "Bearer",
		ExpiresIn:        int(token.TTL.Seconds()),
		Scope:            capability.ScopeString(caps),
		ChatID:           c.ID,
		IsNewUser:        isNew,
		PrivacyGuarantee: privacyGuarantee,
	})
}

func (h *AppHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	a, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Status models.AppStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	switch req.Status {
	case models.AppStatusDraft, models.AppStatusLive, models.AppStatusStale:
	default:
		writeError(w, errs.InvalidRequest("status must be draft, live or stale"))
		return
	}

	if err := h.apps.SetStatus(r.Context(), a.ID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"app_id": a.ID, "status": string(req.Status)})
}
