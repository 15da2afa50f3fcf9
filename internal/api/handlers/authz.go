package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trainlyhq/trainly-core/internal/api/middleware"
	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/authz"
	"github.com/trainlyhq/trainly-core/internal/capability"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/token"
	"github.com/trainlyhq/trainly-core/internal/vectorstore"
)

type AuthzHandler struct {
	svc      *authz.Service
	apps     *app.Service
	store    *vectorstore.PgVectorStore
	auditSvc *audit.Service
}

func NewAuthzHandler(svc *authz.Service, apps *app.Service, store *vectorstore.PgVectorStore, auditSvc *audit.Service) *AuthzHandler {
	return &AuthzHandler{svc: svc, apps: apps, store: store, auditSvc: auditSvc}
}

// Present is GET /v1/authorize?client_id=...&scope=..., what the consent
// screen renders before the user decides anything.
func (h *AuthzHandler) Present(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.svc.Present(r.Context(), r.URL.Query().Get("client_id"), r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

type authorizeRequest struct {
	AppID        string   `json:"app_id"`
	Capabilities []string `json:"capabilities"`
}

// Authorize is POST /v1/authorize. The caller is the authenticated end
// user; the response carries the user auth token exactly once.
func (h *AuthzHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	var req authorizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AppID == "" {
		writeError(w, errs.InvalidRequest("app_id is required"))
		return
	}

	grant, err := h.svc.Authorize(r.Context(), userID, req.AppID, capability.FromNames(req.Capabilities))
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		UserID:       userID,
		AppID:        req.AppID,
		Action:       audit.ActionConsentGranted,
		ResourceType: "authorization",
		ResourceID:   grant.Authorization.ID,
	})
	writeJSON(w, http.StatusCreated, grant)
}

// Revoke is DELETE /v1/authorizations/{appID}. With ?purge=true the user's
// subchat partition under the app's chat is emptied as well, so revoking
// consent can also take the uploaded content with it.
func (h *AuthzHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())
	appID := chi.URLParam(r, "appID")

	if err := h.svc.Revoke(r.Context(), userID, appID); err != nil {
		writeError(w, err)
		return
	}

	purged := false
	if r.URL.Query().Get("purge") == "true" {
		if a, err := h.apps.GetByID(r.Context(), appID); err == nil {
			subchatID := token.SubchatID(a.ParentChatID, userID)
			if err := h.store.DeleteSubchat(r.Context(), a.ParentChatID, subchatID); err != nil {
				slog.Warn("purge subchat after revoke",
					"app_id", appID, "subchat_id", subchatID, "error", err)
			} else {
				purged = true
			}
		}
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		UserID:       userID,
		AppID:        appID,
		Action:       audit.ActionConsentRevoked,
		ResourceType: "authorization",
		Details:      map[string]string{"purged": strconv.FormatBool(purged)},
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"app_id": appID,
		"status": "revoked",
		"purged": purged,
	})
}

func (h *AuthzHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	grants, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authorizations": grants, "count": len(grants)})
}
