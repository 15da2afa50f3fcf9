package handlers

import (
	"net/http"

	"github.com/trainlyhq/trainly-core/internal/api/middleware"
	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/shadow"
)

type MigrateHandler struct {
	migrator *shadow.Migrator
	auditSvc *audit.Service
}

func NewMigrateHandler(m *shadow.Migrator, auditSvc *audit.Service) *MigrateHandler {
	return &MigrateHandler{migrator: m, auditSvc: auditSvc}
}

type migrateRequest struct {
	ShadowUserID string `json:"shadow_user_id,omitempty"`
}

// Migrate is POST /v1/migrate. The receiving identity is always the
// authenticated caller, and the email path only ever matches the verified
// email claim from the caller's own id_token; the request body cannot
// point the migration at someone else's address. The body carries nothing
// but the explicit shadow-id handoff.
func (h *MigrateHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	realUserID := middleware.UserFromContext(r.Context())

	var req migrateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	params := shadow.MigrateParams{
		ShadowUserID: req.ShadowUserID,
		RealUserID:   realUserID,
	}
	if params.ShadowUserID == "" {
		params.Email = middleware.EmailFromContext(r.Context())
		if params.Email == "" {
			writeError(w, errs.InvalidRequest("shadow_user_id required; signed-in identity carries no email"))
			return
		}
	}

	result, err := h.migrator.Migrate(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		UserID:       realUserID,
		Action:       audit.ActionMigrated,
		ResourceType: "shadow_account",
		ResourceID:   result.ShadowUserID,
	})
	writeJSON(w, http.StatusOK, result)
}
