package handlers

import (
	"net/http"

	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/shadow"
)

type ProvisionHandler struct {
	provisioner *shadow.Provisioner
	auditSvc    *audit.Service
}

func NewProvisionHandler(p *shadow.Provisioner, auditSvc *audit.Service) *ProvisionHandler {
	return &ProvisionHandler{provisioner: p, auditSvc: auditSvc}
}

type provisionRequest struct {
	ExternalID string `json:"external_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Tier       string `json:"tier,omitempty"`
}

// Provision is POST /v1/provision: the pre-signup bootstrap. A duplicate
// email on a live shadow account is a 409; everything else returns the
// complete skeleton with its one-time plaintext secrets.
func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.provisioner.Provision(r.Context(), shadow.ProvisionParams{
		ExternalID: req.ExternalID,
		Email:      req.Email,
		Tier:       req.Tier,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		UserID:       result.ShadowUserID,
		AppID:        result.AppID,
		Action:       audit.ActionProvisioned,
		ResourceType: "shadow_account",
		ResourceID:   result.ShadowUserID,
	})
	writeJSON(w, http.StatusCreated, result)
}
