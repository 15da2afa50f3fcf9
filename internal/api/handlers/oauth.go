package handlers

import (
	"net/http"
	"strings"

	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/oauth"
)

type OAuthHandler struct {
	svc      *oauth.Service
	auditSvc *audit.Service
}

func NewOAuthHandler(svc *oauth.Service, auditSvc *audit.Service) *OAuthHandler {
	return &OAuthHandler{svc: svc, auditSvc: auditSvc}
}

// Token is POST /oauth/token. Accepts the RFC form encoding and JSON; the
// shape of the response follows the token-exchange grant either way.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req oauth.ExchangeRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, err)
			return
		}
		req = oauth.ExchangeRequest{
			GrantType:        r.PostFormValue("grant_type"),
			SubjectTokenType: r.PostFormValue("subject_token_type"),
			SubjectToken:     r.PostFormValue("subject_token"),
			ClientID:         r.PostFormValue("client_id"),
			Scope:            r.PostFormValue("scope"),
		}
	}

	resp, err := h.svc.Exchange(r.Context(), req)
	if err != nil {
		h.auditSvc.Log(r.Context(), audit.Entry{
			Action:       audit.ActionTokenDenied,
			ResourceType: "scoped_token",
			Details:      map[string]string{"client_id": req.ClientID},
		})
		writeError(w, err)
		return
	}

	h.auditSvc.Log(r.Context(), audit.Entry{
		Action:       audit.ActionTokenIssued,
		ResourceType: "scoped_token",
		ResourceID:   resp.ChatID,
		Details:      map[string]string{"client_id": req.ClientID, "scope": resp.Scope},
	})

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
