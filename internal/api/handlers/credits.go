package handlers

import (
	"net/http"
	"strconv"

	"github.com/trainlyhq/trainly-core/internal/api/middleware"
	"github.com/trainlyhq/trainly-core/internal/credits"
	"github.com/trainlyhq/trainly-core/internal/errs"
)

type CreditsHandler struct {
	ledger *credits.Ledger
}

func NewCreditsHandler(ledger *credits.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	balance, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credits":   balance,
		"remaining": balance.Remaining(),
	})
}

func (h *CreditsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := h.ledger.Transactions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs, "count": len(txs)})
}

// SetTier is POST /v1/credits/tier. Upgrades land immediately; downgrades
// wait for the period boundary.
func (h *CreditsHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	var req struct {
		Tier string `json:"tier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Tier != credits.TierFree && req.Tier != credits.TierPro {
		writeError(w, errs.InvalidRequest("tier must be free or pro"))
		return
	}

	if err := h.ledger.SetTier(r.Context(), userID, req.Tier); err != nil {
		writeError(w, err)
		return
	}

	balance, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
