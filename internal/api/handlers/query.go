package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/credits"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/llm"
	"github.com/trainlyhq/trainly-core/internal/token"
	"github.com/trainlyhq/trainly-core/internal/vectorstore"
)

type QueryHandler struct {
	auth     *ScopedAuth
	chats    *chat.Service
	ledger   *credits.Ledger
	gateway  *llm.Gateway
	store    *vectorstore.PgVectorStore
	auditSvc *audit.Service
	defaults chatSettings
}

type chatSettings struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Citations   bool    `json:"citations"`
}

func NewQueryHandler(auth *ScopedAuth, chats *chat.Service, ledger *credits.Ledger,
	gateway *llm.Gateway, store *vectorstore.PgVectorStore, auditSvc *audit.Service,
	defaultModel string) *QueryHandler {
	return &QueryHandler{
		auth:     auth,
		chats:    chats,
		ledger:   ledger,
		gateway:  gateway,
		store:    store,
		auditSvc: auditSvc,
		defaults: chatSettings{Model: defaultModel, Temperature: 0.3, Citations: true},
	}
}

type askRequest struct {
	Question  string `json:"question"`
	EndUserID string `json:"end_user_id"`
}

type askResponse struct {
	Answer         string                 `json:"answer"`
	Model          string                 `json:"model"`
	Citations      []vectorstore.Citation `json:"citations"`
	TokensUsed     int                    `json:"tokens_used"`
	CreditsCharged float64                `json:"credits_charged"`
}

// Ask is POST /v1/ask, the only read path end users have into a chat. The
// answer is grounded solely in the caller's own subchat partition; the
// supplied end_user_id must match the token subject or nothing runs.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	claims, app, err := h.auth.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := token.CheckSubject(claims, req.EndUserID); err != nil {
		if e, ok := errs.As(err); ok && e.Code == "privacy_violation" {
			h.auditSvc.Log(r.Context(), audit.Entry{
				UserID:       claims.Subject,
				AppID:        app.ID,
				Action:       audit.ActionPrivacyViolation,
				ResourceType: "subchat",
				ResourceID:   claims.SubchatID,
				Details:      map[string]string{"supplied_end_user_id": req.EndUserID},
			})
		}
		writeError(w, err)
		return
	}

	if !hasCapability(claims, "ask") {
		writeError(w, errs.InsufficientScope())
		return
	}

	if _, err := h.chats.EnsureUserLink(r.Context(), claims.Subject, app.ID, claims.ChatID, claims.SubchatID); err != nil {
		slog.Warn("ensure user app chat", "error", err)
	}

	h.answerScoped(w, r, scopedQuery{
		ChatID:    claims.ChatID,
		SubchatID: claims.SubchatID,
		Subject:   claims.Subject,
		Question:  req.Question,
	})
}

// scopedQuery is an authenticated question pinned to one subchat partition.
// Both auth modes (scoped token, integration key) reduce to this before any
// retrieval happens.
type scopedQuery struct {
	ChatID    string
	SubchatID string
	Subject   string
	Question  string
}

func (h *QueryHandler) answerScoped(w http.ResponseWriter, r *http.Request, q scopedQuery) {
	if q.Question == "" {
		writeError(w, errs.InvalidRequest("question is required"))
		return
	}

	c, err := h.chats.GetByID(r.Context(), q.ChatID)
	if err != nil {
		writeError(w, errs.AccessDenied("invalid or expired scoped token"))
		return
	}
	if c.IsArchived {
		writeError(w, errs.AccessDenied("chat is archived"))
		return
	}

	settings := h.defaults
	if len(c.PublishedSettings) > 0 {
		_ = json.Unmarshal(c.PublishedSettings, &settings)
	}
	if settings.Model == "" {
		settings.Model = h.defaults.Model
	}

	// Pre-flight balance check. The authoritative guard is the conditional
	// debit after the call; this just refuses obviously-broke accounts
	// before paying for a model round trip.
	balance, err := h.ledger.Get(r.Context(), c.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if balance.Remaining() <= 0 {
		writeError(w, errs.InsufficientCredits())
		return
	}

	embeddings, _, err := h.gateway.Embed(r.Context(), []string{q.Question})
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.store.Search(r.Context(), embeddings[0], vectorstore.SearchOptions{
		ChatID:    q.ChatID,
		SubchatID: q.SubchatID,
		TopK:      8,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	contexts := make([]string, len(results))
	for i, res := range results {
		contexts[i] = res.Content
	}

	resp, err := h.gateway.Answer(r.Context(), llm.AnswerRequest{
		Model:       settings.Model,
		Question:    q.Question,
		Context:     contexts,
		Temperature: settings.Temperature,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	charged, err := h.ledger.Debit(r.Context(), c.OwnerID, resp.Model, resp.TotalTokens)
	if err != nil {
		// The answer already cost us; a concurrent spender racing past the
		// pre-flight is logged, not punished with a dropped response.
		var e *errs.Error
		if errors.As(err, &e) && e.Code == "insufficient_credits" {
			slog.Warn("debit after answer exceeded balance",
				"owner_id", c.OwnerID, "tokens", resp.TotalTokens)
		} else {
			slog.Error("debit after answer failed", "owner_id", c.OwnerID, "error", err)
		}
	}

	var cites []vectorstore.Citation
	if settings.Citations {
		cites = vectorstore.CitationsFor(results, q.SubchatID)
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:         resp.Content,
		Model:          resp.Model,
		Citations:      cites,
		TokensUsed:     resp.TotalTokens,
		CreditsCharged: charged,
	})
}
