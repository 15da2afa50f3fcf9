// Package credits is the consumable-usage ledger. Debits are a single
// conditional UPDATE so the balance check and the spend are one atomic
// statement; there is no check-then-write gap for concurrent requests to
// slip through.
package credits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/models"
)

const period = 30 * 24 * time.Hour

type Ledger struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// EnsureAccount creates the credits row for a user if none exists.
func (l *Ledger) EnsureAccount(ctx context.Context, userID, tier string) error {
	now := l.now().UTC()
	_, err := l.db.Exec(ctx,
		`INSERT INTO user_credits (user_id, tier, total_credits, used_credits, period_start, period_end)
		 VALUES ($1, $2, $3, 0, $4, $5)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, tier, Allotment(tier), now, now.Add(period))
	if err != nil {
		return fmt.Errorf("ensure credits account: %w", err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, userID string) (*models.UserCredits, error) {
	if err := l.resetIfExpired(ctx, userID); err != nil {
		return nil, err
	}

	var c models.UserCredits
	err := l.db.QueryRow(ctx,
		`SELECT user_id, tier, pending_tier, total_credits, used_credits, period_start, period_end, last_reset_at
		 FROM user_credits WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.Tier, &c.PendingTier, &c.TotalCredits, &c.UsedCredits,
		&c.PeriodStart, &c.PeriodEnd, &c.LastResetAt)
	if err != nil {
		return nil, fmt.Errorf("get credits: %w", err)
	}
	return &c, nil
}

// Debit charges a model call against the balance. The WHERE clause carries
// the limit check, so a concurrent debit either lands inside the budget or
// matches zero rows and fails with insufficient_credits.
func (l *Ledger) Debit(ctx context.Context, userID, model string, tokens int) (float64, error) {
	if err := l.resetIfExpired(ctx, userID); err != nil {
		return 0, err
	}

	charge := ChargeFor(model, tokens)
	if charge <= 0 {
		return 0, nil
	}

	tag, err := l.db.Exec(ctx,
		`UPDATE user_credits SET used_credits = used_credits + $2
		 WHERE user_id = $1 AND used_credits + $2 <= total_credits`,
		userID, charge)
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, errs.InsufficientCredits()
	}

	l.record(ctx, userID, "debit", charge, model, tokens, "")
	return charge, nil
}

// SetTier applies a plan change. Upgrades take effect immediately with a
// fresh allotment and zeroed usage; downgrades wait for the period boundary.
func (l *Ledger) SetTier(ctx context.Context, userID, tier string) error {
	current, err := l.Get(ctx, userID)
	if err != nil {
		return err
	}

	if Allotment(tier) >= Allotment(current.Tier) {
		now := l.now().UTC()
		_, err := l.db.Exec(ctx,
			`UPDATE user_credits
			 SET tier = $2, pending_tier = NULL, total_credits = $3, used_credits = 0,
			     period_start = $4, period_end = $5, last_reset_at = $4
			 WHERE user_id = $1`,
			userID, tier, Allotment(tier), now, now.Add(period))
		if err != nil {
			return fmt.Errorf("upgrade tier: %w", err)
		}
		l.record(ctx, userID, "grant", Allotment(tier), "", 0, "tier upgrade to "+tier)
		return nil
	}

	_, err = l.db.Exec(ctx,
		`UPDATE user_credits SET pending_tier = $2 WHERE user_id = $1`, userID, tier)
	if err != nil {
		return fmt.Errorf("defer downgrade: %w", err)
	}
	return nil
}

// resetIfExpired rolls the 30-day window forward once periodEnd passes,
// applying any deferred downgrade. The WHERE clause keeps it idempotent
// under concurrent callers.
func (l *Ledger) resetIfExpired(ctx context.Context, userID string) error {
	now := l.now().UTC()
	tag, err := l.db.Exec(ctx,
		`UPDATE user_credits
		 SET tier = COALESCE(pending_tier, tier),
		     total_credits = CASE COALESCE(pending_tier, tier)
		                     WHEN 'pro' THEN 10000 ELSE 500 END,
		     pending_tier = NULL, used_credits = 0,
		     period_start = $2, period_end = $3, last_reset_at = $2
		 WHERE user_id = $1 AND period_end <= $2`,
		userID, now, now.Add(period))
	if err != nil {
		return fmt.Errorf("reset credits period: %w", err)
	}
	if tag.RowsAffected() > 0 {
		l.record(ctx, userID, "reset", 0, "", 0, "period rollover")
	}
	return nil
}

// ResetExpired sweeps every account whose period has lapsed. Worker path.
func (l *Ledger) ResetExpired(ctx context.Context) (int, error) {
	now := l.now().UTC()
	tag, err := l.db.Exec(ctx,
		`UPDATE user_credits
		 SET tier = COALESCE(pending_tier, tier),
		     total_credits = CASE COALESCE(pending_tier, tier)
		                     WHEN 'pro' THEN 10000 ELSE 500 END,
		     pending_tier = NULL, used_credits = 0,
		     period_start = $1, period_end = $2, last_reset_at = $1
		 WHERE period_end <= $1`,
		now, now.Add(period))
	if err != nil {
		return 0, fmt.Errorf("sweep expired periods: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(ctx,
		`SELECT id, user_id, kind, amount, model, tokens_used, description, created_at
		 FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Model,
			&t.TokensUsed, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// record writes the audit row for a ledger movement. Bookkeeping only; a
// failure here must not fail the movement that already committed.
func (l *Ledger) record(ctx context.Context, userID, kind string, amount float64, model string, tokens int, desc string) {
	_, err := l.db.Exec(ctx,
		`INSERT INTO credit_transactions (id, user_id, kind, amount, model, tokens_used, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), userID, kind, amount, model, tokens, desc)
	if err != nil {
		slog.Warn("credit transaction bookkeeping failed", "user_id", userID, "kind", kind, "error", err)
	}
}
