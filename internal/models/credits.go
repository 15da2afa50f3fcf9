package models

import "time"

// UserCredits tracks consumable usage credits over a 30-day rolling window.
// usedCredits <= totalCredits is enforced at debit time only.
type UserCredits struct {
	UserID       string     `json:"user_id" db:"user_id"`
	Tier         string     `json:"tier" db:"tier"`
	PendingTier  *string    `json:"pending_tier,omitempty" db:"pending_tier"`
	TotalCredits float64    `json:"total_credits" db:"total_credits"`
	UsedCredits  float64    `json:"used_credits" db:"used_credits"`
	PeriodStart  time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd    time.Time  `json:"period_end" db:"period_end"`
	LastResetAt  *time.Time `json:"last_reset_at,omitempty" db:"last_reset_at"`
}

func (c *UserCredits) Remaining() float64 {
	return c.TotalCredits - c.UsedCredits
}

type CreditTransaction struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Kind        string    `json:"kind" db:"kind"` // debit, grant, reset
	Amount      float64   `json:"amount" db:"amount"`
	Model       string    `json:"model,omitempty" db:"model"`
	TokensUsed  int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FileUsage aggregates per-user upload totals, merged by summation when a
// shadow account migrates into an identity that already has a row.
type FileUsage struct {
	UserID             string    `json:"user_id" db:"user_id"`
	TotalFileSizeBytes int64     `json:"total_file_size_bytes" db:"total_file_size_bytes"`
	FileCount          int       `json:"file_count" db:"file_count"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}
