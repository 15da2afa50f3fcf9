package workers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/trainlyhq/trainly-core/internal/credits"
)

// CreditsResetWorker runs the periodic sweep rolling expired 30-day windows
// forward and applying deferred downgrades. The request path does the same
// lazily, so this only exists to keep idle accounts from drifting.
type CreditsResetWorker struct {
	ledger *credits.Ledger
}

func NewCreditsResetWorker(ledger *credits.Ledger) *CreditsResetWorker {
	return &CreditsResetWorker{ledger: ledger}
}

func (w *CreditsResetWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	n, err := w.ledger.ResetExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("credit periods reset", "accounts", n)
	}
	return nil
}
