// Package workers holds the asynq task handlers run by cmd/worker.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/trainlyhq/trainly-core/internal/ingest"
	"github.com/trainlyhq/trainly-core/internal/queue"
)

type IngestWorker struct {
	svc *ingest.Service
}

func NewIngestWorker(svc *ingest.Service) *IngestWorker {
	return &IngestWorker{svc: svc}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	slog.Info("ingesting document", "document_id", docID, "subchat_id", payload.SubchatID)
	return w.svc.Process(ctx, docID)
}
