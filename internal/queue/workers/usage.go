package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/queue"
)

type KeyUsageWorker struct {
	chats *chat.Service
}

func NewKeyUsageWorker(chats *chat.Service) *KeyUsageWorker {
	return &KeyUsageWorker{chats: chats}
}

func (w *KeyUsageWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.KeyUsagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	at, err := time.Parse(time.RFC3339, payload.UsedAt)
	if err != nil {
		at = time.Now().UTC()
	}
	return w.chats.RecordKeyUsage(ctx, payload.KeyID, at)
}
