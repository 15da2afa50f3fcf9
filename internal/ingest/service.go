// Package ingest turns uploaded documents into subchat-scoped vectors:
// extract, chunk, embed, upsert. Everything here runs on the worker.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/trainlyhq/trainly-core/internal/document"
	"github.com/trainlyhq/trainly-core/internal/llm"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/vectorstore"
	"github.com/trainlyhq/trainly-core/pkg/chunker"
)

const embedBatchSize = 64

type Service struct {
	docs    *document.Service
	gateway *llm.Gateway
	store   *vectorstore.PgVectorStore
	opts    chunker.Options
}

func NewService(docs *document.Service, gateway *llm.Gateway, store *vectorstore.PgVectorStore) *Service {
	return &Service{docs: docs, gateway: gateway, store: store, opts: chunker.DefaultOptions()}
}

// Process embeds one pending document into its subchat partition. Failing
// anywhere marks the document failed and returns the error so the queue can
// retry; the chunk upsert is keyed, so a retry overwrites rather than
// duplicates.
func (s *Service) Process(ctx context.Context, docID uuid.UUID) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	content, err := s.docs.Content(ctx, docID)
	if err != nil {
		return err
	}
	if content == "" {
		s.docs.UpdateStatus(ctx, docID, models.DocumentFailed)
		return fmt.Errorf("document %s has no extracted text", docID)
	}

	pieces := chunker.Split(content, s.opts)
	if len(pieces) == 0 {
		s.docs.UpdateStatus(ctx, docID, models.DocumentFailed)
		return fmt.Errorf("document %s produced no chunks", docID)
	}

	var chunks []vectorstore.Chunk
	for start := 0; start < len(pieces); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}

		batch := pieces[start:end]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Content
		}

		embeddings, _, err := s.gateway.Embed(ctx, texts)
		if err != nil {
			s.docs.UpdateStatus(ctx, docID, models.DocumentFailed)
			return fmt.Errorf("embed document %s: %w", docID, err)
		}

		for i, p := range batch {
			chunks = append(chunks, vectorstore.Chunk{
				ID:         chunkID(docID, p.Index),
				DocumentID: docID,
				ChatID:     doc.ChatID,
				SubchatID:  doc.SubchatID,
				ChunkIndex: p.Index,
				Content:    p.Content,
				Embedding:  embeddings[i],
				TokenCount: len(p.Content) / 4,
			})
		}
	}

	if err := s.store.Upsert(ctx, chunks); err != nil {
		s.docs.UpdateStatus(ctx, docID, models.DocumentFailed)
		return fmt.Errorf("store chunks for %s: %w", docID, err)
	}

	if err := s.docs.UpdateStatus(ctx, docID, models.DocumentProcessed); err != nil {
		return err
	}
	if err := s.docs.ClearContent(ctx, docID); err != nil {
		slog.Warn("clear extracted content", "document_id", docID, "error", err)
	}

	slog.Info("document ingested", "document_id", docID, "chunks", len(chunks))
	return nil
}

// chunkID derives a stable id from (document, index) so re-ingestion after
// a mid-run failure upserts instead of duplicating.
func chunkID(docID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(docID, []byte(fmt.Sprintf("chunk-%d", index)))
}
