// Package document tracks uploads inside subchat partitions. Raw files are
// never retained: extracted text is stored for the ingestion worker and the
// scoped API only ever exposes a document id and its processing status.
package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainlyhq/trainly-core/internal/models"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type CreateParams struct {
	ChatID    string
	SubchatID string
	Filename  string
	FileType  string
	FileSize  int64
	// Content is the extracted text, consumed once by the ingestion worker.
	Content string
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, chat_id, subchat_id, filename, file_type, file_size, status, content)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		 RETURNING id, chat_id, subchat_id, filename, file_type, file_size, status, created_at`,
		uuid.New(), p.ChatID, p.SubchatID, p.Filename, p.FileType, p.FileSize, p.Content,
	).Scan(&d.ID, &d.ChatID, &d.SubchatID, &d.Filename, &d.FileType, &d.FileSize,
		&d.Status, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &d, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(ctx,
		`SELECT id, chat_id, subchat_id, filename, file_type, file_size, status, created_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.ChatID, &d.SubchatID, &d.Filename, &d.FileType, &d.FileSize,
		&d.Status, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// Content returns the stored extracted text. Worker path only; nothing on
// the scoped API serves this back to callers.
func (s *Service) Content(ctx context.Context, id uuid.UUID) (string, error) {
	var content string
	err := s.db.QueryRow(ctx,
		`SELECT content FROM documents WHERE id = $1`, id).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("get document content: %w", err)
	}
	return content, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// ClearContent drops the extracted text once chunks are embedded; the
// vector store is authoritative from then on.
func (s *Service) ClearContent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET content = '' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear document content: %w", err)
	}
	return nil
}

// AddFileUsage bumps the uploader's aggregate totals.
func (s *Service) AddFileUsage(ctx context.Context, userID string, sizeBytes int64, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO file_usage (user_id, total_file_size_bytes, file_count, updated_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET total_file_size_bytes = file_usage.total_file_size_bytes + $2,
		     file_count = file_usage.file_count + 1, updated_at = $3`,
		userID, sizeBytes, at)
	if err != nil {
		return fmt.Errorf("record file usage: %w", err)
	}
	return nil
}
