package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore persists chunk embeddings partitioned by subchat. Every
// query carries the subchat id in its WHERE clause; there is no unscoped
// read path.
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, chat_id, subchat_id, chunk_index, content, embedding, token_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET content = $6, embedding = $7, token_count = $8`,
			id, c.DocumentID, c.ChatID, c.SubchatID, c.ChunkIndex, c.Content,
			pgvector.NewVector(c.Embedding), c.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 8
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, subchat_id, content, chunk_index,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE chat_id = $2 AND subchat_id = $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		pgvector.NewVector(query), opts.ChatID, opts.SubchatID, opts.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.SubchatID, &r.Content, &r.ChunkIndex, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if opts.MinScore > 0 && r.Score < opts.MinScore {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteSubchat clears a user's partition, used when a grant is revoked and
// the user asks for their uploads to be purged.
func (s *PgVectorStore) DeleteSubchat(ctx context.Context, chatID, subchatID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM document_chunks WHERE chat_id = $1 AND subchat_id = $2`, chatID, subchatID)
	return err
}
