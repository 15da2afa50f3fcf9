package vectorstore

import "github.com/google/uuid"

type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChatID     string
	SubchatID  string
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
}

type SearchOptions struct {
	ChatID    string
	SubchatID string
	TopK      int
	MinScore  float64
}

type SearchResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	SubchatID  string    `json:"-"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Score      float64   `json:"score"`
}

// Citation is what leaves the service with an answer. Deliberately narrow:
// a snippet and a position, never a file handle or a download path.
type Citation struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Snippet    string    `json:"snippet"`
	Score      float64   `json:"score"`
}

const snippetLimit = 240

// CitationsFor converts search results into response citations, dropping
// anything outside the requester's subchat. Retrieval is already scoped by
// subchat at query time; this second pass exists so a future query-path bug
// cannot silently leak another partition's content through citations.
func CitationsFor(results []SearchResult, subchatID string) []Citation {
	var out []Citation
	for _, r := range results {
		if r.SubchatID != subchatID {
			continue
		}
		snippet := r.Content
		// Truncation counts runes, not bytes; a byte slice could split a
		// multibyte character and emit invalid UTF-8.
		if runes := []rune(snippet); len(runes) > snippetLimit {
			snippet = string(runes[:snippetLimit]) + "…"
		}
		out = append(out, Citation{
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Snippet:    snippet,
			Score:      r.Score,
		})
	}
	return out
}
