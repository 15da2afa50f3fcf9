package vectorstore

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
)

func TestCitationsForFiltersForeignSubchats(t *testing.T) {
	mine := "sub_aaaa"
	results := []SearchResult{
		{DocumentID: uuid.New(), SubchatID: mine, Content: "my chunk", ChunkIndex: 0, Score: 0.9},
		{DocumentID: uuid.New(), SubchatID: "sub_bbbb", Content: "someone else's chunk", ChunkIndex: 1, Score: 0.95},
		{DocumentID: uuid.New(), SubchatID: mine, Content: "another of mine", ChunkIndex: 2, Score: 0.7},
	}

	cites := CitationsFor(results, mine)
	if len(cites) != 2 {
		t.Fatalf("got %d citations, want 2", len(cites))
	}
	for _, c := range cites {
		if strings.Contains(c.Snippet, "someone else") {
			t.Fatal("foreign subchat content leaked into citations")
		}
	}
}

func TestCitationsForTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("a", 1000)
	cites := CitationsFor([]SearchResult{
		{SubchatID: "sub_x", Content: long},
	}, "sub_x")

	if len(cites) != 1 {
		t.Fatal("citation dropped")
	}
	if len(cites[0].Snippet) > snippetLimit+len("…") {
		t.Errorf("snippet length %d exceeds limit", len(cites[0].Snippet))
	}
}

func TestCitationsForTruncatesOnRuneBoundaries(t *testing.T) {
	// Multibyte content sized so the old byte-index cut would land inside
	// a character.
	long := strings.Repeat("a", snippetLimit-1) + strings.Repeat("é", 20)
	cites := CitationsFor([]SearchResult{
		{SubchatID: "sub_x", Content: long},
	}, "sub_x")

	if len(cites) != 1 {
		t.Fatal("citation dropped")
	}
	snippet := cites[0].Snippet
	if !utf8.ValidString(snippet) {
		t.Fatalf("snippet is not valid UTF-8: %q", snippet)
	}
	if got := utf8.RuneCountInString(snippet); got != snippetLimit+1 {
		t.Errorf("snippet rune count = %d, want %d", got, snippetLimit+1)
	}
	if !strings.HasSuffix(snippet, "é…") {
		t.Errorf("snippet ends %q, want whole final character plus ellipsis", snippet[len(snippet)-8:])
	}
}

func TestCitationsForEmpty(t *testing.T) {
	if got := CitationsFor(nil, "sub_x"); got != nil {
		t.Errorf("CitationsFor(nil) = %v", got)
	}
}
