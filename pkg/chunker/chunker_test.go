package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortText(t *testing.T) {
	chunks := Split("short paragraph", DefaultOptions())
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != "short paragraph" || chunks[0].Index != 0 {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestSplitRespectsSize(t *testing.T) {
	text := strings.Repeat("one two three four five. ", 200)
	opts := Options{Size: 300}

	for _, c := range Split(text, opts) {
		if n := utf8.RuneCountInString(c.Content); n > opts.Size {
			t.Errorf("chunk %d has %d runes, limit %d", c.Index, n, opts.Size)
		}
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	text := "first paragraph here\n\nsecond paragraph here\n\nthird paragraph here"
	chunks := Split(text, Options{Size: 25})

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if strings.Contains(c.Content, "\n\n") {
			t.Errorf("chunk %d spans a paragraph break: %q", c.Index, c.Content)
		}
	}
}

func TestSplitIndexesSequential(t *testing.T) {
	text := strings.Repeat("word ", 500)
	for i, c := range Split(text, Options{Size: 100}) {
		if c.Index != i {
			t.Fatalf("chunk index %d at position %d", c.Index, i)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split("   \n\n  ", DefaultOptions()); got != nil {
		t.Errorf("whitespace-only text produced chunks: %v", got)
	}
}

func TestHardSplitUnbrokenRun(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Split(text, Options{Size: 1000, Overlap: 100})

	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want >= 3", len(chunks))
	}
	for _, c := range chunks {
		if utf8.RuneCountInString(c.Content) > 1000 {
			t.Errorf("chunk %d over limit", c.Index)
		}
	}
}
