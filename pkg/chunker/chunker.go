// Package chunker splits extracted document text into retrieval-sized
// pieces, preferring paragraph and sentence boundaries over hard cuts.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type Options struct {
	// Size is the target chunk length in runes.
	Size int
	// Overlap carries trailing runes into the next chunk on hard cuts.
	Overlap int
}

func DefaultOptions() Options {
	return Options{Size: 1000, Overlap: 150}
}

type Chunk struct {
	Content string
	Index   int
}

var separators = []string{"\n\n", "\n", ". ", " "}

// Split breaks text into chunks no longer than opts.Size runes, splitting
// on the coarsest separator that keeps pieces under the limit.
func Split(text string, opts Options) []Chunk {
	if opts.Size <= 0 {
		opts.Size = 1000
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = 0
	}

	var chunks []Chunk
	for _, part := range split(text, separators, opts) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, Chunk{Content: part, Index: len(chunks)})
	}
	return chunks
}

func split(text string, seps []string, opts Options) []string {
	if utf8.RuneCountInString(text) <= opts.Size {
		return []string{text}
	}

	if len(seps) == 0 {
		return hardSplit(text, opts)
	}

	sep := seps[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return split(text, seps[1:], opts)
	}

	var out []string
	var current strings.Builder
	for _, part := range parts {
		joined := current.String()
		if joined != "" {
			joined += sep
		}
		if current.Len() > 0 && utf8.RuneCountInString(joined+part) > opts.Size {
			out = append(out, split(current.String(), seps[1:], opts)...)
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	if current.Len() > 0 {
		out = append(out, split(current.String(), seps[1:], opts)...)
	}
	return out
}

// hardSplit cuts at rune boundaries with overlap, the fallback when no
// separator produces pieces under the limit.
func hardSplit(text string, opts Options) []string {
	runes := []rune(text)
	step := opts.Size - opts.Overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + opts.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
