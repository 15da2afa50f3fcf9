package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extracted is the text pulled out of an upload before chunking.
type Extracted struct {
	Text  string
	Pages int
}

// ExtractText converts an uploaded file into plain text. PDF, DOCX and TXT
// are accepted; anything else is rejected before a document row exists.
func ExtractText(data []byte, fileType string) (*Extracted, error) {
	switch normalizeType(fileType) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return &Extracted{Text: string(bytes.TrimSpace(data)), Pages: 1}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimPrefix(t, ".")) {
	case "pdf", "application/pdf":
		return "pdf"
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "txt", "text/plain", "text/plain; charset=utf-8":
		return "txt"
	}
	return ""
}

func extractPDF(data []byte) (*Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return &Extracted{Text: b.String(), Pages: pages}, nil
}

func extractDOCX(data []byte) (*Extracted, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	for _, f := range reader.File {
		if filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		return &Extracted{Text: stripTags(string(raw)), Pages: 1}, nil
	}
	return nil, fmt.Errorf("docx has no document.xml")
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
