package ingest

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestExtractTextTXT(t *testing.T) {
	got, err := ExtractText([]byte("  hello world\n"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "hello world" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	if _, err := ExtractText([]byte("x"), "image/png"); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestExtractTextDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte(`<w:document><w:p><w:t>quarterly</w:t><w:t>report</w:t></w:p></w:document>`))
	zw.Close()

	got, err := ExtractText(buf.Bytes(), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Text, "quarterly report") {
		t.Errorf("text = %q", got.Text)
	}
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		".pdf":            "pdf",
		"application/pdf": "pdf",
		"TXT":             "txt",
		"weird/thing":     "",
	}
	for in, want := range cases {
		if got := normalizeType(in); got != want {
			t.Errorf("normalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}
