package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trainlyhq/trainly-core/internal/errs"
)

func TestWriteErrorStructured(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errs.PrivacyViolation())

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "privacy_violation" {
		t.Errorf("error code = %q", body["error"])
	}
}

func TestWriteErrorOpaqueForInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused on 10.1.2.3"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "internal_error" {
		t.Errorf("error code = %q", body["error"])
	}
	if body["error_description"] == "" || body["error_description"] != "an internal error occurred" {
		t.Errorf("internal detail leaked: %q", body["error_description"])
	}
}

func TestScopedTokenHeaderPreference(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	r.Header.Set("X-Scoped-Token", "from-header")
	r.Header.Set("Authorization", "Bearer from-bearer")

	if got := scopedToken(r); got != "from-header" {
		t.Errorf("token = %q, want the dedicated header", got)
	}

	r.Header.Del("X-Scoped-Token")
	if got := scopedToken(r); got != "from-bearer" {
		t.Errorf("token = %q, want the bearer fallback", got)
	}

	r.Header.Del("Authorization")
	if got := scopedToken(r); got != "" {
		t.Errorf("token = %q, want empty", got)
	}
}
