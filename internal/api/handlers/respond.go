// Package handlers is the HTTP surface. Handlers translate wire requests
// into service calls and service errors into the structured error codes;
// no business rule lives at this layer.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/trainlyhq/trainly-core/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps structured errors onto their HTTP status. Anything
// unstructured becomes an opaque 500; internals never leak into responses.
func writeError(w http.ResponseWriter, err error) {
	if e, ok := errs.As(err); ok {
		writeJSON(w, e.Status, e)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":             "internal_error",
		"error_description": "an internal error occurred",
	})
}

func decodeJSON(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errs.InvalidRequest("malformed JSON body")
	}
	return nil
}
