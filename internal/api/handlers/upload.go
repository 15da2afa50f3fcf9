package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trainlyhq/trainly-core/internal/document"
	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/ingest"
	"github.com/trainlyhq/trainly-core/internal/models"
	"github.com/trainlyhq/trainly-core/internal/queue"
	"github.com/trainlyhq/trainly-core/internal/token"
)

const maxUploadBytes = 25 << 20

type UploadHandler struct {
	auth  *ScopedAuth
	docs  *document.Service
	tasks *queue.Client
}

func NewUploadHandler(auth *ScopedAuth, docs *document.Service, tasks *queue.Client) *UploadHandler {
	return &UploadHandler{auth: auth, docs: docs, tasks: tasks}
}

// Upload is POST /v1/upload. Text extraction happens inline so unsupported
// files are rejected synchronously; chunking and embedding run on the
// worker. The raw file is discarded after extraction; there is no stored
// blob for any later endpoint to serve back.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, _, err := h.auth.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errs.InvalidRequest("invalid multipart form or file too large"))
		return
	}

	if err := token.CheckSubject(claims, r.FormValue("end_user_id")); err != nil {
		writeError(w, err)
		return
	}
	if !hasCapability(claims, "upload") {
		writeError(w, errs.InsufficientScope())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errs.InvalidRequest("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errs.InvalidRequest("could not read file"))
		return
	}

	fileType := header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = header.Filename
	}
	extracted, err := ingest.ExtractText(data, fileType)
	if err != nil {
		writeError(w, errs.InvalidRequest(err.Error()))
		return
	}

	doc, err := h.docs.Create(r.Context(), document.CreateParams{
		ChatID:    claims.ChatID,
		SubchatID: claims.SubchatID,
		Filename:  header.Filename,
		FileType:  fileType,
		FileSize:  header.Size,
		Content:   extracted.Text,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.docs.AddFileUsage(r.Context(), claims.Subject, header.Size, time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}

	if err := h.tasks.EnqueueDocumentIngest(queue.DocumentIngestPayload{
		DocumentID: doc.ID.String(),
		ChatID:     doc.ChatID,
		SubchatID:  doc.SubchatID,
	}); err != nil {
		h.docs.UpdateStatus(r.Context(), doc.ID, models.DocumentFailed)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"document_id": doc.ID.String(),
		"status":      string(doc.Status),
	})
}

// Status is GET /v1/documents/{id}/status. The document must live in the
// caller's subchat; anything else 403s identically to a missing document.
func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, _, err := h.auth.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.InvalidRequest("invalid document ID"))
		return
	}

	doc, err := h.docs.GetByID(r.Context(), id)
	if err != nil || doc.SubchatID != claims.SubchatID || doc.ChatID != claims.ChatID {
		writeError(w, errs.AccessDenied("document not accessible"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": doc.ID.String(),
		"status":      string(doc.Status),
	})
}
