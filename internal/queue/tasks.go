package queue

const (
	TypeDocumentIngest = "ingest:document"
	TypeKeyUsage       = "keys:usage"
	TypeCreditsReset   = "credits:period_reset"
)

type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
	ChatID     string `json:"chat_id"`
	SubchatID  string `json:"subchat_id"`
}

type KeyUsagePayload struct {
	KeyID  string `json:"key_id"`
	UsedAt string `json:"used_at"` // RFC 3339
}

// CreditsResetPayload is empty; the sweep finds its own work. It exists so
// the scheduler has something to marshal.
type CreditsResetPayload struct{}
