package llm

import "context"

// Provider abstracts the model backend that answers scoped queries and
// embeds uploaded content.
type Provider interface {
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error)
	Embed(ctx context.Context, model string, input []string) ([][]float32, int, error)
	Name() string
}

type AnswerRequest struct {
	Model       string
	System      string
	Question    string
	Context     []string
	Temperature float64
	MaxTokens   int
}

type AnswerResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
}
