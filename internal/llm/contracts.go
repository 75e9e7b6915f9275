package llm

import "context"

// Response is the outcome of one prompt. Data holds the raw model text; the
// extraction parser works on it alone.
type Response struct {
	Success    bool   `json:"success"`
	Data       string `json:"data"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ExtractRequest carries what the extraction prompt needs.
type ExtractRequest struct {
	Content         string
	SourceURL       string
	Schema          map[string]any
	MaxContentChars int
}

// Generator is the interface the pipeline depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Response, error)
}
