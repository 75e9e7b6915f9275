package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/extract"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/llm"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
)

// maxLoggedResponse caps the LLM text attached to parse failure logs.
const maxLoggedResponse = 2000

// Extraction is the typed candidate pulled out of one page.
type Extraction struct {
	Candidate  *entity.ExtractedFoodTruckDetails
	Notes      []string
	TokensUsed int
}

// ExtractStage turns page content into a candidate through the LLM, within the
// daily usage budget.
type ExtractStage struct {
	Logger          *slog.Logger
	LLM             llm.Generator
	Usage           llm.UsageTracker
	Metrics         *metrics.Metrics
	MaxContentChars int
}

func NewExtractStage(logger *slog.Logger, gen llm.Generator, usage llm.UsageTracker, m *metrics.Metrics) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if usage == nil {
		usage = llm.NewMemoryUsageTracker(llm.UsageLimits{}, nil)
	}
	return &ExtractStage{
		Logger:          logger,
		LLM:             gen,
		Usage:           usage,
		Metrics:         m,
		MaxContentChars: llm.DefaultMaxContentChars,
	}
}

// Run extracts a candidate from content scraped at sourceURL.
func (s *ExtractStage) Run(ctx context.Context, content, sourceURL string) (*Extraction, error) {
	logger := common.LoggerFrom(ctx, s.Logger)

	prompt, err := llm.BuildExtractionPrompt(llm.ExtractRequest{
		Content:         content,
		SourceURL:       sourceURL,
		Schema:          extract.BuildCandidateJSONSchema(),
		MaxContentChars: s.MaxContentChars,
	})
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	estimate := llm.EstimateTokens(prompt)
	check, err := s.Usage.Check(ctx, estimate)
	if err != nil {
		return nil, fmt.Errorf("usage check: %w", err)
	}
	if !check.Allowed {
		logger.Warn("pipeline.llm.usage_limit",
			"reason", check.Reason,
			"requests", check.Usage.Requests,
			"tokens", check.Usage.Tokens,
			"estimated_tokens", estimate,
		)
		s.Metrics.ObserveLLM("limited", 0)
		return nil, common.NewAppError("USAGE_LIMIT", check.Reason, common.ErrUsageLimit)
	}

	resp, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		s.Metrics.ObserveLLM("error", 0)
		return nil, fmt.Errorf("llm generate: %w", err)
	}
	if resp == nil {
		s.Metrics.ObserveLLM("error", 0)
		return nil, errors.New("llm generate: nil response")
	}

	tokens := resp.TokensUsed
	if tokens <= 0 {
		tokens = estimate + llm.EstimateTokens(resp.Data)
	}
	if err := s.Usage.Record(ctx, tokens); err != nil {
		logger.Warn("pipeline.llm.usage_record_failed", "tokens", tokens, "err", err)
	}

	if !resp.Success {
		s.Metrics.ObserveLLM("unsuccessful", tokens)
		return nil, fmt.Errorf("llm generate: %s", resp.Error)
	}
	s.Metrics.ObserveLLM("ok", tokens)

	parsed, err := extract.Parse(resp.Data)
	if err != nil {
		logger.Warn("pipeline.extract.parse_failed",
			"source_url", sourceURL,
			"response_chars", len(resp.Data),
			"raw", clip(resp.Data, maxLoggedResponse),
			"cleaned", clip(extract.Clean(resp.Data), maxLoggedResponse),
			"err", err,
		)
		return nil, err
	}
	cand, notes, err := extract.Decode(parsed)
	if err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	if len(notes) > 0 {
		logger.Debug("pipeline.extract.normalized", "source_url", sourceURL, "notes", notes)
	}
	logger.Info("pipeline.extract.ok",
		"source_url", sourceURL,
		"name", cand.Name,
		"tokens", tokens,
	)
	return &Extraction{Candidate: cand, Notes: notes, TokensUsed: tokens}, nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
