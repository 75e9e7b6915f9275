package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/llm"
)

var _ llm.Generator = (*Client)(nil)

// Generate implements llm.Generator. Transport failures are returned as
// errors; an empty completion is a Success=false response.
func (c *Client) Generate(ctx context.Context, prompt string) (*llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.generate.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gemini: rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithModel(c.cfg.Model),
		llms.WithTemperature(float64(c.cfg.Temperature)),
	)
	if err != nil {
		c.log.Error("llm.generate.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		c.log.Warn("llm.generate.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return &llm.Response{Success: false, Model: c.cfg.Model, Error: "no choices in response"}, nil
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Content)
	tokens, reported := tokensFromInfo(choice.GenerationInfo)
	if !reported {
		tokens = llm.EstimateTokens(prompt) + llm.EstimateTokens(text)
	}

	if text == "" {
		c.log.Warn("llm.generate.empty", "req_id", rid, "stop_reason", choice.StopReason)
		return &llm.Response{Success: false, Model: c.cfg.Model, TokensUsed: tokens, Error: "empty response"}, nil
	}

	c.log.Info("llm.generate.ok",
		"req_id", rid,
		"tokens", tokens,
		"tokens_reported", reported,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &llm.Response{Success: true, Data: text, TokensUsed: tokens, Model: c.cfg.Model}, nil
}

// tokensFromInfo reads token counts from provider metadata, which varies by
// langchaingo version.
func tokensFromInfo(info map[string]any) (int, bool) {
	if len(info) == 0 {
		return 0, false
	}
	for _, k := range []string{"total_tokens", "TotalTokens"} {
		if n, ok := asInt(info[k]); ok {
			return n, true
		}
	}
	pairs := [][2]string{
		{"input_tokens", "output_tokens"},
		{"PromptTokens", "CompletionTokens"},
	}
	for _, p := range pairs {
		in, okIn := asInt(info[p[0]])
		out, okOut := asInt(info[p[1]])
		if okIn || okOut {
			return in + out, true
		}
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}
