package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"golang.org/x/time/rate"
)

// Config for the Gemini client.
type Config struct {
	APIKey            string        // if empty, falls back to env GEMINI_API_KEY
	Model             string        // e.g., "gemini-2.0-flash-lite-001"
	Temperature       float32       // 0..2
	Timeout           time.Duration // per request
	RequestsPerMinute int           // 0 disables pacing
}

// contentModel is the part of a langchaingo model the client uses.
type contentModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type Client struct {
	cfg     Config
	model   contentModel
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = withDefaults(cfg)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	return newClient(cfg, model, logger), nil
}

func newClient(cfg Config, model contentModel, logger *slog.Logger) *Client {
	cfg = withDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{cfg: cfg, model: model, limiter: limiter, log: logger}
}

func withDefaults(cfg Config) Config {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash-lite-001"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}
