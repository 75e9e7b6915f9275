package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FirecrawlConfig configures the Firecrawl REST client.
type FirecrawlConfig struct {
	APIKey  string
	BaseURL string // e.g. https://api.firecrawl.dev
	Timeout time.Duration
}

// Firecrawl scrapes pages through the Firecrawl /v1/scrape endpoint.
type Firecrawl struct {
	cfg    FirecrawlConfig
	client *http.Client
	log    *slog.Logger
}

func NewFirecrawl(cfg FirecrawlConfig, client *http.Client, logger *slog.Logger) *Firecrawl {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.firecrawl.dev"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Firecrawl{cfg: cfg, client: client, log: logger}
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Metadata struct {
			SourceURL  string `json:"sourceURL"`
			Title      string `json:"title"`
			StatusCode int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

// Scrape implements Scraper.
func (f *Firecrawl) Scrape(ctx context.Context, t Target) (*Result, error) {
	target, err := ResolveURL(t)
	if err != nil {
		return nil, err
	}
	if f.cfg.APIKey == "" {
		return nil, fmt.Errorf("firecrawl: api key is required")
	}

	url := strings.TrimRight(f.cfg.BaseURL, "/") + "/v1/scrape"
	body := firecrawlRequest{URL: target, Formats: []string{"markdown"}, OnlyMainContent: true}
	headers := map[string]string{"Authorization": "Bearer " + f.cfg.APIKey}

	raw, status, err := SendJSON(ctx, f.client, url, body, headers, f.log)
	if err != nil {
		// Firecrawl reports failures as {"success":false,"error":"..."}
		var fr firecrawlResponse
		if status != 0 && json.Unmarshal(raw, &fr) == nil && fr.Error != "" {
			return nil, fmt.Errorf("firecrawl: %s (status %d)", fr.Error, status)
		}
		return nil, fmt.Errorf("firecrawl: %w", err)
	}

	var fr firecrawlResponse
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil, fmt.Errorf("firecrawl: decode response: %w", err)
	}
	res := &Result{
		Success:  fr.Success,
		Markdown: fr.Data.Markdown,
		HTML:     fr.Data.HTML,
		Error:    fr.Error,
		Metadata: Metadata{
			SourceURL:  fr.Data.Metadata.SourceURL,
			Title:      fr.Data.Metadata.Title,
			StatusCode: fr.Data.Metadata.StatusCode,
		},
	}
	if res.Metadata.SourceURL == "" {
		res.Metadata.SourceURL = target
	}
	if res.Success && strings.TrimSpace(res.Content()) == "" {
		res.Success = false
		res.Error = "firecrawl returned no content"
	}
	return res, nil
}
