package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
)

// Target names what to scrape: a URL, or a handle on a social platform.
type Target struct {
	URL      string
	Handle   string
	Platform string
}

// Metadata describes the fetched page.
type Metadata struct {
	SourceURL  string `json:"source_url,omitempty"`
	Title      string `json:"title,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Result is the outcome of one scrape. Success=false with a nil error means
// the provider answered but produced no usable content.
type Result struct {
	Success  bool     `json:"success"`
	Markdown string   `json:"markdown,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Metadata Metadata `json:"metadata"`
	Error    string   `json:"error,omitempty"`
}

// Content returns the best text representation of the page.
func (r *Result) Content() string {
	if r.Markdown != "" {
		return r.Markdown
	}
	return r.HTML
}

// Scraper fetches a target page.
type Scraper interface {
	Scrape(ctx context.Context, t Target) (*Result, error)
}

// ResolveURL returns the URL to fetch for t. Handles are expanded with the
// platform's profile URL format.
func ResolveURL(t Target) (string, error) {
	if u := strings.TrimSpace(t.URL); u != "" {
		return u, nil
	}
	handle := strings.TrimPrefix(strings.TrimSpace(t.Handle), "@")
	if handle == "" {
		return "", fmt.Errorf("scraper: target has neither url nor handle")
	}
	format, ok := constants.Platforms[constants.NormalizePlatform(t.Platform)]
	if !ok {
		return "", fmt.Errorf("scraper: unsupported platform %q", t.Platform)
	}
	return fmt.Sprintf(format, handle), nil
}
