package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 4 << 20

// Direct fetches pages with a plain GET and reduces the HTML to text.
type Direct struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

func NewDirect(timeout time.Duration, userAgent string, logger *slog.Logger) *Direct {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; foodtruck-pipeline/1.0)"
	}
	return &Direct{client: &http.Client{Timeout: timeout}, userAgent: userAgent, log: logger}
}

// Scrape implements Scraper. The page text is returned as Markdown so callers
// can treat both scrapers alike.
func (d *Direct) Scrape(ctx context.Context, t Target) (*Result, error) {
	target, err := ResolveURL(t)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("direct: build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("scraper.direct.send_error", "url", target, "error", err)
		return nil, fmt.Errorf("direct: %w", err)
	}
	defer resp.Body.Close()

	res := &Result{Metadata: Metadata{SourceURL: resp.Request.URL.String(), StatusCode: resp.StatusCode}}
	if resp.StatusCode/100 != 2 {
		res.Error = fmt.Sprintf("non-2xx status: %d", resp.StatusCode)
		return res, nil
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") {
		res.Error = "content type is not html: " + ct
		return res, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("direct: read body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("direct: parse html: %w", err)
	}
	res.HTML = string(body)
	res.Metadata.Title = strings.TrimSpace(doc.Find("title").First().Text())
	res.Markdown = pageText(doc)
	res.Success = res.Markdown != ""

	d.log.Info("scraper.direct.ok",
		"url", target,
		"status", resp.StatusCode,
		"text_len", len(res.Markdown),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// pageText keeps the description meta tag and the visible body text.
func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, svg, iframe").Remove()
	var parts []string
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok && strings.TrimSpace(desc) != "" {
		parts = append(parts, strings.TrimSpace(desc))
	}
	// block elements end a line so hours and menu rows stay apart
	doc.Find("br, p, li, tr, h1, h2, h3, h4, div, address").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n")
}
