package scraper

import (
	"context"
	"errors"
	"log/slog"
)

// Fallback tries each scraper in order and returns the first successful
// result. When none succeeds the last result or error is returned.
type Fallback struct {
	scrapers []Scraper
	log      *slog.Logger
}

func NewFallback(logger *slog.Logger, scrapers ...Scraper) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{scrapers: scrapers, log: logger}
}

// Scrape implements Scraper.
func (f *Fallback) Scrape(ctx context.Context, t Target) (*Result, error) {
	if len(f.scrapers) == 0 {
		return nil, errors.New("scraper: no scrapers configured")
	}
	var (
		last    *Result
		lastErr error
	)
	for i, s := range f.scrapers {
		res, err := s.Scrape(ctx, t)
		if err == nil && res != nil && res.Success {
			if i > 0 {
				f.log.Info("scraper.fallback.used", "target", t.URL+t.Handle, "index", i)
			}
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.log.Warn("scraper.fallback.miss", "target", t.URL+t.Handle, "index", i, "error", errorText(res, err))
		last, lastErr = res, err
	}
	return last, lastErr
}

func errorText(res *Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if res != nil {
		return res.Error
	}
	return ""
}
