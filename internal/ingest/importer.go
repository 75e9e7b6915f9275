package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
)

// JobStore is the part of the job service the importer needs.
type JobStore interface {
	CreateJob(ctx context.Context, spec jobs.JobSpec) (*entity.ScrapingJob, error)
	ListJobs(ctx context.Context, status string, limit int) ([]*entity.ScrapingJob, error)
}

// FileResult is the outcome of importing one seed file.
type FileResult struct {
	Path      string   `json:"path"`
	HashHex   string   `json:"sha256"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Unchanged bool     `json:"unchanged,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Err       string   `json:"error,omitempty"`
}

// DirStats summarizes a directory import.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Unchanged uint32
	Failed    uint32
	Created   uint32
}

// Importer creates jobs from seed files. A target already pending, or already
// imported by this Importer, is skipped. A file whose content hash was seen
// before is not re-read.
type Importer struct {
	jobs   JobStore
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	targets map[string]struct{}
	hashes  map[string]string // path -> sha256 of last import
}

func NewImporter(store JobStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		jobs:    store,
		logger:  logger,
		targets: make(map[string]struct{}),
		hashes:  make(map[string]string),
	}
}

func (im *Importer) loadPending(ctx context.Context) error {
	if im.loaded {
		return nil
	}
	pending, err := im.jobs.ListJobs(ctx, string(constants.JobStatusPending), 0)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, j := range pending {
		im.targets[targetKey(j.TargetURL, j.TargetHandle, j.Platform)] = struct{}{}
	}
	im.loaded = true
	return nil
}

// ImportFile creates jobs for every new target in one seed file. Targets
// that fail validation are reported in FileResult.Errors and do not stop the
// rest of the file.
func (im *Importer) ImportFile(ctx context.Context, path string) (FileResult, error) {
	out := FileResult{Path: path}
	if !IsSeedFile(path) {
		return out, fmt.Errorf("unsupported seed file %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	im.mu.Lock()
	defer im.mu.Unlock()

	if im.hashes[path] == out.HashHex {
		out.Unchanged = true
		return out, nil
	}
	specs, err := ParseSeeds(path, data)
	if err != nil {
		return out, err
	}
	if err := im.loadPending(ctx); err != nil {
		return out, err
	}

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		key := targetKey(spec.TargetURL, spec.TargetHandle, spec.Platform)
		if _, dup := im.targets[key]; dup {
			out.Skipped++
			continue
		}
		job, err := im.jobs.CreateJob(ctx, spec)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		im.targets[key] = struct{}{}
		out.Created++
		im.logger.Debug("ingest.job.created", "path", path, "job_id", job.ID, "job_type", job.JobType)
	}
	im.hashes[path] = out.HashHex
	im.logger.Info("ingest.file.done", "path", path, "created", out.Created, "skipped", out.Skipped, "errors", len(out.Errors))
	return out, nil
}

// ImportDirectory imports every seed file under root. A failing file is
// recorded in its FileResult and the walk continues.
func (im *Importer) ImportDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	var results []FileResult
	var stats DirStats

	info, err := os.Stat(root)
	if err != nil {
		return nil, stats, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, stats, fmt.Errorf("%s is not a directory", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++

		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsSeedFile(path) {
			return nil
		}
		stats.Matched++

		res, err := im.ImportFile(ctx, path)
		if err != nil {
			res.Err = err.Error()
			results = append(results, res)
			stats.Failed++
			return nil
		}
		results = append(results, res)
		stats.Succeeded++
		stats.Created += uint32(res.Created)
		if res.Unchanged {
			stats.Unchanged++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
