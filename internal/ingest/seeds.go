// Package ingest turns seed files listing food truck targets into scraping
// jobs. Seed files are YAML documents or plain text with one target per line.
package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
)

// SeedExts are the seed file extensions, lowercase without '.'.
var SeedExts = map[string]struct{}{
	"yaml": {},
	"yml":  {},
	"txt":  {},
}

// SeedTarget is one entry of a YAML seed file.
type SeedTarget struct {
	URL        string `yaml:"url"`
	Handle     string `yaml:"handle"`
	Platform   string `yaml:"platform"`
	JobType    string `yaml:"job_type"`
	Priority   *int   `yaml:"priority"`
	MaxRetries int    `yaml:"max_retries"`
}

// SeedFile is the YAML seed layout. Defaults apply to targets that leave a
// field empty.
type SeedFile struct {
	Defaults struct {
		Priority   int    `yaml:"priority"`
		MaxRetries int    `yaml:"max_retries"`
		Platform   string `yaml:"platform"`
	} `yaml:"defaults"`
	Targets []SeedTarget `yaml:"targets"`
}

// ParseSeeds decodes a seed file into job specs. The format is picked from
// the extension of name.
func ParseSeeds(name string, data []byte) ([]jobs.JobSpec, error) {
	switch ext(name) {
	case "yaml", "yml":
		return parseYAML(data)
	case "txt":
		return parseText(data)
	default:
		return nil, fmt.Errorf("unsupported seed file %q", name)
	}
}

func parseYAML(data []byte) ([]jobs.JobSpec, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}
	specs := make([]jobs.JobSpec, 0, len(f.Targets))
	for i, t := range f.Targets {
		spec := jobs.JobSpec{
			JobType:      strings.TrimSpace(t.JobType),
			TargetURL:    strings.TrimSpace(t.URL),
			TargetHandle: strings.TrimPrefix(strings.TrimSpace(t.Handle), "@"),
			Platform:     t.Platform,
			Priority:     f.Defaults.Priority,
			MaxRetries:   t.MaxRetries,
		}
		if t.Priority != nil {
			spec.Priority = *t.Priority
		}
		if spec.MaxRetries == 0 {
			spec.MaxRetries = f.Defaults.MaxRetries
		}
		if spec.TargetHandle != "" && spec.Platform == "" {
			spec.Platform = f.Defaults.Platform
		}
		if spec.TargetURL == "" && spec.TargetHandle == "" {
			return nil, fmt.Errorf("target %d: url or handle required", i+1)
		}
		specs = append(specs, withDefaultType(spec))
	}
	return specs, nil
}

// parseText reads one target per line: an http(s) URL or platform:handle.
// Blank lines and lines starting with '#' are skipped.
func parseText(data []byte) ([]jobs.JobSpec, error) {
	var specs []jobs.JobSpec
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		spec, err := parseTextTarget(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		specs = append(specs, spec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

func parseTextTarget(s string) (jobs.JobSpec, error) {
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return withDefaultType(jobs.JobSpec{TargetURL: s}), nil
	}
	platform, handle, ok := strings.Cut(s, ":")
	platform = constants.NormalizePlatform(platform)
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if !ok || handle == "" {
		return jobs.JobSpec{}, fmt.Errorf("%q is neither a URL nor platform:handle", s)
	}
	if _, known := constants.Platforms[platform]; !known {
		return jobs.JobSpec{}, fmt.Errorf("unknown platform %q", platform)
	}
	return withDefaultType(jobs.JobSpec{TargetHandle: handle, Platform: platform}), nil
}

func withDefaultType(spec jobs.JobSpec) jobs.JobSpec {
	if spec.JobType != "" {
		return spec
	}
	spec.JobType = string(constants.JobTypeWebsiteScrape)
	if spec.TargetURL == "" && spec.TargetHandle != "" {
		spec.JobType = string(constants.JobTypeSocialScrape)
	}
	return spec
}

// targetKey identifies a target independent of job type and priority.
func targetKey(urlStr, handle, platform string) string {
	if u := strings.TrimSpace(urlStr); u != "" {
		return "url:" + strings.TrimSuffix(strings.ToLower(u), "/")
	}
	return "handle:" + constants.NormalizePlatform(platform) + ":" + strings.ToLower(strings.TrimSpace(handle))
}

func ext(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// IsSeedFile reports whether path has a seed file extension.
func IsSeedFile(path string) bool {
	_, ok := SeedExts[ext(path)]
	return ok
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
