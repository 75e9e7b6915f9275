package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyInput is the cause of a ParseError for blank text.
	ErrEmptyInput = errors.New("empty input")
	// ErrNotStructured is the cause when text decodes to a scalar.
	ErrNotStructured = errors.New("decoded value is not an object or array")
)

// ParseError reports that LLM text could not be turned into structured data.
type ParseError struct {
	Length int
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse LLM response: %v (text length: %d)", e.Cause, e.Length)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Retryable is true: a fresh scrape may produce different text.
func (e *ParseError) Retryable() bool { return true }

var (
	reFence      = regexp.MustCompile("(?i)```(?:json|yaml)?[ \\t]*")
	reLabel      = regexp.MustCompile(`(?i)^\s*(?:json|yaml)\s*:\s*`)
	reFlatObject = regexp.MustCompile(`\{[^{}]*\}`)
	reFlatArray  = regexp.MustCompile(`\[[^\[\]]*\]`)
)

// Clean strips markdown code fences and a leading format label.
func Clean(text string) string {
	s := reFence.ReplaceAllString(text, "")
	s = strings.TrimSpace(s)
	s = reLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Parse converts raw LLM output into a map[string]any or []any. It tries a
// direct decode, then repaired bracket-delimited substrings, then YAML.
func Parse(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Length: len(text), Cause: ErrEmptyInput}
	}
	cleaned := Clean(text)
	if cleaned == "" {
		return nil, &ParseError{Length: len(text), Cause: ErrEmptyInput}
	}

	v, firstErr := decodeStructured(cleaned)
	if firstErr == nil {
		return v, nil
	}

	for _, cand := range candidates(cleaned) {
		if v, err := decodeStructured(cand); err == nil {
			return v, nil
		}
		if v, err := decodeStructured(Repair(cand)); err == nil {
			return v, nil
		}
	}

	if v, err := decodeYAML(cleaned); err == nil {
		return v, nil
	}
	return nil, &ParseError{Length: len(text), Cause: firstErr}
}

func decodeStructured(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	return nil, ErrNotStructured
}

// candidates returns bracket-delimited substrings, longest first.
func candidates(s string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	var greedy []string
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		greedy = append(greedy, s[i:j+1])
	} else if i >= 0 {
		// unterminated object: let the repair pass see everything after it
		greedy = append(greedy, s[i:])
	}
	if i, j := strings.IndexByte(s, '['), strings.LastIndexByte(s, ']'); i >= 0 && j > i {
		greedy = append(greedy, s[i:j+1])
	}
	sort.SliceStable(greedy, func(a, b int) bool { return len(greedy[a]) > len(greedy[b]) })
	for _, g := range greedy {
		add(g)
	}
	add(reFlatObject.FindString(s))
	add(reFlatArray.FindString(s))
	return out
}

func decodeYAML(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	v = normalizeYAML(v)
	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, ErrNotStructured
	}
	// round-trip so numbers and timestamps take their JSON shapes
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeStructured(string(b))
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []any:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	}
	return v
}
