package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/prompts"
)

// DefaultMaxContentChars caps how much page content goes into one prompt.
const DefaultMaxContentChars = 12000

const extractionTemplate = `You are a data extraction assistant for a food truck directory.
Extract the details of the single food truck described in the page content below.

Return ONLY JSON that matches this JSON Schema:
{{.schema}}

Rules:
- "name" is the truck's business name. If the page does not describe a food truck, leave "name" empty.
- Extract prices as numbers (12.99, not "$12.99").
- operating_hours uses lowercase weekday keys and 24-hour times (e.g. "14:30"). If closed on a day, set "closed": true and omit open/close.
- Ranges like "Mon-Fri" apply to every day in the range.
- Set lat/lng only when they are explicitly present.
- Group menu items into categories. If no clear categories exist, use "Main Items".
- price_range: "$" under $10, "$$" $10-20, "$$$" $20-30, "$$$$" over $30.
- Never output null. If a field is not present, omit it.

Source URL: {{.source_url}}

Page content:
{{.content}}
`

var extractionPrompt = prompts.PromptTemplate{
	Template:       extractionTemplate,
	InputVariables: []string{"schema", "source_url", "content"},
	TemplateFormat: prompts.TemplateFormatGoTemplate,
}

// BuildExtractionPrompt renders the extraction prompt for one scraped page.
func BuildExtractionPrompt(req ExtractRequest) (string, error) {
	limit := req.MaxContentChars
	if limit <= 0 {
		limit = DefaultMaxContentChars
	}
	schema, err := json.MarshalIndent(req.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	out, err := extractionPrompt.Format(map[string]any{
		"schema":     string(schema),
		"source_url": req.SourceURL,
		"content":    truncateRunes(strings.TrimSpace(req.Content), limit),
	})
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}
	return out, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
