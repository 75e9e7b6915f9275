package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
)

// BuildCandidateJSONSchema returns the JSON-Schema of a normalized candidate as a
// generic map. It is embedded in the extraction prompt and used to validate
// decoded output. name is not required here; the orchestrator decides what a
// nameless candidate means.
func BuildCandidateJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}
	location := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"lat":        map[string]any{"type": "number", "minimum": -90, "maximum": 90},
			"lng":        map[string]any{"type": "number", "minimum": -180, "maximum": 180},
			"address":    str,
			"city":       str,
			"state":      str,
			"zip_code":   str,
			"raw_text":   str,
			"timestamp":  map[string]any{"type": "string", "format": "date-time"},
			"date":       str,
			"start_time": str,
			"end_time":   str,
		},
	}
	hours := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"open":   str,
			"close":  str,
			"closed": map[string]any{"type": "boolean"},
		},
	}
	dayProps := map[string]any{}
	for _, d := range constants.Weekdays {
		dayProps[d] = hours
	}
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":         str,
			"description":  str,
			"price":        map[string]any{"type": "number"},
			"dietary_tags": strList,
		},
	}
	category := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":  str,
			"items": map[string]any{"type": "array", "items": item},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":                str,
			"description":         str,
			"current_location":    location,
			"scheduled_locations": map[string]any{"type": "array", "items": location},
			"operating_hours": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           dayProps,
			},
			"menu": map[string]any{"type": "array", "items": category},
			"contact_info": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"phone":   str,
					"email":   str,
					"website": str,
				},
			},
			"social_media": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"instagram": str,
					"facebook":  str,
					"twitter":   str,
					"tiktok":    str,
					"yelp":      str,
				},
			},
			"cuisine_type": strList,
			"price_range":  map[string]any{"type": "string", "enum": constants.PriceRanges},
			"specialties":  strList,
			"source_urls":  strList,
		},
	}
}

var (
	candidateSchemaOnce sync.Once
	candidateSchema     *jsonschema.Schema
	candidateSchemaErr  error
)

func compiledCandidateSchema() (*jsonschema.Schema, error) {
	candidateSchemaOnce.Do(func() {
		candidateSchema, candidateSchemaErr = compileSchema(BuildCandidateJSONSchema())
	})
	return candidateSchema, candidateSchemaErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateCandidate validates a decoded candidate document against the schema.
func ValidateCandidate(v any) error {
	schema, err := compiledCandidateSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
