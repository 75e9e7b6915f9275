package jobs

import (
	"github.com/joseph-ayodele/foodtruck-pipeline/db/ent/schema"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
)

// Column rules come from the scraping_jobs ent schema so a spec is checked
// against the same validators the table is declared with.
var (
	jobTypeRule    = stringColumnRule("job_type")
	maxRetriesRule = intColumnRule("max_retries")
)

func stringColumnRule(column string) common.ValidationRule {
	fns := schema.StringValidators(schema.ScrapingJob{}.Fields(), column)
	return func(fieldName string, value interface{}) *common.ValidationError {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		for _, fn := range fns {
			if err := fn(s); err != nil {
				return common.NewValidationError(fieldName, value, err.Error())
			}
		}
		return nil
	}
}

func intColumnRule(column string) common.ValidationRule {
	fns := schema.IntValidators(schema.ScrapingJob{}.Fields(), column)
	return func(fieldName string, value interface{}) *common.ValidationError {
		n, ok := value.(int)
		if !ok {
			return nil
		}
		for _, fn := range fns {
			if err := fn(n); err != nil {
				return common.NewValidationError(fieldName, value, err.Error())
			}
		}
		return nil
	}
}
