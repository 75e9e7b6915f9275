package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/db/ent/schema/utils"
)

type ScrapingJob struct{ ent.Schema }

func (ScrapingJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "scraping_jobs"},
	}
}

func (ScrapingJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("job_type").
			Validate(utils.EnumValidator(constants.JobTypes...)),
		field.String("target_url").Default(""),
		field.String("target_handle").Default(""),
		field.String("platform").Default(""),
		field.String("status").
			Default(string(constants.JobStatusPending)).
			Validate(utils.EnumValidator(constants.JobStatuses...)),
		field.Int("priority").Default(0),
		field.Int("retry_count").Default(0).NonNegative(),
		field.Int("max_retries").Default(constants.DefaultMaxRetries).NonNegative(),
		field.Time("scheduled_at").Default(time.Now),
		field.Time("started_at").Optional().Nillable(),
		field.Time("completed_at").Optional().Nillable(),
		field.String("error_message").Default(""),
		field.JSON("data_collected", map[string]any{}).Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (ScrapingJob) Indexes() []ent.Index {
	return []ent.Index{
		// drain order: priority DESC, scheduled_at ASC
		index.Fields("status", "priority", "scheduled_at"),
	}
}
