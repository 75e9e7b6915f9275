package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/db/ent/schema/utils"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

type FoodTruck struct{ ent.Schema }

func (FoodTruck) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "food_trucks"},
	}
}

func (FoodTruck) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("name").NotEmpty(),
		// lookup key for the duplicate candidate pool
		field.String("normalized_name").Default(""),
		field.String("description").Default("").
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.JSON("current_location", &entity.Location{}).Optional(),
		field.Float("latitude").Optional().Nillable(),
		field.Float("longitude").Optional().Nillable(),
		field.JSON("scheduled_locations", []entity.ScheduledLocation{}).Optional(),
		field.JSON("operating_hours", entity.OperatingHours{}).Optional(),
		field.JSON("menu", []entity.MenuCategory{}).Optional(),
		field.JSON("contact_info", entity.ContactInfo{}),
		field.JSON("social_media", entity.SocialMedia{}),
		field.Strings("cuisine_type").Optional(),
		field.String("price_range").Default(""),
		field.Strings("specialties").Optional(),
		field.Strings("source_urls").Optional(),
		field.Float("data_quality_score").Default(0).Min(0).Max(1),
		field.String("verification_status").
			Default(string(constants.VerificationPending)).
			Validate(utils.EnumValidator(constants.VerificationStatuses...)),
		field.Bool("is_active").Default(true),
		field.Time("last_scraped_at").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (FoodTruck) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("normalized_name"),
		index.Fields("latitude", "longitude"),
		index.Fields("is_active", "data_quality_score"),
	}
}
