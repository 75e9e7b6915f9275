package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

const foodTrucksTable = "food_trucks"

var truckColumns = []string{
	"id", "name", "normalized_name", "description", "current_location",
	"latitude", "longitude", "scheduled_locations", "operating_hours", "menu",
	"contact_info", "social_media", "cuisine_type", "price_range", "specialties",
	"source_urls", "data_quality_score", "verification_status", "is_active",
	"last_scraped_at", "created_at", "updated_at",
}

// ListOptions pages a List call.
type ListOptions struct {
	Limit      int
	Offset     int
	ActiveOnly bool
}

// CandidateQuery bounds the pool of possible duplicates for a record: a
// normalized-name prefix, a bounding box around a point, or both.
type CandidateQuery struct {
	NamePrefix string
	Lat, Lng   *float64
	RadiusDeg  float64
	ExcludeID  uuid.UUID
	Limit      int
}

type FoodTruckRepository interface {
	Insert(ctx context.Context, t *entity.FoodTruck) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FoodTruck, error)
	Update(ctx context.Context, t *entity.FoodTruck) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]*entity.FoodTruck, error)
	// ListAfter pages by id so rows deleted mid-sweep never shift a page.
	ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]*entity.FoodTruck, error)
	Candidates(ctx context.Context, q CandidateQuery) ([]*entity.FoodTruck, error)
	Count(ctx context.Context) (int, error)
	// ReplaceAndDelete updates merged and deletes deleteID in one transaction.
	ReplaceAndDelete(ctx context.Context, merged *entity.FoodTruck, deleteID uuid.UUID) error
}

type foodTruckRepo struct {
	db  *DB
	log *slog.Logger
}

func NewFoodTruckRepository(db *DB, log *slog.Logger) FoodTruckRepository {
	if log == nil {
		log = slog.Default()
	}
	return &foodTruckRepo{db: db, log: log}
}

// truckValues returns the column values of t in truckColumns order.
func truckValues(t *entity.FoodTruck) ([]any, error) {
	var lat, lng any
	if t.CurrentLocation.HasCoordinates() {
		lat, lng = *t.CurrentLocation.Lat, *t.CurrentLocation.Lng
	}
	jsonFields := []any{
		t.CurrentLocation, emptyIfNil(t.ScheduledLocations), emptyMapIfNil(t.OperatingHours),
		emptyIfNil(t.Menu), t.ContactInfo, t.SocialMedia, emptyIfNil(t.CuisineType),
		emptyIfNil(t.Specialties), emptyIfNil(t.SourceURLs),
	}
	enc := make([]string, len(jsonFields))
	for i, f := range jsonFields {
		s, err := encodeJSON(f)
		if err != nil {
			return nil, fmt.Errorf("encode food truck: %w", err)
		}
		enc[i] = s
	}
	return []any{
		t.ID, t.Name, t.NormalizedName, t.Description, enc[0],
		lat, lng, enc[1], enc[2], enc[3],
		enc[4], enc[5], enc[6], t.PriceRange, enc[7],
		enc[8], t.DataQualityScore, t.VerificationStatus, t.IsActive,
		dbTimePtr(t.LastScrapedAt), dbTime(t.CreatedAt), dbTime(t.UpdatedAt),
	}, nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func emptyMapIfNil(h entity.OperatingHours) entity.OperatingHours {
	if h == nil {
		return entity.OperatingHours{}
	}
	return h
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTruck(row rowScanner) (*entity.FoodTruck, error) {
	var (
		t                             entity.FoodTruck
		lat, lng                      sql.NullFloat64
		scraped, createdAt, updatedAt timeColumn
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.NormalizedName, &t.Description, jsonColumn{&t.CurrentLocation},
		&lat, &lng, jsonColumn{&t.ScheduledLocations}, jsonColumn{&t.OperatingHours}, jsonColumn{&t.Menu},
		jsonColumn{&t.ContactInfo}, jsonColumn{&t.SocialMedia}, jsonColumn{&t.CuisineType}, &t.PriceRange, jsonColumn{&t.Specialties},
		jsonColumn{&t.SourceURLs}, &t.DataQualityScore, &t.VerificationStatus, &t.IsActive,
		&scraped, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.LastScrapedAt = scraped.ptr()
	t.CreatedAt = createdAt.t
	t.UpdatedAt = updatedAt.t
	normalizeEmpty(&t)
	return &t, nil
}

// normalizeEmpty turns the empty collections written for NOT NULL columns
// back into nil so stored and in-memory records compare equal.
func normalizeEmpty(t *entity.FoodTruck) {
	if len(t.ScheduledLocations) == 0 {
		t.ScheduledLocations = nil
	}
	if len(t.OperatingHours) == 0 {
		t.OperatingHours = nil
	}
	if len(t.Menu) == 0 {
		t.Menu = nil
	}
	if len(t.CuisineType) == 0 {
		t.CuisineType = nil
	}
	if len(t.Specialties) == 0 {
		t.Specialties = nil
	}
	if len(t.SourceURLs) == 0 {
		t.SourceURLs = nil
	}
}

func (r *foodTruckRepo) Insert(ctx context.Context, t *entity.FoodTruck) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	vals, err := truckValues(t)
	if err != nil {
		return err
	}
	query, args := r.db.builder().Insert(foodTrucksTable).Columns(truckColumns...).Values(vals...).Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("food_truck insert failed", "truck_id", t.ID, "err", err)
		return dbErr("insert food truck", err)
	}
	r.log.Debug("food_truck inserted", "truck_id", t.ID, "name", t.Name)
	return nil
}

func (r *foodTruckRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.FoodTruck, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *foodTruckRepo) getByID(ctx context.Context, q querier, id uuid.UUID) (*entity.FoodTruck, error) {
	b := r.db.builder()
	query, args := b.Select(truckColumns...).From(b.Table(foodTrucksTable)).Where(entsql.EQ("id", id)).Query()
	t, err := scanTruck(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "food truck "+id.String())
	}
	if err != nil {
		return nil, dbErr("get food truck", err)
	}
	return t, nil
}

func (r *foodTruckRepo) Update(ctx context.Context, t *entity.FoodTruck) error {
	return r.update(ctx, r.db, t)
}

func (r *foodTruckRepo) update(ctx context.Context, q querier, t *entity.FoodTruck) error {
	vals, err := truckValues(t)
	if err != nil {
		return err
	}
	u := r.db.builder().Update(foodTrucksTable)
	// created_at is rewritten too: a merge keeps the older of the two
	for i, col := range truckColumns {
		if col != "id" {
			u.Set(col, vals[i])
		}
	}
	query, args := u.Where(entsql.EQ("id", t.ID)).Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("food_truck update failed", "truck_id", t.ID, "err", err)
		return dbErr("update food truck", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, "food truck "+t.ID.String())
	}
	return nil
}

func (r *foodTruckRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, r.db, id)
}

func (r *foodTruckRepo) delete(ctx context.Context, q querier, id uuid.UUID) error {
	query, args := r.db.builder().Delete(foodTrucksTable).Where(entsql.EQ("id", id)).Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return dbErr("delete food truck", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, "food truck "+id.String())
	}
	return nil
}

func (r *foodTruckRepo) List(ctx context.Context, opts ListOptions) ([]*entity.FoodTruck, error) {
	b := r.db.builder()
	sel := b.Select(truckColumns...).From(b.Table(foodTrucksTable)).
		OrderBy(entsql.Desc("data_quality_score"), "id")
	if opts.ActiveOnly {
		sel.Where(entsql.EQ("is_active", true))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		sel.Offset(opts.Offset)
	}
	return r.queryTrucks(ctx, sel)
}

func (r *foodTruckRepo) ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]*entity.FoodTruck, error) {
	b := r.db.builder()
	sel := b.Select(truckColumns...).From(b.Table(foodTrucksTable)).
		Where(entsql.GT("id", after)).
		OrderBy("id")
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.queryTrucks(ctx, sel)
}

func (r *foodTruckRepo) Candidates(ctx context.Context, q CandidateQuery) ([]*entity.FoodTruck, error) {
	var preds []*entsql.Predicate
	if q.NamePrefix != "" {
		preds = append(preds, entsql.HasPrefix("normalized_name", q.NamePrefix))
	}
	if q.Lat != nil && q.Lng != nil && q.RadiusDeg > 0 {
		preds = append(preds, entsql.And(
			entsql.GTE("latitude", *q.Lat-q.RadiusDeg),
			entsql.LTE("latitude", *q.Lat+q.RadiusDeg),
			entsql.GTE("longitude", *q.Lng-q.RadiusDeg),
			entsql.LTE("longitude", *q.Lng+q.RadiusDeg),
		))
	}
	if len(preds) == 0 {
		return nil, nil
	}
	where := entsql.Or(preds...)
	if q.ExcludeID != uuid.Nil {
		where = entsql.And(where, entsql.NEQ("id", q.ExcludeID))
	}
	b := r.db.builder()
	sel := b.Select(truckColumns...).From(b.Table(foodTrucksTable)).
		Where(where).
		OrderBy(entsql.Desc("data_quality_score"), "id")
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	return r.queryTrucks(ctx, sel)
}

func (r *foodTruckRepo) Count(ctx context.Context) (int, error) {
	b := r.db.builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(foodTrucksTable)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, dbErr("count food trucks", err)
	}
	return n, nil
}

func (r *foodTruckRepo) ReplaceAndDelete(ctx context.Context, merged *entity.FoodTruck, deleteID uuid.UUID) error {
	if merged.ID == deleteID {
		return common.NewAppError("MERGE_ERROR", "cannot merge a record into itself", common.ErrInvalidInput)
	}
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.update(ctx, tx, merged); err != nil {
			return err
		}
		return r.delete(ctx, tx, deleteID)
	})
	if err != nil {
		r.log.Error("food_truck merge write failed", "target_id", merged.ID, "source_id", deleteID, "err", err)
		return err
	}
	r.log.Info("food_truck merged", "target_id", merged.ID, "source_id", deleteID)
	return nil
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrDatabase, err)
}

func (r *foodTruckRepo) queryTrucks(ctx context.Context, sel *entsql.Selector) ([]*entity.FoodTruck, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("query food trucks", err)
	}
	defer rows.Close()
	var out []*entity.FoodTruck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, dbErr("scan food truck", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query food trucks", err)
	}
	return out, nil
}
