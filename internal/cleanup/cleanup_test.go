package cleanup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/dedup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/trucks"
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func fp(f float64) *float64 { return &f }

func TestFormatPhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"843.555.0100", "(843) 555-0100"},
		{"(843) 555-0100", "(843) 555-0100"},
		{"1-843-555-0100", "+1 (843) 555-0100"},
		{"+1 843 555 0100", "+1 (843) 555-0100"},
		{"555-0100", "555-0100"},
		{"2-843-555-0100", "2-843-555-0100"},
	}
	for _, tt := range tests {
		if got := FormatPhone(tt.in); got != tt.want {
			t.Errorf("FormatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Lorem ipsum dolor sit amet", true},
		{"https://example.com/truck", true},
		{"N/A", true},
		{"na", true},
		{"null", true},
		{"000-000-0000", true},
		{"undefined", true},
		{"Test Truck", true},
		{"", false},
		{"Banana pudding", false},
		{"Best tacos in Charleston", false},
		{"https://tacobus.example", false},
		{"(843) 555-0100", false},
	}
	for _, tt := range tests {
		if got := IsPlaceholder(tt.in); got != tt.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFixCoordinates(t *testing.T) {
	region := common.DefaultRegion
	tests := []struct {
		name        string
		loc         *entity.Location
		wantCleared bool
		wantFlagged bool
		wantNil     bool
	}{
		{"zero pair", &entity.Location{Lat: fp(0), Lng: fp(0)}, true, false, false},
		{"out of range", &entity.Location{Lat: fp(132.8), Lng: fp(-79.9)}, true, false, false},
		{"half set", &entity.Location{Lat: fp(32.8)}, true, false, false},
		{"outside region", &entity.Location{Lat: fp(40.7), Lng: fp(-74.0)}, false, true, false},
		{"inside region", &entity.Location{Lat: fp(32.78), Lng: fp(-79.93)}, false, false, true},
		{"no coordinates", &entity.Location{Address: "1 King St"}, false, false, true},
	}
	for _, tt := range tests {
		in := &entity.FoodTruck{Name: "Taco Bus", CurrentLocation: tt.loc, VerificationStatus: "pending"}
		got := fixCoordinates(in, region)
		if tt.wantNil {
			if got != nil {
				t.Errorf("%s: got change %+v", tt.name, got.CurrentLocation)
			}
			continue
		}
		if got == nil {
			t.Fatalf("%s: no change", tt.name)
		}
		if cleared := got.CurrentLocation.Lat == nil && got.CurrentLocation.Lng == nil; cleared != tt.wantCleared {
			t.Errorf("%s: cleared = %v", tt.name, cleared)
		}
		if flagged := got.VerificationStatus == "flagged"; flagged != tt.wantFlagged {
			t.Errorf("%s: flagged = %v", tt.name, flagged)
		}
		if tt.wantCleared && in.CurrentLocation.Lat == nil {
			t.Errorf("%s: input mutated", tt.name)
		}
	}
}

func TestStripPlaceholders(t *testing.T) {
	in := &entity.FoodTruck{
		Name:               "Taco Bus",
		Description:        "Lorem ipsum",
		PriceRange:         "N/A",
		ContactInfo:        entity.ContactInfo{Phone: "(843) 555-0100", Website: "https://example.com"},
		VerificationStatus: "pending",
	}
	got := stripPlaceholders(in)
	want := &entity.FoodTruck{
		Name:               "Taco Bus",
		ContactInfo:        entity.ContactInfo{Phone: "(843) 555-0100"},
		VerificationStatus: "pending",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if in.Description == "" {
		t.Errorf("input mutated")
	}
	if stripPlaceholders(got) != nil {
		t.Errorf("second pass should change nothing")
	}

	flagged := stripPlaceholders(&entity.FoodTruck{Name: "[Unverified] foo.example", VerificationStatus: "pending"})
	if flagged == nil || flagged.VerificationStatus != "flagged" || flagged.Name != "[Unverified] foo.example" {
		t.Errorf("placeholder name = %+v", flagged)
	}
}

func TestSurvivor(t *testing.T) {
	older := &entity.FoodTruck{ID: uuid.New(), DataQualityScore: 0.5, CreatedAt: now.Add(-time.Hour)}
	newer := &entity.FoodTruck{ID: uuid.New(), DataQualityScore: 0.5, CreatedAt: now}
	better := &entity.FoodTruck{ID: uuid.New(), DataQualityScore: 0.9, CreatedAt: now}

	if keep, drop := Survivor(older, better); keep != better || drop != older {
		t.Errorf("higher score should survive")
	}
	if keep, _ := Survivor(newer, older); keep != older {
		t.Errorf("older record should win a tie")
	}
	twinA := &entity.FoodTruck{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: now}
	twinB := &entity.FoodTruck{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: now}
	if keep, _ := Survivor(twinB, twinA); keep != twinA {
		t.Errorf("full tie should be decided by id")
	}
}

func TestParseOperations(t *testing.T) {
	ops, err := ParseOperations(nil)
	if err != nil || len(ops) != len(AllOperations) {
		t.Fatalf("default = %v, %v", ops, err)
	}
	ops, err = ParseOperations([]string{" Normalize_Phone ", "normalize_phone", "merge_duplicates"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]OperationType{NormalizePhone, MergeDuplicates}, ops); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
	if _, err := ParseOperations([]string{"vacuum"}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("unknown op err = %v", err)
	}
}

type fixture struct {
	svc    *Service
	trucks *trucks.Service
	repo   repository.FoodTruckRepository
	ids    map[string]uuid.UUID
}

// newFixture seeds two duplicates (a, b), an out-of-region truck (c), a
// placeholder-named truck (d) and a truck with a stale score (e).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "cleanup.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, nil) })
	if err := repository.RunMigrations(db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.NewFoodTruckRepository(db, nil)
	truckSvc := trucks.NewService(repo, nil, func() time.Time { return now }, nil)
	f := &fixture{
		svc:    NewService(truckSvc, dedup.NewService(truckSvc, nil), common.DefaultRegion, metrics.New(), nil),
		trucks: truckSvc,
		repo:   repo,
		ids:    map[string]uuid.UUID{},
	}

	seed := map[string]*entity.FoodTruck{
		"a": {
			Name:            "Taco Bus",
			Description:     "Lorem ipsum dolor",
			CurrentLocation: &entity.Location{Lat: fp(0), Lng: fp(0), Address: "1 King St", City: "Charleston"},
			ContactInfo:     entity.ContactInfo{Phone: "843.555.0100"},
			CreatedAt:       now.Add(-48 * time.Hour),
		},
		"b": {
			Name:            "Taco Bus",
			CurrentLocation: &entity.Location{Address: "1 King St", City: "Charleston"},
			ContactInfo:     entity.ContactInfo{Phone: "(843) 555-0100"},
			CreatedAt:       now.Add(-24 * time.Hour),
		},
		"c": {
			Name:            "Pho Real",
			CurrentLocation: &entity.Location{Lat: fp(40.7), Lng: fp(-74.0), Address: "5 Broadway"},
		},
		"d": {
			Name:        "[Unverified] foo.example",
			PriceRange:  "N/A",
			ContactInfo: entity.ContactInfo{Phone: "+1 843 555 0111"},
		},
		"e": {
			Name:            "Waffle Wagon",
			CurrentLocation: &entity.Location{Address: "9 Meeting St", City: "Charleston"},
		},
	}
	for key, truck := range seed {
		stored, err := truckSvc.Insert(ctx, truck)
		if err != nil {
			t.Fatalf("insert %s: %v", key, err)
		}
		f.ids[key] = stored.ID
	}
	// e's score goes stale behind the service's back
	e, _ := repo.GetByID(ctx, f.ids["e"])
	e.DataQualityScore = 0.01
	if err := repo.Update(ctx, e); err != nil {
		t.Fatalf("stale score: %v", err)
	}
	return f
}

func (f *fixture) get(t *testing.T, key string) *entity.FoodTruck {
	t.Helper()
	got, err := f.trucks.GetByID(context.Background(), f.ids[key])
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return got
}

func counts(r *Result) map[OperationType]int {
	out := map[OperationType]int{}
	for _, op := range r.Operations {
		out[op.Type] = op.SuccessCount
	}
	return out
}

func TestRunFullCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.RunFullCleanup(ctx, Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("RunFullCleanup: %v", err)
	}
	want := map[OperationType]int{
		RemovePlaceholders:  2,
		NormalizePhone:      2,
		FixCoordinates:      2,
		UpdateQualityScores: 1,
		MergeDuplicates:     1,
	}
	if diff := cmp.Diff(want, counts(res)); diff != "" {
		t.Errorf("success counts (-want +got):\n%s", diff)
	}
	wantSummary := Summary{TrucksImproved: 4, DuplicatesRemoved: 1, PlaceholdersRemoved: 2, QualityScoreImprovement: 1}
	if diff := cmp.Diff(wantSummary, res.Summary); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
	if res.DryRun {
		t.Errorf("DryRun = true")
	}

	n, err := f.trucks.Count(ctx)
	if err != nil || n != 4 {
		t.Fatalf("count = %d, %v; want 4", n, err)
	}

	// one of the twins survives with the normalized phone
	var survivor *entity.FoodTruck
	for _, key := range []string{"a", "b"} {
		if got, err := f.trucks.GetByID(ctx, f.ids[key]); err == nil {
			survivor = got
		} else if !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("get %s: %v", key, err)
		}
	}
	if survivor == nil || survivor.ContactInfo.Phone != "(843) 555-0100" || survivor.Description != "" {
		t.Fatalf("survivor = %+v", survivor)
	}
	if survivor.CurrentLocation.HasCoordinates() {
		t.Errorf("(0,0) survived: %+v", survivor.CurrentLocation)
	}

	if c := f.get(t, "c"); c.VerificationStatus != string(constants.VerificationFlagged) || !c.CurrentLocation.HasCoordinates() {
		t.Errorf("c = %+v", c)
	}
	if d := f.get(t, "d"); d.VerificationStatus != string(constants.VerificationFlagged) || d.PriceRange != "" || d.ContactInfo.Phone != "+1 (843) 555-0111" {
		t.Errorf("d = %+v", d)
	}
	if e := f.get(t, "e"); e.DataQualityScore <= 0.01 {
		t.Errorf("e score = %v", e.DataQualityScore)
	}

	// a second pass finds nothing left to do
	again, err := f.svc.RunFullCleanup(ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalProcessed != 4 || again.Summary.TrucksImproved != 0 {
		t.Errorf("second pass = %+v", again)
	}
}

func TestRunFullCleanupDryRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := f.get(t, "a")

	res, err := f.svc.RunFullCleanup(ctx, Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun || res.TotalProcessed != 5 {
		t.Fatalf("result = %+v", res)
	}
	if got := counts(res)[MergeDuplicates]; got != 1 {
		t.Errorf("merge count = %d, want 1", got)
	}
	if got := counts(res)[NormalizePhone]; got != 2 {
		t.Errorf("phone count = %d, want 2", got)
	}

	n, _ := f.trucks.Count(ctx)
	if n != 5 {
		t.Fatalf("dry run changed the record count to %d", n)
	}
	if diff := cmp.Diff(before, f.get(t, "a")); diff != "" {
		t.Errorf("dry run wrote a (-before +after):\n%s", diff)
	}
}

func TestRunFullCleanupDryRunMatchesRealRun(t *testing.T) {
	ctx := context.Background()
	preview, err := newFixture(t).svc.RunFullCleanup(ctx, Options{BatchSize: 2, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	applied, err := newFixture(t).svc.RunFullCleanup(ctx, Options{BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(counts(applied), counts(preview)); diff != "" {
		t.Errorf("dry run counts differ from the real run (-real +dry):\n%s", diff)
	}
	if diff := cmp.Diff(applied.Summary, preview.Summary); diff != "" {
		t.Errorf("dry run summary differs (-real +dry):\n%s", diff)
	}
	if got := counts(preview)[UpdateQualityScores]; got != 1 {
		t.Errorf("rescored in dry run = %d, want 1", got)
	}
}

func TestRunFullCleanupSelectedOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.RunFullCleanup(ctx, Options{Operations: []OperationType{NormalizePhone}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Operations) != 1 || res.Operations[0].Type != NormalizePhone {
		t.Fatalf("operations = %+v", res.Operations)
	}
	if n, _ := f.trucks.Count(ctx); n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
	if a := f.get(t, "a"); a.ContactInfo.Phone != "(843) 555-0100" || a.Description == "" {
		t.Errorf("a = %+v", a)
	}
}

func TestRunFullCleanupStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.RunFullCleanup(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.TotalProcessed != 0 {
		t.Fatalf("result = %+v", res)
	}
}
