package quality

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func fp(f float64) *float64 { return &f }

func newAssessor() *Assessor { return NewAssessor(func() time.Time { return now }) }

func completeTruck() *entity.FoodTruck {
	scraped := now.Add(-24 * time.Hour)
	return &entity.FoodTruck{
		Name:            "Taco Bus",
		Description:     "Street tacos",
		CuisineType:     []string{"Mexican"},
		PriceRange:      "$",
		CurrentLocation: &entity.Location{Lat: fp(32.78), Lng: fp(-79.93), Address: "123 King St"},
		ContactInfo:     entity.ContactInfo{Phone: "(843) 555-0100", Email: "hola@tacobus.example", Website: "https://tacobus.example"},
		OperatingHours:  entity.OperatingHours{"monday": {Open: "11:00", Close: "14:00"}},
		Menu:            []entity.MenuCategory{{Name: "Tacos", Items: []entity.MenuItem{{Name: "Al Pastor", Price: fp(4)}}}},
		LastScrapedAt:   &scraped,
	}
}

func TestAssessEmptyRecord(t *testing.T) {
	got := newAssessor().Assess(&entity.FoodTruck{})
	if got.Score >= 0.3 {
		t.Fatalf("empty record scored %.3f", got.Score)
	}
	for _, want := range []string{IssueMissingName, IssueMissingLocation, IssueMissingMenu} {
		if !slices.Contains(got.Issues, want) {
			t.Fatalf("missing issue %q in %v", want, got.Issues)
		}
	}
	if got.Category() != Low {
		t.Fatalf("unexpected category %s", got.Category())
	}
}

func TestAssessCompleteRecord(t *testing.T) {
	got := newAssessor().Assess(completeTruck())
	if math.Abs(got.Score-1) > 1e-9 {
		t.Fatalf("complete record scored %.3f: %+v", got.Score, got.Breakdown)
	}
	if len(got.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", got.Issues)
	}
}

func TestAssessIssues(t *testing.T) {
	tr := completeTruck()
	old := now.Add(-10 * 24 * time.Hour)
	tr.LastScrapedAt = &old
	tr.CurrentLocation = &entity.Location{Lat: fp(0), Lng: fp(0)}
	tr.ContactInfo = entity.ContactInfo{Phone: "555-01", Email: "not-an-email"}
	tr.Menu = []entity.MenuCategory{
		{Name: "", Items: []entity.MenuItem{{Name: "Churro"}}},
		{Name: "Drinks"},
		{Name: "Tacos", Items: []entity.MenuItem{{Name: ""}, {Name: "Fish", Price: fp(-2)}}},
	}

	got := newAssessor().Assess(tr)
	want := []string{
		IssueInvalidGPS,
		IssueInvalidPhone,
		IssueInvalidEmail,
		"Menu category 1 missing name",
		`Menu category "Drinks" has no items`,
		`Menu item 1 in category "Tacos" missing name`,
		`Menu item "Fish" in category "Tacos" has negative price`,
		IssueStale,
	}
	for _, w := range want {
		if !slices.Contains(got.Issues, w) {
			t.Fatalf("missing issue %q in %v", w, got.Issues)
		}
	}
	if slices.Contains(got.Issues, IssueMissingLocation) {
		t.Fatalf("invalid coordinates should not also report missing location: %v", got.Issues)
	}
	if got.Breakdown.Menu != 1.0/3 {
		t.Fatalf("unexpected menu score %.3f", got.Breakdown.Menu)
	}
}

func TestScoreIsBounded(t *testing.T) {
	a := newAssessor()
	future := now.Add(48 * time.Hour)
	records := []*entity.FoodTruck{
		nil,
		{},
		completeTruck(),
		{Name: "x", LastScrapedAt: &future, CurrentLocation: &entity.Location{Lat: fp(500), Lng: fp(-500)}},
		{Menu: []entity.MenuCategory{{}, {}}, OperatingHours: entity.OperatingHours{"monday": {Closed: true}}},
	}
	for i, r := range records {
		s := a.Assess(r).Score
		if s < 0 || s > 1 || math.IsNaN(s) {
			t.Fatalf("record %d scored %v", i, s)
		}
	}
}

func TestAddingValidFieldsNeverLowersScore(t *testing.T) {
	a := newAssessor()
	base := &entity.FoodTruck{Name: "Taco Bus"}
	steps := []func(*entity.FoodTruck){
		func(t *entity.FoodTruck) { t.ContactInfo.Phone = "843-555-0100" },
		func(t *entity.FoodTruck) { t.Description = "Tacos" },
		func(t *entity.FoodTruck) { t.CurrentLocation = &entity.Location{Address: "123 King St"} },
		func(t *entity.FoodTruck) { t.CurrentLocation.Lat, t.CurrentLocation.Lng = fp(32.7), fp(-79.9) },
		func(t *entity.FoodTruck) { t.OperatingHours = entity.OperatingHours{"friday": {Open: "11", Close: "2"}} },
		func(t *entity.FoodTruck) {
			t.Menu = []entity.MenuCategory{{Name: "Tacos", Items: []entity.MenuItem{{Name: "Al Pastor"}}}}
		},
		func(t *entity.FoodTruck) { t.ContactInfo.Email = "hola@tacobus.example" },
		func(t *entity.FoodTruck) { ts := now; t.LastScrapedAt = &ts },
	}
	prev := a.Assess(base).Score
	for i, step := range steps {
		step(base)
		s := a.Assess(base).Score
		if s < prev {
			t.Fatalf("step %d lowered score from %.3f to %.3f", i, prev, s)
		}
		prev = s
	}
}

func TestCategorize(t *testing.T) {
	cases := map[float64]Category{1: High, 0.8: High, 0.79: Medium, 0.6: Medium, 0.59: Low, 0: Low}
	for score, want := range cases {
		if got := Categorize(score); got != want {
			t.Fatalf("Categorize(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{"(843) 555-0100", "+1 843 555 0100", "843.555.0100", "8435550100"}
	invalid := []string{"555-0100", "call us", "843-555-01ab", "(((((((((())"}
	for _, p := range valid {
		if !ValidPhone(p) {
			t.Fatalf("%q should be valid", p)
		}
	}
	for _, p := range invalid {
		if ValidPhone(p) {
			t.Fatalf("%q should be invalid", p)
		}
	}
}
