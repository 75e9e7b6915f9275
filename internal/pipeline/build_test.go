package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

func TestDenylist(t *testing.T) {
	d := NewDenylist("Truck-Aggregator.example")
	tests := []struct {
		url         string
		allowSocial bool
		denied      bool
	}{
		{"https://tacobus.example/", false, false},
		{"https://www.facebook.com/tacobus", false, true},
		{"https://www.facebook.com/tacobus", true, false},
		{"https://m.yelp.com/biz/taco-bus", true, true},
		{"https://parks.charleston.gov/events", false, true},
		{"https://tacobus.example/menu.pdf", false, true},
		{"https://tacobus.example/account/login", false, true},
		{"https://truck-aggregator.example/list", false, true},
		{"https://notyelp.com/", false, false},
		{"not a url", false, true},
	}
	for _, tt := range tests {
		reason, denied := d.Check(tt.url, tt.allowSocial)
		if denied != tt.denied {
			t.Errorf("Check(%q, %v) = %v (%q), want %v", tt.url, tt.allowSocial, denied, reason, tt.denied)
		}
		if denied && reason == "" {
			t.Errorf("Check(%q) denied without a reason", tt.url)
		}
	}
}

func TestResolveName(t *testing.T) {
	rich := &entity.ExtractedFoodTruckDetails{
		ContactInfo: entity.ContactInfo{Phone: "843-555-0100"},
		SocialMedia: entity.SocialMedia{Instagram: "@tacobus"},
	}
	name, placeholder, err := resolveName(rich, "https://www.TacoBus.example/about")
	if err != nil || !placeholder || name != "[Unverified] tacobus.example" {
		t.Fatalf("resolveName = %q, %v, %v", name, placeholder, err)
	}

	rich.Name = "  Taco Bus "
	if name, placeholder, _ := resolveName(rich, ""); name != "Taco Bus" || placeholder {
		t.Fatalf("real name = %q, %v", name, placeholder)
	}

	thin := &entity.ExtractedFoodTruckDetails{Name: "Unknown Food Truck", ContactInfo: entity.ContactInfo{Phone: "1"}}
	_, _, err = resolveName(thin, "https://tacobus.example")
	if !errors.Is(err, common.ErrValidation) || common.IsRetryable(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestPopulatedFieldsIgnoresClosedHours(t *testing.T) {
	c := &entity.ExtractedFoodTruckDetails{
		OperatingHours: entity.OperatingHours{"monday": {Closed: true}},
		Menu:           []entity.MenuCategory{{Name: "Tacos"}},
	}
	if n := populatedFields(c); n != 1 {
		t.Fatalf("populatedFields = %d, want 1", n)
	}
}

func TestBuildLocation(t *testing.T) {
	lat := 32.78
	tests := []struct {
		name string
		in   *entity.Location
		want string
	}{
		{"joined", &entity.Location{Address: "1 King St", City: "Charleston", State: "SC", ZipCode: "29401"}, "1 King St, Charleston, SC, 29401"},
		{"city already in address", &entity.Location{Address: "1 King St, Charleston", City: "Charleston"}, "1 King St, Charleston"},
		{"raw text fallback", &entity.Location{RawText: "behind the brewery"}, "behind the brewery"},
		{"coordinates only", &entity.Location{Lat: &lat, Lng: &lat}, ""},
	}
	for _, tt := range tests {
		got := buildLocation(tt.in, now)
		if got == nil || got.Address != tt.want {
			t.Errorf("%s: address = %+v, want %q", tt.name, got, tt.want)
		}
	}
	if got := buildLocation(&entity.Location{}, now); got != nil {
		t.Errorf("empty location = %+v, want nil", got)
	}
}

func TestBuildHoursAndMenuDefaults(t *testing.T) {
	hours := buildHours(entity.OperatingHours{"friday": {Open: "11:00", Close: "21:00"}})
	want := entity.OperatingHours{
		"monday":    {Closed: true},
		"tuesday":   {Closed: true},
		"wednesday": {Closed: true},
		"thursday":  {Closed: true},
		"friday":    {Open: "11:00", Close: "21:00"},
		"saturday":  {Closed: true},
		"sunday":    {Closed: true},
	}
	if diff := cmp.Diff(want, hours); diff != "" {
		t.Errorf("hours mismatch (-want +got):\n%s", diff)
	}
	if buildHours(nil) != nil {
		t.Errorf("unknown hours should stay nil")
	}

	menu := buildMenu([]entity.MenuCategory{{Items: []entity.MenuItem{{Name: " "}, {Name: "Elote"}}}})
	wantMenu := []entity.MenuCategory{{
		Name:  defaultCategoryName,
		Items: []entity.MenuItem{{Name: defaultItemName}, {Name: "Elote"}},
	}}
	if diff := cmp.Diff(wantMenu, menu); diff != "" {
		t.Errorf("menu mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTruckSourceURLs(t *testing.T) {
	c := &entity.ExtractedFoodTruckDetails{Name: "Taco Bus", SourceURLs: []string{"https://tacobus.example/"}}
	got := buildTruck(c, "Taco Bus", false, "https://tacobus.example/", now)
	if diff := cmp.Diff([]string{"https://tacobus.example/"}, got.SourceURLs); diff != "" {
		t.Errorf("source urls (-want +got):\n%s", diff)
	}
	if got.VerificationStatus != "pending" || !got.IsActive || got.LastScrapedAt == nil {
		t.Errorf("truck = %+v", got)
	}
}
