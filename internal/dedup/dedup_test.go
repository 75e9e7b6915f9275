package dedup

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
)

func fp(f float64) *float64 { return &f }

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Page's Okra Grill Food Truck", "page's okra grill"},
		{"PAGE’S OKRA GRILL", "page's okra grill"},
		{"Mobile Kitchen: Bao Bros!", "bao bros"},
		{"Food Trucks of Charleston", "of charleston"},
		{"The Food Truck Food Truck", "the"},
		{"Seafood Truck Co.", "seafood truck co"},
		{"Tacos & Co -", "tacos & co"},
		{"ＢＡＯ　ＢＲＯＳ Food Cart", "bao bros"},
		{"Food Truck", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"Page's Okra Grill Food Truck",
		"  food truck food truck  ",
		"’’Food ’ Cart'",
		"- & -",
		"Café Olé Street Food",
		"ＦＯＯＤ　ＴＲＵＣＫ Ｘ",
		"Mobile  Kitchen Mobile Kitchen & Food Trailer",
		"Ǆemal's Grill",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Errorf("NormalizeName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeNameIdempotentRandom(t *testing.T) {
	alphabet := []rune("abceok .-&'’!:\u1100\u1161\u11a8가\u0302\u0301éＡﬁǄ\u3000")
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20000; i++ {
		r := make([]rune, 1+rng.Intn(10))
		for j := range r {
			r[j] = alphabet[rng.Intn(len(alphabet))]
		}
		in := string(r)
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Fatalf("NormalizeName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	for _, in := range []string{"ee\u1100.\u1161bct", "eoc\u1100\u0302\u1161k"} {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Errorf("NormalizeName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestStringSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"suffix stripped", "Page's Okra Grill Food Truck", "Page's Okra Grill", 1},
		{"substring", "Taco Bus", "Taco Bus Charleston", 0.8 + 0.15*8/19},
		{"edit distance", "kitten", "sitting", 1 - 3.0/7},
		{"empty", "", "Taco Bus", 0},
		{"generic only", "Food Truck", "Taco Bus", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StringSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("StringSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	if got := StringSimilarity("Burger King", "Pizza Hut"); got > 0.3 {
		t.Fatalf("unrelated names scored %v", got)
	}
}

func TestStringSimilaritySymmetricAndReflexive(t *testing.T) {
	names := []string{"Taco Bus", "Taco Bus Charleston", "Burger King", "Pizza Hut", "Page's Okra Grill Food Truck", "food truck", "Bao"}
	for _, a := range names {
		if got := StringSimilarity(a, a); got != 1 {
			t.Errorf("StringSimilarity(%q, itself) = %v", a, got)
		}
		for _, b := range names {
			if ab, ba := StringSimilarity(a, b), StringSimilarity(b, a); ab != ba {
				t.Errorf("asymmetric for %q/%q: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestSimilarityBreakdown(t *testing.T) {
	a := &entity.FoodTruck{
		Name:            "Taco Bus",
		CurrentLocation: &entity.Location{Lat: fp(32.7765), Lng: fp(-79.9311)},
		ContactInfo:     entity.ContactInfo{Phone: "+1 (843) 555-0100", Website: "https://www.tacobus.com/"},
	}
	b := &entity.FoodTruck{
		Name:            "Taco Bus Food Truck",
		CurrentLocation: &entity.Location{Lat: fp(32.8665), Lng: fp(-79.9311)},
		ContactInfo:     entity.ContactInfo{Phone: "843.555.0100", Website: "tacobus.com"},
	}
	got := Similarity(a, b)
	want := SimilarityResult{
		Overall:       (NameWeight + ContactWeight) / (NameWeight + LocationWeight + ContactWeight),
		Breakdown:     map[string]float64{FieldName: 1, FieldLocation: 0, FieldContact: 1},
		MatchedFields: []string{FieldName, FieldContact},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("Similarity mismatch (-want +got):\n%s", diff)
	}

	nameOnly := Similarity(&entity.FoodTruck{Name: "Taco Bus"}, &entity.FoodTruck{Name: "Taco Bus"})
	if nameOnly.Overall != 1 || len(nameOnly.Breakdown) != 1 {
		t.Fatalf("name-only similarity = %+v", nameOnly)
	}

	byAddress := Similarity(
		&entity.FoodTruck{Name: "Bao", CurrentLocation: &entity.Location{Address: "123 King St.", City: "Charleston"}},
		&entity.FoodTruck{Name: "Bao", CurrentLocation: &entity.Location{Address: "123 king st", City: "charleston"}},
	)
	if byAddress.Breakdown[FieldLocation] != 1 {
		t.Fatalf("address fallback = %+v", byAddress)
	}
}

func TestHaversine(t *testing.T) {
	d := HaversineKm(32.7765, -79.9311, 32.8665, -79.9311)
	if math.Abs(d-10.0) > 0.1 {
		t.Fatalf("distance = %v km", d)
	}
	s, ok := locationSimilarity(
		&entity.Location{Lat: fp(0), Lng: fp(0)},
		&entity.Location{Lat: fp(0.0005), Lng: fp(0)},
	)
	if !ok || s != 1 {
		t.Fatalf("55m apart scored %v", s)
	}
}

func TestPhoneKey(t *testing.T) {
	tests := map[string]string{
		"+1 (843) 555-0100": "8435550100",
		"843.555.0100":      "8435550100",
		"555-0100":          "5550100",
		"12345":             "",
		"":                  "",
	}
	for in, want := range tests {
		if got := PhoneKey(in); got != want {
			t.Errorf("PhoneKey(%q) = %q, want %q", in, got, want)
		}
	}
}

type memStore struct {
	trucks map[uuid.UUID]*entity.FoodTruck
	writes int
}

func newMemStore(trucks ...*entity.FoodTruck) *memStore {
	s := &memStore{trucks: map[uuid.UUID]*entity.FoodTruck{}}
	for _, t := range trucks {
		s.trucks[t.ID] = t
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*entity.FoodTruck, error) {
	t, ok := s.trucks[id]
	if !ok {
		return nil, common.WrapError(common.ErrNotFound, "food truck "+id.String())
	}
	c := *t
	return &c, nil
}

func (s *memStore) Candidates(_ context.Context, q repository.CandidateQuery) ([]*entity.FoodTruck, error) {
	var out []*entity.FoodTruck
	for id, t := range s.trucks {
		if id != q.ExcludeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, t *entity.FoodTruck) (*entity.FoodTruck, error) {
	if _, ok := s.trucks[t.ID]; !ok {
		return nil, common.ErrNotFound
	}
	s.writes++
	s.trucks[t.ID] = t
	return t, nil
}

func (s *memStore) ReplaceAndDelete(_ context.Context, merged *entity.FoodTruck, sourceID uuid.UUID) (*entity.FoodTruck, error) {
	if _, ok := s.trucks[sourceID]; !ok {
		return nil, common.ErrNotFound
	}
	s.writes++
	s.trucks[merged.ID] = merged
	delete(s.trucks, sourceID)
	return merged, nil
}

func TestCheckForDuplicates(t *testing.T) {
	ctx := context.Background()
	existing := &entity.FoodTruck{
		ID:              uuid.New(),
		Name:            "Page's Okra Grill",
		CurrentLocation: &entity.Location{Lat: fp(32.7765), Lng: fp(-79.9311)},
	}
	other := &entity.FoodTruck{ID: uuid.New(), Name: "Pizza Hut"}
	svc := NewService(newMemStore(existing, other), nil)

	res, err := svc.CheckForDuplicates(ctx, &entity.FoodTruck{Name: "Page's Okra Grill Food Truck"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || res.Action != ActionMerge || res.BestMatch.ID != existing.ID || res.Confidence != ConfidenceHigh {
		t.Fatalf("expected merge with %s, got %+v", existing.ID, res)
	}
	if res.Similarity.Overall < 0.9 {
		t.Fatalf("similarity = %v", res.Similarity.Overall)
	}

	res, err = svc.CheckForDuplicates(ctx, &entity.FoodTruck{Name: "Burger King"})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuplicate || res.Action != ActionCreate {
		t.Fatalf("unrelated name flagged: %+v", res)
	}

	// same name ten kilometres away lands in manual review
	res, err = svc.CheckForDuplicates(ctx, &entity.FoodTruck{
		Name:            "Page's Okra Grill",
		CurrentLocation: &entity.Location{Lat: fp(32.8665), Lng: fp(-79.9311)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuplicate || res.Action != ActionManualReview || math.Abs(res.Similarity.Overall-0.625) > 1e-9 {
		t.Fatalf("expected manual review, got %+v %+v", res, res.Similarity)
	}

	res, err = NewService(newMemStore(), nil).CheckForDuplicates(ctx, &entity.FoodTruck{Name: "Bao"})
	if err != nil || res.Action != ActionCreate || res.BestMatch != nil {
		t.Fatalf("empty pool: %+v %v", res, err)
	}
}

func TestMergeDuplicatesFillsFromSource(t *testing.T) {
	ctx := context.Background()
	target := &entity.FoodTruck{ID: uuid.New(), Name: "Page's Okra Grill"}
	source := &entity.FoodTruck{ID: uuid.New(), Name: "Page's Okra Grill Food Truck", ContactInfo: entity.ContactInfo{Phone: "843-555-0000"}}
	store := newMemStore(target, source)

	merged, err := NewService(store, nil).MergeDuplicates(ctx, target.ID, source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if merged.ID != target.ID || merged.Name != "Page's Okra Grill" || merged.ContactInfo.Phone != "843-555-0000" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if _, ok := store.trucks[source.ID]; ok {
		t.Fatal("source still stored after merge")
	}
	if store.trucks[target.ID].ContactInfo.Phone != "843-555-0000" {
		t.Fatal("target not rewritten")
	}
}

func TestMergeDuplicatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	target := &entity.FoodTruck{ID: uuid.New(), Name: "Taco Bus"}
	store := newMemStore(target)
	svc := NewService(store, nil)

	for _, ids := range [][2]uuid.UUID{{target.ID, uuid.New()}, {uuid.New(), target.ID}, {target.ID, target.ID}} {
		_, err := svc.MergeDuplicates(ctx, ids[0], ids[1])
		var me *MergeError
		if !errors.As(err, &me) {
			t.Fatalf("expected MergeError, got %v", err)
		}
		if common.IsRetryable(err) {
			t.Fatal("merge errors must not be retried")
		}
	}
	if store.writes != 0 || len(store.trucks) != 1 {
		t.Fatalf("failed merge wrote to the store: writes=%d", store.writes)
	}

	_, err := svc.MergeDuplicates(ctx, target.ID, uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("MergeError should unwrap to the fetch error, got %v", err)
	}
}

func TestMergeRecordsConservesData(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	target := &entity.FoodTruck{
		ID:              uuid.New(),
		Name:            "[Unverified] tacobus.com",
		Description:     "Tacos",
		CurrentLocation: &entity.Location{Lat: fp(32.7), Lng: fp(-79.9)},
		OperatingHours:  entity.OperatingHours{"monday": {Open: "11:00", Close: "14:00"}, "tuesday": {Closed: true}},
		Menu:            []entity.MenuCategory{{Name: "Tacos", Items: []entity.MenuItem{{Name: "Al Pastor"}}}},
		ContactInfo:     entity.ContactInfo{Phone: "(843) 555-0100"},
		SocialMedia:     entity.SocialMedia{Instagram: "tacobus"},
		CuisineType:     []string{"Mexican"},
		SourceURLs:      []string{"https://tacobus.com"},
		IsActive:        false,
		CreatedAt:       newer,
		UpdatedAt:       newer,
	}
	source := &entity.FoodTruck{
		ID:                 uuid.New(),
		Name:               "Taco Bus",
		Description:        "Charleston street tacos since 2012",
		CurrentLocation:    &entity.Location{Address: "123 King St", City: "Charleston"},
		ScheduledLocations: []entity.ScheduledLocation{{Date: "2026-04-02", Location: entity.Location{Address: "Marion Square"}}},
		OperatingHours:     entity.OperatingHours{"tuesday": {Open: "11:00", Close: "15:00"}, "friday": {Open: "17:00", Close: "22:00"}},
		Menu: []entity.MenuCategory{
			{Name: "tacos", Items: []entity.MenuItem{{Name: "al pastor", Price: fp(4.5)}, {Name: "Carnitas"}}},
			{Name: "Drinks", Items: []entity.MenuItem{{Name: "Horchata"}}},
		},
		ContactInfo:        entity.ContactInfo{Phone: "843-555-9999", Email: "hola@tacobus.com"},
		SocialMedia:        entity.SocialMedia{Facebook: "tacobuschs"},
		CuisineType:        []string{"mexican", "Tex-Mex"},
		Specialties:        []string{"birria"},
		SourceURLs:         []string{"https://instagram.com/tacobus"},
		PriceRange:         "$",
		VerificationStatus: "verified",
		IsActive:           true,
		LastScrapedAt:      &newer,
		CreatedAt:          older,
		UpdatedAt:          older,
	}
	targetCopy := *target

	m := MergeRecords(target, source)

	if diff := cmp.Diff(&targetCopy, target); diff != "" {
		t.Fatalf("MergeRecords mutated target:\n%s", diff)
	}
	want := &entity.FoodTruck{
		ID:          target.ID,
		Name:        "Taco Bus",
		Description: "Charleston street tacos since 2012",
		CurrentLocation: &entity.Location{
			Lat: fp(32.7), Lng: fp(-79.9), Address: "123 King St", City: "Charleston",
		},
		ScheduledLocations: source.ScheduledLocations,
		OperatingHours: entity.OperatingHours{
			"monday":  {Open: "11:00", Close: "14:00"},
			"tuesday": {Open: "11:00", Close: "15:00"},
			"friday":  {Open: "17:00", Close: "22:00"},
		},
		Menu: []entity.MenuCategory{
			{Name: "Tacos", Items: []entity.MenuItem{{Name: "Al Pastor", Price: fp(4.5)}, {Name: "Carnitas"}}},
			{Name: "Drinks", Items: []entity.MenuItem{{Name: "Horchata"}}},
		},
		ContactInfo:        entity.ContactInfo{Phone: "(843) 555-0100", Email: "hola@tacobus.com"},
		SocialMedia:        entity.SocialMedia{Instagram: "tacobus", Facebook: "tacobuschs"},
		CuisineType:        []string{"Mexican", "Tex-Mex"},
		Specialties:        []string{"birria"},
		SourceURLs:         []string{"https://tacobus.com", "https://instagram.com/tacobus"},
		PriceRange:         "$",
		VerificationStatus: "verified",
		IsActive:           true,
		LastScrapedAt:      &newer,
		CreatedAt:          older,
		UpdatedAt:          newer,
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("MergeRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeCandidate(t *testing.T) {
	ctx := context.Background()
	target := &entity.FoodTruck{ID: uuid.New(), Name: "Bao Bros", SourceURLs: []string{"https://baobros.com"}}
	store := newMemStore(target)
	svc := NewService(store, nil)

	merged, err := svc.MergeCandidate(ctx, target.ID, &entity.FoodTruck{Name: "Bao Bros Food Truck", SourceURLs: []string{"https://baobros.com/menu"}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"https://baobros.com", "https://baobros.com/menu"}, merged.SourceURLs); diff != "" {
		t.Fatalf("source urls (-want +got):\n%s", diff)
	}

	_, err = svc.MergeCandidate(ctx, uuid.New(), &entity.FoodTruck{Name: "Ghost"})
	var me *MergeError
	if !errors.As(err, &me) {
		t.Fatalf("expected MergeError, got %v", err)
	}
}
