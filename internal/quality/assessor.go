package quality

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

// Dimension weights. They sum to 1.
const (
	WeightBasic    = 0.25
	WeightLocation = 0.25
	WeightContact  = 0.15
	WeightHours    = 0.10
	WeightMenu     = 0.15
	WeightRecency  = 0.10
)

// Category cutoffs.
const (
	HighThreshold   = 0.8
	MediumThreshold = 0.6
)

// Recency windows.
const (
	FreshWindow = 3 * 24 * time.Hour
	StaleWindow = 7 * 24 * time.Hour
)

const absentScore = 0.5 // neutral score for optional data nobody supplied

var (
	rePhone = regexp.MustCompile(`^\+?[\d\s\-().]{10,}$`)
	reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[a-zA-Z]{2,}$`)
)

// Issue strings shared with callers that filter on them.
const (
	IssueMissingName     = "Missing or empty truck name"
	IssueMissingLocation = "Missing current location data"
	IssueInvalidGPS      = "Invalid GPS coordinates"
	IssueInvalidPhone    = "Invalid phone number format"
	IssueInvalidEmail    = "Invalid email format"
	IssueMissingMenu     = "Missing menu information"
	IssueStale           = "Data is more than 7 days old"
)

// Breakdown holds the per-dimension scores, each in [0,1].
type Breakdown struct {
	Basic    float64 `json:"basic"`
	Location float64 `json:"location"`
	Contact  float64 `json:"contact"`
	Hours    float64 `json:"hours"`
	Menu     float64 `json:"menu"`
	Recency  float64 `json:"recency"`
}

// Assessment is the result of scoring one record.
type Assessment struct {
	Score     float64   `json:"score"`
	Issues    []string  `json:"issues"`
	Breakdown Breakdown `json:"breakdown"`
}

// Category returns the assessment's quality band.
func (a Assessment) Category() Category { return Categorize(a.Score) }

// Category is a coarse quality band.
type Category string

const (
	High   Category = "High"
	Medium Category = "Medium"
	Low    Category = "Low"
)

// Categorize maps a score onto its band.
func Categorize(score float64) Category {
	switch {
	case score >= HighThreshold:
		return High
	case score >= MediumThreshold:
		return Medium
	}
	return Low
}

// Assessor scores food truck records. It is stateless apart from the clock.
type Assessor struct {
	now func() time.Time
}

func NewAssessor(now func() time.Time) *Assessor {
	if now == nil {
		now = time.Now
	}
	return &Assessor{now: now}
}

// Assess scores t. A nil record scores 0.
func (a *Assessor) Assess(t *entity.FoodTruck) Assessment {
	if t == nil {
		return Assessment{Issues: []string{IssueMissingName, IssueMissingLocation, IssueMissingMenu}}
	}
	var issues []string
	add := func(s ...string) { issues = append(issues, s...) }

	var b Breakdown
	b.Basic = assessBasic(t, add)
	b.Location = assessLocation(t.CurrentLocation, add)
	b.Contact = assessContact(t.ContactInfo, add)
	b.Hours = assessHours(t.OperatingHours)
	b.Menu = assessMenu(t.Menu, add)
	b.Recency = assessRecency(t.LastScrapedAt, a.now(), add)

	score := b.Basic*WeightBasic +
		b.Location*WeightLocation +
		b.Contact*WeightContact +
		b.Hours*WeightHours +
		b.Menu*WeightMenu +
		b.Recency*WeightRecency
	if issues == nil {
		issues = []string{}
	}
	return Assessment{Score: clamp(score), Issues: issues, Breakdown: b}
}

func assessBasic(t *entity.FoodTruck, add func(...string)) float64 {
	if strings.TrimSpace(t.Name) == "" {
		add(IssueMissingName)
		return 0
	}
	score := 0.7
	if strings.TrimSpace(t.Description) != "" {
		score += 0.15
	}
	if len(t.CuisineType) > 0 {
		score += 0.15
	}
	if t.PriceRange != "" && !slices.Contains(constants.PriceRanges, t.PriceRange) {
		add(fmt.Sprintf("Invalid price range %q", t.PriceRange))
	}
	return clamp(score)
}

// ValidCoordinates reports whether the pair is in range and not the (0,0)
// placeholder.
func ValidCoordinates(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func assessLocation(loc *entity.Location, add func(...string)) float64 {
	hasAddress := loc != nil && strings.TrimSpace(loc.Address) != ""
	if loc.HasCoordinates() {
		if ValidCoordinates(*loc.Lat, *loc.Lng) {
			if hasAddress {
				return 1
			}
			return 0.7
		}
		add(IssueInvalidGPS)
	} else if !hasAddress {
		add(IssueMissingLocation)
		return 0
	}
	if hasAddress {
		return 0.6
	}
	return 0
}

// ValidPhone reports whether s looks like a phone number with at least ten digits.
func ValidPhone(s string) bool {
	return rePhone.MatchString(s) && countDigits(s) >= 10
}

// ValidEmail reports whether s has a user@domain.tld shape.
func ValidEmail(s string) bool { return reEmail.MatchString(s) }

func validWebsite(s string) bool {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	return err == nil && strings.Contains(u.Host, ".")
}

func assessContact(c entity.ContactInfo, add func(...string)) float64 {
	var present, valid int
	if p := strings.TrimSpace(c.Phone); p != "" {
		present++
		if ValidPhone(p) {
			valid++
		} else {
			add(IssueInvalidPhone)
		}
	}
	if e := strings.TrimSpace(c.Email); e != "" {
		present++
		if ValidEmail(e) {
			valid++
		} else {
			add(IssueInvalidEmail)
		}
	}
	if w := strings.TrimSpace(c.Website); w != "" {
		present++
		if validWebsite(w) {
			valid++
		} else {
			add("Invalid website URL")
		}
	}
	if present == 0 {
		return absentScore
	}
	return float64(valid) / float64(present)
}

func assessHours(h entity.OperatingHours) float64 {
	if len(h) == 0 {
		return 0
	}
	for _, day := range h {
		if day.IsOpen() {
			return 1
		}
	}
	return 0.3
}

func assessMenu(menu []entity.MenuCategory, add func(...string)) float64 {
	if len(menu) == 0 {
		add(IssueMissingMenu)
		return 0
	}
	var total, valid int
	for ci, cat := range menu {
		catName := strings.TrimSpace(cat.Name)
		if catName == "" {
			add(fmt.Sprintf("Menu category %d missing name", ci+1))
			catName = fmt.Sprintf("%d", ci+1)
		}
		if len(cat.Items) == 0 {
			add(fmt.Sprintf("Menu category %q has no items", catName))
		}
		for ii, item := range cat.Items {
			total++
			ok := true
			name := strings.TrimSpace(item.Name)
			if name == "" {
				add(fmt.Sprintf("Menu item %d in category %q missing name", ii+1, catName))
				ok = false
				name = fmt.Sprintf("%d", ii+1)
			}
			if item.Price != nil && *item.Price < 0 {
				add(fmt.Sprintf("Menu item %q in category %q has negative price", name, catName))
				ok = false
			}
			if ok {
				valid++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(valid) / float64(total)
}

func assessRecency(scraped *time.Time, now time.Time, add func(...string)) float64 {
	if scraped == nil || scraped.IsZero() {
		return absentScore
	}
	age := now.Sub(*scraped)
	switch {
	case age <= FreshWindow:
		return 1
	case age <= StaleWindow:
		return 0.75
	}
	add(IssueStale)
	return 0.4
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
