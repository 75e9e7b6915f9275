package cleanup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/quality"
)

// placeholderPatterns match mock or stand-in values left by scrapers and
// seed data.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bundefined\b`),
	regexp.MustCompile(`(?i)\bplaceholder\b`),
	regexp.MustCompile(`(?i)\bexample\.(?:com|org|net)\b`),
	regexp.MustCompile(`(?i)\btest\s*truck\b`),
	regexp.MustCompile(`(?i)lorem\s*ipsum`),
	regexp.MustCompile(`(?i)^\s*(?:n/?a|null|none|tbd)\s*$`),
	regexp.MustCompile(`^[0\s().+-]+$`),
}

// IsPlaceholder reports whether s looks like mock data.
func IsPlaceholder(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, p := range placeholderPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// clone copies the parts of t the fixers write to.
func clone(t *entity.FoodTruck) *entity.FoodTruck {
	c := *t
	if t.CurrentLocation != nil {
		loc := *t.CurrentLocation
		c.CurrentLocation = &loc
	}
	return &c
}

// stripPlaceholders clears placeholder values from optional text fields and
// flags placeholder names. It returns nil when nothing changed.
func stripPlaceholders(t *entity.FoodTruck) *entity.FoodTruck {
	c := clone(t)
	changed := false
	drop := func(s *string) {
		if IsPlaceholder(*s) {
			*s = ""
			changed = true
		}
	}
	drop(&c.Description)
	drop(&c.PriceRange)
	drop(&c.ContactInfo.Phone)
	drop(&c.ContactInfo.Email)
	drop(&c.ContactInfo.Website)
	if c.CurrentLocation != nil {
		drop(&c.CurrentLocation.Address)
	}
	if (constants.IsPlaceholderName(c.Name) || IsPlaceholder(c.Name)) &&
		c.VerificationStatus != string(constants.VerificationFlagged) {
		c.VerificationStatus = string(constants.VerificationFlagged)
		changed = true
	}
	if !changed {
		return nil
	}
	return c
}

// FormatPhone renders US numbers as (xxx) xxx-xxxx, or +1 (xxx) xxx-xxxx with
// a country code. Other inputs are returned unchanged.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	switch {
	case len(d) == 10:
		return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", d[1:4], d[4:7], d[7:])
	}
	return phone
}

func normalizePhone(t *entity.FoodTruck) *entity.FoodTruck {
	if t.ContactInfo.Phone == "" {
		return nil
	}
	formatted := FormatPhone(t.ContactInfo.Phone)
	if formatted == t.ContactInfo.Phone {
		return nil
	}
	c := clone(t)
	c.ContactInfo.Phone = formatted
	return c
}

// fixCoordinates clears (0,0), half-set and out-of-range coordinates, and
// flags valid ones outside the service region.
func fixCoordinates(t *entity.FoodTruck, region common.RegionBounds) *entity.FoodTruck {
	loc := t.CurrentLocation
	if loc == nil || (loc.Lat == nil && loc.Lng == nil) {
		return nil
	}
	c := clone(t)
	if !loc.HasCoordinates() {
		c.CurrentLocation.Lat, c.CurrentLocation.Lng = nil, nil
		return c
	}
	lat, lng := *loc.Lat, *loc.Lng
	if !quality.ValidCoordinates(lat, lng) {
		c.CurrentLocation.Lat, c.CurrentLocation.Lng = nil, nil
		return c
	}
	if !region.Contains(lat, lng) && t.VerificationStatus == string(constants.VerificationPending) {
		c.VerificationStatus = string(constants.VerificationFlagged)
		return c
	}
	return nil
}
