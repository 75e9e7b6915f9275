package pipeline

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

const (
	// minFallbackFields is how many populated field groups a nameless
	// candidate needs to be kept under a placeholder name.
	minFallbackFields = 2

	defaultItemName     = "Unknown Item"
	defaultCategoryName = "Uncategorized"
)

// populatedFields counts the field groups among location, contact, menu,
// hours and social media that carry data.
func populatedFields(c *entity.ExtractedFoodTruckDetails) int {
	n := 0
	if !c.CurrentLocation.IsEmpty() {
		n++
	}
	if !c.ContactInfo.IsEmpty() {
		n++
	}
	if len(c.Menu) > 0 {
		n++
	}
	for _, h := range c.OperatingHours {
		if h.IsOpen() {
			n++
			break
		}
	}
	if !c.SocialMedia.IsEmpty() {
		n++
	}
	return n
}

// resolveName returns the name to store and whether it is a placeholder.
func resolveName(c *entity.ExtractedFoodTruckDetails, sourceURL string) (string, bool, error) {
	name := strings.TrimSpace(c.Name)
	if !constants.IsPlaceholderName(name) {
		return name, false, nil
	}
	if populatedFields(c) < minFallbackFields {
		return "", false, common.NewValidationError("name", c.Name, "insufficient data")
	}
	return constants.UnverifiedNamePrefix + " " + hostOf(sourceURL), true, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown source"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// buildTruck turns a candidate into an unsaved record.
func buildTruck(c *entity.ExtractedFoodTruckDetails, name string, placeholder bool, sourceURL string, now time.Time) *entity.FoodTruck {
	t := c.ToFoodTruck(now)
	t.Name = name
	t.CurrentLocation = buildLocation(c.CurrentLocation, now)
	t.OperatingHours = buildHours(c.OperatingHours)
	t.Menu = buildMenu(c.Menu)
	t.SourceURLs = appendURL(c.SourceURLs, sourceURL)
	t.VerificationStatus = string(constants.VerificationPending)
	if placeholder {
		t.VerificationStatus = string(constants.VerificationFlagged)
	}
	return t
}

// buildLocation joins the address parts into one line, falling back to the raw
// text. Missing coordinates stay unset.
func buildLocation(l *entity.Location, now time.Time) *entity.Location {
	if l.IsEmpty() {
		return nil
	}
	out := *l
	var parts []string
	for _, p := range []string{l.Address, l.City, l.State, l.ZipCode} {
		if p = strings.TrimSpace(p); p != "" && !containsFold(parts, p) {
			parts = append(parts, p)
		}
	}
	out.Address = strings.Join(parts, ", ")
	if out.Address == "" {
		out.Address = strings.TrimSpace(l.RawText)
	}
	if out.Timestamp == nil {
		ts := now
		out.Timestamp = &ts
	}
	return &out
}

func containsFold(parts []string, p string) bool {
	for _, q := range parts {
		if strings.Contains(strings.ToLower(q), strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// buildHours fills unmentioned weekdays as closed. No hours at all stays
// unknown.
func buildHours(h entity.OperatingHours) entity.OperatingHours {
	if len(h) == 0 {
		return nil
	}
	out := make(entity.OperatingHours, len(constants.Weekdays))
	for _, day := range constants.Weekdays {
		d, ok := h[day]
		if !ok || (d.Open == "" && d.Close == "") {
			d = entity.DailyHours{Closed: true}
		}
		out[day] = d
	}
	return out
}

func buildMenu(menu []entity.MenuCategory) []entity.MenuCategory {
	if len(menu) == 0 {
		return nil
	}
	out := make([]entity.MenuCategory, 0, len(menu))
	for _, cat := range menu {
		cat.Name = strings.TrimSpace(cat.Name)
		if cat.Name == "" {
			cat.Name = defaultCategoryName
		}
		items := make([]entity.MenuItem, 0, len(cat.Items))
		for _, it := range cat.Items {
			it.Name = strings.TrimSpace(it.Name)
			if it.Name == "" {
				it.Name = defaultItemName
			}
			items = append(items, it)
		}
		cat.Items = items
		out = append(out, cat)
	}
	return out
}

func appendURL(urls []string, u string) []string {
	out := slices.Clone(urls)
	if u != "" && !slices.Contains(out, u) {
		out = append(out, u)
	}
	return out
}
