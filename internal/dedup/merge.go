package dedup

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

// MergeRecords folds source into target and returns a new record carrying
// target's id. Neither input is modified. Target values win on conflict,
// except that a synthesized target name yields to a real source name and the
// longer description is kept. Lists are unioned.
func MergeRecords(target, source *entity.FoodTruck) *entity.FoodTruck {
	m := *target
	if constants.IsPlaceholderName(m.Name) && !constants.IsPlaceholderName(source.Name) {
		m.Name = source.Name
		m.NormalizedName = source.NormalizedName
	}
	if len(source.Description) > len(m.Description) {
		m.Description = source.Description
	}
	m.CurrentLocation = mergeLocation(target.CurrentLocation, source.CurrentLocation)
	m.ScheduledLocations = mergeScheduled(target.ScheduledLocations, source.ScheduledLocations)
	m.OperatingHours = mergeHours(target.OperatingHours, source.OperatingHours)
	m.Menu = mergeMenu(target.Menu, source.Menu)
	m.ContactInfo = entity.ContactInfo{
		Phone:   first(target.ContactInfo.Phone, source.ContactInfo.Phone),
		Email:   first(target.ContactInfo.Email, source.ContactInfo.Email),
		Website: first(target.ContactInfo.Website, source.ContactInfo.Website),
	}
	m.SocialMedia = entity.SocialMedia{
		Instagram: first(target.SocialMedia.Instagram, source.SocialMedia.Instagram),
		Facebook:  first(target.SocialMedia.Facebook, source.SocialMedia.Facebook),
		Twitter:   first(target.SocialMedia.Twitter, source.SocialMedia.Twitter),
		TikTok:    first(target.SocialMedia.TikTok, source.SocialMedia.TikTok),
		Yelp:      first(target.SocialMedia.Yelp, source.SocialMedia.Yelp),
	}
	m.CuisineType = unionStrings(target.CuisineType, source.CuisineType)
	m.Specialties = unionStrings(target.Specialties, source.Specialties)
	m.SourceURLs = unionStrings(target.SourceURLs, source.SourceURLs)
	m.PriceRange = first(target.PriceRange, source.PriceRange)
	m.VerificationStatus = first(target.VerificationStatus, source.VerificationStatus)
	if source.VerificationStatus == string(constants.VerificationVerified) {
		m.VerificationStatus = source.VerificationStatus
	}
	m.IsActive = target.IsActive || source.IsActive
	m.LastScrapedAt = laterPtr(target.LastScrapedAt, source.LastScrapedAt)
	if !source.CreatedAt.IsZero() && (m.CreatedAt.IsZero() || source.CreatedAt.Before(m.CreatedAt)) {
		m.CreatedAt = source.CreatedAt
	}
	if source.UpdatedAt.After(m.UpdatedAt) {
		m.UpdatedAt = source.UpdatedAt
	}
	return &m
}

func first(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func mergeLocation(a, b *entity.Location) *entity.Location {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		c := *b
		return &c
	}
	m := *a
	if b == nil {
		return &m
	}
	if !m.HasCoordinates() && b.HasCoordinates() {
		m.Lat, m.Lng = b.Lat, b.Lng
	}
	m.Address = first(m.Address, b.Address)
	m.City = first(m.City, b.City)
	m.State = first(m.State, b.State)
	m.ZipCode = first(m.ZipCode, b.ZipCode)
	m.RawText = first(m.RawText, b.RawText)
	m.Timestamp = laterPtr(m.Timestamp, b.Timestamp)
	return &m
}

func scheduledKey(s entity.ScheduledLocation) string {
	addr := normalizeText(s.Address)
	if addr == "" {
		addr = normalizeText(s.RawText)
	}
	return s.Date + "|" + s.StartTime + "|" + addr
}

func mergeScheduled(a, b []entity.ScheduledLocation) []entity.ScheduledLocation {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]entity.ScheduledLocation, 0, len(a)+len(b))
	for _, s := range append(append([]entity.ScheduledLocation{}, a...), b...) {
		k := scheduledKey(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// mergeHours fills days the target does not know from source. A target day
// that is only "closed" yields to source opening hours.
func mergeHours(a, b entity.OperatingHours) entity.OperatingHours {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(entity.OperatingHours, len(a)+len(b))
	for day, h := range a {
		out[day] = h
	}
	for day, h := range b {
		cur, ok := out[day]
		if !ok || (!cur.IsOpen() && h.IsOpen()) {
			out[day] = h
		}
	}
	return out
}

func mergeMenu(a, b []entity.MenuCategory) []entity.MenuCategory {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]entity.MenuCategory, 0, len(a)+len(b))
	index := map[string]int{}
	for _, cats := range [][]entity.MenuCategory{a, b} {
		for _, c := range cats {
			key := strings.ToLower(strings.TrimSpace(c.Name))
			i, ok := index[key]
			if !ok {
				index[key] = len(out)
				out = append(out, entity.MenuCategory{Name: c.Name, Items: mergeItems(nil, c.Items)})
				continue
			}
			out[i].Items = mergeItems(out[i].Items, c.Items)
		}
	}
	return out
}

func mergeItems(a, b []entity.MenuItem) []entity.MenuItem {
	out := append([]entity.MenuItem{}, a...)
	seen := map[string]int{}
	for i, it := range out {
		seen[strings.ToLower(strings.TrimSpace(it.Name))] = i
	}
	for _, it := range b {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		i, ok := seen[key]
		if !ok || key == "" {
			seen[key] = len(out)
			out = append(out, it)
			continue
		}
		cur := out[i]
		if cur.Price == nil {
			cur.Price = it.Price
		}
		cur.Description = first(cur.Description, it.Description)
		cur.DietaryTags = unionStrings(cur.DietaryTags, it.DietaryTags)
		out[i] = cur
	}
	return out
}

// unionStrings keeps the first spelling of each case-insensitively distinct
// value, in input order.
func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func laterPtr(a, b *time.Time) *time.Time {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		t := *b
		return &t
	case b == nil || !b.After(*a):
		t := *a
		return &t
	}
	t := *b
	return &t
}
