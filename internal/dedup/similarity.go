package dedup

import (
	"math"
	"net/url"
	"strings"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

// Dimension weights for the overall score, renormalized over the
// dimensions both records can be compared on.
const (
	NameWeight     = 0.5
	LocationWeight = 0.3
	ContactWeight  = 0.2
)

// Per-dimension scores at or above these count as a matched field.
const (
	NameMatchThreshold     = 0.85
	LocationMatchThreshold = 0.9
	ContactMatchThreshold  = 1.0
)

// Coordinates closer than NearKm are the same spot; location similarity
// falls linearly to zero at FarKm.
const (
	NearKm = 0.1
	FarKm  = 1.0
)

const earthRadiusKm = 6371.0

const (
	FieldName     = "name"
	FieldLocation = "location"
	FieldContact  = "contact"
)

// SimilarityResult breaks an overall score down by dimension. Breakdown
// holds only the dimensions that were comparable.
type SimilarityResult struct {
	Overall       float64            `json:"overall"`
	Breakdown     map[string]float64 `json:"breakdown"`
	MatchedFields []string           `json:"matched_fields"`
}

// Similarity compares two records. Name is always compared; location and
// contact only when both records carry data for them.
func Similarity(a, b *entity.FoodTruck) SimilarityResult {
	res := SimilarityResult{Breakdown: map[string]float64{}}
	var sum, weights float64
	add := func(field string, score, weight, threshold float64) {
		res.Breakdown[field] = score
		sum += score * weight
		weights += weight
		if score >= threshold {
			res.MatchedFields = append(res.MatchedFields, field)
		}
	}

	add(FieldName, StringSimilarity(a.Name, b.Name), NameWeight, NameMatchThreshold)
	if score, ok := locationSimilarity(a.CurrentLocation, b.CurrentLocation); ok {
		add(FieldLocation, score, LocationWeight, LocationMatchThreshold)
	}
	if score, ok := contactSimilarity(a.ContactInfo, b.ContactInfo); ok {
		add(FieldContact, score, ContactWeight, ContactMatchThreshold)
	}
	res.Overall = sum / weights
	return res
}

// HaversineKm is the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func locationSimilarity(a, b *entity.Location) (float64, bool) {
	if a.HasCoordinates() && b.HasCoordinates() {
		d := HaversineKm(*a.Lat, *a.Lng, *b.Lat, *b.Lng)
		switch {
		case d <= NearKm:
			return 1, true
		case d >= FarKm:
			return 0, true
		}
		return 1 - (d-NearKm)/(FarKm-NearKm), true
	}
	aa, ba := addressKey(a), addressKey(b)
	if aa == "" || ba == "" {
		return 0, false
	}
	return textSimilarity(aa, ba), true
}

func addressKey(l *entity.Location) string {
	if l == nil {
		return ""
	}
	text := l.Address
	if text == "" {
		text = l.RawText
	}
	if text == "" {
		return ""
	}
	if l.City != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(l.City)) {
		text += " " + l.City
	}
	return normalizeText(text)
}

// contactSimilarity is the share of agreeing channels among those both
// records set.
func contactSimilarity(a, b entity.ContactInfo) (float64, bool) {
	var compared, matched int
	check := func(x, y string) {
		if x == "" || y == "" {
			return
		}
		compared++
		if x == y {
			matched++
		}
	}
	check(PhoneKey(a.Phone), PhoneKey(b.Phone))
	check(websiteKey(a.Website), websiteKey(b.Website))
	check(strings.ToLower(strings.TrimSpace(a.Email)), strings.ToLower(strings.TrimSpace(b.Email)))
	if compared == 0 {
		return 0, false
	}
	return float64(matched) / float64(compared), true
}

// PhoneKey keeps the last ten digits of a phone number, dropping any country
// code. Numbers with fewer than seven digits yield "".
func PhoneKey(phone string) string {
	var digits []byte
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) < 7 {
		return ""
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return string(digits)
}

func websiteKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host + strings.TrimRight(u.Path, "/")
}
