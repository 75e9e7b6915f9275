package extract

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

var (
	rePrice      = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	rePriceRange = regexp.MustCompile(`^\${1,4}$`)
	reHoursRange = regexp.MustCompile(`(?i)^\s*([0-9:.apm\s]+?)\s*(?:-|–|to)\s*([0-9:.apm\s]+?)\s*$`)
)

var dayAliases = map[string]string{
	"mon": "monday", "tue": "tuesday", "tues": "tuesday", "wed": "wednesday",
	"thu": "thursday", "thur": "thursday", "thurs": "thursday", "fri": "friday",
	"sat": "saturday", "sun": "sunday",
}

// Decode normalizes a parsed LLM document into a typed candidate. Shape
// variants are renamed, nulls and unknown keys dropped, values coerced, and the
// result validated against BuildCandidateJSONSchema. The returned notes list
// every adjustment made.
func Decode(v any) (*entity.ExtractedFoodTruckDetails, []string, error) {
	if arr, ok := v.([]any); ok {
		// some responses wrap the object in a single-element array
		for _, el := range arr {
			if m, ok := el.(map[string]any); ok {
				v = m
				break
			}
		}
	}
	src, ok := v.(map[string]any)
	if !ok {
		return nil, nil, common.NewValidationError("", fmt.Sprintf("%T", v), "extracted document is not an object")
	}

	n := &normalizer{}
	doc := n.candidate(maps.Clone(src))

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, n.notes, fmt.Errorf("decode: encode: %w", err)
	}
	// the validator only understands JSON-decoded shapes
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, n.notes, fmt.Errorf("decode: reencode: %w", err)
	}
	if err := ValidateCandidate(generic); err != nil {
		return nil, n.notes, common.NewValidationError("", nil, err.Error())
	}
	var out entity.ExtractedFoodTruckDetails
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, n.notes, common.NewValidationError("", nil, "decode: "+err.Error())
	}
	return &out, n.notes, nil
}

type normalizer struct {
	notes []string
}

func (n *normalizer) note(format string, args ...any) {
	n.notes = append(n.notes, fmt.Sprintf(format, args...))
}

func (n *normalizer) rename(m map[string]any, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	if _, exists := m[to]; !exists {
		m[to] = v
	}
	delete(m, from)
	n.note("%s->%s", from, to)
}

func (n *normalizer) candidate(m map[string]any) map[string]any {
	n.rename(m, "truck_name", "name")
	n.rename(m, "business_name", "name")
	n.rename(m, "contact", "contact_info")
	n.rename(m, "location", "current_location")
	n.rename(m, "social", "social_media")
	n.rename(m, "hours", "operating_hours")
	n.rename(m, "cuisine", "cuisine_type")
	n.rename(m, "cuisine_types", "cuisine_type")
	n.rename(m, "schedule", "scheduled_locations")
	n.rename(m, "source_url", "source_urls")

	out := map[string]any{}
	for k, v := range m {
		if v == nil {
			n.note("%s(null)", k)
			continue
		}
		switch k {
		case "name", "description":
			if s := asString(v); s != "" {
				out[k] = s
			}
		case "price_range":
			s := strings.TrimSpace(asString(v))
			if rePriceRange.MatchString(s) {
				out[k] = s
			} else if s != "" {
				n.note("price_range(invalid %q)", s)
			}
		case "cuisine_type":
			if l := n.cuisines(asStringList(v)); len(l) > 0 {
				out[k] = l
			}
		case "specialties", "source_urls":
			if l := asStringList(v); len(l) > 0 {
				out[k] = l
			}
		case "current_location":
			if loc := n.location(v); loc != nil {
				out[k] = loc
			}
		case "scheduled_locations":
			if arr, ok := v.([]any); ok {
				var locs []any
				for _, el := range arr {
					if loc := n.location(el); loc != nil {
						locs = append(locs, loc)
					}
				}
				if len(locs) > 0 {
					out[k] = locs
				}
			}
		case "operating_hours":
			if h := n.hours(v); len(h) > 0 {
				out[k] = h
			}
		case "menu":
			if menu := n.menu(v); len(menu) > 0 {
				out[k] = menu
			}
		case "contact_info":
			if c := n.contact(v); len(c) > 0 {
				out[k] = c
			}
		case "social_media":
			if s := n.social(v); len(s) > 0 {
				out[k] = s
			}
		default:
			n.note("%s(unknown)", k)
		}
	}
	return out
}

func (n *normalizer) cuisines(in []string) []string {
	var out []string
	for _, c := range in {
		canon, _ := constants.CanonicalizeCuisine(c)
		if canon != "" && !slices.Contains(out, canon) {
			out = append(out, canon)
		}
	}
	return out
}

func (n *normalizer) location(v any) map[string]any {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return map[string]any{"address": s}
		}
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if coords, ok := m["coordinates"].(map[string]any); ok {
		for k, val := range coords {
			if _, exists := m[k]; !exists {
				m[k] = val
			}
		}
		delete(m, "coordinates")
	}
	n.rename(m, "latitude", "lat")
	n.rename(m, "longitude", "lng")
	n.rename(m, "lon", "lng")
	n.rename(m, "zip", "zip_code")
	n.rename(m, "postal_code", "zip_code")
	n.rename(m, "start", "start_time")
	n.rename(m, "end", "end_time")

	out := map[string]any{}
	for k, val := range m {
		switch k {
		case "lat", "lng":
			f, ok := asFloat(val)
			if !ok {
				continue
			}
			if (k == "lat" && (f < -90 || f > 90)) || (k == "lng" && (f < -180 || f > 180)) {
				n.note("%s(out of range)", k)
				continue
			}
			out[k] = f
		case "address", "city", "state", "zip_code", "raw_text", "date", "start_time", "end_time":
			if s := asString(val); s != "" {
				out[k] = s
			}
		case "timestamp":
			s := asString(val)
			if _, err := time.Parse(time.RFC3339, s); err == nil {
				out[k] = s
			} else if s != "" {
				n.note("timestamp(invalid %q)", s)
			}
		}
	}
	// a lone coordinate is useless
	_, hasLat := out["lat"]
	_, hasLng := out["lng"]
	if hasLat != hasLng {
		delete(out, "lat")
		delete(out, "lng")
		n.note("coordinates(incomplete)")
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (n *normalizer) hours(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := map[string]any{}
	for k, val := range m {
		day := strings.ToLower(strings.TrimSpace(k))
		if alias, ok := dayAliases[day]; ok {
			day = alias
		}
		if !slices.Contains(constants.Weekdays, day) {
			n.note("operating_hours.%s(unknown)", k)
			continue
		}
		switch t := val.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			if strings.EqualFold(s, "closed") {
				out[day] = map[string]any{"closed": true}
				continue
			}
			if parts := reHoursRange.FindStringSubmatch(s); parts != nil {
				out[day] = map[string]any{"open": strings.TrimSpace(parts[1]), "close": strings.TrimSpace(parts[2]), "closed": false}
			}
		case map[string]any:
			h := map[string]any{}
			if s := asString(t["open"]); s != "" {
				h["open"] = s
			}
			if s := asString(t["close"]); s != "" {
				h["close"] = s
			}
			closed, _ := t["closed"].(bool)
			if _, hasOpen := h["open"]; !hasOpen && !closed {
				if _, hasClose := h["close"]; !hasClose {
					closed = true
				}
			}
			h["closed"] = closed
			out[day] = h
		case bool:
			if !t {
				out[day] = map[string]any{"closed": true}
			}
		}
	}
	return out
}

func (n *normalizer) menu(v any) []any {
	var arr []any
	switch t := v.(type) {
	case []any:
		arr = t
	case map[string]any:
		arr = n.menuObject(t)
	case nil:
		return nil
	default:
		n.note("menu(unsupported %T)", v)
		return nil
	}
	// a flat list of items is treated as one unnamed category
	flat := true
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			if _, ok := m["items"]; ok {
				flat = false
				break
			}
		}
	}
	if flat && len(arr) > 0 {
		arr = []any{map[string]any{"name": "Menu", "items": arr}}
		n.note("menu(flat)")
	}

	var out []any
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		n.rename(m, "category", "name")
		cat := map[string]any{}
		if s := asString(m["name"]); s != "" {
			cat["name"] = s
		}
		items := []any{}
		if raw, ok := m["items"].([]any); ok {
			for _, it := range raw {
				if item := n.menuItem(it); item != nil {
					items = append(items, item)
				}
			}
		}
		cat["items"] = items
		out = append(out, cat)
	}
	return out
}

// menuObject accepts a single category object or a map of category name to
// item list.
func (n *normalizer) menuObject(m map[string]any) []any {
	if _, ok := m["items"]; ok {
		n.note("menu(single category)")
		return []any{m}
	}
	var out []any
	for _, name := range slices.Sorted(maps.Keys(m)) {
		items, ok := m[name].([]any)
		if !ok {
			n.note("menu.%s(not a list)", name)
			continue
		}
		out = append(out, map[string]any{"name": name, "items": items})
	}
	if len(out) > 0 {
		n.note("menu(by category)")
	}
	return out
}

func (n *normalizer) menuItem(v any) map[string]any {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return map[string]any{"name": s}
		}
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := map[string]any{}
	if s := asString(m["name"]); s != "" {
		out["name"] = s
	}
	if s := asString(m["description"]); s != "" {
		out["description"] = s
	}
	if p, ok := parsePrice(m["price"]); ok {
		out["price"] = p
	}
	if tags := asStringList(m["dietary_tags"]); len(tags) > 0 {
		out["dietary_tags"] = tags
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (n *normalizer) contact(v any) map[string]any {
	var m map[string]any
	switch t := v.(type) {
	case map[string]any:
		m = t
	case string:
		return n.contactString(t)
	case nil:
		return nil
	default:
		n.note("contact_info(unsupported %T)", v)
		return nil
	}
	n.rename(m, "phone_number", "phone")
	n.rename(m, "url", "website")
	out := map[string]any{}
	for _, k := range []string{"phone", "email", "website"} {
		if s := asString(m[k]); s != "" {
			out[k] = s
		}
	}
	return out
}

// contactString files a bare contact value under email, website or phone.
func (n *normalizer) contactString(s string) map[string]any {
	s = asString(s)
	if s == "" {
		return nil
	}
	key := "phone"
	switch {
	case strings.Contains(s, "@") && !strings.ContainsAny(s, " /"):
		key = "email"
	case strings.HasPrefix(strings.ToLower(s), "http://"), strings.HasPrefix(strings.ToLower(s), "https://"):
		key = "website"
	}
	n.note("contact_info(string as %s)", key)
	return map[string]any{key: s}
}

func (n *normalizer) social(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	n.rename(m, "x", "twitter")
	out := map[string]any{}
	for _, k := range []string{"instagram", "facebook", "twitter", "tiktok", "yelp"} {
		if s := asString(m[k]); s != "" {
			out[k] = s
		}
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "undefined") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func asStringList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []any:
		for _, el := range t {
			raw = append(raw, asString(el))
		}
	}
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// parsePrice accepts numbers and strings such as "$12.99" or "12,50".
func parsePrice(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		neg := strings.HasPrefix(s, "-")
		match := rePrice.FindString(s)
		if match == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimPrefix(match, "-"), ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
		if neg {
			f = -f
		}
		return f, true
	}
	return 0, false
}
