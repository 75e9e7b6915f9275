package entity

import (
	"time"

	"github.com/google/uuid"
)

// Location is a point in time position of a truck. Either the coordinate pair
// or the address may be missing.
type Location struct {
	Lat       *float64   `json:"lat,omitempty"`
	Lng       *float64   `json:"lng,omitempty"`
	Address   string     `json:"address,omitempty"`
	City      string     `json:"city,omitempty"`
	State     string     `json:"state,omitempty"`
	ZipCode   string     `json:"zip_code,omitempty"`
	RawText   string     `json:"raw_text,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// HasCoordinates reports whether both lat and lng are set.
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Lat != nil && l.Lng != nil
}

// IsEmpty reports whether the location carries no usable data.
func (l *Location) IsEmpty() bool {
	return l == nil || (!l.HasCoordinates() && l.Address == "" && l.City == "" && l.RawText == "")
}

// ScheduledLocation is a planned stop.
type ScheduledLocation struct {
	Location
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// DailyHours holds the hours for one weekday.
type DailyHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed"`
}

// IsOpen reports whether the day has explicit opening hours.
func (h DailyHours) IsOpen() bool {
	return !h.Closed && h.Open != "" && h.Close != ""
}

// OperatingHours is keyed by lowercase weekday name.
type OperatingHours map[string]DailyHours

type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	DietaryTags []string `json:"dietary_tags,omitempty"`
}

type MenuCategory struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// IsEmpty reports whether no contact channel is set.
func (c ContactInfo) IsEmpty() bool {
	return c.Phone == "" && c.Email == "" && c.Website == ""
}

type SocialMedia struct {
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	Yelp      string `json:"yelp,omitempty"`
}

// IsEmpty reports whether no social handle is set.
func (s SocialMedia) IsEmpty() bool {
	return s.Instagram == "" && s.Facebook == "" && s.Twitter == "" && s.TikTok == "" && s.Yelp == ""
}

// ExtractedFoodTruckDetails is a candidate record produced from LLM output.
// It is never persisted directly.
type ExtractedFoodTruckDetails struct {
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	CurrentLocation    *Location           `json:"current_location,omitempty"`
	ScheduledLocations []ScheduledLocation `json:"scheduled_locations,omitempty"`
	OperatingHours     OperatingHours      `json:"operating_hours,omitempty"`
	Menu               []MenuCategory      `json:"menu,omitempty"`
	ContactInfo        ContactInfo         `json:"contact_info"`
	SocialMedia        SocialMedia         `json:"social_media"`
	CuisineType        []string            `json:"cuisine_type,omitempty"`
	PriceRange         string              `json:"price_range,omitempty"`
	Specialties        []string            `json:"specialties,omitempty"`
	SourceURLs         []string            `json:"source_urls,omitempty"`
}

// FoodTruck is the persisted record.
type FoodTruck struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	NormalizedName     string              `json:"-"` // duplicate lookup key, set on write
	Description        string              `json:"description,omitempty"`
	CurrentLocation    *Location           `json:"current_location,omitempty"`
	ScheduledLocations []ScheduledLocation `json:"scheduled_locations,omitempty"`
	OperatingHours     OperatingHours      `json:"operating_hours,omitempty"`
	Menu               []MenuCategory      `json:"menu,omitempty"`
	ContactInfo        ContactInfo         `json:"contact_info"`
	SocialMedia        SocialMedia         `json:"social_media"`
	CuisineType        []string            `json:"cuisine_type,omitempty"`
	PriceRange         string              `json:"price_range,omitempty"`
	Specialties        []string            `json:"specialties,omitempty"`
	SourceURLs         []string            `json:"source_urls,omitempty"`
	DataQualityScore   float64             `json:"data_quality_score"`
	VerificationStatus string              `json:"verification_status"`
	LastScrapedAt      *time.Time          `json:"last_scraped_at,omitempty"`
	IsActive           bool                `json:"is_active"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}
