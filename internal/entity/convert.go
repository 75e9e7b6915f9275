package entity

import "time"

// ToFoodTruck copies a candidate into a new, unsaved FoodTruck.
func (d *ExtractedFoodTruckDetails) ToFoodTruck(now time.Time) *FoodTruck {
	scraped := now
	return &FoodTruck{
		Name:               d.Name,
		Description:        d.Description,
		CurrentLocation:    d.CurrentLocation,
		ScheduledLocations: d.ScheduledLocations,
		OperatingHours:     d.OperatingHours,
		Menu:               d.Menu,
		ContactInfo:        d.ContactInfo,
		SocialMedia:        d.SocialMedia,
		CuisineType:        d.CuisineType,
		PriceRange:         d.PriceRange,
		Specialties:        d.Specialties,
		SourceURLs:         d.SourceURLs,
		VerificationStatus: "pending",
		LastScrapedAt:      &scraped,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
