package constants

import "strings"

// JobType describes what a scraping job targets.
type JobType string

const (
	JobTypeWebsiteScrape JobType = "website_scrape"
	JobTypeWebsiteAuto   JobType = "website_auto" // discovered automatically
	JobTypeSocialScrape  JobType = "social_media_scrape"
	JobTypeMenuRefresh   JobType = "menu_refresh"
)

// JobTypes holds the allowed values for the job_type column.
var JobTypes = []string{
	string(JobTypeWebsiteScrape),
	string(JobTypeWebsiteAuto),
	string(JobTypeSocialScrape),
	string(JobTypeMenuRefresh),
}

// IsSocial reports whether the job targets a social media handle.
func (t JobType) IsSocial() bool {
	return t == JobTypeSocialScrape
}

// Platforms holds the social platforms a handle-based job may target.
var Platforms = map[string]string{
	"instagram": "https://www.instagram.com/%s/",
	"facebook":  "https://www.facebook.com/%s",
	"twitter":   "https://x.com/%s",
	"tiktok":    "https://www.tiktok.com/@%s",
}

// NormalizePlatform lowercases and trims a platform name.
func NormalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// PriceRanges are the accepted price_range values.
var PriceRanges = []string{"$", "$$", "$$$", "$$$$"}

// Weekdays are the operating_hours keys, Monday first.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
