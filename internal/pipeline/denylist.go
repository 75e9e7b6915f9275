package pipeline

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// socialDomains host profiles rather than a truck's own site. Handle based
// jobs target them on purpose.
var socialDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com",
	"linkedin.com", "youtube.com", "pinterest.com",
}

// listingDomains aggregate many businesses or events on one page.
var listingDomains = []string{
	"yelp.com", "google.com", "foursquare.com", "tripadvisor.com", "zomato.com",
	"doordash.com", "ubereats.com", "grubhub.com", "eventbrite.com", "meetup.com",
	"allevents.in", "wikipedia.org", "reddit.com",
}

var deniedSuffixes = []string{".gov", ".mil"}

var (
	reAssetPath = regexp.MustCompile(`(?i)\.(?:pdf|jpe?g|png|gif|svg|webp|ico|css|js|zip|mp4|mov)$`)
	reLoginPath = regexp.MustCompile(`(?i)/(?:login|log-in|signin|sign-in|signup|sign-up|register|account|cart|checkout|wp-admin)(?:/|$)`)
)

// Denylist rejects URLs that cannot be a food truck's own page.
type Denylist struct {
	social  []string
	listing []string
}

// NewDenylist returns the built-in denylist extended with extra domains.
func NewDenylist(extra ...string) *Denylist {
	d := &Denylist{
		social:  append([]string(nil), socialDomains...),
		listing: append([]string(nil), listingDomains...),
	}
	for _, e := range extra {
		e = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(e, "www.")))
		if e != "" {
			d.listing = append(d.listing, e)
		}
	}
	return d
}

// Check returns a reason when raw should not be scraped. Social domains are
// allowed when allowSocial is set.
func (d *Denylist) Check(raw string, allowSocial bool) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "unparseable url", true
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, s := range deniedSuffixes {
		if strings.HasSuffix(host, s) {
			return fmt.Sprintf("government domain %s", host), true
		}
	}
	if dom, ok := matchDomain(host, d.listing); ok {
		return fmt.Sprintf("denied domain %s", dom), true
	}
	if !allowSocial {
		if dom, ok := matchDomain(host, d.social); ok {
			return fmt.Sprintf("social media domain %s", dom), true
		}
	}
	switch {
	case reAssetPath.MatchString(u.Path):
		return "asset url", true
	case reLoginPath.MatchString(u.Path):
		return "login or account page", true
	}
	return "", false
}

func matchDomain(host string, domains []string) (string, bool) {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}
