package ampre

import (
	"net/url"
	"strings"
)

// NormalizeMediaURL rewrites HTTPS to HTTP for AMPRE-hosted media.
// Certain image paths on that host serve a broken certificate chain; the
// rewrite is deliberately host-specific and leaves every other domain alone.
func NormalizeMediaURL(href string) string {
	if href == "" {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.Scheme != "https" {
		return href
	}
	host := strings.ToLower(u.Hostname())
	if host != "ampre.ca" && !strings.HasSuffix(host, ".ampre.ca") {
		return href
	}
	u.Scheme = "http"
	return u.String()
}

// PrimaryMediaURL picks the first usable photo URL from an ordered media
// list, normalized. Empty when the listing has no photos.
func PrimaryMediaURL(media []Media) string {
	for _, m := range media {
		if m.MediaURL == "" {
			continue
		}
		return NormalizeMediaURL(m.MediaURL)
	}
	return ""
}
