package places

import (
	"fmt"
	"net/url"
	"strings"
)

const mapsBase = "https://www.google.com/maps"

// MapsLink points at the place page when the id is known, otherwise at a
// search around its coordinates, otherwise at a plain text search.
func MapsLink(p Place) string {
	switch {
	case p.ID != "":
		return mapsBase + "/place/?q=place_id:" + p.ID
	case p.HasLocation:
		return fmt.Sprintf("%s/search/%s/@%v,%v,17z", mapsBase, url.PathEscape(p.Name), p.Lat, p.Lng)
	default:
		return mapsBase + "/search/" + url.PathEscape(p.Name+" "+p.Vicinity)
	}
}

// DirectionsLink routes from origin to the place coordinates, or to its name
// and vicinity when coordinates are missing.
func DirectionsLink(p Place, origin Origin) string {
	if p.HasLocation {
		return fmt.Sprintf("%s/dir/%v,%v/%v,%v", mapsBase, origin.Lat, origin.Lng, p.Lat, p.Lng)
	}
	return fmt.Sprintf("%s/dir/%v,%v/%s", mapsBase, origin.Lat, origin.Lng, url.PathEscape(p.Name+" "+p.Vicinity))
}

// StaticMapURL renders a Static Maps image centred on center with a labelled
// marker per located place. Labels run A, B, C and so on.
func StaticMapURL(baseURL string, center Origin, found []Place, apiKey string) string {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	q := url.Values{}
	q.Set("center", fmt.Sprintf("%v,%v", center.Lat, center.Lng))
	q.Set("size", "600x300")
	q.Set("zoom", "14")
	label := 'A'
	for _, p := range found {
		if !p.HasLocation || label > 'Z' {
			continue
		}
		q.Add("markers", fmt.Sprintf("label:%c|%v,%v", label, p.Lat, p.Lng))
		label++
	}
	if apiKey != "" {
		q.Set("key", apiKey)
	}
	return strings.TrimRight(baseURL, "/") + "/staticmap?" + q.Encode()
}
