package places

import (
	"net/url"
	"strings"
	"testing"
)

func TestMapsLink(t *testing.T) {
	tests := []struct {
		name  string
		place Place
		want  string
	}{
		{"place id", Place{ID: "abc", Name: "X", HasLocation: true, Lat: 1, Lng: 2}, "https://www.google.com/maps/place/?q=place_id:abc"},
		{"coordinates", Place{Name: "Cafe by the Ruins", HasLocation: true, Lat: 16.41, Lng: 120.59}, "https://www.google.com/maps/search/Cafe%20by%20the%20Ruins/@16.41,120.59,17z"},
		{"name only", Place{Name: "Good Taste", Vicinity: "Otek St"}, "https://www.google.com/maps/search/Good%20Taste%20Otek%20St"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapsLink(tt.place); got != tt.want {
				t.Errorf("MapsLink = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirectionsLink(t *testing.T) {
	origin := Origin{Lat: 16.4023, Lng: 120.596}

	located := Place{Name: "Burnham Park", HasLocation: true, Lat: 16.41, Lng: 120.59}
	if got, want := DirectionsLink(located, origin), "https://www.google.com/maps/dir/16.4023,120.596/16.41,120.59"; got != want {
		t.Errorf("DirectionsLink = %q, want %q", got, want)
	}

	unlocated := Place{Name: "Mines View", Vicinity: "Outlook Dr"}
	if got, want := DirectionsLink(unlocated, origin), "https://www.google.com/maps/dir/16.4023,120.596/Mines%20View%20Outlook%20Dr"; got != want {
		t.Errorf("DirectionsLink = %q, want %q", got, want)
	}
}

func TestStaticMapURL(t *testing.T) {
	found := []Place{
		{Name: "A", HasLocation: true, Lat: 1, Lng: 2},
		{Name: "no coords"},
		{Name: "B", HasLocation: true, Lat: 3, Lng: 4},
	}
	raw := StaticMapURL("", Origin{Lat: 1.5, Lng: 2.5}, found, "k")
	if !strings.HasPrefix(raw, "https://maps.googleapis.com/maps/api/staticmap?") {
		t.Fatalf("url = %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("center") != "1.5,2.5" || q.Get("key") != "k" {
		t.Errorf("query = %v", q)
	}
	markers := q["markers"]
	if len(markers) != 2 || markers[0] != "label:A|1,2" || markers[1] != "label:B|3,4" {
		t.Errorf("markers = %v", markers)
	}
}
