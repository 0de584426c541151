package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api"
	defaultTimeout = 15 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond

	// MaxResults caps how many venues a single search returns.
	MaxResults = 8
)

// GeocodeCache remembers geocoding results between searches.
type GeocodeCache interface {
	GetGeocode(ctx context.Context, location string) (Origin, bool)
	PutGeocode(ctx context.Context, location string, o Origin)
}

// Client talks to the Google Geocoding and Places Nearby Search APIs. It is
// safe for concurrent use; concurrent geocodes of the same location share
// one request.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxResults int
	geocodes   GeocodeCache
	flight     singleflight.Group
}

// NewClient creates a client with the given API key. An empty key is
// accepted; every search then fails with ErrNoAPIKey.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxResults: MaxResults,
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SetGeocodeCache installs a cache consulted before every geocode request.
func (c *Client) SetGeocodeCache(gc GeocodeCache) {
	c.geocodes = gc
}

// SetMaxResults overrides MaxResults. Values <= 0 are ignored.
func (c *Client) SetMaxResults(n int) {
	if n > 0 {
		c.maxResults = n
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Find geocodes location and returns up to MaxResults venues open now.
func (c *Client) Find(ctx context.Context, location, keyword string, radius int) ([]Place, error) {
	if !c.Configured() {
		return nil, ErrNoAPIKey
	}
	origin, err := c.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}
	return c.Nearby(ctx, origin, keyword, radius)
}

// Search is Find with failures degraded to an empty slice.
func (c *Client) Search(ctx context.Context, location, keyword string, radius int) []Place {
	return Search(ctx, c, location, keyword, radius)
}

// StaticMap geocodes location, usually from the cache warmed by Find, and
// returns a Static Maps URL centred on it with a marker per located place.
func (c *Client) StaticMap(ctx context.Context, location string, found []Place) (string, error) {
	origin, err := c.Geocode(ctx, location)
	if err != nil {
		return "", err
	}
	return StaticMapURL(c.baseURL, origin, found, c.apiKey), nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry geometry `json:"geometry"`
	} `json:"results"`
}

type geometry struct {
	Location *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

// Geocode resolves a free-text location to coordinates.
func (c *Client) Geocode(ctx context.Context, location string) (Origin, error) {
	if !c.Configured() {
		return Origin{}, ErrNoAPIKey
	}
	key := strings.ToLower(strings.TrimSpace(location))
	if c.geocodes != nil {
		if o, ok := c.geocodes.GetGeocode(ctx, key); ok {
			return o, nil
		}
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		q := url.Values{}
		q.Set("address", location)
		var resp geocodeResponse
		if err := c.get(ctx, "/geocode/json", q, &resp); err != nil {
			return Origin{}, err
		}
		if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
			return Origin{}, fmt.Errorf("geocoding %q: no results", location)
		}
		if resp.Status != "OK" {
			return Origin{}, fmt.Errorf("geocoding %q: %s %s", location, resp.Status, resp.ErrorMessage)
		}
		loc := resp.Results[0].Geometry.Location
		if loc == nil {
			return Origin{}, fmt.Errorf("geocoding %q: result has no location", location)
		}
		o := Origin{Lat: loc.Lat, Lng: loc.Lng}
		if c.geocodes != nil {
			c.geocodes.PutGeocode(ctx, key, o)
		}
		return o, nil
	})
	if err != nil {
		return Origin{}, err
	}
	return v.(Origin), nil
}

type nearbyResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []nearbyResult `json:"results"`
}

type nearbyResult struct {
	PlaceID      string   `json:"place_id"`
	Name         string   `json:"name"`
	Rating       *float64 `json:"rating"`
	PriceLevel   *int     `json:"price_level"`
	Types        []string `json:"types"`
	Vicinity     string   `json:"vicinity"`
	OpeningHours *struct {
		OpenNow *bool `json:"open_now"`
	} `json:"opening_hours"`
	Geometry geometry `json:"geometry"`
}

// Nearby lists venues open now around origin.
func (c *Client) Nearby(ctx context.Context, origin Origin, keyword string, radius int) ([]Place, error) {
	if !c.Configured() {
		return nil, ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%v,%v", origin.Lat, origin.Lng))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("keyword", keyword)
	q.Set("opennow", "true")

	var resp nearbyResponse
	if err := c.get(ctx, "/place/nearbysearch/json", q, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []Place{}, nil
	default:
		return nil, fmt.Errorf("nearby search: %s %s", resp.Status, resp.ErrorMessage)
	}

	results := resp.Results
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	out := make([]Place, 0, len(results))
	for _, r := range results {
		out = append(out, r.toPlace(origin))
	}
	return out, nil
}

func (r nearbyResult) toPlace(origin Origin) Place {
	p := Place{
		ID:         r.PlaceID,
		Name:       r.Name,
		PriceLevel: -1,
		Types:      r.Types,
		Vicinity:   r.Vicinity,
	}
	if p.Types == nil {
		p.Types = []string{}
	}
	if r.Rating != nil {
		p.Rating = *r.Rating
	}
	if r.PriceLevel != nil {
		p.PriceLevel = *r.PriceLevel
	}
	if r.OpeningHours != nil {
		p.OpenNow = r.OpeningHours.OpenNow
	}
	if loc := r.Geometry.Location; loc != nil {
		p.Lat, p.Lng, p.HasLocation = loc.Lat, loc.Lng, true
	}
	p.MapsLink = MapsLink(p)
	p.DirectionsLink = DirectionsLink(p, origin)
	return p
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

// get performs a GET and decodes the JSON body into out, retrying with
// exponential backoff while the API answers 429.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	for attempt := range maxRetries {
		err := c.doGet(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		if _, ok := err.(*rateLimitError); !ok {
			return err
		}
		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The query string carries the API key.
		if ue, ok := err.(*url.Error); ok {
			ue.URL, _, _ = strings.Cut(ue.URL, "?")
		}
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
