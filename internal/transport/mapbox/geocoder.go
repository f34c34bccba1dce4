// Package mapbox resolves place names to coordinates with the Mapbox geocoding API.
package mapbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/metrics"
)

// DefaultBaseURL is the public Mapbox API host.
const DefaultBaseURL = "https://api.mapbox.com"

// ErrNoToken is returned when geocoding is attempted without an access token.
var ErrNoToken = errors.New("mapbox token not configured")

// Geocoder looks up the single best match for a place name.
type Geocoder struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a geocoder. An empty baseURL uses DefaultBaseURL.
func New(baseURL, token string, timeout time.Duration) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Geocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type geocodeResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Geocode returns the coordinates of place. ok is false when there is no match.
func (g *Geocoder) Geocode(ctx context.Context, place string) (loc domain.LatLng, ok bool, err error) {
	if g.token == "" {
		return domain.LatLng{}, false, ErrNoToken
	}

	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json", g.baseURL, url.PathEscape(place))
	q := url.Values{}
	q.Set("access_token", g.token)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return domain.LatLng{}, false, fmt.Errorf("build geocode request: %w", err)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err == nil && resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("geocode status %d", resp.StatusCode)
	}
	metrics.ObserveExternalCall("mapbox", "geocode", start, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return domain.LatLng{}, false, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.LatLng{}, false, fmt.Errorf("%w: decode geocode: %w", domain.ErrUpstreamUnavailable, err)
	}
	if len(body.Features) == 0 || len(body.Features[0].Center) < 2 {
		return domain.LatLng{}, false, nil
	}

	// center is [lon, lat]
	c := body.Features[0].Center
	return domain.LatLng{Lat: c[1], Lng: c[0]}, true, nil
}
