// Package googlemaps adapts the Google Maps Platform client to restaurant lookups.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/metrics"
)

const (
	maxReviews = 3
	// maxPhotoBytes bounds a proxied photo.
	maxPhotoBytes = 10 << 20
)

// ErrNoResults is returned when geocoding finds nothing for an address.
var ErrNoResults = errors.New("no geocoding results")

// api is the subset of *maps.Client used here.
type api interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	NearbySearch(ctx context.Context, r *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
	PlacePhoto(ctx context.Context, r *maps.PlacePhotoRequest) (maps.PlacePhotoResponse, error)
}

// Config holds search parameters.
type Config struct {
	APIKey        string
	RadiusMeters  uint
	MaxPlaces     int
	PhotoMaxWidth uint
}

// Client wraps the Places and Geocoding APIs.
type Client struct {
	api           api
	radius        uint
	maxPlaces     int
	photoMaxWidth uint
}

// New creates a client authenticated with an API key. Without a key every call
// fails with domain.ErrUpstreamUnavailable.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return newClient(unconfigured{}, cfg), nil
	}
	c, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return newClient(c, cfg), nil
}

func newClient(a api, cfg Config) *Client {
	return &Client{
		api:           a,
		radius:        cfg.RadiusMeters,
		maxPlaces:     cfg.MaxPlaces,
		photoMaxWidth: cfg.PhotoMaxWidth,
	}
}

type unconfigured struct{}

var errNoKey = fmt.Errorf("%w: maps api key not configured", domain.ErrUpstreamUnavailable)

func (unconfigured) Geocode(context.Context, *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	return nil, errNoKey
}

func (unconfigured) NearbySearch(context.Context, *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error) {
	return maps.PlacesSearchResponse{}, errNoKey
}

func (unconfigured) PlaceDetails(context.Context, *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error) {
	return maps.PlaceDetailsResult{}, errNoKey
}

func (unconfigured) PlacePhoto(context.Context, *maps.PlacePhotoRequest) (maps.PlacePhotoResponse, error) {
	return maps.PlacePhotoResponse{}, errNoKey
}

// Geocode resolves a free-form address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (domain.LatLng, error) {
	start := time.Now()
	res, err := c.api.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	metrics.ObserveExternalCall("googlemaps", "geocode", start, err)
	if err != nil {
		return domain.LatLng{}, fmt.Errorf("%w: geocode: %w", domain.ErrUpstreamUnavailable, err)
	}
	if len(res) == 0 {
		return domain.LatLng{}, fmt.Errorf("%w: %q", ErrNoResults, address)
	}
	loc := res[0].Geometry.Location
	return domain.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// NearbyRestaurants returns place ids of restaurants around loc matching the query,
// at most MaxPlaces of them in provider order.
func (c *Client) NearbyRestaurants(ctx context.Context, loc domain.LatLng, q domain.PlaceQuery) ([]string, error) {
	req := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: loc.Lat, Lng: loc.Lng},
		Radius:   c.radius,
		Keyword:  q.Title,
		Type:     maps.PlaceTypeRestaurant,
		MinPrice: priceLevel(q.MinPrice),
		MaxPrice: priceLevel(q.MaxPrice),
	}

	start := time.Now()
	resp, err := c.api.NearbySearch(ctx, req)
	metrics.ObserveExternalCall("googlemaps", "nearby_search", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: nearby search: %w", domain.ErrUpstreamUnavailable, err)
	}

	ids := make([]string, 0, min(len(resp.Results), c.maxPlaces))
	for _, r := range resp.Results {
		if len(ids) == c.maxPlaces {
			break
		}
		ids = append(ids, r.PlaceID)
	}
	return ids, nil
}

// Details fetches one place. Missing fields get readable placeholders.
func (c *Client) Details(ctx context.Context, placeID string) (domain.PlaceDetails, error) {
	start := time.Now()
	d, err := c.api.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: placeID})
	metrics.ObserveExternalCall("googlemaps", "details", start, err)
	if err != nil {
		return domain.PlaceDetails{}, fmt.Errorf("%w: place details: %w", domain.ErrUpstreamUnavailable, err)
	}
	return toDetails(placeID, d), nil
}

// Photo downloads a place photo by reference.
func (c *Client) Photo(ctx context.Context, photoRef string) ([]byte, error) {
	start := time.Now()
	resp, err := c.api.PlacePhoto(ctx, &maps.PlacePhotoRequest{
		PhotoReference: photoRef,
		MaxWidth:       c.photoMaxWidth,
	})
	metrics.ObserveExternalCall("googlemaps", "photo", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: place photo: %w", domain.ErrUpstreamUnavailable, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: place photo: empty body", domain.ErrUpstreamUnavailable)
	}
	defer resp.Data.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Data, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read photo: %w", domain.ErrUpstreamUnavailable, err)
	}
	return data, nil
}

func toDetails(placeID string, d maps.PlaceDetailsResult) domain.PlaceDetails {
	info := domain.PlaceInfo{
		PlaceID:          placeID,
		Name:             orDefault(d.Name, "Unknown"),
		Address:          orDefault(d.FormattedAddress, "Unknown"),
		Rating:           math.Round(float64(d.Rating)*10) / 10,
		UserRatingsTotal: d.UserRatingsTotal,
		Website:          orDefault(d.Website, "Unknown"),
		Description:      "Not found",
		Reviews:          []domain.Review{},
	}
	if d.EditorialSummary != nil && d.EditorialSummary.Overview != "" {
		info.Description = d.EditorialSummary.Overview
	}
	for _, r := range d.Reviews {
		if len(info.Reviews) == maxReviews {
			break
		}
		info.Reviews = append(info.Reviews, domain.Review{Rating: float64(r.Rating), Text: r.Text})
	}

	out := domain.PlaceDetails{PlaceInfo: info}
	if len(d.Photos) > 0 {
		out.PhotoReference = d.Photos[0].PhotoReference
	}
	return out
}

func priceLevel(n int) maps.PriceLevel {
	return maps.PriceLevel(strconv.Itoa(min(max(n, 0), 4)))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
