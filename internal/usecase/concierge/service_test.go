package concierge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/transport/googlemaps"
)

// --- Mocks ---

type mockPartners struct {
	partner domain.Partner
	err     error
}

func (m *mockPartners) Get(context.Context, string) (domain.Partner, error) { return m.partner, m.err }

type mockPlaces struct {
	mu         sync.Mutex
	geocodeErr error
	geocoded   string
	query      domain.PlaceQuery
	ids        []string
	details    map[string]domain.PlaceDetails
	detailsN   int
	photo      []byte
	photoErr   error
}

func (m *mockPlaces) Geocode(_ context.Context, address string) (domain.LatLng, error) {
	m.geocoded = address
	return domain.LatLng{Lat: 37.77, Lng: -122.42}, m.geocodeErr
}

func (m *mockPlaces) NearbyRestaurants(_ context.Context, _ domain.LatLng, q domain.PlaceQuery) ([]string, error) {
	m.query = q
	return m.ids, nil
}

func (m *mockPlaces) Details(_ context.Context, placeID string) (domain.PlaceDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailsN++
	d, ok := m.details[placeID]
	if !ok {
		return domain.PlaceDetails{}, fmt.Errorf("%w: place details", domain.ErrUpstreamUnavailable)
	}
	return d, nil
}

func (m *mockPlaces) Photo(context.Context, string) ([]byte, error) { return m.photo, m.photoErr }

type memCache struct {
	mu sync.Mutex
	m  map[string]domain.PlaceDetails
}

func (c *memCache) Get(_ context.Context, id string) (domain.PlaceDetails, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.m[id]
	return d, ok
}

func (c *memCache) Put(_ context.Context, d domain.PlaceDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[d.PlaceID] = d
}

// scriptedGenerator answers by schema: query extraction first, matching second.
type scriptedGenerator struct {
	queryReply string
	queryErr   error
	matchReply string
	matchErr   error
	prompts    []string
}

func (g *scriptedGenerator) GenerateJSON(_ context.Context, prompt string, schema *genai.Schema) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if schema == querySchema {
		return g.queryReply, g.queryErr
	}
	return g.matchReply, g.matchErr
}

func place(id, name string, rating float64) domain.PlaceDetails {
	return domain.PlaceDetails{
		PlaceInfo: domain.PlaceInfo{
			PlaceID: id, Name: name, Address: "1 Main St", Rating: rating,
			UserRatingsTotal: 10, Website: "https://" + id, Description: "Not found",
		},
		PhotoReference: "ref-" + id,
	}
}

func fixture() *mockPlaces {
	return &mockPlaces{
		ids: []string{"a", "b", "c", "d", "e", "f", "missing"},
		details: map[string]domain.PlaceDetails{
			"a": place("a", "Alpha", 4.1),
			"b": place("b", "Bravo", 4.8),
			"c": place("c", "Charlie", 3.9),
			"d": place("d", "Delta", 4.8),
			"e": place("e", "Echo", 4.5),
			"f": place("f", "Foxtrot", 2.0),
		},
	}
}

func caller() context.Context {
	return domain.ContextWithIdentity(context.Background(), domain.Identity{UID: "g1"})
}

func newTestService(places *mockPlaces, gen generator) *Service {
	partners := &mockPartners{partner: domain.Partner{Name: "Sam", Preferences: domain.PartnerPreferences{
		PreferredCuisines: []domain.Cuisine{domain.CuisineItalian},
	}}}
	return New(partners, places, &memCache{m: map[string]domain.PlaceDetails{}}, gen,
		Config{PublicURL: "https://api.example.com/", MaxConcurrency: 2}, zap.NewNop())
}

// --- Tests ---

func TestQuery_ModelPath(t *testing.T) {
	gen := &scriptedGenerator{
		queryReply: `{"title":"Italian restaurant","location":"Oakland","min_price":1,"max_price":3}`,
		matchReply: `{"restaurants":[
			{"name":"Echo","address":"1 Main St","rating":4.5,"user_ratings_total":10,"explanation":"Since you want pasta...","website":"x","photo_url":"y"},
			{"name":"Ghost","address":"","rating":5,"user_ratings_total":1,"explanation":"","website":"","photo_url":""}
		]}`,
	}
	places := fixture()
	svc := newTestService(places, gen)

	resp, err := svc.Query(caller(), "romantic pasta in Oakland")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if places.geocoded != "oakland" {
		t.Errorf("geocoded %q, want lower-cased location", places.geocoded)
	}
	if places.query.Title != "Italian restaurant" || places.query.MinPrice != 1 || places.query.MaxPrice != 3 {
		t.Errorf("unexpected query %+v", places.query)
	}
	if len(resp.Restaurants) != 1 {
		t.Fatalf("expected unknown names dropped, got %+v", resp.Restaurants)
	}
	got := resp.Restaurants[0]
	if got.Name != "Echo" || got.Explanation == "" {
		t.Errorf("unexpected match %+v", got)
	}
	if got.PhotoURL != "https://api.example.com/restaurants/e/photo" || got.Website != "https://e" {
		t.Errorf("links not taken from provider data: %+v", got)
	}
	if len(gen.prompts) != 2 || !strings.Contains(gen.prompts[0], "Italian") {
		t.Errorf("partner preferences missing from prompt")
	}
}

func TestQuery_ModelFailuresUseDefaults(t *testing.T) {
	gen := &scriptedGenerator{queryErr: errors.New("breaker open"), matchReply: "not json"}
	places := fixture()
	svc := newTestService(places, gen)

	resp, err := svc.Query(caller(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.PlaceQuery{Title: "restaurant", Location: "San Francisco", MinPrice: 0, MaxPrice: 4}
	if places.query != want {
		t.Errorf("query = %+v, want %+v", places.query, want)
	}
	if places.geocoded != "san francisco" {
		t.Errorf("geocoded %q", places.geocoded)
	}

	names := make([]string, len(resp.Restaurants))
	for i, r := range resp.Restaurants {
		names[i] = r.Name
		if r.Explanation != "" {
			t.Errorf("fallback must not invent explanations: %+v", r)
		}
	}
	if got := strings.Join(names, ","); got != "Bravo,Delta,Echo,Alpha,Charlie" {
		t.Errorf("order = %s", got)
	}
}

func TestQuery_NoGenerator(t *testing.T) {
	resp, err := newTestService(fixture(), nil).Query(caller(), "dinner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Restaurants) != topMatches {
		t.Errorf("expected %d results, got %d", topMatches, len(resp.Restaurants))
	}
}

func TestQuery_PartnerMissing(t *testing.T) {
	svc := New(&mockPartners{err: domain.ErrNotFound}, fixture(), nil, nil, Config{}, zap.NewNop())
	_, err := svc.Query(caller(), "dinner")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_Validation(t *testing.T) {
	svc := newTestService(fixture(), nil)
	if _, err := svc.Query(context.Background(), "dinner"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Query(caller(), "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQuery_UnknownLocation(t *testing.T) {
	places := fixture()
	places.geocodeErr = fmt.Errorf("%w: %q", googlemaps.ErrNoResults, "atlantis")
	resp, err := newTestService(places, nil).Query(caller(), "dinner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Restaurants == nil || len(resp.Restaurants) != 0 {
		t.Errorf("expected empty list, got %+v", resp.Restaurants)
	}
}

func TestQuery_GeocoderDown(t *testing.T) {
	places := fixture()
	places.geocodeErr = fmt.Errorf("%w: geocode", domain.ErrUpstreamUnavailable)
	_, err := newTestService(places, nil).Query(caller(), "dinner")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestDetails_Cached(t *testing.T) {
	places := fixture()
	svc := newTestService(places, nil)

	for range 2 {
		if _, err := svc.Query(caller(), "dinner"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// six cached places plus the missing one fetched twice
	if places.detailsN != 8 {
		t.Errorf("details calls = %d, want 8", places.detailsN)
	}
}

func TestPhoto(t *testing.T) {
	places := fixture()
	places.photo = []byte{0xff, 0xd8}
	svc := newTestService(places, nil)

	data, err := svc.Photo(context.Background(), "a")
	if err != nil || len(data) != 2 {
		t.Fatalf("got %v, %v", data, err)
	}

	places.details["x"] = domain.PlaceDetails{PlaceInfo: domain.PlaceInfo{PlaceID: "x", Name: "No pics"}}
	if _, err := svc.Photo(context.Background(), "x"); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("expected ErrNoPhoto, got %v", err)
	}

	places.photoErr = fmt.Errorf("%w: place photo", domain.ErrUpstreamUnavailable)
	if _, err := svc.Photo(context.Background(), "b"); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestTopRated(t *testing.T) {
	places := []domain.PlaceInfo{
		{Name: "A", Rating: 4}, {Name: "B", Rating: 5}, {Name: "C", Rating: 4},
	}
	got := TopRated(places, 2)
	if len(got) != 2 || got[0].Name != "B" || got[1].Name != "A" {
		t.Errorf("unexpected order %+v", got)
	}
}
