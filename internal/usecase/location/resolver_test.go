package location

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
)

type mockExtractor struct {
	place string
	err   error
	calls int
}

func (m *mockExtractor) ExtractPlace(context.Context, string) (string, error) {
	m.calls++
	return m.place, m.err
}

type mockGeocoder struct {
	loc   domain.LatLng
	ok    bool
	err   error
	calls []string
}

func (m *mockGeocoder) Geocode(_ context.Context, place string) (domain.LatLng, bool, error) {
	m.calls = append(m.calls, place)
	return m.loc, m.ok, m.err
}

func TestResolve_Explicit(t *testing.T) {
	ex := &mockExtractor{place: "Paris"}
	geo := &mockGeocoder{}
	r := New(ex, geo, 0, zap.NewNop())

	res := r.Resolve(context.Background(), "sushi in Paris", &domain.LatLng{Lat: 37.77, Lng: -122.42})
	if res.Coords == nil || res.Text != "37.7700 -122.4200" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if ex.calls != 0 || len(geo.calls) != 0 {
		t.Error("explicit location must skip extraction and geocoding")
	}
}

func TestResolve_ExtractAndGeocode(t *testing.T) {
	geo := &mockGeocoder{loc: domain.LatLng{Lat: 37.4419, Lng: -122.143}, ok: true}
	r := New(&mockExtractor{place: "Palo Alto"}, geo, 0, zap.NewNop())

	res := r.Resolve(context.Background(), "tacos near Palo Alto", nil)
	if res.Outcome != domain.OutcomeOK || res.Place != "Palo Alto" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if res.Text != "37.4419 -122.1430" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestResolve_ExtractorFailureUsesPattern(t *testing.T) {
	geo := &mockGeocoder{loc: domain.LatLng{Lat: 1, Lng: 2}, ok: true}
	r := New(&mockExtractor{err: errors.New("timeout")}, geo, 0, zap.NewNop())

	res := r.Resolve(context.Background(), "ramen in san mateo", nil)
	if len(geo.calls) != 1 || geo.calls[0] != "san mateo" {
		t.Fatalf("expected geocode of pattern match, got %v", geo.calls)
	}
	if res.Outcome != domain.OutcomeFallback || res.Coords == nil {
		t.Errorf("unexpected resolution %+v", res)
	}
}

func TestResolve_GeocoderFailureDegrades(t *testing.T) {
	r := New(&mockExtractor{place: "Atlantis"}, &mockGeocoder{err: errors.New("401")}, 0, zap.NewNop())

	res := r.Resolve(context.Background(), "dinner in Atlantis", nil)
	if res.Coords != nil || res.Text != "" {
		t.Fatalf("expected no location, got %+v", res)
	}
	if res.Outcome != domain.OutcomeFallback {
		t.Errorf("outcome = %q", res.Outcome)
	}
}

func TestResolve_NoPlace(t *testing.T) {
	geo := &mockGeocoder{}
	r := New(&mockExtractor{}, geo, 0, zap.NewNop())

	res := r.Resolve(context.Background(), "romantic italian dinner", nil)
	if res.Coords != nil || res.Outcome != domain.OutcomeSkipped {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if len(geo.calls) != 0 {
		t.Error("geocoder must not be called without a place")
	}
}

func TestMatchInPlace(t *testing.T) {
	tests := map[string]string{
		"sushi in Palo Alto":      "Palo Alto",
		"Dinner IN new york":      "new york",
		"romantic italian dinner": "",
		"in 2024":                 "",
	}
	for in, want := range tests {
		if got := MatchInPlace(in); got != want {
			t.Errorf("MatchInPlace(%q) = %q, want %q", in, got, want)
		}
	}
}
