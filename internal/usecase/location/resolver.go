// Package location finds the place a free-text query refers to and resolves it to coordinates.
package location

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
)

// Extractor finds a place phrase in free text. "" means no place was found.
type Extractor interface {
	ExtractPlace(ctx context.Context, text string) (string, error)
}

// Geocoder resolves a place phrase. ok is false when nothing matched.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (loc domain.LatLng, ok bool, err error)
}

var inPlace = regexp.MustCompile(`(?i)\bin ([A-Za-z][A-Za-z\s]+)`)

// Resolution is the outcome of resolving a query's location.
type Resolution struct {
	Coords *domain.LatLng
	// Text is Coords formatted for embedding composition, "" without coordinates.
	Text    string
	Place   string
	Outcome domain.Outcome
}

// Resolver never returns an error: every failure degrades to "no location".
type Resolver struct {
	extractor Extractor
	geocoder  Geocoder
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a resolver. Either collaborator may be nil when not configured.
func New(extractor Extractor, geocoder Geocoder, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{extractor: extractor, geocoder: geocoder, timeout: timeout, logger: logger}
}

// Resolve returns explicit unchanged when set; otherwise extracts and geocodes a place from text.
func (r *Resolver) Resolve(ctx context.Context, text string, explicit *domain.LatLng) Resolution {
	if explicit != nil {
		loc := *explicit
		return Resolution{Coords: &loc, Text: loc.String(), Outcome: domain.OutcomeSkipped}
	}

	place, degraded := r.extract(ctx, text)
	if place == "" {
		return Resolution{Outcome: domain.OutcomeSkipped}
	}
	if r.geocoder == nil {
		return Resolution{Place: place, Outcome: domain.OutcomeFallback}
	}

	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	loc, ok, err := r.geocoder.Geocode(callCtx, place)
	if err != nil {
		r.logger.Warn("Geocoding failed, continuing without location", zap.String("place", place), zap.Error(err))
		return Resolution{Place: place, Outcome: domain.OutcomeFallback}
	}
	if !ok {
		return Resolution{Place: place, Outcome: domain.OutcomeFallback}
	}

	outcome := domain.OutcomeOK
	if degraded {
		outcome = domain.OutcomeFallback
	}
	return Resolution{Coords: &loc, Text: loc.String(), Place: place, Outcome: outcome}
}

// extract asks the extractor first and falls back to the "in <place>" pattern.
// degraded reports that the pattern had to be used because the extractor failed.
func (r *Resolver) extract(ctx context.Context, text string) (place string, degraded bool) {
	if r.extractor != nil {
		callCtx, cancel := r.withTimeout(ctx)
		defer cancel()

		p, err := r.extractor.ExtractPlace(callCtx, text)
		if err == nil && strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p), false
		}
		if err != nil {
			r.logger.Warn("Place extraction failed, using pattern fallback", zap.Error(err))
			degraded = true
		}
	}
	return MatchInPlace(text), degraded
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// MatchInPlace returns the phrase following "in " in text, or "".
func MatchInPlace(text string) string {
	m := inPlace.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
