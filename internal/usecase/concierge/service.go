// Package concierge answers free-text restaurant requests from live maps data,
// matched against the caller's partner preferences.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/transport/googlemaps"
)

// ErrNoPhoto is returned by Photo when the place has no photo.
var ErrNoPhoto = errors.New("no photo available")

const (
	topMatches      = 5
	defaultTitle    = "restaurant"
	defaultMaxPrice = 4
)

// Config tunes the pipeline.
type Config struct {
	// PublicURL prefixes photo proxy links, e.g. "https://api.pairfecto.app".
	PublicURL      string
	DefaultCity    string
	MaxConcurrency int
	Timeout        time.Duration
}

// Service runs the maps-backed recommendation flow.
type Service struct {
	partners PartnerSource
	places   Places
	cache    DetailsCache
	gen      generator
	cfg      Config
	logger   *zap.Logger
}

// New creates the service. cache and gen may be nil; without a generator the
// default query and rating order are used.
func New(partners PartnerSource, places Places, cache DetailsCache, gen generator, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "San Francisco"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Service{partners: partners, places: places, cache: cache, gen: gen, cfg: cfg, logger: logger}
}

// Query recommends up to five live restaurants for the request.
func (s *Service) Query(ctx context.Context, userQuery string) (domain.PlaceMatchResponse, error) {
	id, ok := domain.IdentityFromContext(ctx)
	if !ok {
		return domain.PlaceMatchResponse{}, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(userQuery) == "" {
		return domain.PlaceMatchResponse{}, fmt.Errorf("%w: user_query is required", domain.ErrInvalidInput)
	}

	partner, err := s.partners.Get(ctx, id.UID)
	if err != nil {
		return domain.PlaceMatchResponse{}, fmt.Errorf("load partner: %w", err)
	}

	q := s.extractQuery(ctx, partner.Preferences, userQuery)
	s.logger.Info("Restaurant query extracted",
		zap.String("title", q.Title),
		zap.String("location", q.Location),
		zap.Int("min_price", q.MinPrice),
		zap.Int("max_price", q.MaxPrice),
	)

	loc, err := s.places.Geocode(ctx, strings.ToLower(q.Location))
	if err != nil {
		if errors.Is(err, googlemaps.ErrNoResults) {
			return domain.PlaceMatchResponse{Restaurants: []domain.MatchedPlace{}}, nil
		}
		return domain.PlaceMatchResponse{}, fmt.Errorf("geocode %q: %w", q.Location, err)
	}

	ids, err := s.places.NearbyRestaurants(ctx, loc, q)
	if err != nil {
		return domain.PlaceMatchResponse{}, fmt.Errorf("nearby search: %w", err)
	}

	places, err := s.collectDetails(ctx, ids)
	if err != nil {
		return domain.PlaceMatchResponse{}, err
	}
	if len(places) == 0 {
		return domain.PlaceMatchResponse{Restaurants: []domain.MatchedPlace{}}, nil
	}

	return domain.PlaceMatchResponse{Restaurants: s.match(ctx, places, partner.Preferences, userQuery)}, nil
}

// Photo returns the first photo of a place as JPEG bytes.
func (s *Service) Photo(ctx context.Context, placeID string) ([]byte, error) {
	d, err := s.details(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("photo details: %w", err)
	}
	if d.PhotoReference == "" {
		return nil, ErrNoPhoto
	}

	data, err := s.places.Photo(ctx, d.PhotoReference)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	return data, nil
}

// extractQuery asks the model for a structured search and fills every blank
// with a default. Any model failure yields the default query.
func (s *Service) extractQuery(ctx context.Context, prefs domain.PartnerPreferences, userQuery string) domain.PlaceQuery {
	q := domain.PlaceQuery{}
	if s.gen != nil {
		if got, err := s.generateQuery(ctx, prefs, userQuery); err != nil {
			s.logger.Warn("Query extraction failed, using defaults", zap.Error(err))
		} else {
			q = got
		}
	}

	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" {
		q.Title = defaultTitle
	}
	q.Location = strings.TrimSpace(q.Location)
	if q.Location == "" {
		q.Location = s.cfg.DefaultCity
	}
	q.MinPrice = clampPrice(q.MinPrice)
	q.MaxPrice = clampPrice(q.MaxPrice)
	if q.MaxPrice == 0 || q.MaxPrice < q.MinPrice {
		q.MaxPrice = defaultMaxPrice
	}
	return q
}

func (s *Service) generateQuery(ctx context.Context, prefs domain.PartnerPreferences, userQuery string) (domain.PlaceQuery, error) {
	prompt, err := queryPrompt(prefs, userQuery, s.cfg.DefaultCity)
	if err != nil {
		return domain.PlaceQuery{}, err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	text, err := s.gen.GenerateJSON(callCtx, prompt, querySchema)
	if err != nil {
		return domain.PlaceQuery{}, err
	}
	var q domain.PlaceQuery
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		return domain.PlaceQuery{}, fmt.Errorf("decode query: %w", err)
	}
	return q, nil
}

// collectDetails loads details for ids concurrently, preserving provider order.
// Places whose details fail are dropped; a cancelled request aborts.
func (s *Service) collectDetails(ctx context.Context, ids []string) ([]domain.PlaceInfo, error) {
	found := make([]*domain.PlaceInfo, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := s.details(gctx, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn("Place details failed, skipping place", zap.String("place_id", id), zap.Error(err))
				return nil
			}
			info := d.PlaceInfo
			info.PhotoURL = s.photoURL(id)
			found[i] = &info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}

	out := make([]domain.PlaceInfo, 0, len(ids))
	for _, p := range found {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Service) details(ctx context.Context, placeID string) (domain.PlaceDetails, error) {
	if s.cache != nil {
		if d, ok := s.cache.Get(ctx, placeID); ok {
			return d, nil
		}
	}
	d, err := s.places.Details(ctx, placeID)
	if err != nil {
		return domain.PlaceDetails{}, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, d)
	}
	return d, nil
}

// match asks the model for the best five; on failure the five best rated are
// returned without explanations.
func (s *Service) match(ctx context.Context, places []domain.PlaceInfo, prefs domain.PartnerPreferences, userQuery string) []domain.MatchedPlace {
	if s.gen != nil {
		got, err := s.generateMatch(ctx, places, prefs, userQuery)
		if err == nil {
			return got
		}
		s.logger.Warn("Restaurant matching failed, ordering by rating", zap.Error(err))
	}
	return TopRated(places, topMatches)
}

func (s *Service) generateMatch(ctx context.Context, places []domain.PlaceInfo, prefs domain.PartnerPreferences, userQuery string) ([]domain.MatchedPlace, error) {
	prompt, err := matchPrompt(places, prefs, userQuery)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	text, err := s.gen.GenerateJSON(callCtx, prompt, matchSchema)
	if err != nil {
		return nil, err
	}

	var resp domain.PlaceMatchResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}

	byName := make(map[string]domain.PlaceInfo, len(places))
	for _, p := range places {
		byName[p.Name] = p
	}

	out := make([]domain.MatchedPlace, 0, topMatches)
	for _, m := range resp.Restaurants {
		if len(out) == topMatches {
			break
		}
		src, ok := byName[m.Name]
		if !ok {
			continue
		}
		// links always come from provider data
		m.PhotoURL = src.PhotoURL
		m.Website = src.Website
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.New("match reply names no known restaurant")
	}
	return out, nil
}

func (s *Service) photoURL(placeID string) string {
	return fmt.Sprintf("%s/restaurants/%s/photo", s.cfg.PublicURL, placeID)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// TopRated returns the n best rated places, ties kept in provider order.
func TopRated(places []domain.PlaceInfo, n int) []domain.MatchedPlace {
	sorted := append([]domain.PlaceInfo(nil), places...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rating > sorted[j].Rating })
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]domain.MatchedPlace, len(sorted))
	for i, p := range sorted {
		out[i] = domain.MatchedPlace{
			Name:             p.Name,
			Address:          p.Address,
			Rating:           p.Rating,
			UserRatingsTotal: p.UserRatingsTotal,
			Website:          p.Website,
			PhotoURL:         p.PhotoURL,
		}
	}
	return out
}

func clampPrice(n int) int {
	return max(0, min(n, 4))
}
