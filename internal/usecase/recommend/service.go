// Package recommend runs the restaurant query pipeline end to end.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/logger"
	"github.com/pairfecto/backend/internal/metrics"
)

// DefaultTopK is the number of candidates fetched from the vector index.
const DefaultTopK = 15

// Trace records which branch every pipeline stage took.
type Trace struct {
	Identify    domain.Outcome
	Preferences domain.Outcome
	Location    domain.Outcome
	Embed       domain.Outcome
	Search      domain.Outcome
	Rank        domain.Outcome
	Photos      domain.Outcome
}

func (t Trace) stages() []struct {
	name    string
	outcome domain.Outcome
} {
	return []struct {
		name    string
		outcome domain.Outcome
	}{
		{domain.StageIdentify, t.Identify},
		{domain.StagePreferences, t.Preferences},
		{domain.StageLocation, t.Location},
		{domain.StageEmbed, t.Embed},
		{domain.StageSearch, t.Search},
		{domain.StageRank, t.Rank},
		{domain.StagePhotos, t.Photos},
	}
}

// Fields renders the trace for a log line, skipping stages that never ran.
func (t Trace) Fields() []zap.Field {
	var out []zap.Field
	for _, s := range t.stages() {
		if s.outcome != "" {
			out = append(out, zap.String("stage_"+s.name, string(s.outcome)))
		}
	}
	return out
}

// Service is the query orchestrator.
type Service struct {
	profiles Profiles
	locator  Locator
	embedder Embedder
	searcher Searcher
	ranker   Ranker
	topK     int
}

// New creates the orchestrator.
func New(profiles Profiles, locator Locator, embedder Embedder, searcher Searcher, ranker Ranker) *Service {
	return &Service{
		profiles: profiles,
		locator:  locator,
		embedder: embedder,
		searcher: searcher,
		ranker:   ranker,
		topK:     DefaultTopK,
	}
}

// WithTopK overrides the number of candidates fetched per query.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// Query runs the pipeline for one request. Only a missing identity and the
// document or vector store being unreachable fail the call; every other
// dependency degrades to its local substitute.
func (s *Service) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, Trace, error) {
	var tr Trace
	defer func() { record(ctx, tr) }()

	id, ok := domain.IdentityFromContext(ctx)
	if !ok {
		tr.Identify = domain.OutcomeFailed
		return domain.QueryResponse{}, tr, domain.ErrUnauthenticated
	}
	tr.Identify = domain.OutcomeOK

	if err := req.Validate(); err != nil {
		return domain.QueryResponse{}, tr, err
	}

	// Preferences and location are independent; the location branch never
	// returns an error so a profile failure cannot be masked by it.
	var (
		user    domain.User
		locText string
		g       errgroup.Group
	)
	g.Go(func() error {
		u, err := s.profiles.GetOrCreate(ctx, id)
		if err != nil {
			return fmt.Errorf("load preferences: %w", err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		res := s.locator.Resolve(ctx, req.Text, req.Location)
		locText = res.Text
		tr.Location = res.Outcome
		return nil
	})
	if err := g.Wait(); err != nil {
		tr.Preferences = domain.OutcomeFailed
		return domain.QueryResponse{}, tr, err
	}
	tr.Preferences = domain.OutcomeOK

	prefsText := domain.FormatPreferences(user.Preferences)
	emb := s.embedder.Embed(ctx, ComposeText(req.Text, prefsText, locText))
	tr.Embed = emb.Outcome

	found, err := s.searcher.Search(ctx, emb.Vector, s.topK)
	if err != nil {
		tr.Search = domain.OutcomeFailed
		return domain.QueryResponse{}, tr, fmt.Errorf("vector search: %w", err)
	}
	tr.Search = domain.OutcomeOK

	ranked := s.ranker.Rank(ctx, prefsText, found.Candidates)
	tr.Rank = ranked.Outcome

	tr.Photos = domain.OutcomeOK
	return domain.QueryResponse{Results: AttachPhotos(ranked.Results, found.Photos)}, tr, nil
}

// ComposeText joins the query, preference summary and location into the
// embedding input, dropping blank parts.
func ComposeText(text, prefsText, locText string) string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}
	if prefsText != "" {
		parts = append(parts, prefsText)
	}
	if locText != "" {
		parts = append(parts, "User location "+locText)
	}
	return strings.Join(parts, ". ")
}

// AttachPhotos sets each result's photo list from the search side map,
// capped at domain.MaxPhotosPerResult. Unknown names get an empty list.
func AttachPhotos(results []domain.RankedResult, photos map[string][]string) []domain.RankedResult {
	out := make([]domain.RankedResult, len(results))
	for i, r := range results {
		urls := photos[r.Name]
		if len(urls) > domain.MaxPhotosPerResult {
			urls = urls[:domain.MaxPhotosPerResult]
		}
		r.PhotoURL = append(make([]string, 0, len(urls)), urls...)
		out[i] = r
	}
	return out
}

func record(ctx context.Context, tr Trace) {
	for _, s := range tr.stages() {
		if s.outcome != "" {
			metrics.PipelineStageTotal.WithLabelValues(s.name, string(s.outcome)).Inc()
		}
	}
	logger.FromContext(ctx).Info("query_pipeline", tr.Fields()...)
}
