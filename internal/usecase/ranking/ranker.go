// Package ranking reorders vector search candidates into the response shape,
// with a generative model when available and a heuristic otherwise.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
)

// generator produces schema-constrained JSON text.
type generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Ranking is the ranked list and the branch that produced it.
type Ranking struct {
	Results []domain.RankedResult
	Outcome domain.Outcome
}

// Ranker never fails; any model problem yields the heuristic list.
type Ranker struct {
	gen     generator
	timeout time.Duration
	silent  bool
	logger  *zap.Logger
}

// New creates a ranker. A nil generator always uses the heuristic.
func New(gen generator, timeout time.Duration, silent bool, logger *zap.Logger) *Ranker {
	return &Ranker{gen: gen, timeout: timeout, silent: silent, logger: logger}
}

// Rank orders cands for the diners described by prefsText.
func (r *Ranker) Rank(ctx context.Context, prefsText string, cands []domain.Candidate) Ranking {
	if r.gen == nil || len(cands) == 0 {
		return Ranking{Results: Heuristic(cands), Outcome: domain.OutcomeFallback}
	}

	results, err := r.rankWithModel(ctx, prefsText, cands)
	if err != nil {
		if !r.silent {
			r.logger.Warn("Model ranking failed, using heuristic order", zap.Error(err))
		}
		return Ranking{Results: Heuristic(cands), Outcome: domain.OutcomeFallback}
	}
	return Ranking{Results: results, Outcome: domain.OutcomeOK}
}

func (r *Ranker) rankWithModel(ctx context.Context, prefsText string, cands []domain.Candidate) ([]domain.RankedResult, error) {
	prompt, err := buildPrompt(prefsText, trimCandidates(cands))
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.gen.GenerateJSON(ctx, prompt, resultSchema)
	if err != nil {
		return nil, err
	}
	return parseResults(text)
}

// parseResults decodes the model reply, caps it and fills defaults.
func parseResults(text string) ([]domain.RankedResult, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("malformed ranking reply: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		return nil, errors.New("ranking reply is not a list")
	}

	var items []domain.RankedResult
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode ranking reply: %w", err)
	}

	out := make([]domain.RankedResult, 0, min(len(items), maxResults))
	for _, it := range items {
		if len(out) == maxResults {
			break
		}
		if strings.TrimSpace(it.Name) == "" {
			continue
		}
		out = append(out, withDefaults(it))
	}
	if len(out) == 0 {
		return nil, errors.New("ranking reply has no usable items")
	}
	return out, nil
}

func withDefaults(it domain.RankedResult) domain.RankedResult {
	if it.Price == "" {
		it.Price = "$$"
	}
	if it.Tag == "" {
		it.Tag = "Unknown"
	}
	if len(it.OpeningHours) == 0 {
		it.OpeningHours = append([]string(nil), defaultOpeningHours...)
	}
	// photos come from the search side map, never from the model
	it.PhotoURL = []string{}
	return it
}

// Heuristic keeps the first ten candidates in order with placeholder formatting.
func Heuristic(cands []domain.Candidate) []domain.RankedResult {
	if len(cands) > maxResults {
		cands = cands[:maxResults]
	}
	out := make([]domain.RankedResult, len(cands))
	for i, c := range cands {
		out[i] = withDefaults(domain.RankedResult{
			Name:          c.Name,
			Rating:        c.Rating,
			TotalReviews:  c.ReviewAmount,
			Tag:           c.Tag,
			Summary:       truncateRunes(c.Description, summaryRunes),
			Description:   c.Description,
			ReviewSummary: "",
		})
	}
	return out
}
