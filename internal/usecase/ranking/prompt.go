package ranking

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"

	"github.com/pairfecto/backend/internal/domain"
)

const (
	maxCandidates    = 15
	maxResults       = 10
	reviewsPerRecord = 2
	reviewRunes      = 160
	summaryRunes     = 80
)

var defaultOpeningHours = []string{"9:30", "20:00"}

// candidatePayload is the trimmed record shown to the model.
type candidatePayload struct {
	Name         string          `json:"name"`
	Area         string          `json:"area,omitempty"`
	Address      string          `json:"address,omitempty"`
	Rating       float64         `json:"rating"`
	ReviewAmount int             `json:"total_reviews"`
	Tag          string          `json:"tag,omitempty"`
	Description  string          `json:"description"`
	Reviews      []domain.Review `json:"reviews"`
}

func trimCandidates(cands []domain.Candidate) []candidatePayload {
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	out := make([]candidatePayload, len(cands))
	for i, c := range cands {
		reviews := c.Reviews
		if len(reviews) > reviewsPerRecord {
			reviews = reviews[:reviewsPerRecord]
		}
		trimmed := make([]domain.Review, len(reviews))
		for j, r := range reviews {
			trimmed[j] = domain.Review{Rating: r.Rating, Text: truncateRunes(r.Text, reviewRunes)}
		}
		out[i] = candidatePayload{
			Name:         c.Name,
			Area:         c.Area,
			Address:      c.Address,
			Rating:       c.Rating,
			ReviewAmount: c.ReviewAmount,
			Tag:          c.Tag,
			Description:  c.Description,
			Reviews:      trimmed,
		}
	}
	return out
}

func buildPrompt(prefsText string, cands []candidatePayload) (string, error) {
	data, err := json.Marshal(cands)
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}
	if strings.TrimSpace(prefsText) == "" {
		prefsText = "N/A"
	}

	var b strings.Builder
	b.WriteString("You are Pairfecto, a restaurant recommender for couples.\n")
	b.WriteString("Order the candidate restaurants below from best to worst fit for the diners' preferences ")
	b.WriteString("and return at most 10 of them as a JSON array.\n\n")
	fmt.Fprintf(&b, "Diner preferences: %s\n\n", prefsText)
	fmt.Fprintf(&b, "Candidates (%d):\n%s\n\n", len(cands), data)
	b.WriteString("For every restaurant you return:\n")
	b.WriteString("- copy name, rating, total_reviews and description from the candidate unchanged;\n")
	b.WriteString("- price is a dollar-sign band such as \"$$\";\n")
	b.WriteString("- tag is the candidate's tag, or \"Unknown\" when it has none;\n")
	b.WriteString("- summary is one personal sentence on why it suits these diners;\n")
	b.WriteString("- review_summary is one sentence on the mood the reviews describe;\n")
	b.WriteString("- opening_hours is [\"9:30\", \"20:00\"] unless the data says otherwise.\n")
	b.WriteString("Reply with the JSON array only.")
	return b.String(), nil
}

// resultSchema constrains the model reply to an array of ranked results.
var resultSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":           {Type: genai.TypeString},
			"rating":         {Type: genai.TypeNumber},
			"total_reviews":  {Type: genai.TypeInteger},
			"price":          {Type: genai.TypeString},
			"tag":            {Type: genai.TypeString},
			"summary":        {Type: genai.TypeString},
			"description":    {Type: genai.TypeString},
			"review_summary": {Type: genai.TypeString},
			"opening_hours":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"name", "rating", "total_reviews", "price", "tag", "summary", "description"},
	},
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
