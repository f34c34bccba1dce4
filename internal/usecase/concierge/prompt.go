package concierge

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"

	"github.com/pairfecto/backend/internal/domain"
)

const assistantPreamble = `You are Pairfecto, an assistant that helps couples plan shared experiences.
You reconcile what one person asks for with what their partner likes, and you always answer in the requested JSON schema.
`

const queryInstructions = `Turn the request below into a restaurant search.
Rules:
- title is a general category such as "Japanese restaurant" rather than "cozy sushi spot". When the request names no category, derive one from the partner preferences; otherwise use "restaurant".
- location is the city or area mentioned in the request, or "%s" when none is given.
- min_price and max_price are Google price levels from 0 to 4. Without an explicit budget use 0 for min_price and the typical level for that area as max_price.
`

const matchInstructions = `Pick the 5 restaurants that best suit both the person asking and their partner, best match first.
Rules:
- weigh the request (cuisine, occasion, requests such as "romantic" or "good wine") and the partner preferences (cuisines, diets, allergies);
- rank places with many negative reviews lower;
- when a place has no description, describe it from its reviews, and rank it lower if it has no reviews either;
- explanation speaks directly to the person asking, for example "Since you want X and your partner enjoys Y, this place works because...";
- copy name, address, rating, user_ratings_total, website and photo_url unchanged from the input.
`

func queryPrompt(prefs domain.PartnerPreferences, userQuery, defaultCity string) (string, error) {
	p, err := json.Marshal(prefs.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}

	var b strings.Builder
	b.WriteString(assistantPreamble)
	fmt.Fprintf(&b, queryInstructions, defaultCity)
	fmt.Fprintf(&b, "\nPartner preferences: %s\nRequest: %s\n", p, userQuery)
	return b.String(), nil
}

func matchPrompt(places []domain.PlaceInfo, prefs domain.PartnerPreferences, userQuery string) (string, error) {
	r, err := json.Marshal(places)
	if err != nil {
		return "", fmt.Errorf("encode places: %w", err)
	}
	p, err := json.Marshal(prefs.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}

	var b strings.Builder
	b.WriteString(assistantPreamble)
	b.WriteString(matchInstructions)
	fmt.Fprintf(&b, "\nRestaurants: %s\nPartner preferences: %s\nRequest: %s\n", r, p, userQuery)
	return b.String(), nil
}

var querySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":     {Type: genai.TypeString},
		"location":  {Type: genai.TypeString},
		"min_price": {Type: genai.TypeInteger},
		"max_price": {Type: genai.TypeInteger},
	},
	Required: []string{"title", "location", "min_price", "max_price"},
}

var matchSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"restaurants": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":               {Type: genai.TypeString},
					"address":            {Type: genai.TypeString},
					"rating":             {Type: genai.TypeNumber},
					"user_ratings_total": {Type: genai.TypeInteger},
					"explanation":        {Type: genai.TypeString},
					"website":            {Type: genai.TypeString},
					"photo_url":          {Type: genai.TypeString},
				},
				Required: []string{"name", "address", "rating", "user_ratings_total", "explanation", "website", "photo_url"},
			},
		},
	},
	Required: []string{"restaurants"},
}
