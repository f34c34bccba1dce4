package domain

// Review is a single guest review attached to a restaurant record.
type Review struct {
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

// Candidate is a restaurant record as stored in the vector index.
// Text fields are never null: absent values decode as "".
type Candidate struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	Area         string    `json:"area"`
	Address      string    `json:"address"`
	Location     LatLng    `json:"location"`
	Rating       float64   `json:"rating"`
	ReviewAmount int       `json:"review_amount"`
	Description  string    `json:"description"`
	Tag          string    `json:"tag,omitempty"`
	Reviews      []Review  `json:"reviews"`
	Photos       []string  `json:"photos,omitempty"`
	Vector       []float32 `json:"-"`
}

// MaxPhotosPerResult caps photo URLs attached to a ranked result.
const MaxPhotosPerResult = 4

// RankedResult is one entry in the POST /query response.
type RankedResult struct {
	Name          string   `json:"name"`
	PhotoURL      []string `json:"photo_url"`
	Rating        float64  `json:"rating"`
	TotalReviews  int      `json:"total_reviews"`
	Price         string   `json:"price"`
	Tag           string   `json:"tag"`
	Summary       string   `json:"summary"`
	Description   string   `json:"description"`
	ReviewSummary string   `json:"review_summary"`
	OpeningHours  []string `json:"opening_hours"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Results []RankedResult `json:"results"`
}

// PlaceQuery is the structured search derived from a free-text request in the maps pipeline.
type PlaceQuery struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	MinPrice int    `json:"min_price"`
	MaxPrice int    `json:"max_price"`
}

// PlaceInfo is a live restaurant listing from the maps provider.
type PlaceInfo struct {
	PlaceID          string   `json:"-"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Reviews          []Review `json:"reviews"`
	Website          string   `json:"website"`
	Description      string   `json:"description"`
	PhotoURL         string   `json:"photo_url"`
}

// MatchedPlace is one entry in the POST /restaurants/query response.
type MatchedPlace struct {
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
	Explanation      string  `json:"explanation"`
	Website          string  `json:"website"`
	PhotoURL         string  `json:"photo_url"`
}

// PlaceMatchResponse is the body returned by POST /restaurants/query.
type PlaceMatchResponse struct {
	Restaurants []MatchedPlace `json:"restaurants"`
}

// PlaceDetails is a PlaceInfo plus provider data that stays inside the backend.
type PlaceDetails struct {
	PlaceInfo
	PhotoReference string `json:"photo_reference,omitempty"`
}
