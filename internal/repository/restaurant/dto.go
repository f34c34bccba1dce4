package restaurant

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/pairfecto/backend/internal/db"
	"github.com/pairfecto/backend/internal/domain"
)

// Hash field names of a restaurant record.
const (
	fieldName         = "name"
	fieldArea         = "area"
	fieldAddress      = "address"
	fieldLat          = "lat"
	fieldLng          = "lng"
	fieldRating       = "rating"
	fieldReviewAmount = "review_amount"
	fieldDescription  = "description"
	fieldTag          = "tag"
	fieldReviews      = "reviews"
	fieldPhotos       = "photos"
	fieldVector       = "__vector"
)

// returnFields is every stored field except the vector.
var returnFields = []string{
	fieldName, fieldArea, fieldAddress, fieldLat, fieldLng, fieldRating,
	fieldReviewAmount, fieldDescription, fieldTag, fieldReviews, fieldPhotos,
}

// candidateToHash converts a record to HSET fields. The vector must already have the index dimension.
func candidateToHash(c *domain.Candidate) (map[string]string, error) {
	reviews := c.Reviews
	if reviews == nil {
		reviews = []domain.Review{}
	}
	reviewsJSON, err := json.Marshal(reviews)
	if err != nil {
		return nil, fmt.Errorf("marshal reviews: %w", err)
	}
	photos := c.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("marshal photos: %w", err)
	}

	return map[string]string{
		fieldName:         c.Name,
		fieldArea:         c.Area,
		fieldAddress:      c.Address,
		fieldLat:          strconv.FormatFloat(c.Location.Lat, 'f', -1, 64),
		fieldLng:          strconv.FormatFloat(c.Location.Lng, 'f', -1, 64),
		fieldRating:       strconv.FormatFloat(c.Rating, 'f', -1, 64),
		fieldReviewAmount: strconv.Itoa(c.ReviewAmount),
		fieldDescription:  c.Description,
		fieldTag:          c.Tag,
		fieldReviews:      string(reviewsJSON),
		fieldPhotos:       string(photosJSON),
		fieldVector:       string(db.EncodeVector(c.Vector)),
	}, nil
}

// candidateFromHash hydrates a record from search fields. Missing text fields stay "",
// unparseable numbers become 0 and malformed JSON lists become empty.
func candidateFromHash(id string, m map[string]string) domain.Candidate {
	c := domain.Candidate{
		ID:          id,
		Name:        m[fieldName],
		Area:        m[fieldArea],
		Address:     m[fieldAddress],
		Description: m[fieldDescription],
		Tag:         m[fieldTag],
		Reviews:     []domain.Review{},
		Photos:      []string{},
	}
	c.Location.Lat = parseFloat(m[fieldLat])
	c.Location.Lng = parseFloat(m[fieldLng])
	c.Rating = parseFloat(m[fieldRating])
	if n, err := strconv.Atoi(m[fieldReviewAmount]); err == nil {
		c.ReviewAmount = n
	}
	if raw := m[fieldReviews]; raw != "" {
		var reviews []domain.Review
		if err := json.Unmarshal([]byte(raw), &reviews); err == nil && reviews != nil {
			c.Reviews = reviews
		}
	}
	if raw := m[fieldPhotos]; raw != "" {
		var photos []string
		if err := json.Unmarshal([]byte(raw), &photos); err == nil && photos != nil {
			c.Photos = photos
		}
	}
	return c
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}
