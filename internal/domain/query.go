package domain

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders the pair as "lat lng" with four decimal places.
func (l LatLng) String() string {
	return fmt.Sprintf("%.4f %.4f", l.Lat, l.Lng)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Text     string  `json:"text"`
	Location *LatLng `json:"location,omitempty"`
}

// UnmarshalJSON rejects a location object that lacks one of its coordinates,
// which a plain decode would silently turn into 0.
func (q *QueryRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text     string `json:"text"`
		Location *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"location"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	q.Text = raw.Text
	q.Location = nil
	if raw.Location != nil {
		if raw.Location.Lat == nil || raw.Location.Lng == nil {
			return fmt.Errorf("%w: location requires both lat and lng", ErrInvalidInput)
		}
		q.Location = &LatLng{Lat: *raw.Location.Lat, Lng: *raw.Location.Lng}
	}
	return nil
}

// Validate checks request invariants.
func (q QueryRequest) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if q.Location != nil {
		if q.Location.Lat < -90 || q.Location.Lat > 90 {
			return fmt.Errorf("%w: lat out of range", ErrInvalidInput)
		}
		if q.Location.Lng < -180 || q.Location.Lng > 180 {
			return fmt.Errorf("%w: lng out of range", ErrInvalidInput)
		}
	}
	return nil
}
