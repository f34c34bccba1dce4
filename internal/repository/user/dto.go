package user

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pairfecto/backend/internal/domain"
)

// userDoc mirrors the users collection. Timestamps are epoch seconds so
// documents written by earlier deployments keep decoding.
type userDoc struct {
	UID         string  `bson:"_id"`
	Email       *string `bson:"email"`
	PhotoURL    *string `bson:"photo_url"`
	Preferences bson.M  `bson:"preferences"`
	Created     float64 `bson:"created"`
	Updated     float64 `bson:"updated"`
}

func (d userDoc) toDomain() domain.User {
	u := domain.User{
		UID:         d.UID,
		Preferences: domain.Preferences{},
		Created:     fromEpoch(d.Created),
		Updated:     fromEpoch(d.Updated),
	}
	if d.Email != nil {
		u.Email = *d.Email
	}
	if d.PhotoURL != nil {
		u.PhotoURL = *d.PhotoURL
	}
	for k, v := range d.Preferences {
		u.Preferences[k] = normalize(v)
	}
	return u
}

// normalize turns driver container types into the plain maps and slices
// produced by encoding/json, which the preference formatter expects.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	default:
		return t
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
