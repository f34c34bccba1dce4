// Package googleauth verifies Google and Firebase ID tokens against the published signing keys.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pairfecto/backend/internal/domain"
)

// Config selects the key set and the accepted token audiences and issuers.
type Config struct {
	JWKSURL   string
	ClientIDs []string
	// Issuers is optional; empty accepts any issuer.
	Issuers   []string
	ClockSkew time.Duration
	KeyTTL    time.Duration
}

// Verifier checks RS256 ID tokens.
type Verifier struct {
	keys      *keyCache
	clientIDs []string
	issuers   []string
	skew      time.Duration
}

type claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// New creates a verifier. client may be nil.
func New(cfg Config, client *http.Client) *Verifier {
	skew := cfg.ClockSkew
	if skew == 0 {
		skew = time.Minute
	}
	return &Verifier{
		keys:      newKeyCache(cfg.JWKSURL, client, cfg.KeyTTL),
		clientIDs: cfg.ClientIDs,
		issuers:   cfg.Issuers,
		skew:      skew,
	}
}

// Verify validates the token and returns the identity it carries.
// Every rejection wraps domain.ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty token", domain.ErrUnauthenticated)
	}

	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return v.keys.key(ctx, kid)
	}, jwt.WithLeeway(v.skew), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}

	if !slices.ContainsFunc(c.Audience, func(aud string) bool { return slices.Contains(v.clientIDs, aud) }) {
		return domain.Identity{}, fmt.Errorf("%w: audience %v not allowed", domain.ErrUnauthenticated, c.Audience)
	}
	if len(v.issuers) > 0 && !slices.Contains(v.issuers, c.Issuer) {
		return domain.Identity{}, fmt.Errorf("%w: issuer %q not allowed", domain.ErrUnauthenticated, c.Issuer)
	}
	if c.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", domain.ErrUnauthenticated)
	}

	return domain.Identity{
		UID:     c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Picture: c.Picture,
	}, nil
}
