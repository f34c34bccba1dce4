package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/config"
	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/logger"
)

// UIDHeader carries the caller id in header auth mode.
const UIDHeader = "uid"

// devUID is the identity every request gets in dev mode with token auth.
const devUID = "dev"

// TokenVerifier validates a bearer ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (domain.Identity, error)
}

// IdentityMiddleware returns the middleware for the configured auth mode.
// Exactly one mode guards a deployment.
func IdentityMiddleware(mode string, verifier TokenVerifier, devMode bool) func(http.Handler) http.Handler {
	if mode == config.AuthGoogle {
		return BearerIdentityMiddleware(verifier, devMode)
	}
	return HeaderIdentityMiddleware()
}

// HeaderIdentityMiddleware trusts the uid header set by an upstream gateway.
func HeaderIdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := strings.TrimSpace(r.Header.Get(UIDHeader))
			if uid == "" {
				writeError(w, http.StatusBadRequest, CodeBadRequest, "uid header missing")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), domain.Identity{UID: uid})))
		})
	}
}

// BearerIdentityMiddleware verifies "Authorization: Bearer <id token>".
// In dev mode every request is the "dev" user and no token is needed.
func BearerIdentityMiddleware(verifier TokenVerifier, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if devMode {
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), domain.Identity{UID: devUID})))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authorization header must use Bearer scheme")
				return
			}

			id, err := verifier.Verify(r.Context(), auth[len(bearerPrefix):])
			if err != nil {
				logger.FromContext(r.Context()).Info("token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	ctx = logger.With(ctx, zap.String("uid", id.UID))
	return domain.ContextWithIdentity(ctx, id)
}
