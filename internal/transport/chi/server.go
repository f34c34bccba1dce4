// Package chi exposes the HTTP API on a chi router.
package chi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/usecase/concierge"
	"github.com/pairfecto/backend/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Services bundles the use cases behind the routes.
type Services struct {
	Query     QueryService
	Users     UserService
	Accounts  AccountService
	Partners  PartnerService
	Concierge ConciergeService
	Health    HealthService
}

// Options configures route-level middleware.
type Options struct {
	// Identity resolves the caller on every protected route.
	Identity        func(http.Handler) http.Handler
	CORSOrigins     []string
	QueryRatePerMin int
}

// Server holds the HTTP handlers.
type Server struct {
	svc           Services
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	return &Server{svc: svc, logger: logger, errorHandlers: defaultErrorHandlers()}
}

// Register mounts every route on r. It must run before any route is added to r.
func (s *Server) Register(r chi.Router, opts Options) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", UIDHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/restaurants/{place_id}/photo", s.RestaurantPhoto)

	r.Group(func(r chi.Router) {
		if opts.Identity != nil {
			r.Use(opts.Identity)
		}

		r.With(s.queryRateLimit(opts.QueryRatePerMin)).Post("/query", s.Query)

		r.Get("/user", s.GetUser)
		r.Post("/user/prefs", s.UpdatePreferences)

		r.Get("/accounts", s.GetAccount)
		r.Delete("/accounts", s.DeleteAccount)

		r.Get("/partners", s.GetPartner)
		r.Post("/partners", s.CreatePartner)
		r.Get("/partners/{partner_id}", s.GetPartnerByID)
		r.Delete("/partners/{partner_id}", s.DeletePartner)

		r.Post("/restaurants/query", s.RestaurantQuery)
		r.Get("/token/verify", s.VerifyToken)
	})
}

// queryRateLimit limits each caller, falling back to the client IP.
func (s *Server) queryRateLimit(perMin int) func(http.Handler) http.Handler {
	if perMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMin, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if id, ok := domain.IdentityFromContext(r.Context()); ok {
				return "uid:" + id.UID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many queries, retry later")
		}),
	)
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, _, err := s.svc.Query.Query(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if resp.Results == nil {
		resp.Results = []domain.RankedResult{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser handles GET /user.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	u, err := s.svc.Users.GetOrCreate(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if u.Preferences == nil {
		u.Preferences = domain.Preferences{}
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdatePreferences handles POST /user/prefs.
func (s *Server) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var prefs domain.Preferences
	if !s.decode(w, r, &prefs) {
		return
	}
	if err := s.svc.Users.UpdatePreferences(r.Context(), id.UID, prefs); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccount handles GET /accounts.
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	acc, err := s.svc.Accounts.GetOrCreate(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// DeleteAccount handles DELETE /accounts.
func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := s.svc.Accounts.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPartner handles GET /partners. A caller without a partner gets null.
func (s *Server) GetPartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Partners.Get(r.Context(), id.UID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetPartnerByID handles GET /partners/{partner_id}.
func (s *Server) GetPartnerByID(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Partners.GetByID(r.Context(), id.UID, chi.URLParam(r, "partner_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePartner handles POST /partners.
func (s *Server) CreatePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var in domain.PartnerCreate
	if !s.decode(w, r, &in) {
		return
	}
	p, err := s.svc.Partners.Create(r.Context(), id.UID, in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.logger.Info("Partner created", zap.String("uid", id.UID), zap.String("partner_id", p.ID))
	writeJSON(w, http.StatusOK, p)
}

// DeletePartner handles DELETE /partners/{partner_id}.
func (s *Server) DeletePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := s.svc.Partners.Delete(r.Context(), id.UID, chi.URLParam(r, "partner_id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restaurantQueryRequest struct {
	UserQuery string `json:"user_query"`
}

// RestaurantQuery handles POST /restaurants/query.
func (s *Server) RestaurantQuery(w http.ResponseWriter, r *http.Request) {
	var req restaurantQueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.Concierge.Query(r.Context(), req.UserQuery)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RestaurantPhoto handles GET /restaurants/{place_id}/photo. Failures are
// plain text so image tags degrade to alt text.
func (s *Server) RestaurantPhoto(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "place_id")
	data, err := s.svc.Concierge.Photo(r.Context(), placeID)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if errors.Is(err, concierge.ErrNoPhoto) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No photo available."))
			return
		}
		s.logger.Warn("photo proxy failed", zap.String("place_id", placeID), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("Failed to retrieve photo."))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// VerifyToken handles GET /token/verify. Reaching it means the identity
// middleware accepted the token.
func (s *Server) VerifyToken(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != health.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "unauthenticated")
	}
	return id, ok
}
