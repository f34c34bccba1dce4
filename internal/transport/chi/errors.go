package chi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
)

// ErrorCode is the machine-readable error identifier in error bodies.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest               ErrorCode = "bad_request"
	CodeValidationFailed         ErrorCode = "validation_failed"
	CodeUnauthenticated          ErrorCode = "unauthenticated"
	CodeNotFound                 ErrorCode = "not_found"
	CodeAlreadyExists            ErrorCode = "already_exists"
	CodeRateLimited              ErrorCode = "rate_limited"
	CodeVectorStoreUnavailable   ErrorCode = "vector_store_unavailable"
	CodeDocumentStoreUnavailable ErrorCode = "document_store_unavailable"
	CodeUpstreamUnavailable      ErrorCode = "upstream_unavailable"
	CodeInternalError            ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

var sentinels = []error{
	domain.ErrInvalidInput,
	domain.ErrUnauthenticated,
	domain.ErrNotFound,
	domain.ErrAlreadyExists,
	domain.ErrVectorStoreUnavailable,
	domain.ErrDocumentStoreUnavailable,
	domain.ErrUpstreamUnavailable,
}

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrVectorStoreUnavailable, http.StatusServiceUnavailable, CodeVectorStoreUnavailable),
		sentinelHandler(domain.ErrDocumentStoreUnavailable, http.StatusServiceUnavailable, CodeDocumentStoreUnavailable),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler echoes the full message: validation errors describe the
// caller's own input.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
