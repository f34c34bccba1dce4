package domain

import "errors"

var (
	// ErrInvalidInput signals a malformed request body or field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated signals a missing or rejected caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")

	// ErrVectorStoreUnavailable signals that the restaurant index could not be queried.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrDocumentStoreUnavailable signals that profile documents could not be read or written.
	ErrDocumentStoreUnavailable = errors.New("document store unavailable")
	// ErrUpstreamUnavailable signals an external API failure with no local substitute.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
