package domain

import "errors"

var (
	// ErrPostNotFound signals a missing post.
	ErrPostNotFound = errors.New("post not found")
	// ErrClusterNotFound signals a missing cluster.
	ErrClusterNotFound = errors.New("cluster not found")
	// ErrInvalidInput signals malformed input (empty text, bad vector length).
	// Never retried, surfaced to the caller immediately.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDependencyTimeout signals that an adapter or provider exceeded its deadline.
	ErrDependencyTimeout = errors.New("dependency timed out")
	// ErrDependencyUnavailable signals a refused connection or 5xx from a dependency.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrAssignmentConflict signals a centroid update race detected on persist.
	ErrAssignmentConflict = errors.New("assignment conflict")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
