package domain

import "errors"

// Failure taxonomy. Callers branch with errors.Is; wrapped messages carry
// the operation-specific detail.
var (
	// ErrEmbeddingUnavailable means the embedding service could not be
	// reached (connection failure or timeout). Recoverable; no automatic
	// retry is performed.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingService means the embedding service answered but the
	// response is unusable: non-2xx status, malformed body, or a vector of
	// the wrong dimension. Permanent for the current call.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrStoreUnavailable means the vector store could not be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreOperation means the vector store rejected an upsert, query
	// or delete.
	ErrStoreOperation = errors.New("vector store operation failed")
)
