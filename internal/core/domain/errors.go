package domain

import "errors"

// Domain errors represent pipeline failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderTransient indicates a retryable embedding-provider failure
	// (rate limit, timeout, network). The orchestrator retries the failed
	// batch with backoff.
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderPermanent indicates a non-retryable embedding-provider
	// failure (invalid credentials, malformed request). Surfaced to the
	// operator without retry.
	ErrProviderPermanent = errors.New("permanent provider error")

	// ErrSchemaIncompatible indicates the target collection exists with a
	// mismatched vector configuration. Nothing is migrated implicitly;
	// recreating the collection is an explicit destructive operation.
	ErrSchemaIncompatible = errors.New("collection schema incompatible")

	// ErrDocumentParse indicates a document could not be read or decoded.
	// The document is skipped; ingestion continues for others.
	ErrDocumentParse = errors.New("document parse error")

	// ErrStoreUnavailable indicates the vector store is unreachable.
	// The run halts after the in-flight documents since no further upserts
	// can succeed. Already-recorded fingerprints are left intact.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)
