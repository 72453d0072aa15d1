package driven

import (
	"context"

	"github.com/notevault/notevault-cli/internal/core/domain"
)

// FingerprintStore persists the last-ingested content hash per document.
// Content hashing is the single source of truth for change detection;
// file-modification times are unreliable across copy and sync operations.
type FingerprintStore interface {
	// ShouldReingest reports whether the document must be (re-)ingested:
	// true on first sight of the doc ID or when the current hash differs
	// from the recorded one.
	ShouldReingest(ctx context.Context, docID, contentSHA string) (bool, error)

	// RecordIngested stores the fingerprint of a successfully ingested
	// document. Called only after the document's points are fully
	// upserted, so a failed run leaves the prior fingerprint intact.
	RecordIngested(ctx context.Context, fp domain.Fingerprint) error

	// Get retrieves the fingerprint for a document, or domain.ErrNotFound.
	Get(ctx context.Context, docID string) (*domain.Fingerprint, error)

	// List returns all known fingerprints, for reconciliation.
	List(ctx context.Context) ([]domain.Fingerprint, error)

	// Delete removes a fingerprint, used when a document's points are
	// reconciled away.
	Delete(ctx context.Context, docID string) error

	// Close releases the underlying store.
	Close() error
}
