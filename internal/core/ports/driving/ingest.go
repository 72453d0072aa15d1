// Package driving provides interfaces for the primary (inbound) ports
// exposed to the CLI.
package driving

import (
	"context"

	"github.com/notevault/notevault-cli/internal/core/domain"
)

// IngestOptions configures one ingestion run.
type IngestOptions struct {
	// Collection is the target collection name.
	Collection string

	// Force re-ingests every document regardless of fingerprints.
	Force bool

	// HardDeletePrevious physically deletes prior points instead of
	// tombstoning them.
	HardDeletePrevious bool

	// TypeOverride and CategoryOverride replace the resolved
	// front-matter values when set.
	TypeOverride     string
	CategoryOverride string

	// Concurrency bounds the number of documents processed in parallel.
	Concurrency int

	// BatchSize bounds the number of chunks per embedding request.
	BatchSize int
}

// IngestStatus is a point-in-time snapshot of a running ingestion.
type IngestStatus struct {
	Running   bool
	Processed int
	Skipped   int
	Failed    int
}

// Ingestor coordinates the document ingestion pipeline.
type Ingestor interface {
	// Ingest runs the pipeline over the given files and reports
	// per-document outcomes. A single document's failure does not abort
	// the run; schema incompatibility or an unreachable store does.
	Ingest(ctx context.Context, paths []string, opts IngestOptions) (*domain.IngestReport, error)

	// Reconcile diffs known fingerprints against the current input set
	// and tombstones the points of vanished documents. Pruning never
	// happens implicitly during Ingest.
	Reconcile(ctx context.Context, paths []string, opts IngestOptions) (*domain.ReconcileReport, error)

	// Status returns progress counters for the current run.
	Status() IngestStatus
}
