package domain

// DocState tracks how far a document progressed through the pipeline.
// Any stage failure transitions to StateFailed without advancing the
// fingerprint; the document is retried on the next run.
type DocState string

const (
	StateUnseen        DocState = "unseen"
	StateFingerprinted DocState = "fingerprinted"
	StateChunked       DocState = "chunked"
	StateEmbedded      DocState = "embedded"
	StateUpserted      DocState = "upserted"
	StateRecorded      DocState = "recorded"
	StateSkipped       DocState = "skipped"
	StateFailed        DocState = "failed"
)

// DocumentResult is the per-document outcome of an ingestion run.
type DocumentResult struct {
	// Path is the source file location.
	Path string

	// DocID is the stable document identifier, empty if loading failed.
	DocID string

	// State is the terminal pipeline state for this run.
	State DocState

	// Chunks is the number of points upserted (0 when skipped or failed).
	Chunks int

	// Err carries the failure reason when State is StateFailed.
	Err error
}

// IngestReport aggregates the outcomes of one ingestion run.
type IngestReport struct {
	Processed int
	Skipped   int
	Failed    int

	// Results holds one entry per input document.
	Results []DocumentResult
}

// Add records a document outcome and updates the counters.
func (r *IngestReport) Add(res DocumentResult) {
	r.Results = append(r.Results, res)
	switch res.State {
	case StateRecorded:
		r.Processed++
	case StateSkipped:
		r.Skipped++
	case StateFailed:
		r.Failed++
	}
}

// ReconcileReport summarises a reconciliation pass: documents known to the
// fingerprint store but absent from the current input set.
type ReconcileReport struct {
	// Known is the number of fingerprints examined.
	Known int

	// Stale lists the doc IDs whose source documents have vanished.
	Stale []string

	// Tombstoned is the number of points flagged inactive.
	Tombstoned int

	// DuplicateHashes lists content hashes active under more than one
	// doc ID. Informational only: the same content may legitimately exist
	// in several documents.
	DuplicateHashes []string
}
