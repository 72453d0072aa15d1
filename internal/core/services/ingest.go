package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/notevault/notevault-cli/internal/chunker"
	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
	"github.com/notevault/notevault-cli/internal/core/ports/driving"
	"github.com/notevault/notevault-cli/internal/loader"
	"github.com/notevault/notevault-cli/internal/logger"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.Ingestor = (*IngestOrchestrator)(nil)

// Retry policy for transient provider failures.
const (
	maxEmbedAttempts = 3
	retryBaseDelay   = 500 * time.Millisecond
)

// Config holds run-independent orchestrator configuration.
type Config struct {
	// VaultRoot anchors document identity, see loader.Load.
	VaultRoot string

	// Concurrency is the default number of documents processed in
	// parallel when the run options leave it unset.
	Concurrency int

	// BatchSize is the default number of chunks per embedding request.
	BatchSize int

	// RateLimit caps embedding requests per second across all workers.
	// Zero disables the limiter.
	RateLimit float64

	// Distance is the collection similarity metric (default Cosine).
	Distance string
}

// IngestOrchestrator coordinates the document ingestion pipeline:
// load, fingerprint, chunk, embed, upsert, record.
type IngestOrchestrator struct {
	embedding    driven.EmbeddingService
	vectors      driven.VectorStore
	fingerprints driven.FingerprintStore
	chunks       *chunker.Chunker
	cfg          Config
	limiter      *rate.Limiter

	// Status tracking
	mu     sync.RWMutex
	status driving.IngestStatus

	// Per-document serialisation: concurrent runs over inputs that map
	// to the same doc ID must not interleave tombstone and upsert.
	locksMu  sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewIngestOrchestrator creates a new ingestion orchestrator.
func NewIngestOrchestrator(
	embedding driven.EmbeddingService,
	vectors driven.VectorStore,
	fingerprints driven.FingerprintStore,
	chunks *chunker.Chunker,
	cfg Config,
) *IngestOrchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &IngestOrchestrator{
		embedding:    embedding,
		vectors:      vectors,
		fingerprints: fingerprints,
		chunks:       chunks,
		cfg:          cfg,
		limiter:      limiter,
		docLocks:     make(map[string]*sync.Mutex),
	}
}

// collectionSpec derives the collection schema from the embedding model.
func (o *IngestOrchestrator) collectionSpec(collection string) driven.CollectionSpec {
	return driven.CollectionSpec{
		Name:       collection,
		VectorName: domain.VectorName(o.embedding.ModelName()),
		Dimension:  o.embedding.Dimensions(),
		Distance:   o.cfg.Distance,
	}
}

// Ingest runs the pipeline over the given files.
//
// Per-document failures are recorded in the report and do not abort the
// run. A schema-incompatible collection or an unreachable vector store
// aborts immediately: nothing useful can be written.
func (o *IngestOrchestrator) Ingest(ctx context.Context, paths []string, opts driving.IngestOptions) (*domain.IngestReport, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrInvalidInput)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = o.cfg.Concurrency
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = o.cfg.BatchSize
	}

	// 1. Validate the collection schema before touching any document.
	spec := o.collectionSpec(opts.Collection)
	status, err := o.vectors.EnsureCollection(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", opts.Collection, err)
	}
	if status == driven.CollectionCreated {
		logger.Info("Created collection %s (vector %s, %d dimensions)",
			spec.Name, spec.VectorName, spec.Dimension)
	}

	o.setRunning(true)
	defer o.setRunning(false)

	ingestedAt := time.Now().UTC()
	report := &domain.IngestReport{}
	var reportMu sync.Mutex

	// 2. Process documents in parallel. The group context cancels every
	// worker when a store outage aborts the run.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range paths {
		g.Go(func() error {
			res := o.ingestOne(gctx, path, opts, batchSize, ingestedAt)

			reportMu.Lock()
			report.Add(res)
			reportMu.Unlock()
			o.recordOutcome(res.State)

			if res.Err != nil && errors.Is(res.Err, domain.ErrStoreUnavailable) {
				return res.Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("ingestion aborted: %w", err)
	}

	logger.Info("Ingestion complete: %d processed, %d skipped, %d failed",
		report.Processed, report.Skipped, report.Failed)
	return report, nil
}

// ingestOne runs the full pipeline for a single file. The returned result
// is terminal: either StateRecorded, StateSkipped or StateFailed.
func (o *IngestOrchestrator) ingestOne(ctx context.Context, path string, opts driving.IngestOptions, batchSize int, ingestedAt time.Time) domain.DocumentResult {
	res := domain.DocumentResult{Path: path, State: domain.StateUnseen}

	// Load and resolve metadata.
	doc, err := loader.Load(path, o.cfg.VaultRoot)
	if err != nil {
		res.State = domain.StateFailed
		res.Err = err
		logger.Warn("Failed to load %s: %v", path, err)
		return res
	}
	res.DocID = doc.ID

	if opts.TypeOverride != "" {
		doc.Meta.Type = opts.TypeOverride
	}
	if opts.CategoryOverride != "" {
		doc.Meta.Category = opts.CategoryOverride
	}

	unlock := o.lockDoc(doc.ID)
	defer unlock()

	// Fingerprint check: unchanged content is not re-embedded.
	if !opts.Force {
		needed, err := o.fingerprints.ShouldReingest(ctx, doc.ID, doc.ContentSHA)
		if err != nil {
			res.State = domain.StateFailed
			res.Err = fmt.Errorf("fingerprint check: %w", err)
			return res
		}
		if !needed {
			res.State = domain.StateSkipped
			logger.Debug("Skipping %s: content unchanged", doc.Key)
			return res
		}
	}
	res.State = domain.StateFingerprinted

	chunks := o.chunks.Chunk(doc.ID, doc.Body)
	res.State = domain.StateChunked

	// Embed in batches, preserving chunk order.
	vectors, err := o.embedChunks(ctx, chunks, batchSize)
	if err != nil {
		res.State = domain.StateFailed
		res.Err = err
		logger.Warn("Failed to embed %s: %v", doc.Key, err)
		return res
	}
	res.State = domain.StateEmbedded

	// Retire the previous version before writing the new one. Points
	// that share an ID with the new version are overwritten by the
	// upsert; stale trailing chunks stay tombstoned (or deleted).
	prevIDs, err := o.vectors.ListActivePointIDs(ctx, opts.Collection, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		res.State = domain.StateFailed
		res.Err = fmt.Errorf("list previous points: %w", err)
		return res
	}
	if len(prevIDs) > 0 {
		if opts.HardDeletePrevious {
			err = o.vectors.DeletePoints(ctx, opts.Collection, prevIDs)
		} else {
			err = o.vectors.TombstonePoints(ctx, opts.Collection, prevIDs)
		}
		if err != nil {
			res.State = domain.StateFailed
			res.Err = fmt.Errorf("retire previous version: %w", err)
			return res
		}
	}

	points := make([]domain.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = domain.NewPoint(doc, chunk, vectors[i], ingestedAt)
	}
	if err := o.vectors.Upsert(ctx, opts.Collection, points); err != nil {
		res.State = domain.StateFailed
		res.Err = fmt.Errorf("upsert points: %w", err)
		return res
	}
	res.State = domain.StateUpserted
	res.Chunks = len(points)

	// The fingerprint is recorded only after every point is written, so
	// a partial failure leaves the document due for retry.
	fp := domain.Fingerprint{
		DocID:      doc.ID,
		DocKey:     doc.Key,
		ContentSHA: doc.ContentSHA,
		ChunkCount: len(points),
		IngestedAt: ingestedAt,
	}
	if err := o.fingerprints.RecordIngested(ctx, fp); err != nil {
		res.State = domain.StateFailed
		res.Err = fmt.Errorf("record fingerprint: %w", err)
		return res
	}
	res.State = domain.StateRecorded

	logger.Debug("Ingested %s: %d chunks", doc.Key, len(points))
	return res
}

// embedChunks embeds chunk texts in batches of batchSize, retrying
// transient provider failures with exponential backoff.
func (o *IngestOrchestrator) embedChunks(ctx context.Context, chunks []domain.Chunk, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := o.embedBatchWithRetry(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// embedBatchWithRetry calls the provider under the shared rate limiter.
// Transient failures are retried up to maxEmbedAttempts; permanent
// failures are returned immediately.
func (o *IngestOrchestrator) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			logger.Debug("Retrying embedding batch in %v (attempt %d/%d)", delay, attempt+1, maxEmbedAttempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := o.embedding.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !errors.Is(err, domain.ErrProviderTransient) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxEmbedAttempts, lastErr)
}

// Reconcile diffs known fingerprints against the current input set and
// retires the points of documents that have vanished from the vault.
func (o *IngestOrchestrator) Reconcile(ctx context.Context, paths []string, opts driving.IngestOptions) (*domain.ReconcileReport, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrInvalidInput)
	}

	// 1. Resolve the identity of every document still present.
	current := make(map[string]bool, len(paths))
	for _, path := range paths {
		doc, err := loader.Load(path, o.cfg.VaultRoot)
		if err != nil {
			logger.Warn("Skipping unreadable %s: %v", path, err)
			continue
		}
		current[doc.ID] = true
	}

	known, err := o.fingerprints.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}

	report := &domain.ReconcileReport{Known: len(known)}

	// 2. Retire every document known to the store but no longer present.
	for _, fp := range known {
		if current[fp.DocID] {
			continue
		}

		ids, err := o.vectors.ListActivePointIDs(ctx, opts.Collection, fp.DocID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return report, fmt.Errorf("list points for %s: %w", fp.DocKey, err)
		}
		if len(ids) > 0 {
			if opts.HardDeletePrevious {
				err = o.vectors.DeletePoints(ctx, opts.Collection, ids)
			} else {
				err = o.vectors.TombstonePoints(ctx, opts.Collection, ids)
			}
			if err != nil {
				return report, fmt.Errorf("retire points for %s: %w", fp.DocKey, err)
			}
			report.Tombstoned += len(ids)
		}

		if err := o.fingerprints.Delete(ctx, fp.DocID); err != nil {
			return report, fmt.Errorf("delete fingerprint for %s: %w", fp.DocKey, err)
		}
		report.Stale = append(report.Stale, fp.DocID)
		logger.Info("Reconciled away %s (%d points)", fp.DocKey, len(ids))
	}

	// 3. Flag content hashes shared by several live documents. This is
	// informational: duplicates are legal, but worth surfacing.
	byHash := make(map[string][]string)
	for _, fp := range known {
		if current[fp.DocID] {
			byHash[fp.ContentSHA] = append(byHash[fp.ContentSHA], fp.DocID)
		}
	}
	for hash, ids := range byHash {
		if len(ids) > 1 {
			report.DuplicateHashes = append(report.DuplicateHashes, hash)
		}
	}

	return report, nil
}

// Status returns progress counters for the current run.
func (o *IngestOrchestrator) Status() driving.IngestStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// lockDoc serialises pipeline stages per document ID.
func (o *IngestOrchestrator) lockDoc(docID string) func() {
	o.locksMu.Lock()
	lock, ok := o.docLocks[docID]
	if !ok {
		lock = &sync.Mutex{}
		o.docLocks[docID] = lock
	}
	o.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (o *IngestOrchestrator) setRunning(running bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if running {
		o.status = driving.IngestStatus{Running: true}
	} else {
		o.status.Running = false
	}
}

func (o *IngestOrchestrator) recordOutcome(state domain.DocState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch state {
	case domain.StateRecorded:
		o.status.Processed++
	case domain.StateSkipped:
		o.status.Skipped++
	case domain.StateFailed:
		o.status.Failed++
	}
}
