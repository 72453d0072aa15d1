package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notevault/notevault-cli/internal/chunker"
	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
	"github.com/notevault/notevault-cli/internal/core/ports/driving"
)

// --- Mock implementations for ingest testing ---

// ingestMockEmbedder implements driven.EmbeddingService for testing.
type ingestMockEmbedder struct {
	mu             stdsync.Mutex
	calls          int
	transientFails int    // number of leading calls that fail transiently
	poison         string // texts containing this substring fail permanently
}

func (m *ingestMockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *ingestMockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.transientFails > 0 {
		m.transientFails--
		return nil, fmt.Errorf("%w: mock overloaded", domain.ErrProviderTransient)
	}
	for _, text := range texts {
		if m.poison != "" && strings.Contains(text, m.poison) {
			return nil, fmt.Errorf("%w: mock rejected input", domain.ErrProviderPermanent)
		}
	}

	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 2, 3, 4}
	}
	return vecs, nil
}

func (m *ingestMockEmbedder) Dimensions() int              { return 4 }
func (m *ingestMockEmbedder) ModelName() string            { return "test-embed" }
func (m *ingestMockEmbedder) Ping(_ context.Context) error { return nil }
func (m *ingestMockEmbedder) Close() error                 { return nil }

func (m *ingestMockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// storedPoint is one point held by the mock vector store.
type storedPoint struct {
	docID  string
	active bool
}

// ingestMockVectorStore implements driven.VectorStore in memory.
type ingestMockVectorStore struct {
	mu           stdsync.Mutex
	points       map[string]*storedPoint // point ID -> state
	ensureStatus driven.CollectionStatus
	ensureErr    error
	listErr      error
	upsertErr    error
	upserts      int
}

func newIngestMockVectorStore() *ingestMockVectorStore {
	return &ingestMockVectorStore{
		points:       make(map[string]*storedPoint),
		ensureStatus: driven.CollectionReady,
	}
}

func (m *ingestMockVectorStore) EnsureCollection(_ context.Context, _ driven.CollectionSpec) (driven.CollectionStatus, error) {
	return m.ensureStatus, m.ensureErr
}

func (m *ingestMockVectorStore) RecreateCollection(_ context.Context, _ driven.CollectionSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]*storedPoint)
	return nil
}

func (m *ingestMockVectorStore) Upsert(_ context.Context, _ string, points []domain.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, p := range points {
		m.points[p.ID] = &storedPoint{docID: p.Payload.DocID, active: p.Payload.IsActive}
	}
	m.upserts++
	return nil
}

func (m *ingestMockVectorStore) ListActivePointIDs(_ context.Context, _ string, docID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for id, p := range m.points {
		if p.docID == docID && p.active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *ingestMockVectorStore) TombstonePoints(_ context.Context, _ string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if p, ok := m.points[id]; ok {
			p.active = false
		}
	}
	return nil
}

func (m *ingestMockVectorStore) DeletePoints(_ context.Context, _ string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *ingestMockVectorStore) FindActiveDocVersion(_ context.Context, _ string, _ string) (string, error) {
	return "", domain.ErrNotFound
}

func (m *ingestMockVectorStore) CollectionInfo(_ context.Context, _ string) (*driven.CollectionSpec, error) {
	return nil, domain.ErrNotFound
}

func (m *ingestMockVectorStore) Ping(_ context.Context) error { return nil }

func (m *ingestMockVectorStore) activeCount(docID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.points {
		if p.docID == docID && p.active {
			n++
		}
	}
	return n
}

func (m *ingestMockVectorStore) totalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

// ingestMockFingerprints implements driven.FingerprintStore in memory.
type ingestMockFingerprints struct {
	mu        stdsync.Mutex
	byID      map[string]domain.Fingerprint
	recordErr error
}

func newIngestMockFingerprints() *ingestMockFingerprints {
	return &ingestMockFingerprints{byID: make(map[string]domain.Fingerprint)}
}

func (m *ingestMockFingerprints) ShouldReingest(_ context.Context, docID, contentSHA string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.byID[docID]
	return !ok || fp.ContentSHA != contentSHA, nil
}

func (m *ingestMockFingerprints) RecordIngested(_ context.Context, fp domain.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.byID[fp.DocID] = fp
	return nil
}

func (m *ingestMockFingerprints) Get(_ context.Context, docID string) (*domain.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.byID[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &fp, nil
}

func (m *ingestMockFingerprints) List(_ context.Context) ([]domain.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fps := make([]domain.Fingerprint, 0, len(m.byID))
	for _, fp := range m.byID {
		fps = append(fps, fp)
	}
	return fps, nil
}

func (m *ingestMockFingerprints) Delete(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, docID)
	return nil
}

func (m *ingestMockFingerprints) Close() error { return nil }

func (m *ingestMockFingerprints) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// --- Test helpers ---

type ingestFixture struct {
	orch     *IngestOrchestrator
	embedder *ingestMockEmbedder
	vectors  *ingestMockVectorStore
	fps      *ingestMockFingerprints
	dir      string
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	embedder := &ingestMockEmbedder{}
	vectors := newIngestMockVectorStore()
	fps := newIngestMockFingerprints()
	dir := t.TempDir()

	orch := NewIngestOrchestrator(embedder, vectors, fps,
		chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20)),
		Config{VaultRoot: dir, Concurrency: 2, BatchSize: 8},
	)

	return &ingestFixture{orch: orch, embedder: embedder, vectors: vectors, fps: fps, dir: dir}
}

func (f *ingestFixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func defaultOpts() driving.IngestOptions {
	return driving.IngestOptions{Collection: "notes"}
}

// --- Tests ---

func TestIngest_ProcessesNewDocuments(t *testing.T) {
	f := newIngestFixture(t)
	a := f.writeFile(t, "a.md", "# Alpha\n\n"+strings.Repeat("alpha content ", 20))
	b := f.writeFile(t, "b.md", "# Beta\n\n"+strings.Repeat("beta content ", 20))

	report, err := f.orch.Ingest(context.Background(), []string{a, b}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, f.fps.count())
	assert.Greater(t, f.vectors.totalCount(), 2)

	for _, res := range report.Results {
		assert.Equal(t, domain.StateRecorded, res.State)
		assert.Greater(t, res.Chunks, 0)
	}
}

func TestIngest_SkipsUnchangedContent(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", strings.Repeat("stable content ", 20))

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)
	callsAfterFirst := f.embedder.callCount()

	report, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, callsAfterFirst, f.embedder.callCount(), "unchanged content must not be re-embedded")
}

func TestIngest_ForceReingests(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", strings.Repeat("stable content ", 20))

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	opts := defaultOpts()
	opts.Force = true
	report, err := f.orch.Ingest(context.Background(), []string{path}, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Skipped)
}

func TestIngest_ChangedContentReplacesPoints(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", strings.Repeat("original text ", 40))

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	doc := mustDocID(t, f, path)
	before := f.vectors.activeCount(doc)
	require.Greater(t, before, 1)

	// Shrink the document: trailing chunk IDs from the old version must
	// not stay active.
	f.writeFile(t, "note.md", "short now")
	report, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, f.vectors.activeCount(doc))
}

func TestIngest_HardDeletePrevious(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", strings.Repeat("original text ", 40))

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)
	before := f.vectors.totalCount()

	f.writeFile(t, "note.md", "short now")
	opts := defaultOpts()
	opts.HardDeletePrevious = true
	_, err = f.orch.Ingest(context.Background(), []string{path}, opts)
	require.NoError(t, err)

	// Every prior point was physically removed, one new one written.
	assert.Less(t, f.vectors.totalCount(), before)
	assert.Equal(t, 1, f.vectors.totalCount())
}

func TestIngest_PartialFailureDoesNotAbortRun(t *testing.T) {
	f := newIngestFixture(t)
	f.embedder.poison = "toxic"
	good := f.writeFile(t, "good.md", strings.Repeat("fine content ", 20))
	bad := f.writeFile(t, "bad.md", "toxic content here")

	report, err := f.orch.Ingest(context.Background(), []string{good, bad}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)

	// Only the successful document got a fingerprint.
	assert.Equal(t, 1, f.fps.count())
	doc := mustDocID(t, f, bad)
	_, err = f.fps.Get(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_RetriesTransientProviderFailures(t *testing.T) {
	f := newIngestFixture(t)
	f.embedder.transientFails = 2
	path := f.writeFile(t, "note.md", "small note")

	report, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 3, f.embedder.callCount())
}

func TestIngest_TransientFailuresExhaustRetries(t *testing.T) {
	f := newIngestFixture(t)
	f.embedder.transientFails = 10
	path := f.writeFile(t, "note.md", "small note")

	report, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, maxEmbedAttempts, f.embedder.callCount())
	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, domain.ErrProviderTransient)
}

func TestIngest_NoFingerprintOnUpsertFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.vectors.upsertErr = fmt.Errorf("write refused")
	path := f.writeFile(t, "note.md", "some note")

	report, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, f.fps.count(), "fingerprint must only be recorded after a full upsert")
}

func TestIngest_SchemaIncompatibleAborts(t *testing.T) {
	f := newIngestFixture(t)
	f.vectors.ensureStatus = driven.CollectionIncompatible
	f.vectors.ensureErr = fmt.Errorf("%w: dimension mismatch", domain.ErrSchemaIncompatible)
	path := f.writeFile(t, "note.md", "some note")

	report, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaIncompatible)
	assert.Nil(t, report)

	// Nothing was embedded or written.
	assert.Equal(t, 0, f.embedder.callCount())
	assert.Equal(t, 0, f.vectors.totalCount())
}

func TestIngest_StoreUnavailableAborts(t *testing.T) {
	f := newIngestFixture(t)
	f.vectors.listErr = fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
	path := f.writeFile(t, "note.md", "some note")

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestIngest_UnreadableFileFails(t *testing.T) {
	f := newIngestFixture(t)

	report, err := f.orch.Ingest(context.Background(),
		[]string{filepath.Join(f.dir, "missing.md")}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, domain.ErrDocumentParse)
}

func TestIngest_MissingCollectionName(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.orch.Ingest(context.Background(), nil, driving.IngestOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngest_MetadataOverrides(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", "---\ntype: note\ncategory: inbox\n---\n\nbody text")

	opts := defaultOpts()
	opts.TypeOverride = "meeting"
	opts.CategoryOverride = "standup"

	report, err := f.orch.Ingest(context.Background(), []string{path}, opts)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
}

func TestReconcile_TombstonesVanishedDocuments(t *testing.T) {
	f := newIngestFixture(t)
	keep := f.writeFile(t, "keep.md", "kept note")
	gone := f.writeFile(t, "gone.md", "doomed note")

	_, err := f.orch.Ingest(context.Background(), []string{keep, gone}, defaultOpts())
	require.NoError(t, err)

	goneID := mustDocID(t, f, gone)
	require.NoError(t, os.Remove(gone))

	report, err := f.orch.Reconcile(context.Background(), []string{keep}, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Known)
	assert.Equal(t, []string{goneID}, report.Stale)
	assert.Greater(t, report.Tombstoned, 0)
	assert.Equal(t, 0, f.vectors.activeCount(goneID))

	// The fingerprint is gone too, so restoring the file re-ingests it.
	_, err = f.fps.Get(context.Background(), goneID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconcile_AllPresentIsNoop(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", "a note")

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	report, err := f.orch.Reconcile(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	assert.Empty(t, report.Stale)
	assert.Equal(t, 0, report.Tombstoned)
	assert.Equal(t, 1, f.fps.count())
}

func TestReconcile_ReportsDuplicateHashes(t *testing.T) {
	f := newIngestFixture(t)
	a := f.writeFile(t, "a.md", "identical body")
	b := f.writeFile(t, "b.md", "identical body")

	_, err := f.orch.Ingest(context.Background(), []string{a, b}, defaultOpts())
	require.NoError(t, err)

	report, err := f.orch.Reconcile(context.Background(), []string{a, b}, defaultOpts())
	require.NoError(t, err)

	assert.Len(t, report.DuplicateHashes, 1)
}

func TestStatus_ReflectsOutcomes(t *testing.T) {
	f := newIngestFixture(t)
	path := f.writeFile(t, "note.md", "a note")

	_, err := f.orch.Ingest(context.Background(), []string{path}, defaultOpts())
	require.NoError(t, err)

	status := f.orch.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Processed)
}

// mustDocID resolves the document ID the orchestrator derives for a path.
func mustDocID(t *testing.T, f *ingestFixture, path string) string {
	t.Helper()
	rel, err := filepath.Rel(f.dir, path)
	require.NoError(t, err)
	return domain.DocumentID("rel:" + filepath.ToSlash(rel))
}
