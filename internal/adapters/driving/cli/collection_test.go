package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
)

// mockVectorStore implements driven.VectorStore for command testing.
type mockVectorStore struct {
	info      *driven.CollectionSpec
	infoErr   error
	recreated *driven.CollectionSpec
}

func (m *mockVectorStore) EnsureCollection(_ context.Context, _ driven.CollectionSpec) (driven.CollectionStatus, error) {
	return driven.CollectionReady, nil
}

func (m *mockVectorStore) RecreateCollection(_ context.Context, spec driven.CollectionSpec) error {
	m.recreated = &spec
	return nil
}

func (m *mockVectorStore) Upsert(_ context.Context, _ string, _ []domain.Point) error { return nil }

func (m *mockVectorStore) ListActivePointIDs(_ context.Context, _, _ string) ([]string, error) {
	return nil, nil
}

func (m *mockVectorStore) TombstonePoints(_ context.Context, _ string, _ []string) error { return nil }
func (m *mockVectorStore) DeletePoints(_ context.Context, _ string, _ []string) error    { return nil }

func (m *mockVectorStore) FindActiveDocVersion(_ context.Context, _, _ string) (string, error) {
	return "", domain.ErrNotFound
}

func (m *mockVectorStore) CollectionInfo(_ context.Context, _ string) (*driven.CollectionSpec, error) {
	return m.info, m.infoErr
}

func (m *mockVectorStore) Ping(_ context.Context) error { return nil }

// mockCmdEmbedder is the minimal embedder the recreate command needs.
type mockCmdEmbedder struct{}

func (m *mockCmdEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return nil, nil }
func (m *mockCmdEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}
func (m *mockCmdEmbedder) Dimensions() int              { return 768 }
func (m *mockCmdEmbedder) ModelName() string            { return "nomic-embed-text" }
func (m *mockCmdEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockCmdEmbedder) Close() error                 { return nil }

func setupCollectionTest(store *mockVectorStore) func() {
	oldStore := vectorStore
	oldEmbedder := embedder
	oldSettings := settings
	oldLoaded := settingsLoaded

	vectorStore = store
	embedder = &mockCmdEmbedder{}
	settings = domain.DefaultAppSettings()
	settingsLoaded = true

	return func() {
		vectorStore = oldStore
		embedder = oldEmbedder
		settings = oldSettings
		settingsLoaded = oldLoaded
		flagYes = false
	}
}

func TestCollectionInfoCmd_ShowsSchema(t *testing.T) {
	store := &mockVectorStore{info: &driven.CollectionSpec{
		Name:       "notes",
		VectorName: "nomic_embed_text",
		Dimension:  768,
		Distance:   "Cosine",
	}}
	cleanup := setupCollectionTest(store)
	defer cleanup()

	out, err := execute("collection", "info")
	require.NoError(t, err)

	assert.Contains(t, out, "Collection: notes")
	assert.Contains(t, out, "nomic_embed_text")
	assert.Contains(t, out, "768")
}

func TestCollectionInfoCmd_MissingCollection(t *testing.T) {
	store := &mockVectorStore{infoErr: domain.ErrNotFound}
	cleanup := setupCollectionTest(store)
	defer cleanup()

	out, err := execute("collection", "info", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection ghost does not exist.")
}

func TestCollectionRecreateCmd_RefusesWithoutYes(t *testing.T) {
	store := &mockVectorStore{}
	cleanup := setupCollectionTest(store)
	defer cleanup()

	_, err := execute("collection", "recreate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Nil(t, store.recreated)
}

func TestCollectionRecreateCmd_RecreatesWithDerivedSchema(t *testing.T) {
	store := &mockVectorStore{}
	cleanup := setupCollectionTest(store)
	defer cleanup()

	out, err := execute("collection", "recreate", "--yes")
	require.NoError(t, err)

	require.NotNil(t, store.recreated)
	assert.Equal(t, "notes", store.recreated.Name)
	assert.Equal(t, "nomic_embed_text", store.recreated.VectorName)
	assert.Equal(t, 768, store.recreated.Dimension)
	assert.Contains(t, out, "recreated")
}
