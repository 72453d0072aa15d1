package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notevault/notevault-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *SettingsStore {
	t.Helper()

	store, err := NewSettingsStore(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	return store
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:6333", settings.Qdrant.URL)
	assert.Equal(t, "notes", settings.Qdrant.Collection)
	assert.Equal(t, 1200, settings.Ingest.ChunkSize)
	assert.Equal(t, 200, settings.Ingest.ChunkOverlap)
	assert.False(t, settings.Embedding.IsConfigured())
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	want := domain.DefaultAppSettings()
	want.Embedding.Provider = domain.AIProviderOllama
	want.Embedding.Model = "nomic-embed-text"
	want.Qdrant.Collection = "journal"
	want.Ingest.VaultRoot = "/vault"

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, got.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", got.Embedding.Model)
	assert.Equal(t, "journal", got.Qdrant.Collection)
	assert.Equal(t, "/vault", got.Ingest.VaultRoot)
}

func TestSave_RestrictsPermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(domain.DefaultAppSettings()))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_SparseFileBackfillsDefaults(t *testing.T) {
	store := newTestStore(t)

	content := "[embedding]\nprovider = \"ollama\"\nmodel = \"all-minilm\"\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0600))

	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "all-minilm", settings.Embedding.Model)
	assert.Equal(t, 1200, settings.Ingest.ChunkSize)
	assert.Equal(t, []string{".md", ".txt"}, settings.Ingest.Extensions)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("not [valid toml"), 0600))

	_, err := store.Load()
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	store := newTestStore(t)

	t.Setenv("NOTEVAULT_EMBEDDING_PROVIDER", "openai")
	t.Setenv("NOTEVAULT_EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	t.Setenv("NOTEVAULT_COLLECTION", "work")
	t.Setenv("NOTEVAULT_CONCURRENCY", "8")

	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, "sk-env", settings.Embedding.APIKey)
	assert.Equal(t, "http://qdrant.internal:6333", settings.Qdrant.URL)
	assert.Equal(t, "work", settings.Qdrant.Collection)
	assert.Equal(t, 8, settings.Ingest.Concurrency)
}

func TestLoad_APIKeyEnvMatchesProvider(t *testing.T) {
	store := newTestStore(t)

	// An OpenAI key in the environment must not leak into a Gemini setup.
	t.Setenv("NOTEVAULT_EMBEDDING_PROVIDER", "gemini")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, settings.Embedding.APIKey)
}
