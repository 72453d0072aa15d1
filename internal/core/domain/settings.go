package domain

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is the Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider `toml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string `toml:"base_url,omitempty"`

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string `toml:"api_key,omitempty"`

	// Dimensions is the embedding vector size. Zero means use the
	// known default for the model.
	Dimensions int `toml:"dimensions,omitempty"`
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// QdrantSettings holds vector store connection configuration.
type QdrantSettings struct {
	// URL is the Qdrant REST endpoint.
	URL string `toml:"url"`

	// APIKey authenticates against a secured instance. Optional.
	APIKey string `toml:"api_key,omitempty"`

	// Collection is the default collection name.
	Collection string `toml:"collection"`
}

// IngestSettings holds ingestion pipeline configuration.
type IngestSettings struct {
	// VaultRoot anchors document identity. Files under this root are
	// keyed by relative path so the vault can move between machines.
	VaultRoot string `toml:"vault_root,omitempty"`

	// ChunkSize is the chunk length in bytes.
	ChunkSize int `toml:"chunk_size"`

	// ChunkOverlap is the byte overlap between consecutive chunks.
	ChunkOverlap int `toml:"chunk_overlap"`

	// Concurrency is the number of documents processed in parallel.
	Concurrency int `toml:"concurrency"`

	// BatchSize is the number of chunks embedded per provider call.
	BatchSize int `toml:"batch_size"`

	// RateLimit caps embedding requests per second. Zero disables it.
	RateLimit float64 `toml:"rate_limit,omitempty"`

	// Extensions lists the file extensions picked up by directory scans.
	Extensions []string `toml:"extensions"`
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings `toml:"embedding"`

	// Qdrant holds vector store settings.
	Qdrant QdrantSettings `toml:"qdrant"`

	// Ingest holds ingestion pipeline settings.
	Ingest IngestSettings `toml:"ingest"`
}

// DefaultAppSettings returns settings with sensible defaults.
// The embedding provider is left unconfigured; users must set it up
// via the config file or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{},
		Qdrant: QdrantSettings{
			URL:        "http://localhost:6333",
			Collection: "notes",
		},
		Ingest: IngestSettings{
			ChunkSize:    1200,
			ChunkOverlap: 200,
			Concurrency:  4,
			BatchSize:    32,
			Extensions:   []string{".md", ".txt"},
		},
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004":   768,
		"gemini-embedding-001": 3072,
	}
}
