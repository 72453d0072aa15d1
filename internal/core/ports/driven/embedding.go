package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - Ollama (nomic-embed-text and other local models)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Gemini (text-embedding-004)
//
// All implementations preserve input ordering in their output and produce
// vectors of exactly Dimensions() elements. Failures are classified with
// the domain sentinels: rate limits, timeouts and network errors wrap
// domain.ErrProviderTransient (retryable); invalid credentials or malformed
// requests wrap domain.ErrProviderPermanent (not retried).
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// The result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 768, 1536).
	// This must match the collection's vector configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	// The named-vector key is derived from it.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request before committing to an ingestion run.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
