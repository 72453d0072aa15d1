// Package gemini provides an embedding service adapter using Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultDimensions = 768 // text-embedding-004 default
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Google AI API key (required).
	APIKey string

	// Model is the embedding model to use (default: text-embedding-004).
	Model string

	// Dimensions is the embedding vector size (model-dependent).
	Dimensions int
}

// EmbeddingService generates embeddings using the Gemini API.
type EmbeddingService struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates a new Gemini embedding service.
// The context is used only for client construction.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.model)

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classify(err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("%w: gemini returned no embedding", domain.ErrProviderPermanent)
	}
	if len(resp.Embedding.Values) != s.dimensions {
		return nil, fmt.Errorf("%w: gemini returned %d dimensions, expected %d for %s",
			domain.ErrProviderPermanent, len(resp.Embedding.Values), s.dimensions, s.model)
	}

	return resp.Embedding.Values, nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
// Output order matches input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	em := s.client.EmbeddingModel(s.model)

	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d texts",
			domain.ErrProviderPermanent, len(resp.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Values) != s.dimensions {
			return nil, fmt.Errorf("%w: gemini returned %d dimensions, expected %d for %s",
				domain.ErrProviderPermanent, len(e.Values), s.dimensions, s.model)
		}
		embeddings[i] = e.Values
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by embedding a trivial input.
// The Gemini API has no cheaper health endpoint.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	em := s.client.EmbeddingModel(s.model)
	if _, err := em.EmbedContent(ctx, genai.Text("ping")); err != nil {
		return classify(err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *EmbeddingService) Close() error {
	return s.client.Close()
}

// classify maps a Gemini API failure onto the provider error taxonomy:
// rate limits, server errors and connectivity failures are retryable,
// everything else is not.
func classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "RESOURCE_EXHAUSTED"),
		strings.Contains(msg, "UNAVAILABLE"),
		strings.Contains(msg, "DEADLINE_EXCEEDED"),
		strings.Contains(msg, "INTERNAL"):
		return fmt.Errorf("%w: gemini: %w", domain.ErrProviderTransient, err)
	default:
		return fmt.Errorf("%w: gemini: %w", domain.ErrProviderPermanent, err)
	}
}
