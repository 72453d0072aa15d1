// Package cli provides the cobra command tree for the notevault binary.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notevault/notevault-cli/internal/adapters/driven/ai"
	"github.com/notevault/notevault-cli/internal/adapters/driven/config/file"
	"github.com/notevault/notevault-cli/internal/adapters/driven/fingerprint/sqlite"
	"github.com/notevault/notevault-cli/internal/adapters/driven/vectorstore/qdrant"
	"github.com/notevault/notevault-cli/internal/chunker"
	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
	"github.com/notevault/notevault-cli/internal/core/ports/driving"
	"github.com/notevault/notevault-cli/internal/core/services"
	"github.com/notevault/notevault-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services used by the commands. Wired lazily by initServices so that
// commands which need no provider (version, collection info) stay cheap,
// and tests can inject fakes.
var (
	settingsStore driven.SettingsStore
	embedder      driven.EmbeddingService
	vectorStore   driven.VectorStore
	fingerprints  driven.FingerprintStore
	ingestor      driving.Ingestor

	settings       domain.AppSettings
	settingsLoaded bool
)

// Persistent flags.
var (
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "notevault",
	Short: "Ingest a note vault into a semantic index",
	Long: `notevault chunks and embeds markdown notes and upserts them into a
Qdrant collection, keeping the index in sync with the vault via content
fingerprints. Unchanged notes are never re-embedded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default ~/.notevault/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings loads configuration once per invocation. Flag overrides
// applied to the loaded settings survive later calls.
func loadSettings() error {
	if settingsLoaded {
		return nil
	}
	if settingsStore == nil {
		store, err := file.NewSettingsStore(flagConfig)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		settingsStore = store
	}

	loaded, err := settingsStore.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings = loaded
	settingsLoaded = true
	return nil
}

// initVectorStore wires the Qdrant client from settings. Safe to call
// before the embedding provider exists; the vector name is only needed
// for writes and is set by initServices.
func initVectorStore(vectorName string) {
	if vectorStore != nil {
		return
	}
	vectorStore = qdrant.NewClient(qdrant.Config{
		BaseURL:    settings.Qdrant.URL,
		APIKey:     settings.Qdrant.APIKey,
		VectorName: vectorName,
	})
}

// initServices wires the full ingestion stack: embedding provider,
// vector store, fingerprint store and orchestrator.
func initServices(ctx context.Context) error {
	if ingestor != nil {
		return nil
	}

	if err := loadSettings(); err != nil {
		return err
	}

	if embedder == nil {
		svc, err := ai.CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
		if err != nil {
			return err
		}
		embedder = svc
	}

	initVectorStore(domain.VectorName(embedder.ModelName()))

	if fingerprints == nil {
		store, err := sqlite.NewStore("")
		if err != nil {
			return fmt.Errorf("open fingerprint store: %w", err)
		}
		fingerprints = store
	}

	ingestor = services.NewIngestOrchestrator(
		embedder,
		vectorStore,
		fingerprints,
		chunker.New(
			chunker.WithChunkSize(settings.Ingest.ChunkSize),
			chunker.WithOverlap(settings.Ingest.ChunkOverlap),
		),
		services.Config{
			VaultRoot:   settings.Ingest.VaultRoot,
			Concurrency: settings.Ingest.Concurrency,
			BatchSize:   settings.Ingest.BatchSize,
			RateLimit:   settings.Ingest.RateLimit,
		},
	)
	return nil
}
