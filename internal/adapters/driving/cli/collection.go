package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notevault/notevault-cli/internal/adapters/driven/ai"
	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
)

var flagYes bool

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect and manage the vector collection",
}

var collectionInfoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show the collection schema",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCollectionInfo,
}

var collectionRecreateCmd = &cobra.Command{
	Use:   "recreate [name]",
	Short: "Drop and recreate the collection",
	Long: `Drops the collection and recreates it with the schema derived from
the configured embedding model. All stored points are lost; fingerprints
are untouched, so the next ingest with --force rebuilds the index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCollectionRecreate,
}

func init() {
	collectionRecreateCmd.Flags().BoolVar(&flagYes, "yes", false, "confirm the destructive recreate")
	collectionCmd.AddCommand(collectionInfoCmd)
	collectionCmd.AddCommand(collectionRecreateCmd)
	rootCmd.AddCommand(collectionCmd)
}

// resolveCollectionName picks the positional argument over the config.
func resolveCollectionName(args []string) (string, error) {
	if err := loadSettings(); err != nil {
		return "", err
	}
	if len(args) > 0 {
		return args[0], nil
	}
	if settings.Qdrant.Collection == "" {
		return "", fmt.Errorf("%w: no collection configured", domain.ErrInvalidInput)
	}
	return settings.Qdrant.Collection, nil
}

func runCollectionInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	name, err := resolveCollectionName(args)
	if err != nil {
		return err
	}
	initVectorStore("")

	spec, err := vectorStore.CollectionInfo(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("Collection %s does not exist.\n", name)
			return nil
		}
		return err
	}

	cmd.Printf("Collection: %s\n", spec.Name)
	cmd.Printf("  Vector:    %s\n", spec.VectorName)
	cmd.Printf("  Dimension: %d\n", spec.Dimension)
	cmd.Printf("  Distance:  %s\n", spec.Distance)
	return nil
}

func runCollectionRecreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	name, err := resolveCollectionName(args)
	if err != nil {
		return err
	}
	if !flagYes {
		return fmt.Errorf("refusing to drop collection %s without --yes", name)
	}

	// The schema comes from the embedding model, so the provider must be
	// reachable before anything is dropped.
	if embedder == nil {
		svc, err := ai.CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
		if err != nil {
			return err
		}
		embedder = svc
	}
	initVectorStore(domain.VectorName(embedder.ModelName()))

	spec := driven.CollectionSpec{
		Name:       name,
		VectorName: domain.VectorName(embedder.ModelName()),
		Dimension:  embedder.Dimensions(),
		Distance:   "Cosine",
	}
	if err := vectorStore.RecreateCollection(ctx, spec); err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}

	cmd.Printf("Collection %s recreated (vector %s, %d dimensions).\n",
		spec.Name, spec.VectorName, spec.Dimension)
	return nil
}
