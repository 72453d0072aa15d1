package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driving"
	"github.com/notevault/notevault-cli/internal/loader"
)

// ingest flags
var (
	flagInputs       []string
	flagRecursive    bool
	flagExts         []string
	flagCollection   string
	flagForce        bool
	flagHardDelete   bool
	flagTypeOverride string
	flagCategory     string
	flagVaultRoot    string
	flagConcurrency  int
	flagBatchSize    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Chunk, embed and upsert documents into the collection",
	Long: `Reads the given files or directories, skips documents whose content
is unchanged since the last run, and upserts embeddings for the rest.
Previous versions of changed documents are tombstoned, not deleted,
unless --hard-delete-previous is set.`,
	RunE: runIngest,
}

func init() {
	addInputFlags(ingestCmd)
	ingestCmd.Flags().BoolVar(&flagForce, "force", false, "re-ingest documents even if unchanged")
	ingestCmd.Flags().BoolVar(&flagHardDelete, "hard-delete-previous", false, "delete prior points instead of tombstoning")
	ingestCmd.Flags().StringVar(&flagTypeOverride, "type", "", "override the resolved document type")
	ingestCmd.Flags().StringVar(&flagCategory, "category", "", "override the resolved category")
	ingestCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "documents processed in parallel (default from config)")
	ingestCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "chunks per embedding request (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

// addInputFlags registers the flags shared by ingest, reconcile and watch.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&flagInputs, "input", "i", nil, "file or directory to ingest, '-' reads paths from stdin (repeatable)")
	cmd.Flags().BoolVarP(&flagRecursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSliceVar(&flagExts, "ext", nil, "file extensions picked up by directory scans (default from config)")
	cmd.Flags().StringVarP(&flagCollection, "collection", "c", "", "target collection (default from config)")
	cmd.Flags().StringVar(&flagVaultRoot, "vault-root", "", "vault root anchoring document identity (default from config)")
}

// gatherInputs merges --input values with positional arguments and expands
// the stdin marker.
func gatherInputs(args []string) ([]string, error) {
	inputs := make([]string, 0, len(flagInputs)+len(args))
	for _, in := range append(append([]string{}, flagInputs...), args...) {
		if in == "-" {
			fromStdin, err := readStdinPaths()
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, fromStdin...)
			continue
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no input paths given", domain.ErrInvalidInput)
	}
	return inputs, nil
}

// readStdinPaths reads one path per line from standard input.
func readStdinPaths() ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, scanner.Err()
}

// resolveRunInputs loads settings, applies flag overrides and collects the
// input file set.
func resolveRunInputs(args []string) ([]string, driving.IngestOptions, error) {
	if err := loadSettings(); err != nil {
		return nil, driving.IngestOptions{}, err
	}
	if flagVaultRoot != "" {
		settings.Ingest.VaultRoot = flagVaultRoot
	}

	inputs, err := gatherInputs(args)
	if err != nil {
		return nil, driving.IngestOptions{}, err
	}

	exts := flagExts
	if len(exts) == 0 {
		exts = settings.Ingest.Extensions
	}
	collection := flagCollection
	if collection == "" {
		collection = settings.Qdrant.Collection
	}

	paths, err := loader.CollectFiles(inputs, flagRecursive, exts)
	if err != nil {
		return nil, driving.IngestOptions{}, err
	}

	opts := driving.IngestOptions{
		Collection:         collection,
		Force:              flagForce,
		HardDeletePrevious: flagHardDelete,
		TypeOverride:       flagTypeOverride,
		CategoryOverride:   flagCategory,
		Concurrency:        flagConcurrency,
		BatchSize:          flagBatchSize,
	}
	return paths, opts, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paths, opts, err := resolveRunInputs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		cmd.Println("No matching files found.")
		return nil
	}

	if err := initServices(ctx); err != nil {
		return err
	}

	cmd.Printf("Ingesting %d files into %s...\n", len(paths), opts.Collection)

	report, err := ingestWithProgress(ctx, cmd, paths, opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Done: %d processed, %d skipped, %d failed.\n",
		report.Processed, report.Skipped, report.Failed)

	for _, res := range report.Results {
		if res.State == domain.StateFailed {
			cmd.Printf("  failed: %s: %v\n", res.Path, res.Err)
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, len(paths))
	}
	return nil
}

// ingestWithProgress runs ingestion while displaying progress updates.
func ingestWithProgress(ctx context.Context, cmd *cobra.Command, paths []string, opts driving.IngestOptions) (*domain.IngestReport, error) {
	type result struct {
		report *domain.IngestReport
		err    error
	}

	resCh := make(chan result, 1)
	go func() {
		report, err := ingestor.Ingest(ctx, paths, opts)
		resCh <- result{report, err}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	last := 0
	for {
		select {
		case res := <-resCh:
			return res.report, res.err
		case <-ticker.C:
			status := ingestor.Status()
			done := status.Processed + status.Skipped + status.Failed
			if done > last {
				cmd.Printf("\rProcessing... %d/%d documents", done, len(paths))
				last = done
			}
		case <-ctx.Done():
			// Let the pipeline observe the cancellation and report.
			res := <-resCh
			if res.err == nil {
				res.err = ctx.Err()
			}
			return res.report, res.err
		}
	}
}
