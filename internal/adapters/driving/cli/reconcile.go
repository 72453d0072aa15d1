package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [paths...]",
	Short: "Tombstone points of documents removed from the vault",
	Long: `Compares the fingerprint store against the current input set and
retires the points of documents that no longer exist. Ingest never prunes
on its own; this is the explicit cleanup pass.`,
	RunE: runReconcile,
}

func init() {
	addInputFlags(reconcileCmd)
	reconcileCmd.Flags().BoolVar(&flagHardDelete, "hard-delete-previous", false, "delete stale points instead of tombstoning")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paths, opts, err := resolveRunInputs(args)
	if err != nil {
		return err
	}

	if err := initServices(ctx); err != nil {
		return err
	}

	report, err := ingestor.Reconcile(ctx, paths, opts)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	cmd.Printf("Examined %d fingerprints: %d stale documents, %d points retired.\n",
		report.Known, len(report.Stale), report.Tombstoned)

	if len(report.DuplicateHashes) > 0 {
		cmd.Printf("Note: %d content hashes are shared by multiple documents.\n",
			len(report.DuplicateHashes))
	}
	return nil
}
