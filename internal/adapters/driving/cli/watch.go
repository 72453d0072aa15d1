package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/notevault/notevault-cli/internal/logger"
)

// debounceWindow batches rapid editor save bursts into one run.
const debounceWindow = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Watch the vault and ingest changes as they happen",
	Long: `Watches the input directories and re-runs ingestion whenever files
change. Deleted files are reconciled away. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	addInputFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, opts, err := resolveRunInputs(args)
	if err != nil {
		return err
	}
	inputs, err := gatherInputs(args)
	if err != nil {
		return err
	}

	if err := initServices(ctx); err != nil {
		return err
	}

	exts := flagExts
	if len(exts) == 0 {
		exts = settings.Ingest.Extensions
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchTargets(watcher, inputs, flagRecursive); err != nil {
		return err
	}

	// Catch up before waiting for events.
	if len(paths) > 0 {
		if report, err := ingestor.Ingest(ctx, paths, opts); err != nil {
			return err
		} else if report.Processed > 0 || report.Failed > 0 {
			cmd.Printf("Initial pass: %d processed, %d failed.\n", report.Processed, report.Failed)
		}
	}

	cmd.Println("Watching for changes. Press Ctrl-C to stop.")

	var (
		timer   = time.NewTimer(0)
		pending bool
	)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !matchesExt(event.Name, exts) {
				// New directories need watching even when recursive
				// scans would pick their files up later.
				if flagRecursive && event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
				continue
			}
			logger.Debug("Change detected: %s (%s)", event.Name, event.Op)
			if !pending {
				pending = true
			}
			timer.Reset(debounceWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := runWatchPass(ctx, cmd, args); err != nil {
				logger.Error("Watch pass failed: %v", err)
			}
		}
	}
}

// runWatchPass re-scans the inputs, ingests what changed and reconciles
// away what vanished. Fingerprints keep the unchanged bulk cheap.
func runWatchPass(ctx context.Context, cmd *cobra.Command, args []string) error {
	paths, opts, err := resolveRunInputs(args)
	if err != nil {
		return err
	}

	report, err := ingestor.Ingest(ctx, paths, opts)
	if err != nil {
		return err
	}
	if report.Processed > 0 || report.Failed > 0 {
		cmd.Printf("Updated: %d processed, %d failed.\n", report.Processed, report.Failed)
	}

	recReport, err := ingestor.Reconcile(ctx, paths, opts)
	if err != nil {
		return err
	}
	if len(recReport.Stale) > 0 {
		cmd.Printf("Retired %d vanished documents (%d points).\n",
			len(recReport.Stale), recReport.Tombstoned)
	}
	return nil
}

// addWatchTargets registers the inputs (and their subdirectories when
// recursive) with the watcher.
func addWatchTargets(watcher *fsnotify.Watcher, inputs []string, recursive bool) error {
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			// Watch the containing directory; fsnotify tracks files
			// through editor rename-and-replace saves that way.
			if err := watcher.Add(filepath.Dir(input)); err != nil {
				return err
			}
			continue
		}
		if err := watcher.Add(input); err != nil {
			return err
		}
		if !recursive {
			continue
		}
		err = filepath.WalkDir(input, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != input {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// matchesExt reports whether the path has one of the watched extensions.
// Values are accepted with or without a leading dot, as in --ext md,txt.
func matchesExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range exts {
		want = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(want), "."))
		if want != "" && ext == "."+want {
			return true
		}
	}
	return false
}
