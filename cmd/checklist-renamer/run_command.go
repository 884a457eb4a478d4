package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/checklistrenamer/internal/config"
	"github.com/Lllllllleong/checklistrenamer/internal/history"
	"github.com/Lllllllleong/checklistrenamer/internal/ingest"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

const lockFileName = ".checklist-renamer.lock"

type runOptions struct {
	outDir    string
	workers   int
	format    string
	noHistory bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Rename PDFs found in files, directories or zip bundles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			effective, err := opts.apply(cfg)
			if err != nil {
				return err
			}
			return runBatch(cmd, ctx, effective, opts.noHistory, args)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Documents processed in parallel (default from config)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Report format: csv or xlsx (default from config)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

// apply returns a copy of cfg with the command-line overrides applied.
func (o runOptions) apply(cfg *config.Config) (*config.Config, error) {
	effective := *cfg
	if o.outDir != "" {
		dir, err := config.ExpandPath(o.outDir)
		if err != nil {
			return nil, err
		}
		effective.Output.Dir = dir
	}
	if o.workers != 0 {
		effective.Processing.Workers = o.workers
	}
	if o.format != "" {
		effective.Output.ReportFormat = o.format
	}
	if err := effective.Validate(); err != nil {
		return nil, err
	}
	return &effective, nil
}

func runBatch(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, noHistory bool, paths []string) error {
	logger := ctx.newLogger(cfg, cmd.ErrOrStderr())
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	collector := ingest.NewCollector(logger)
	for _, p := range paths {
		if err := collector.AddPath(runCtx, p); err != nil {
			return err
		}
	}
	handles, err := collector.Handles()
	if err != nil {
		return fmt.Errorf("%w in %v", err, paths)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", cfg.Output.Dir, err)
	}
	lock := flock.New(filepath.Join(cfg.Output.Dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another run is writing to %s", cfg.Output.Dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release output lock.", "error", err)
		}
	}()

	var (
		store *history.Store
		sink  services.RecordSink
	)
	if cfg.History.Enabled && !noHistory {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		sink = store
	}

	renamer := services.NewRenamerFromConfig(cfg, newProgressPrinter(cmd.ErrOrStderr()), logger)
	result, runErr := renamer.Process(runCtx, handles, time.Now())
	if result == nil {
		return runErr
	}

	publisher := dirPublisher{dir: cfg.Output.Dir}
	if runErr != nil {
		// Keep the partial audit even when interrupted.
		if _, err := publisher.Publish(context.WithoutCancel(runCtx), result.ReportName, result.ReportBytes); err != nil {
			logger.Error("Failed to write partial report.", "error", err)
		}
		return runErr
	}
	// Looked up before Deliver records this run.
	var reused []string
	if store != nil {
		reused = reusedSerials(runCtx, store, result.Records, logger)
	}
	if err := renamer.Deliver(runCtx, result, publisher, sink); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderResults(result, handles))
	printSummary(out, result)
	for _, line := range reused {
		fmt.Fprintln(out, line)
	}
	return nil
}

// reusedSerials reports serials that earlier recorded runs already renamed.
func reusedSerials(ctx context.Context, store *history.Store, records []models.ProcessingRecord, logger *slog.Logger) []string {
	var lines []string
	seen := make(map[string]bool)
	for _, r := range records {
		if r.State != models.StateSucceeded || seen[r.Serial] {
			continue
		}
		seen[r.Serial] = true
		runs, err := store.PreviousSerialUse(ctx, r.Serial)
		if err != nil {
			logger.Warn("Failed to look up serial history.", "serial", r.Serial, "error", err)
			continue
		}
		if len(runs) > 0 {
			lines = append(lines, fmt.Sprintf("Serial %s was already renamed in run %s", r.Serial, runs[0]))
		}
	}
	return lines
}

func renderResults(result *services.BatchResult, handles []models.DocumentHandle) string {
	sizes := make(map[string]int64, len(handles))
	for _, h := range handles {
		sizes[h.ID] = h.Size
	}
	assigned := make(map[string]string)
	if result.Archive != nil {
		for _, e := range result.Archive.Entries {
			assigned[e.RecordID] = e.Name
		}
	}

	rows := make([][]string, 0, len(result.Records))
	for i, r := range result.Records {
		row := result.Report.Rows[i]
		newName := row.DestinationName
		if name, ok := assigned[r.ID]; ok {
			newName = name
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			row.OriginalName,
			humanize.Bytes(uint64(sizes[r.ID])),
			row.Status,
			row.Serial,
			newName,
			row.Reason,
		})
	}
	return renderTable(
		[]string{"#", "File", "Size", "Status", "Serial", "New name", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	)
}

func printSummary(w io.Writer, result *services.BatchResult) {
	fmt.Fprintf(w, "%s processed, %s failed\n",
		humanize.Comma(int64(result.Summary.Succeeded)),
		humanize.Comma(int64(result.Summary.Failed)),
	)
	if result.Archive != nil {
		fmt.Fprintf(w, "Archive: %s (%s)\n", result.ArchiveURI, humanize.Bytes(uint64(len(result.ArchiveBytes))))
		for _, c := range result.Archive.Collisions {
			fmt.Fprintf(w, "  duplicate serial: %s stored as %s\n", c.Requested, c.Assigned)
		}
		for _, s := range result.Archive.Skipped {
			fmt.Fprintf(w, "  skipped %s: %s\n", s.RecordID, s.Detail)
		}
	} else {
		fmt.Fprintln(w, "Archive: none, no document was renamed")
	}
	fmt.Fprintf(w, "Report: %s (%s)\n", result.ReportURI, humanize.Bytes(uint64(len(result.ReportBytes))))
}

// dirPublisher writes artifacts into a local directory.
type dirPublisher struct {
	dir string
}

func (p dirPublisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest := filepath.Join(p.dir, name)
	tmp, err := os.CreateTemp(p.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return dest, nil
}
