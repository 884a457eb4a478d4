package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/checklistrenamer/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the documents of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				docs, err := store.Documents(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					return fmt.Errorf("run %s not found", runID)
				}
				fmt.Fprintln(out, renderDocuments(docs))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the documents of this run")
	return cmd
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			humanize.Time(r.StartedAt),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			r.ArchiveURI,
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Total", "OK", "Failed", "Archive"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func renderDocuments(docs []history.Document) string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			strconv.Itoa(d.Position + 1),
			d.SourceName,
			d.State,
			d.Serial,
			d.FailureKind,
		})
	}
	return renderTable(
		[]string{"#", "File", "State", "Serial", "Failure"},
		rows,
		[]columnAlignment{alignRight},
	)
}
