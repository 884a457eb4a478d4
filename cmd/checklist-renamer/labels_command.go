package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/checklistrenamer/internal/extraction"
)

func newLabelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the field labels searched before the serial number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			labels := cfg.Processing.Labels
			source := "config"
			if len(labels) == 0 {
				labels = extraction.DefaultLabels
				source = "built-in"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s labels, matched case-insensitively, longest first\n", source)
			for _, l := range labels {
				fmt.Fprintln(out, l)
			}
			return nil
		},
	}
}
