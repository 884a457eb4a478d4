package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newProgressPrinter redraws a single status line on terminals and stays
// silent otherwise, leaving the logs as the only output.
func newProgressPrinter(w io.Writer) services.ProgressFunc {
	if !isTerminal(w) {
		return nil
	}
	return progressLine(w)
}

func progressLine(w io.Writer) services.ProgressFunc {
	return func(s services.Snapshot) {
		fmt.Fprintf(w, "\rProcessing %d/%d", s.Completed, s.Total)
		if s.Completed == s.Total {
			fmt.Fprintln(w)
		}
	}
}
