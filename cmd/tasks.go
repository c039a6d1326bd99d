package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maskline/numsync/internal/checks"
	"github.com/maskline/numsync/internal/cleaner"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the registered sync tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Listing needs neither a store nor credentials.
		formatTasksList(os.Stdout, checks.All(nil, nil, ""))
		return nil
	},
}

// formatTasksList writes a tabular list of tasks to out.
func formatTasksList(out io.Writer, checkers []cleaner.Checker) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tCAN CLEAN\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t---------\t-----------")
	for _, c := range checkers {
		canClean := "no"
		if c.CanClean() {
			canClean = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Slug(), canClean, c.Description())
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
