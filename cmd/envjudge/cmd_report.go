package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"envjudge/internal/evaluate"
	"envjudge/internal/format"
	"envjudge/internal/store"
)

var reportFlags struct {
	dbPath   string
	runID    string
	list     bool
	markdown bool
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a stored evaluation run",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.dbPath, "store", store.DefaultDBPath, "Store DB path")
	f.StringVar(&reportFlags.runID, "run", "", "Run ID (default: latest)")
	f.BoolVar(&reportFlags.list, "list", false, "List stored runs instead of rendering one")
	f.BoolVar(&reportFlags.markdown, "markdown", false, "Render the report as Markdown")
}

func runReport(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(reportFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if reportFlags.list {
		runs, err := st.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no stored runs")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %s\n", r.ID, r.FinishedAt, r.Scorer)
		}
		return nil
	}

	var report *evaluate.Report
	if reportFlags.runID != "" {
		report, err = st.GetRun(reportFlags.runID)
	} else {
		report, err = st.LatestRun()
	}
	if err != nil {
		return err
	}

	mode := format.ASCII
	if reportFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprint(out, evaluate.FormatReport(report, mode))
	return nil
}
