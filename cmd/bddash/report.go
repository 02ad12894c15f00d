package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/trend"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a one-shot summary of the test results",
	Long: `Wait for the first snapshot of projects and runs, print a summary
and exit.

The table lists every project with its latest run and the overall daily
pass-rate trend. Use --format json for machine-readable output.

Examples:
  bddash report --config ./bddash.yaml
  bddash report --format json --timeout 30s`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringP("format", "f", "table", "Output format: table or json")
	reportCmd.Flags().Duration("timeout", 15*time.Second, "How long to wait for the first snapshot")
}

// report is the document printed by the report command.
type report struct {
	GeneratedAt      time.Time                  `json:"generated_at"`
	Stats            livestore.Stats            `json:"stats"`
	Projects         []livestore.ProjectSummary `json:"projects"`
	Trend            []trend.Point              `json:"trend"`
	InsufficientData bool                       `json:"insufficient_data"`
}

func runReport(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	format, _ := cmd.Flags().GetString("format")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q (supported: table, json)", format)
	}

	ctx := setupSignalHandler()

	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	a.store.Init()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := waitLoaded(waitCtx, a.store); err != nil {
		return err
	}

	r, err := buildReport(a.store, time.Now())
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return writeReportTable(cmd.OutOrStdout(), r)
}

// reportSource is the part of the live store a report reads.
type reportSource interface {
	Stats() livestore.Stats
	ProjectSummaries() []livestore.ProjectSummary
	Trend() ([]trend.Point, error)
}

func buildReport(src reportSource, now time.Time) (report, error) {
	r := report{
		GeneratedAt: now.UTC(),
		Stats:       src.Stats(),
		Projects:    src.ProjectSummaries(),
	}

	points, err := src.Trend()
	switch {
	case errors.Is(err, trend.ErrInsufficientData):
		r.Trend = []trend.Point{}
		r.InsufficientData = true
	case err != nil:
		return report{}, fmt.Errorf("compute trend: %w", err)
	default:
		r.Trend = points
	}
	return r, nil
}

func writeReportTable(out io.Writer, r report) error {
	fmt.Fprintf(out, "Projects: %d  Runs: %d  Pass rate: %d%%  Failed runs: %d\n\n",
		r.Stats.Projects, r.Stats.Runs, r.Stats.PassRate, r.Stats.FailedRuns)

	if len(r.Projects) == 0 {
		fmt.Fprintln(out, "No projects found")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROJECT\tNAME\tRUNS\tLATEST\tPASS RATE\tLAST RUN")
		fmt.Fprintln(w, "-------\t----\t----\t------\t---------\t--------")
		for _, p := range r.Projects {
			status, rate, last := "-", "-", "never"
			if p.Latest != nil {
				status = string(p.Latest.Status)
				rate = fmt.Sprintf("%d%%", p.PassRate)
				last = p.Latest.Timestamp
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", p.Project.ID, p.Project.Name, p.Runs, status, rate, last)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(out)
	if r.InsufficientData {
		fmt.Fprintln(out, "Trend: not enough data (runs from at least two different days are needed)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tPASS RATE\tPASSED\tTOTAL\tRUNS")
	for _, p := range r.Trend {
		fmt.Fprintf(w, "%s\t%d%%\t%d\t%d\t%d\n", p.Label(), p.PassRate, p.Passed, p.Total, p.Runs)
	}
	return w.Flush()
}
