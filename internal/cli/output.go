package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starexec/jobview/internal/jobview"
	"github.com/starexec/jobview/internal/models"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q: use table, json or yaml", format)
}

// emit writes v as JSON or YAML when --output asks for it. It returns false
// when the caller should print a table instead.
func emit(w io.Writer, v any) (bool, error) {
	switch outputFormat {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case formatTable:
		return false, nil
	}
	return true, checkFormat(outputFormat)
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func printSpaces(w io.Writer, spaces []models.JobSpace) error {
	if len(spaces) == 0 {
		fmt.Fprintln(w, "No job spaces found")
		return nil
	}
	tw := newTable(w, "ID", "NAME", "STAGES", "SUBSPACES")
	for _, s := range spaces {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.ID, s.Name, s.MaxStages, yesNo(s.HasChildren))
	}
	return tw.Flush()
}

func printStats(w io.Writer, rows []models.SolverStats, short bool) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No solver statistics")
		return nil
	}
	if short {
		tw := newTable(w, "SOLVER", "CONFIG", "SOLVED", "TIME")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s (%d)\t%d\t%.3fs\n", r.Solver.Name, r.Config.Name, r.Config.ID, r.Solved, r.Time)
		}
		return tw.Flush()
	}
	tw := newTable(w, "SOLVER", "CONFIG", "SOLVED", "INCOMPLETE", "WRONG", "FAILED", "TIME")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s (%d)\t%d/%d\t%d\t%d\t%d\t%.3fs\n",
			r.Solver.Name, r.Config.Name, r.Config.ID, r.Solved, r.Completed, r.Incomplete, r.Wrong, r.Failed, r.Time)
	}
	return tw.Flush()
}

func printPairs(w io.Writer, page *models.PairPage, start int) error {
	if len(page.Rows) == 0 {
		fmt.Fprintln(w, "No job pairs")
		return nil
	}
	tw := newTable(w, "PAIR", "BENCHMARK", "SOLVER", "CONFIG", "STATUS", "TIME", "RESULT", "SPACE")
	for _, p := range page.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Benchmark.Name, p.Solver.Name, p.Config.Name, p.Status, formatDuration(p.Time), p.Result, p.Space)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.TotalFiltered > 0 {
		fmt.Fprintf(w, "\nShowing %d-%d of %d pairs", start+1, start+len(page.Rows), page.TotalFiltered)
		if page.TotalFiltered != page.TotalRecords {
			fmt.Fprintf(w, " (filtered from %d)", page.TotalRecords)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// printState renders one refresh of the watch command.
func printState(w io.Writer, s jobview.State, at time.Time) {
	fmt.Fprintf(w, "== job %d, space %d, %s ==\n", s.JobID, s.SpaceID, at.Format(time.TimeOnly))
	if s.Notice != "" {
		fmt.Fprintf(w, "! %s\n", s.Notice)
	}

	if s.Summary != nil {
		_ = printStats(w, s.Summary.Rows, false)
	}
	if s.Overview.LargeSrc != "" {
		fmt.Fprintf(w, "overview graph: %s\n", s.Overview.LargeSrc)
	}
	if c := s.Comparison; c.Visible && c.Large != nil {
		fmt.Fprintf(w, "comparison graph (%d vs %d): %s\n", c.Config1, c.Config2, c.Large.Src)
	}
	fmt.Fprintln(w)

	switch {
	case s.TooManyPairs:
		fmt.Fprintln(w, "Too many pairs to list, use 'jobview job download' instead")
	case s.Pairs != nil:
		_ = printPairs(w, s.Pairs, s.PairsView.Start)
	}

	for _, p := range s.Panels {
		fmt.Fprintf(w, "\n-- %s --\n", p.Space.Name)
		switch {
		case p.Stats != nil:
			_ = printStats(w, p.Stats.Rows, true)
		case p.Err != nil:
			fmt.Fprintln(w, "unavailable")
		}
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
