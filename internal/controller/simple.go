package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "faultline.dev/pkg/faultline/internal/model"
)

// maxTableRows bounds the ranking table printed by SimpleUI.
const maxTableRows = 25

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// Wait returns immediately; SimpleUI never blocks.
func (s *SimpleUI) Wait(_ context.Context) {}

// DisplayProgress prints the stage and, when known, the completed count.
func (s *SimpleUI) DisplayProgress(ctx context.Context, progress Progress) {
	if ctx.Err() != nil {
		return
	}

	if progress.Total > 0 {
		s.printf("[%s] %d/%d\n", progress.Stage, progress.Done, progress.Total)
		return
	}

	s.printf("[%s]\n", progress.Stage)
}

// DisplayOutcome prints the validation outcome of one location.
func (s *SimpleUI) DisplayOutcome(ctx context.Context, outcome m.LocationOutcome) {
	if ctx.Err() != nil {
		return
	}

	s.printf("%s:%d %s (%d candidates, %d accepted)\n",
		outcome.File, outcome.Line, outcome.Outcome, outcome.Candidates, len(outcome.Accepted))
}

// DisplayReport prints the ranking as a table.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\nRun %s (%s): %d failing, %d passing tests\n",
		report.RunID, report.Formula, report.TotalFailed, report.TotalPassed)

	if len(report.Ranking) == 0 {
		s.printf("No suspicious locations.\n")
		return nil
	}

	s.printf("\n%s", renderRankingTable(report.Ranking, maxTableRows))

	if len(report.OnlyFailing) > 0 {
		s.printf("\nCovered only by failing tests:\n")

		for _, key := range report.OnlyFailing {
			s.printf("  %s\n", key)
		}
	}

	return nil
}

// DisplayInstrumentation prints the diff of an instrumented file.
func (s *SimpleUI) DisplayInstrumentation(ctx context.Context, file m.Path, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if diff == "" {
		s.printf("%s: no probes inserted\n", file)
		return nil
	}

	s.printf("%s", diff)

	return nil
}

func renderRankingTable(ranking []m.RankedLocation, limit int) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Rank", "Location", "Method", "Score", "Failed", "Passed", "Top predicate"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	shown := ranking
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	for _, loc := range shown {
		table.Append([]string{
			fmt.Sprintf("%d", loc.Rank),
			fmt.Sprintf("%s:%d", loc.File, loc.Line),
			shortMethod(loc.Method),
			fmt.Sprintf("%.4f", loc.Score),
			fmt.Sprintf("%d", loc.Failed),
			fmt.Sprintf("%d", loc.Passed),
			topPredicate(loc),
		})
	}

	table.SetFooter([]string{"", fmt.Sprintf("Total Locations %d", len(ranking)), "", "", "", "", ""})
	table.Render()

	return tableBuffer.String()
}

func topPredicate(loc m.RankedLocation) string {
	if len(loc.Predicates) == 0 {
		return ""
	}

	p := loc.Predicates[0]

	return fmt.Sprintf("%s (%.4f)", p.Expression, p.Score)
}

// shortMethod drops the import path from a qualified function name.
func shortMethod(method string) string {
	if i := strings.LastIndexByte(method, '/'); i >= 0 {
		return method[i+1:]
	}

	return method
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
