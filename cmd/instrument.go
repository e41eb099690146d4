package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"faultline.dev/pkg/faultline/internal/domain"
	m "faultline.dev/pkg/faultline/internal/model"
)

var instrumentLinesFlag []int
var instrumentPredicatesFlag []string
var instrumentCoverageFlag bool

// instrumentCmd represents the instrument command.
var instrumentCmd = newInstrumentCmd()

func newInstrumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instrument <file.go>",
		Short: "Preview the probes inserted into a file",
		Long: `Print a unified diff of the probes faultline would insert into a Go file.
Nothing is written to disk.

Examples:
  faultline instrument --coverage calc.go
  faultline instrument --lines 12 --predicate "x > 0" calc.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return workflow.Instrument(context.Background(), domain.InstrumentArgs{
				File:       m.Path(args[0]),
				Lines:      instrumentLinesFlag,
				Predicates: instrumentPredicatesFlag,
				Coverage:   instrumentCoverageFlag,
			})
		},
	}

	cmd.Flags().IntSliceVar(&instrumentLinesFlag, "lines", nil, "lines to probe (comma separated or repeated)")
	cmd.Flags().StringArrayVar(&instrumentPredicatesFlag, "predicate", nil, "predicate to probe at each selected line (can be repeated)")
	cmd.Flags().BoolVar(&instrumentCoverageFlag, "coverage", false, "insert line and branch coverage probes")

	return cmd
}

func init() {
	rootCmd.AddCommand(instrumentCmd)
}
