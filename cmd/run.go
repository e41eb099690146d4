package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"faultline.dev/pkg/faultline/internal/domain"
	m "faultline.dev/pkg/faultline/internal/model"
)

var runParallelFlag int
var runFormulaFlag string
var runTopKFlag int
var runNoOppositeFlag bool
var runMaxLocationsFlag int
var runTestSelectorFlag string
var runMetricsFlag string

// runFlagKeys maps run and rank flags to their config keys. Both commands
// define the same flags, so they are bound when a command executes.
var runFlagKeys = map[string]string{
	runParallelFlagName:  runParallelConfigKey,
	formulaFlagName:      formulaConfigKey,
	metricsFlagName:      metricsPathConfigKey,
	topKFlagName:         topKConfigKey,
	noOppositeFlagName:   noOppositeConfigKey,
	maxLocationsFlagName: maxLocationsConfigKey,
}

// runCmd represents the run command.
var runCmd = newRunCmd()

// rankCmd represents the rank command.
var rankCmd = newRankCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Localize faults with coverage spectra and predicates",
		Long:  runLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindRunFlags(cmd)
			configureRunners(currentRunnerSettings())

			return runWorkflow(cmd, runArgs(args, false))
		},
	}

	configureRunFlags(cmd)
	configurePredicateFlags(cmd)

	return cmd
}

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank [paths...]",
		Short: "Rank lines by coverage spectra only",
		Long:  rankLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindRunFlags(cmd)
			configureRunners(currentRunnerSettings())

			return runWorkflow(cmd, runArgs(args, true))
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rankCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", defaultRunParallel, "number of parallel workspaces validating predicates")
	cmd.Flags().StringVarP(&runFormulaFlag, formulaFlagName, "f", defaultFormula, "suspiciousness formula ("+strings.Join(domain.FormulaNames(), ", ")+")")
	cmd.Flags().StringVar(&runTestSelectorFlag, testSelectorFlagName, "", "only run tests whose name or id (<import path>.<TestName>) matches this regular expression")
	cmd.Flags().StringVar(&runMetricsFlag, metricsFlagName, "", "write Prometheus metrics in textfile format to this path")
}

func configurePredicateFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runTopKFlag, topKFlagName, "k", defaultTopK, "maximum candidate predicates per variable")
	cmd.Flags().BoolVar(&runNoOppositeFlag, noOppositeFlagName, false, "do not add the negation of each candidate predicate")
	cmd.Flags().IntVarP(&runMaxLocationsFlag, maxLocationsFlagName, "l", defaultMaxLocations, "number of top-ranked locations to validate predicates at")
}

func bindRunFlags(cmd *cobra.Command) {
	for name, key := range runFlagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			bindFlagToConfig(flag, key)
		}
	}
}

// runnerSettings are the process limits of the build and test adapters.
type runnerSettings struct {
	parallel     int
	buildTimeout time.Duration
	testTimeout  time.Duration
}

// configurableRunner is implemented by adapters whose limits are set after
// flag parsing.
type configurableRunner interface {
	Configure(timeout time.Duration, parallel int)
}

func currentRunnerSettings() runnerSettings {
	return runnerSettings{
		parallel:     viper.GetInt(runParallelConfigKey),
		buildTimeout: configSeconds(buildTimeoutKey, defaultBuildTimeout),
		testTimeout:  configSeconds(testTimeoutKey, defaultTestTimeout),
	}
}

func configureRunners(settings runnerSettings) {
	if r, ok := buildAdapter.(configurableRunner); ok {
		r.Configure(settings.buildTimeout, settings.parallel)
	}

	if r, ok := testAdapter.(configurableRunner); ok {
		r.Configure(settings.testTimeout, settings.parallel)
	}
}

func runArgs(args []string, coverageOnly bool) domain.RunArgs {
	paths := parsePaths(args)
	if len(paths) == 0 {
		paths = []m.Path{"./..."}
	}

	return domain.RunArgs{
		Root:         m.Path("."),
		Paths:        paths,
		Output:       m.Path(viper.GetString(outputFlagName)),
		Formula:      viper.GetString(formulaConfigKey),
		Parallel:     viper.GetInt(runParallelConfigKey),
		MaxLocations: viper.GetInt(maxLocationsConfigKey),
		TopK:         viper.GetInt(topKConfigKey),
		NoOpposite:   viper.GetBool(noOppositeConfigKey),
		CoverageOnly: coverageOnly,
		TestSelector: runTestSelectorFlag,
		MetricsPath:  m.Path(viper.GetString(metricsPathConfigKey)),
		UseCache:     !viper.GetBool(noCacheFlagName),
		StorePath:    m.Path(storePath()),
	}
}

// runWorkflow runs the pipeline until it finishes or the process is interrupted.
// An interrupted run still saves the partial report.
func runWorkflow(cmd *cobra.Command, args domain.RunArgs) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := workflow.Run(ctx, args)

	return err
}
