// Package cmd provides the root command and CLI setup for faultline.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"faultline.dev/pkg/faultline/internal/adapter"
	"faultline.dev/pkg/faultline/internal/controller"
	"faultline.dev/pkg/faultline/internal/domain"
	m "faultline.dev/pkg/faultline/internal/model"
)

var processRunner adapter.ProcessRunner
var goFileAdapter adapter.GoFileAdapter
var sourceFSAdapter adapter.SourceFSAdapter
var typeResolver adapter.TypeResolver
var buildAdapter adapter.BuildAdapter
var testAdapter adapter.TestRunnerAdapter
var predicateSource adapter.PredicateSource
var reportStore adapter.ReportStore
var metrics *adapter.Metrics
var workflow domain.Workflow
var ui controller.UI

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// noCacheFlag disables the predicate store when set.
var noCacheFlag bool

// verboseFlag switches the log file to debug level.
var verboseFlag bool

// logFileFlag overrides the configured log file.
var logFileFlag string

func init() {
	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	processRunner = adapter.NewLocalProcessRunner()
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	sourceFSAdapter = adapter.NewLocalSourceFSAdapter()
	typeResolver = adapter.NewPackagesTypeResolver()
	// Timeouts and parallelism are applied again once flags are parsed.
	buildAdapter = adapter.NewGoBuildAdapter(processRunner, defaultBuildTimeout, defaultRunParallel)
	testAdapter = adapter.NewLocalTestRunnerAdapter(processRunner, defaultTestTimeout, defaultRunParallel)
	predicateSource = newPredicateSource(viper.GetString(predicateSourceKey))
	reportStore = adapter.NewYAMLReportStore()
	metrics = adapter.NewMetrics()
	workflow = domain.NewWorkflow(domain.WorkflowDeps{
		FS:        sourceFSAdapter,
		GoFiles:   goFileAdapter,
		Types:     typeResolver,
		Build:     buildAdapter,
		Tests:     testAdapter,
		Source:    predicateSource,
		OpenStore: openPredicateStore,
		Reports:   reportStore,
		UI:        ui,
		Metrics:   metrics,
	})
}

// newPredicateSource selects the candidate predicate source by name. Unknown
// names fall back to the heuristic source.
func newPredicateSource(name string) adapter.PredicateSource {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case predicateSourceNone:
		return nil
	case predicateSourceFile:
		return adapter.NewTSVPredicateSource(m.Path(viper.GetString(predicateFileKey)))
	case predicateSourceOpenAI:
		return adapter.NewCompositePredicateSource(
			adapter.NewHeuristicPredicateSource(),
			adapter.NewOpenAIPredicateSource(
				viper.GetString(openAIAPIKeyKey),
				viper.GetString(openAIBaseURLKey),
				viper.GetString(openAIModelKey),
				viper.GetFloat64(predicateRateLimitKey),
			),
		)
	case predicateSourceHeuristic:
		return adapter.NewHeuristicPredicateSource()
	default:
		slog.Warn("unknown predicate source, using heuristic", "source", name)
		return adapter.NewHeuristicPredicateSource()
	}
}

func openPredicateStore(path m.Path) (adapter.PredicateStore, error) {
	store, err := adapter.NewBoltPredicateStore(path)
	if err != nil {
		return nil, err
	}

	return store, nil
}

const pathPatternsHelp = `Supports Go-style package patterns:
  - ./...          every package under the module root
  - ./pkg/...      every package under pkg
  - ./cmd ./pkg    several packages`

const rootLongDescription = `Faultline is a fault localization tool for Go. It runs the failing test
suite of a module against instrumented code, ranks source lines by how
strongly their execution correlates with failures, and validates candidate
predicates at the top locations to explain why they fail.

` + pathPatternsHelp

const runLongDescription = `Run the full localization pipeline for the given packages (default: ./...):
baseline tests, coverage spectra, predicate validation and ranking.

` + pathPatternsHelp

const rankLongDescription = `Rank source lines by coverage spectra only, without predicate validation.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faultline",
		Short: "Go fault localization tool",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			defaultReportsDir,
			"output directory for localization reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVar(&noCacheFlag, noCacheFlagName, defaultNoCache, "disable the predicate store (re-validate everything)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "write debug logs")
	cmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "log file (default from config)")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
