package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"faultline.dev/pkg/faultline/internal/adapter"
	m "faultline.dev/pkg/faultline/internal/model"
)

// ValidateArgs describes one location's candidate predicates.
type ValidateArgs struct {
	Location m.Location
	// Root is the module root of the workspace being instrumented.
	Root m.Path
	// File is the owning file inside Root; RelFile is the same file relative to Root.
	File            m.Path
	RelFile         m.Path
	PkgPath         string
	Candidates      []m.Predicate
	ExpectedFailing []string
	TestSelector    string
}

// ValidationReport is the outcome of validating one location.
type ValidationReport struct {
	Outcome     m.ValidationOutcome
	Accepted    []m.Predicate
	Discarded   []m.Predicate
	Builds      int
	Coverage    m.Coverage
	Diagnostics []string
}

// ValidatorOptions tunes candidate selection.
type ValidatorOptions struct {
	// TopK caps accepted predicates per source variable.
	TopK int
	// NoOpposite disables registering the complement of each legal predicate.
	NoOpposite bool
}

// CandidateValidator instruments, builds and tests candidate predicates at one
// location, keeping only those that compile and leave test outcomes unchanged.
type CandidateValidator interface {
	// Validate returns the accepted predicates and their spectra. Build failures
	// and behavior changes are reported in the outcome; only infrastructure
	// failures are returned as errors. The owning file is restored byte-for-byte
	// before Validate returns, on every path.
	Validate(ctx context.Context, args ValidateArgs) (ValidationReport, error)
}

type candidateValidator struct {
	fs           adapter.SourceFSAdapter
	goFiles      adapter.GoFileAdapter
	types        adapter.TypeResolver
	build        adapter.BuildAdapter
	tests        adapter.TestRunnerAdapter
	store        adapter.PredicateStore
	instrumentor Instrumentor
	collector    SpectrumCollector
	leases       *FileLeases
	metrics      *adapter.Metrics
	opts         ValidatorOptions
}

// ValidatorDeps groups the collaborators of a CandidateValidator. Store and
// Metrics are optional.
type ValidatorDeps struct {
	FS           adapter.SourceFSAdapter
	GoFiles      adapter.GoFileAdapter
	Types        adapter.TypeResolver
	Build        adapter.BuildAdapter
	Tests        adapter.TestRunnerAdapter
	Store        adapter.PredicateStore
	Instrumentor Instrumentor
	Collector    SpectrumCollector
	Leases       *FileLeases
	Metrics      *adapter.Metrics
}

// NewCandidateValidator constructs a CandidateValidator.
func NewCandidateValidator(deps ValidatorDeps, opts ValidatorOptions) CandidateValidator {
	if opts.TopK < 1 {
		opts.TopK = 1
	}

	if deps.Leases == nil {
		deps.Leases = NewFileLeases()
	}

	return &candidateValidator{
		fs:           deps.FS,
		goFiles:      deps.GoFiles,
		types:        deps.Types,
		build:        deps.Build,
		tests:        deps.Tests,
		store:        deps.Store,
		instrumentor: deps.Instrumentor,
		collector:    deps.Collector,
		leases:       deps.Leases,
		metrics:      deps.Metrics,
		opts:         opts,
	}
}

func (cv *candidateValidator) Validate(ctx context.Context, args ValidateArgs) (report ValidationReport, err error) {
	if err := ctx.Err(); err != nil {
		return ValidationReport{Outcome: m.Skipped}, err
	}

	release, err := cv.leases.Acquire(ctx, args.RelFile)
	if err != nil {
		return ValidationReport{Outcome: m.Skipped}, err
	}
	defer release()

	runtimePath := cv.fs.JoinPath(ctx, filepath.Dir(string(args.File)), ProbeRuntimeFile)

	snapshot, err := cv.fs.Snapshot(ctx, args.File, runtimePath)
	if err != nil {
		return ValidationReport{Outcome: m.InfrastructureFailed}, err
	}

	defer func() {
		if rerr := cv.fs.Restore(context.WithoutCancel(ctx), snapshot); rerr != nil {
			slog.Error("Failed to restore source", "file", args.File, "error", rerr)

			report.Outcome = m.InfrastructureFailed
			report.Accepted = nil
			report.Coverage = m.Coverage{}
			err = errors.Join(err, rerr)
		}
	}()

	src, ok := snapshot.Content(args.File)
	if !ok {
		return ValidationReport{Outcome: m.InfrastructureFailed}, fmt.Errorf("%w: %s does not exist", m.ErrInfrastructure, args.File)
	}

	file, err := cv.goFiles.Parse(ctx, args.File, src)
	if err != nil {
		return ValidationReport{Outcome: m.Skipped, Diagnostics: []string{err.Error()}}, nil
	}

	file.PkgPath = args.PkgPath

	if table, terr := cv.types.Resolve(ctx, args.Root, args.File); terr != nil {
		slog.Debug("type resolution failed", "file", args.File, "error", terr)
	} else {
		file.Types = table
	}

	checksum, err := cv.fs.HashFile(ctx, args.File)
	if err != nil {
		return ValidationReport{Outcome: m.InfrastructureFailed}, fmt.Errorf("%w: hash %s: %v", m.ErrInfrastructure, args.File, err)
	}

	legal, scan, err := cv.scan(ctx, file, args, runtimePath, checksum)
	report = scan

	if err != nil {
		report.Outcome = m.InfrastructureFailed
		return report, err
	}

	if len(legal) == 0 {
		report.Outcome = m.Skipped
		if len(report.Discarded) > 0 {
			report.Outcome = m.BuildFailed
		}

		return report, nil
	}

	exprs := make([]string, len(legal))
	for i, p := range legal {
		exprs[i] = p.Expression
	}

	build, compiled, err := cv.instrumentAndBuild(ctx, file, args, runtimePath, PredicatePlan(args.Location.Line, exprs...))
	if compiled {
		report.Builds++
	}

	if err != nil {
		report.Outcome = m.InfrastructureFailed
		return report, err
	}

	if !build.Success {
		slog.Info("combined instrumentation failed to build", "file", args.RelFile, "line", args.Location.Line, "predicates", len(legal))

		report.Outcome = m.BuildFailed
		report.Discarded = append(report.Discarded, legal...)
		report.Diagnostics = append(report.Diagnostics, firstDiagnostic("combined build", build.Diagnostics))

		return report, nil
	}

	run, err := cv.tests.Run(ctx, build, args.TestSelector)
	cv.metrics.ObserveTestRun(err)

	if err != nil {
		report.Outcome = m.InfrastructureFailed
		return report, err
	}

	if !sameTests(run.Failing, args.ExpectedFailing) {
		slog.Info("instrumentation changed test behavior",
			"file", args.RelFile,
			"line", args.Location.Line,
			"predicates", strings.Join(exprs, "; "),
			"expected_failing", len(args.ExpectedFailing),
			"failing", len(run.Failing))

		report.Outcome = m.TestBehaviorChanged
		report.Discarded = append(report.Discarded, legal...)
		report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("behavior changed by: %s", strings.Join(exprs, "; ")))

		return report, nil
	}

	cov := cv.collector.Collect(run.RawProbeLog, run.FailingSet())
	report.Coverage = predicateCoverage(cov, args.Location, exprs)
	report.Accepted = legal
	report.Outcome = m.Accepted

	cv.persist(ctx, args, legal, checksum)

	return report, nil
}

// scan walks the candidates by descending probability and returns the
// tentatively legal predicates.
func (cv *candidateValidator) scan(
	ctx context.Context,
	file *adapter.SyntaxFile,
	args ValidateArgs,
	runtimePath m.Path,
	checksum string,
) ([]m.Predicate, ValidationReport, error) {
	var report ValidationReport

	candidates := m.ClonePredicates(args.Candidates)
	adapter.SortPredicates(candidates)

	cached := cv.cached(ctx, args, checksum)
	seen := make(map[string]struct{})
	perVariable := make(map[string]int)

	var legal []m.Predicate

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		norm, err := NormalizeExpr(c.Expression)
		if err != nil {
			cv.metrics.ObserveCandidate("malformed")
			slog.Warn("skipping malformed predicate", "expression", c.Expression, "error", err)

			continue
		}

		if _, dup := seen[norm]; dup {
			cv.metrics.ObserveCandidate("duplicate")
			continue
		}

		seen[norm] = struct{}{}
		seen[Complement(norm)] = struct{}{}

		if perVariable[c.Variable] >= cv.opts.TopK {
			cv.metrics.ObserveCandidate("capped")
			continue
		}

		c.Expression = norm

		if _, ok := cached[norm]; ok {
			cv.metrics.ObserveCandidate("cached")
			c.Cached = true
		} else {
			build, compiled, err := cv.instrumentAndBuild(ctx, file, args, runtimePath, PredicatePlan(args.Location.Line, norm))
			if compiled {
				report.Builds++
			}

			if err != nil {
				return nil, report, err
			}

			if !build.Success {
				cv.metrics.ObserveCandidate("build_failed")

				report.Discarded = append(report.Discarded, c)
				report.Diagnostics = append(report.Diagnostics, firstDiagnostic(norm, build.Diagnostics))

				continue
			}

			cv.metrics.ObserveCandidate("legal")
		}

		legal = append(legal, c)
		perVariable[c.Variable]++

		if !cv.opts.NoOpposite {
			opposite := c.Clone()
			opposite.Expression = Complement(norm)
			opposite.Cached = false
			legal = append(legal, opposite)
		}
	}

	return legal, report, nil
}

// instrumentAndBuild writes the plan's instrumentation and the probe runtime
// into the workspace and compiles it. A plan that cannot be instrumented is
// reported as a failed build without invoking the compiler; compiled is false
// then.
func (cv *candidateValidator) instrumentAndBuild(
	ctx context.Context,
	file *adapter.SyntaxFile,
	args ValidateArgs,
	runtimePath m.Path,
	plan InstrumentPlan,
) (build adapter.BuildResult, compiled bool, err error) {
	res, err := cv.instrumentor.Instrument(file, plan)
	if err != nil {
		return adapter.BuildResult{Diagnostics: []string{err.Error()}}, false, nil
	}

	if res.Predicates == 0 {
		return adapter.BuildResult{Diagnostics: []string{fmt.Sprintf("no statement starts at line %d", args.Location.Line)}}, false, nil
	}

	runtime, err := ProbeRuntime(res.Package)
	if err != nil {
		return adapter.BuildResult{}, false, fmt.Errorf("%w: %v", m.ErrInfrastructure, err)
	}

	if err := cv.fs.WriteFile(ctx, args.File, res.Source, 0o644); err != nil {
		return adapter.BuildResult{}, false, fmt.Errorf("%w: write %s: %v", m.ErrInfrastructure, args.File, err)
	}

	if err := cv.fs.WriteFile(ctx, runtimePath, runtime, 0o644); err != nil {
		return adapter.BuildResult{}, false, fmt.Errorf("%w: write %s: %v", m.ErrInfrastructure, runtimePath, err)
	}

	build, err = cv.build.Compile(ctx, args.Root)
	if err != nil {
		return adapter.BuildResult{}, true, err
	}

	cv.metrics.ObserveBuild(build.Success, build.Duration)

	return build, true, nil
}

func (cv *candidateValidator) cached(ctx context.Context, args ValidateArgs, checksum string) map[string]struct{} {
	if cv.store == nil {
		return nil
	}

	records, err := cv.store.Load(ctx, args.RelFile, args.Location.Line)
	if err != nil {
		slog.Warn("predicate store unavailable", "file", args.RelFile, "line", args.Location.Line, "error", err)
		return nil
	}

	out := make(map[string]struct{})

	for _, rec := range records {
		if rec.Checksum == checksum {
			out[rec.Expression] = struct{}{}
		}
	}

	return out
}

func (cv *candidateValidator) persist(ctx context.Context, args ValidateArgs, accepted []m.Predicate, checksum string) {
	if cv.store == nil {
		return
	}

	records := make([]m.PredicateRecord, 0, len(accepted))
	for _, p := range accepted {
		records = append(records, m.PredicateRecord{
			File:         args.RelFile,
			Line:         args.Location.Line,
			Expression:   p.Expression,
			Variable:     p.Variable,
			VariableType: p.VariableType,
			Probability:  p.Probability,
			Checksum:     checksum,
		})
	}

	if err := cv.store.Save(ctx, records); err != nil {
		slog.Warn("failed to persist predicates", "file", args.RelFile, "line", args.Location.Line, "error", err)
	}
}

// predicateCoverage keeps the spectra of the given predicates at loc.
func predicateCoverage(cov m.Coverage, loc m.Location, exprs []string) m.Coverage {
	wanted := make(map[string]struct{}, len(exprs))
	for _, e := range exprs {
		wanted[e] = struct{}{}
	}

	out := m.Coverage{
		Spectra:     make(m.Spectra),
		OnlyFailing: make(map[m.SpectrumKey]struct{}),
		TotalFailed: cov.TotalFailed,
		TotalPassed: cov.TotalPassed,
		Malformed:   cov.Malformed,
	}

	for key, s := range cov.Spectra {
		if key.Location != loc {
			continue
		}

		if _, ok := wanted[key.Predicate]; !ok {
			continue
		}

		out.Spectra[key] = s
		if s.OnlyFailing() {
			out.OnlyFailing[key] = struct{}{}
		}
	}

	return out
}

func sameTests(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}

	a := append([]string(nil), got...)
	b := append([]string(nil), want...)

	sort.Strings(a)
	sort.Strings(b)

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func firstDiagnostic(subject string, diagnostics []string) string {
	if len(diagnostics) == 0 {
		return subject + ": build failed"
	}

	return subject + ": " + diagnostics[0]
}
