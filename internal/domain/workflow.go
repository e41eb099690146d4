package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"faultline.dev/pkg/faultline/internal/adapter"
	"faultline.dev/pkg/faultline/internal/controller"
	m "faultline.dev/pkg/faultline/internal/model"
	"faultline.dev/pkg/faultline/pkg"
)

// ReportFileName is the name of the report written into the output directory.
const ReportFileName = "report.yaml"

// RunArgs configures a full localization run.
type RunArgs struct {
	Root    m.Path   `validate:"required"`
	Paths   []m.Path `validate:"dive,required"`
	Output  m.Path   `validate:"required"`
	Formula string   `validate:"required"`
	// Parallel is the number of workspaces validating locations concurrently.
	Parallel     int `validate:"min=1,max=64"`
	MaxLocations int `validate:"min=0"`
	TopK         int `validate:"min=1"`
	NoOpposite   bool
	// CoverageOnly stops after the coverage ranking.
	CoverageOnly bool
	TestSelector string
	MetricsPath  m.Path
	// UseCache reuses predicates accepted by earlier runs from the store at StorePath.
	UseCache  bool
	StorePath m.Path `validate:"required_if=UseCache true"`
}

// InstrumentArgs selects a file and the probes to preview.
type InstrumentArgs struct {
	File       m.Path `validate:"required"`
	Lines      []int  `validate:"dive,min=1"`
	Predicates []string
	Coverage   bool
}

// ViewArgs locates a saved report.
type ViewArgs struct {
	Reports m.Path `validate:"required"`
}

// Workflow runs the localization pipeline for the CLI.
type Workflow interface {
	Run(ctx context.Context, args RunArgs) (m.Report, error)
	Instrument(ctx context.Context, args InstrumentArgs) error
	View(ctx context.Context, args ViewArgs) error
}

// WorkflowDeps groups the collaborators of a Workflow. Source, OpenStore and
// Metrics are optional; Validator replaces the default CandidateValidator.
type WorkflowDeps struct {
	FS        adapter.SourceFSAdapter
	GoFiles   adapter.GoFileAdapter
	Types     adapter.TypeResolver
	Build     adapter.BuildAdapter
	Tests     adapter.TestRunnerAdapter
	Source    adapter.PredicateSource
	OpenStore func(path m.Path) (adapter.PredicateStore, error)
	Reports   adapter.ReportStore
	UI        controller.UI
	Metrics   *adapter.Metrics
	Validator CandidateValidator
}

type workflow struct {
	WorkflowDeps
	collector SpectrumCollector
	scorer    Scorer
	validate  *validator.Validate
}

// NewWorkflow creates a Workflow with the provided dependencies.
func NewWorkflow(deps WorkflowDeps) Workflow {
	return &workflow{
		WorkflowDeps: deps,
		collector:    NewSpectrumCollector(),
		scorer:       NewScorer(),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// runState is owned by a single Run.
type runState struct {
	id           string
	root         m.Path
	args         RunArgs
	formula      Formula
	interner     *m.Interner
	instrumentor Instrumentor
	packages     map[string]m.Package // by directory
	store        adapter.PredicateStore
	logger       *slog.Logger

	mu       sync.Mutex
	relFiles map[m.MethodID]m.Path
}

func (w *workflow) Run(ctx context.Context, args RunArgs) (m.Report, error) {
	if err := w.validate.Struct(args); err != nil {
		return m.Report{}, fmt.Errorf("invalid run arguments: %w", err)
	}

	formula, err := FormulaByName(args.Formula)
	if err != nil {
		return m.Report{}, err
	}

	if err := w.UI.Start(ctx, controller.WithRunMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return m.Report{}, err
	}
	defer w.UI.Close(ctx)

	rs, err := w.newRunState(ctx, args, formula)
	if err != nil {
		return m.Report{}, err
	}

	if rs.store != nil {
		defer func() {
			if err := rs.store.Close(); err != nil {
				rs.logger.Warn("failed to close predicate store", "error", err)
			}
		}()
	}

	report, err := w.run(ctx, rs)
	if err != nil {
		rs.logger.Error("run failed", "error", err)
		return report, err
	}

	if err := w.finish(ctx, rs, report); err != nil {
		return report, err
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	w.UI.Wait(ctx)

	return report, nil
}

func (w *workflow) newRunState(ctx context.Context, args RunArgs, formula Formula) (*runState, error) {
	root, err := w.FS.FindProjectRoot(ctx, args.Root)
	if err != nil {
		return nil, fmt.Errorf("find module root: %w", err)
	}

	id := uuid.NewString()
	interner := m.NewInterner()

	rs := &runState{
		id:           id,
		root:         root,
		args:         args,
		formula:      formula,
		interner:     interner,
		instrumentor: NewInstrumentor(interner),
		packages:     make(map[string]m.Package),
		logger:       slog.With("run_id", id),
		relFiles:     make(map[m.MethodID]m.Path),
	}

	if args.UseCache && w.OpenStore != nil {
		store, err := w.OpenStore(args.StorePath)
		if err != nil {
			rs.logger.Warn("predicate store unavailable, validating from scratch", "path", args.StorePath, "error", err)
		} else {
			rs.store = store
		}
	}

	rs.logger.Info("starting run", "root", root, "formula", formula.Name(), "parallel", args.Parallel, "cache", rs.store != nil)

	return rs, nil
}

func (w *workflow) run(ctx context.Context, rs *runState) (m.Report, error) {
	report := m.Report{
		RunID:     rs.id,
		Subject:   rs.root,
		Formula:   rs.formula.Name(),
		CreatedAt: time.Now().UTC(),
	}

	// Tables cached by an earlier run may describe sources edited since.
	w.Types.Invalidate()

	pkgs, err := w.Build.ListPackages(ctx, rs.root)
	if err != nil {
		return report, fmt.Errorf("list packages: %w", err)
	}

	for _, p := range selectPackages(rs.root, pkgs, rs.args.Paths) {
		rs.packages[filepath.Clean(string(p.Dir))] = p
	}

	w.UI.DisplayProgress(ctx, controller.Progress{Stage: controller.StageBaseline})

	baseline, err := w.baseline(ctx, rs)
	if err != nil {
		return report, err
	}

	report.FailingTests = sortedCopy(baseline.Failing)

	if len(baseline.Failing) == 0 {
		rs.logger.Info("no failing tests, nothing to localize", "executed", len(baseline.Executed))
		report.TotalPassed = len(baseline.Executed)
		report.Diagnostics = append(report.Diagnostics, "no failing tests")

		return report, nil
	}

	w.UI.DisplayProgress(ctx, controller.Progress{Stage: controller.StageCoverage})

	cov, diags, err := w.coverage(ctx, rs, baseline.Failing)
	if err != nil {
		return report, err
	}

	w.Metrics.ObserveCoverage(cov)

	report.Diagnostics = append(report.Diagnostics, diags...)
	report.TotalFailed = cov.TotalFailed
	report.TotalPassed = cov.TotalPassed

	spectra := make(m.Spectra)
	spectra.Merge(cov.Spectra)

	if !rs.args.CoverageOnly && w.Source != nil && rs.args.MaxLocations > 0 {
		scores := w.scorer.Score(cov.Spectra.Locations(), cov.TotalFailed, cov.TotalPassed, rs.formula)

		expanded, outcomes, err := w.expand(ctx, rs, scores, cov.Spectra, baseline.Failing)
		if err != nil && ctx.Err() == nil {
			return report, err
		}

		if err != nil {
			rs.logger.Warn("predicate expansion interrupted", "validated", len(outcomes), "error", err)
			report.Diagnostics = append(report.Diagnostics, "predicate expansion interrupted: "+err.Error())
		}

		// Validation runs observe the predicates again; their counts supersede
		// any branch probe of the coverage pass with the same text.
		spectra.Replace(expanded)

		for _, o := range outcomes {
			report.Outcomes = append(report.Outcomes, o.Summary())
		}
	}

	w.UI.DisplayProgress(ctx, controller.Progress{Stage: controller.StageRanking})

	report.Ranking = w.rank(ctx, rs, spectra, cov.TotalFailed, cov.TotalPassed)
	report.OnlyFailing = w.onlyFailing(ctx, rs, spectra)

	return report, nil
}

func (w *workflow) baseline(ctx context.Context, rs *runState) (adapter.TestRun, error) {
	build, err := w.Build.Compile(ctx, rs.root)
	if err != nil {
		return adapter.TestRun{}, fmt.Errorf("build subject: %w", err)
	}

	w.Metrics.ObserveBuild(build.Success, build.Duration)

	if !build.Success {
		return adapter.TestRun{}, fmt.Errorf("%w: subject does not build: %s", m.ErrBuildFailed, firstDiagnostic("go build", build.Diagnostics))
	}

	run, err := w.Tests.Run(ctx, build, rs.args.TestSelector)
	w.Metrics.ObserveTestRun(err)

	if err != nil {
		return adapter.TestRun{}, fmt.Errorf("run baseline tests: %w", err)
	}

	rs.logger.Info("baseline finished", "executed", len(run.Executed), "failing", len(run.Failing))

	return run, nil
}

type instrumentedFile struct {
	path    m.Path
	source  []byte
	pkgName string
}

// coverage instruments every selected package for coverage and branch probes,
// runs the suite once and collects the spectra. The sources are restored before
// it returns.
func (w *workflow) coverage(ctx context.Context, rs *runState, expected []string) (cov m.Coverage, diags []string, err error) {
	files, runtimes, diags := w.instrumentPackages(ctx, rs)
	if len(files) == 0 {
		return m.Coverage{}, diags, fmt.Errorf("%w: no instrumentable source files", m.ErrMalformedInput)
	}

	paths := make([]m.Path, 0, len(files)+len(runtimes))
	for _, f := range files {
		paths = append(paths, f.path)
	}

	for _, r := range runtimes {
		paths = append(paths, r.path)
	}

	snapshot, err := w.FS.Snapshot(ctx, paths...)
	if err != nil {
		return m.Coverage{}, diags, fmt.Errorf("%w: snapshot sources: %v", m.ErrInfrastructure, err)
	}

	defer func() {
		if rerr := w.FS.Restore(context.WithoutCancel(ctx), snapshot); rerr != nil {
			rs.logger.Error("Failed to restore sources after coverage pass", "error", rerr)
			err = errors.Join(err, fmt.Errorf("%w: restore sources: %v", m.ErrInfrastructure, rerr))
		}
	}()

	for _, f := range append(files, runtimes...) {
		if err := w.FS.WriteFile(ctx, f.path, f.source, 0o644); err != nil {
			return m.Coverage{}, diags, fmt.Errorf("%w: write %s: %v", m.ErrInfrastructure, f.path, err)
		}
	}

	build, dropped, err := w.buildCoverage(ctx, rs, snapshot, files, runtimes)
	diags = append(diags, dropped...)

	if err != nil {
		return m.Coverage{}, diags, err
	}

	run, err := w.Tests.Run(ctx, build, rs.args.TestSelector)
	w.Metrics.ObserveTestRun(err)

	if err != nil {
		return m.Coverage{}, diags, fmt.Errorf("run instrumented tests: %w", err)
	}

	if !sameTests(run.Failing, expected) {
		msg := fmt.Sprintf("coverage instrumentation changed the failing set: %d failing, %d expected", len(run.Failing), len(expected))
		rs.logger.Warn(msg)
		diags = append(diags, msg)
	}

	cov = w.collector.Collect(run.RawProbeLog, run.FailingSet())

	rs.logger.Info("coverage collected",
		"keys", len(cov.Spectra),
		"failed", cov.TotalFailed,
		"passed", cov.TotalPassed,
		"malformed", cov.Malformed)

	return cov, diags, nil
}

// buildCoverage compiles the instrumented module. Files named by compiler
// diagnostics get their original source back and the module is rebuilt, until
// it compiles or no instrumented file is left.
func (w *workflow) buildCoverage(
	ctx context.Context,
	rs *runState,
	snapshot *adapter.Snapshot,
	files, runtimes []instrumentedFile,
) (adapter.BuildResult, []string, error) {
	var diags []string

	for {
		build, err := w.Build.Compile(ctx, rs.root)
		if err != nil {
			return build, diags, fmt.Errorf("build instrumented subject: %w", err)
		}

		w.Metrics.ObserveBuild(build.Success, build.Duration)

		if build.Success {
			return build, diags, nil
		}

		broken := brokenFiles(rs.root, files, build.Diagnostics)
		if len(broken) == 0 || len(broken) == len(files) {
			return build, diags, fmt.Errorf("%w: coverage instrumentation does not build: %s",
				m.ErrBuildFailed, firstDiagnostic("go build", build.Diagnostics))
		}

		kept := make([]instrumentedFile, 0, len(files)-len(broken))

		for _, f := range files {
			diagnostic, ok := broken[f.path]
			if !ok {
				kept = append(kept, f)
				continue
			}

			original, _ := snapshot.Content(f.path)
			if err := w.FS.WriteFile(ctx, f.path, original, 0o644); err != nil {
				return build, diags, fmt.Errorf("%w: restore %s: %v", m.ErrInfrastructure, f.path, err)
			}

			rel, err := w.FS.RelPath(ctx, rs.root, f.path)
			if err != nil {
				rel = f.path
			}

			rs.logger.Warn("instrumented file does not build, coverage probes dropped", "file", rel, "diagnostic", diagnostic)
			diags = append(diags, fmt.Sprintf("%s: coverage probes dropped: %s", rel, diagnostic))
		}

		files = kept

		remaining := runtimes[:0:0]

		for _, r := range runtimes {
			if instrumentsDir(files, r.path) {
				remaining = append(remaining, r)
				continue
			}

			if err := w.FS.Remove(ctx, r.path); err != nil {
				return build, diags, fmt.Errorf("%w: remove %s: %v", m.ErrInfrastructure, r.path, err)
			}
		}

		runtimes = remaining
	}
}

// brokenFiles maps the instrumented files named by compiler diagnostics to the
// first diagnostic about them. Relative diagnostic paths are resolved against root.
func brokenFiles(root m.Path, files []instrumentedFile, diagnostics []string) map[m.Path]string {
	byPath := make(map[string]m.Path, len(files))
	for _, f := range files {
		byPath[filepath.Clean(string(f.path))] = f.path
	}

	broken := make(map[m.Path]string)

	for _, d := range diagnostics {
		name, _, ok := strings.Cut(d, ":")
		if !ok || !strings.HasSuffix(name, ".go") {
			continue
		}

		if !filepath.IsAbs(name) {
			name = filepath.Join(string(root), name)
		}

		path, ok := byPath[filepath.Clean(name)]
		if !ok {
			continue
		}

		if _, seen := broken[path]; !seen {
			broken[path] = d
		}
	}

	return broken
}

func instrumentsDir(files []instrumentedFile, runtime m.Path) bool {
	dir := filepath.Dir(string(runtime))

	for _, f := range files {
		if filepath.Dir(string(f.path)) == dir {
			return true
		}
	}

	return false
}

func (w *workflow) instrumentPackages(ctx context.Context, rs *runState) (files, runtimes []instrumentedFile, diags []string) {
	dirs := make([]string, 0, len(rs.packages))
	for dir := range rs.packages {
		dirs = append(dirs, dir)
	}

	sort.Strings(dirs)

	plan := InstrumentPlan{Coverage: true, Branches: true}

	for _, dir := range dirs {
		p := rs.packages[dir]
		pkgName := ""

		for _, name := range p.GoFiles {
			if name == ProbeRuntimeFile {
				continue
			}

			path := w.FS.JoinPath(ctx, dir, name)

			res, err := w.instrumentFile(ctx, rs, p, path, plan)
			if err != nil {
				rs.logger.Warn("skipping file", "file", path, "error", err)
				diags = append(diags, fmt.Sprintf("%s: %v", path, err))

				continue
			}

			for _, s := range res.Skipped {
				rs.logger.Debug("probe skipped", "reason", s)
			}

			if res.Probes == 0 {
				continue
			}

			files = append(files, instrumentedFile{path: path, source: res.Source, pkgName: res.Package})
			pkgName = res.Package
		}

		if pkgName == "" {
			continue
		}

		runtime, err := ProbeRuntime(pkgName)
		if err != nil {
			diags = append(diags, err.Error())
			continue
		}

		runtimes = append(runtimes, instrumentedFile{path: w.FS.JoinPath(ctx, dir, ProbeRuntimeFile), source: runtime, pkgName: pkgName})
	}

	return files, runtimes, diags
}

func (w *workflow) instrumentFile(ctx context.Context, rs *runState, p m.Package, path m.Path, plan InstrumentPlan) (InstrumentResult, error) {
	src, err := w.FS.ReadFile(ctx, path)
	if err != nil {
		return InstrumentResult{}, fmt.Errorf("%w: read: %v", m.ErrInfrastructure, err)
	}

	file, err := w.GoFiles.Parse(ctx, path, src)
	if err != nil {
		return InstrumentResult{}, err
	}

	file.PkgPath = p.ImportPath

	table, err := w.Types.Resolve(ctx, rs.root, path)
	if err != nil {
		rs.logger.Debug("type resolution failed", "file", path, "error", err)
	}

	file.Types = table

	return rs.instrumentor.Instrument(file, plan)
}

// expand proposes and validates predicates at the most suspicious locations.
func (w *workflow) expand(
	ctx context.Context,
	rs *runState,
	scores []m.SuspiciousnessScore,
	spectra m.Spectra,
	expected []string,
) (m.Spectra, []m.LocationOutcome, error) {
	targets := topLocations(scores, spectra, rs.args.MaxLocations)
	if len(targets) == 0 {
		return nil, nil, nil
	}

	pool, err := NewWorkspacePool(ctx, w.FS, rs.root, rs.args.Parallel)
	if err != nil {
		return nil, nil, err
	}

	defer func() {
		if err := pool.Close(context.WithoutCancel(ctx)); err != nil {
			rs.logger.Warn("failed to remove workspaces", "error", err)
		}
	}()

	spill, err := pkg.NewFileSpill[m.LocationOutcome]("", "outcomes-"+rs.id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", m.ErrInfrastructure, err)
	}

	defer func() {
		if err := spill.Remove(); err != nil {
			rs.logger.Warn("failed to remove outcome spill", "error", err)
		}
	}()

	cv := w.validatorFor(rs)

	var (
		mu       sync.Mutex
		merged   = make(m.Spectra)
		done     int
		spillErr error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(rs.args.Parallel)

	for _, loc := range targets {
		if ctx.Err() != nil {
			break
		}

		current := loc

		group.Go(func() error {
			outcome, cov, err := w.validateLocation(groupCtx, rs, pool, cv, current, expected)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}

				rs.logger.Error("location abandoned", "location", current, "error", err)
				outcome.Outcome = m.InfrastructureFailed
				outcome.Diagnostics = append(outcome.Diagnostics, err.Error())
			}

			w.Metrics.ObserveOutcome(outcome.Outcome)

			mu.Lock()
			defer mu.Unlock()

			w.UI.DisplayOutcome(groupCtx, outcome)

			if err := spill.Append(outcome); err != nil {
				spillErr = errors.Join(spillErr, err)
			}

			merged.Merge(cov.Spectra)
			done++
			w.UI.DisplayProgress(groupCtx, controller.Progress{Stage: controller.StagePredicates, Done: done, Total: len(targets)})

			return nil
		})
	}

	waitErr := group.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	if spillErr != nil {
		return merged, nil, fmt.Errorf("%w: record outcomes: %v", m.ErrInfrastructure, spillErr)
	}

	outcomes := make([]m.LocationOutcome, 0, spill.Len())
	if err := spill.Range(func(_ uint64, o m.LocationOutcome) error {
		outcomes = append(outcomes, o)
		return nil
	}); err != nil {
		return merged, nil, fmt.Errorf("%w: read outcomes: %v", m.ErrInfrastructure, err)
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].File != outcomes[j].File {
			return outcomes[i].File < outcomes[j].File
		}

		return outcomes[i].Line < outcomes[j].Line
	})

	return merged, outcomes, waitErr
}

func (w *workflow) validatorFor(rs *runState) CandidateValidator {
	if w.Validator != nil {
		return w.Validator
	}

	return NewCandidateValidator(ValidatorDeps{
		FS:           w.FS,
		GoFiles:      w.GoFiles,
		Types:        w.Types,
		Build:        w.Build,
		Tests:        w.Tests,
		Store:        rs.store,
		Instrumentor: rs.instrumentor,
		Collector:    w.collector,
		Leases:       NewFileLeases(),
		Metrics:      w.Metrics,
	}, ValidatorOptions{TopK: rs.args.TopK, NoOpposite: rs.args.NoOpposite})
}

func (w *workflow) validateLocation(
	ctx context.Context,
	rs *runState,
	pool *WorkspacePool,
	cv CandidateValidator,
	loc m.Location,
	expected []string,
) (m.LocationOutcome, m.Coverage, error) {
	method, _ := rs.interner.Signature(loc.Method)
	outcome := m.LocationOutcome{Line: loc.Line, Method: method, Outcome: m.Skipped}

	rel, err := w.relFile(ctx, rs, loc.Method)
	if err != nil {
		return outcome, m.Coverage{}, err
	}

	outcome.File = rel

	absFile, _ := rs.interner.File(loc.Method)
	p := rs.packages[filepath.Dir(string(absFile))]

	ws, err := pool.Acquire(ctx)
	if err != nil {
		return outcome, m.Coverage{}, err
	}
	defer pool.Release(ws)

	wsFile := ws.Path(ctx, w.FS, rel)

	req, err := w.predicateRequest(ctx, ws, wsFile, rel, p, loc, method)
	if err != nil {
		return outcome, m.Coverage{}, err
	}

	candidates, err := w.Source.Propose(ctx, req)
	if err != nil {
		rs.logger.Warn("predicate source failed", "source", w.Source.Name(), "file", rel, "line", loc.Line, "error", err)
		outcome.Diagnostics = append(outcome.Diagnostics, err.Error())
	}

	outcome.Candidates = len(candidates)

	if len(candidates) == 0 {
		return outcome, m.Coverage{}, nil
	}

	res, err := cv.Validate(ctx, ValidateArgs{
		Location:        loc,
		Root:            ws.Root,
		File:            wsFile,
		RelFile:         rel,
		PkgPath:         p.ImportPath,
		Candidates:      candidates,
		ExpectedFailing: expected,
		TestSelector:    rs.args.TestSelector,
	})

	outcome.Outcome = res.Outcome
	outcome.Discarded = len(res.Discarded)
	outcome.Diagnostics = append(outcome.Diagnostics, res.Diagnostics...)

	for _, a := range res.Accepted {
		outcome.Accepted = append(outcome.Accepted, a.Expression)
	}

	if err != nil {
		return outcome, m.Coverage{}, err
	}

	for key := range res.Coverage.OnlyFailing {
		rs.logger.Info("predicate covered only by failing tests", "file", rel, "line", key.Location.Line, "predicate", key.Predicate)
	}

	return outcome, res.Coverage, nil
}

func (w *workflow) predicateRequest(
	ctx context.Context,
	ws Workspace,
	wsFile, rel m.Path,
	p m.Package,
	loc m.Location,
	method string,
) (adapter.PredicateRequest, error) {
	src, err := w.FS.ReadFile(ctx, wsFile)
	if err != nil {
		return adapter.PredicateRequest{}, fmt.Errorf("%w: read %s: %v", m.ErrInfrastructure, wsFile, err)
	}

	req := adapter.PredicateRequest{
		File:    rel,
		Line:    loc.Line,
		Method:  method,
		Snippet: sourceLine(src, loc.Line),
	}

	file, err := w.GoFiles.Parse(ctx, wsFile, src)
	if err != nil {
		return req, nil
	}

	file.PkgPath = p.ImportPath

	table, err := w.Types.Resolve(ctx, ws.Root, wsFile)
	if err != nil {
		slog.Debug("type resolution failed", "file", wsFile, "error", err)
		return req, nil
	}

	req.Variables = table.VariablesAt(file, loc.Line)

	return req, nil
}

func (w *workflow) relFile(ctx context.Context, rs *runState, id m.MethodID) (m.Path, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rel, ok := rs.relFiles[id]; ok {
		return rel, nil
	}

	abs, ok := rs.interner.File(id)
	if !ok {
		return "", fmt.Errorf("%w: unknown method id %d", m.ErrMalformedInput, id)
	}

	rel, err := w.FS.RelPath(ctx, rs.root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", m.ErrInfrastructure, err)
	}

	rs.relFiles[id] = rel

	return rel, nil
}

// rank scores every key and folds predicate scores into their locations. A
// location's value is the maximum of its own score and its predicates' scores.
func (w *workflow) rank(ctx context.Context, rs *runState, spectra m.Spectra, totalFailed, totalPassed int) []m.RankedLocation {
	scores := w.scorer.Score(spectra, totalFailed, totalPassed, rs.formula)

	byLocation := make(map[m.Location]*m.RankedLocation)
	order := make([]m.Location, 0)

	entry := func(loc m.Location) *m.RankedLocation {
		if r, ok := byLocation[loc]; ok {
			return r
		}

		method, _ := rs.interner.Signature(loc.Method)
		rel, err := w.relFile(ctx, rs, loc.Method)
		if err != nil {
			rs.logger.Debug("unknown file for location", "location", loc, "error", err)
		}

		plain := spectra[m.SpectrumKey{Location: loc}]
		r := &m.RankedLocation{
			File:   rel,
			Line:   loc.Line,
			Method: method,
			Score:  rs.formula.Score(plain.Failed, plain.Passed, totalFailed, totalPassed),
			Failed: plain.Failed,
			Passed: plain.Passed,
		}

		byLocation[loc] = r
		order = append(order, loc)

		return r
	}

	for _, s := range scores {
		r := entry(s.Key.Location)

		if !s.Key.IsPredicate() {
			continue
		}

		sp := spectra[s.Key]
		r.Predicates = append(r.Predicates, m.RankedPredicate{
			Expression:  s.Key.Predicate,
			Score:       s.Value,
			Failed:      sp.Failed,
			Passed:      sp.Passed,
			OnlyFailing: sp.OnlyFailing(),
		})

		if s.Value > r.Score {
			r.Score = s.Value
		}
	}

	ranking := make([]m.RankedLocation, 0, len(order))
	for _, loc := range order {
		if r := byLocation[loc]; r.Failed > 0 || len(r.Predicates) > 0 {
			ranking = append(ranking, *r)
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}

		if ranking[i].File != ranking[j].File {
			return ranking[i].File < ranking[j].File
		}

		return ranking[i].Line < ranking[j].Line
	})

	for i := range ranking {
		ranking[i].Rank = i + 1
	}

	return ranking
}

func (w *workflow) onlyFailing(ctx context.Context, rs *runState, spectra m.Spectra) []string {
	var out []string

	for key, s := range spectra {
		if !s.OnlyFailing() {
			continue
		}

		rel, err := w.relFile(ctx, rs, key.Location.Method)
		if err != nil {
			continue
		}

		text := fmt.Sprintf("%s:%d", rel, key.Location.Line)
		if key.IsPredicate() {
			text += " " + key.Predicate
		}

		out = append(out, text)
	}

	sort.Strings(out)

	return out
}

// finish persists the report and metrics and shows the ranking.
func (w *workflow) finish(ctx context.Context, rs *runState, report m.Report) error {
	path := w.FS.JoinPath(ctx, string(rs.args.Output), ReportFileName)

	if err := w.Reports.SaveReport(path, report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	rs.logger.Info("report saved", "path", path, "locations", len(report.Ranking))

	if rs.args.MetricsPath != "" {
		if err := w.Metrics.WriteTextfile(rs.args.MetricsPath); err != nil {
			rs.logger.Warn("failed to write metrics", "path", rs.args.MetricsPath, "error", err)
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	if err := w.UI.DisplayReport(ctx, report); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	return nil
}

func (w *workflow) Instrument(ctx context.Context, args InstrumentArgs) error {
	if err := w.validate.Struct(args); err != nil {
		return fmt.Errorf("invalid instrument arguments: %w", err)
	}

	src, err := w.FS.ReadFile(ctx, args.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", args.File, err)
	}

	file, err := w.GoFiles.Parse(ctx, args.File, src)
	if err != nil {
		return err
	}

	root, err := w.FS.FindProjectRoot(ctx, args.File)
	if err == nil {
		if table, terr := w.Types.Resolve(ctx, root, args.File); terr == nil {
			file.Types = table
		}
	}

	plan := InstrumentPlan{Coverage: args.Coverage, Branches: args.Coverage}

	if len(args.Lines) > 0 {
		plan.Lines = make(map[int]struct{}, len(args.Lines))
		plan.Predicates = make(map[int][]string, len(args.Lines))

		for _, line := range args.Lines {
			plan.Lines[line] = struct{}{}

			for _, p := range args.Predicates {
				norm, err := NormalizeExpr(p)
				if err != nil {
					return err
				}

				plan.Predicates[line] = append(plan.Predicates[line], norm)
			}
		}
	}

	res, err := NewInstrumentor(m.NewInterner()).Instrument(file, plan)
	if err != nil {
		return err
	}

	for _, s := range res.Skipped {
		slog.Info("probe skipped", "reason", s)
	}

	diff, err := UnifiedDiff(args.File, src, res.Source)
	if err != nil {
		return err
	}

	return w.UI.DisplayInstrumentation(ctx, args.File, diff)
}

// UnifiedDiff renders the difference between two versions of a file.
func UnifiedDiff(path m.Path, before, after []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: string(path),
		ToFile:   string(path) + " (instrumented)",
		Context:  3,
	})
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	if err := w.validate.Struct(args); err != nil {
		return fmt.Errorf("invalid view arguments: %w", err)
	}

	report, err := w.Reports.LoadReport(w.FS.JoinPath(ctx, string(args.Reports), ReportFileName))
	if err != nil {
		return err
	}

	if err := w.UI.Start(ctx, controller.WithViewMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	if err := w.UI.DisplayReport(ctx, report); err != nil {
		w.UI.Close(ctx)
		return fmt.Errorf("display: %w", err)
	}

	w.UI.Wait(ctx)
	w.UI.Close(ctx)

	return nil
}

// topLocations returns up to limit locations reached by a failing test, most
// suspicious first.
func topLocations(scores []m.SuspiciousnessScore, spectra m.Spectra, limit int) []m.Location {
	var out []m.Location

	for _, s := range scores {
		if len(out) >= limit {
			break
		}

		if s.Key.IsPredicate() || spectra[s.Key].Failed == 0 {
			continue
		}

		out = append(out, s.Key.Location)
	}

	return out
}

// selectPackages keeps the packages under any of the given path patterns.
// "./..." style patterns match a directory and everything below it.
func selectPackages(root m.Path, pkgs []m.Package, patterns []m.Path) []m.Package {
	if len(patterns) == 0 {
		return pkgs
	}

	var out []m.Package

	for _, p := range pkgs {
		rel, err := filepath.Rel(string(root), string(p.Dir))
		if err != nil {
			continue
		}

		rel = filepath.ToSlash(rel)

		for _, pattern := range patterns {
			if matchPackage(rel, string(pattern)) {
				out = append(out, p)
				break
			}
		}
	}

	return out
}

func matchPackage(rel, pattern string) bool {
	pattern = filepath.ToSlash(pattern)
	pattern = strings.TrimPrefix(pattern, "./")

	recursive := strings.HasSuffix(pattern, "...")
	pattern = strings.TrimSuffix(strings.TrimSuffix(pattern, "..."), "/")

	if pattern == "" || pattern == "." {
		return recursive || rel == "."
	}

	if rel == pattern {
		return true
	}

	return recursive && strings.HasPrefix(rel, pattern+"/")
}

func sourceLine(src []byte, line int) string {
	if line < 1 {
		return ""
	}

	lines := strings.Split(string(src), "\n")
	if line > len(lines) {
		return ""
	}

	return strings.TrimSpace(lines[line-1])
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)

	return out
}
