package adapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	m "faultline.dev/pkg/faultline/internal/model"
)

// Environment variables read by the generated probe runtime.
const (
	EnvProbeLog = "FAULTLINE_PROBE_LOG"
	EnvExecID   = "FAULTLINE_EXEC_ID"
)

// Probe-log boundary markers written by the harness around every test execution.
const (
	MarkerTest = "#test"
	MarkerEnd  = "#end"
)

// TestRun is the outcome of executing a subject's tests.
type TestRun struct {
	Failing     []string // sorted test ids
	Executed    []string // sorted test ids
	TimedOut    []string
	RawProbeLog []byte
}

// FailingSet returns Failing as a set.
func (r TestRun) FailingSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Failing))
	for _, id := range r.Failing {
		set[id] = struct{}{}
	}

	return set
}

// TestRunnerAdapter executes compiled test binaries and gathers the probe log.
type TestRunnerAdapter interface {
	// Run executes every top-level test of build. A non-empty selector is a
	// regular expression, as for `go test -run`, matched against the test name
	// and the test id; a selector matching no test is an error. Test ids are
	// "<import path>.<TestName>".
	Run(ctx context.Context, build BuildResult, selector string) (TestRun, error)
}

// LocalTestRunnerAdapter runs each test in its own process so probe records can be
// attributed to exactly one test execution.
type LocalTestRunnerAdapter struct {
	runner   ProcessRunner
	timeout  time.Duration
	parallel int
	execSeq  atomic.Int64
}

// NewLocalTestRunnerAdapter constructs a LocalTestRunnerAdapter. timeout bounds a
// single test process; a test exceeding it counts as failing.
func NewLocalTestRunnerAdapter(runner ProcessRunner, timeout time.Duration, parallel int) *LocalTestRunnerAdapter {
	if parallel < 1 {
		parallel = 1
	}

	return &LocalTestRunnerAdapter{runner: runner, timeout: timeout, parallel: parallel}
}

// Configure replaces the per-test timeout and the number of concurrent test
// processes. It must not be called while tests are running.
func (a *LocalTestRunnerAdapter) Configure(timeout time.Duration, parallel int) {
	a.timeout = timeout
	a.parallel = max(parallel, 1)
}

type testCase struct {
	id     string
	name   string
	binary TestBinary
}

// Run lists and executes tests, then reads and deletes the probe log.
func (a *LocalTestRunnerAdapter) Run(ctx context.Context, build BuildResult, selector string) (TestRun, error) {
	if !build.Success {
		return TestRun{}, fmt.Errorf("%w: cannot run tests of a failed build", m.ErrInfrastructure)
	}

	match, err := selectorMatcher(selector)
	if err != nil {
		return TestRun{}, err
	}

	created, err := os.CreateTemp("", "faultline-probe-*.log")
	if err != nil {
		return TestRun{}, fmt.Errorf("%w: create probe log: %v", m.ErrInfrastructure, err)
	}

	logPath := created.Name()
	_ = created.Close()

	// Probe runtimes append from child processes; markers must append as well.
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = os.Remove(logPath)
		return TestRun{}, fmt.Errorf("%w: open probe log: %v", m.ErrInfrastructure, err)
	}

	defer func() {
		_ = logFile.Close()
		_ = os.Remove(logPath)
	}()

	binaries := append([]TestBinary(nil), build.Binaries...)
	SortBinaries(binaries)

	var (
		cases   []testCase
		failing []string
	)

	for _, bin := range binaries {
		names, ok, err := a.list(ctx, bin)
		if err != nil {
			return TestRun{}, err
		}

		if !ok {
			failing = append(failing, bin.ImportPath+".[list]")
			continue
		}

		for _, name := range names {
			id := bin.ImportPath + "." + name
			if match(name, id) {
				cases = append(cases, testCase{id: id, name: name, binary: bin})
			}
		}
	}

	if selector != "" && len(cases) == 0 && len(failing) == 0 {
		return TestRun{}, fmt.Errorf("%w: no test matches %q", m.ErrMalformedInput, selector)
	}

	var (
		mu       sync.Mutex
		executed []string
		timedOut []string
	)

	marker := &markerWriter{file: logFile}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)

	for _, tc := range cases {
		g.Go(func() error {
			passed, timeout, err := a.runOne(gctx, marker, logPath, tc)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			executed = append(executed, tc.id)
			if !passed {
				failing = append(failing, tc.id)
			}

			if timeout {
				timedOut = append(timedOut, tc.id)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return TestRun{}, err
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		return TestRun{}, fmt.Errorf("%w: read probe log: %v", m.ErrInfrastructure, err)
	}

	sort.Strings(executed)
	sort.Strings(failing)
	sort.Strings(timedOut)

	slog.Debug("tests executed", "executed", len(executed), "failing", len(failing), "timed_out", len(timedOut))

	return TestRun{Failing: failing, Executed: executed, TimedOut: timedOut, RawProbeLog: raw}, nil
}

// selectorMatcher compiles selector. An empty selector matches every test.
func selectorMatcher(selector string) (func(name, id string) bool, error) {
	if selector == "" {
		return func(string, string) bool { return true }, nil
	}

	re, err := regexp.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: test selector: %v", m.ErrMalformedInput, err)
	}

	return func(name, id string) bool {
		return re.MatchString(name) || re.MatchString(id)
	}, nil
}

func (a *LocalTestRunnerAdapter) list(ctx context.Context, bin TestBinary) ([]string, bool, error) {
	res, err := a.runner.Run(ctx, Command{
		Name:    string(bin.Path),
		Args:    []string{"-test.list", "."},
		Dir:     string(bin.Dir),
		Timeout: a.timeout,
	})
	if err != nil {
		return nil, false, err
	}

	if !res.Success() {
		slog.Warn("listing tests failed", "package", bin.ImportPath, "exit_code", res.ExitCode, "timed_out", res.TimedOut)
		return nil, false, nil
	}

	var names []string

	scanner := bufio.NewScanner(strings.NewReader(string(res.Stdout)))
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); strings.HasPrefix(name, "Test") {
			names = append(names, name)
		}
	}

	return names, true, nil
}

func (a *LocalTestRunnerAdapter) runOne(ctx context.Context, marker *markerWriter, logPath string, tc testCase) (bool, bool, error) {
	execID := strconv.FormatInt(a.execSeq.Add(1), 10)

	if err := marker.write(MarkerTest + "\t" + execID + "\t" + tc.id + "\n"); err != nil {
		return false, false, err
	}

	res, err := a.runner.Run(ctx, Command{
		Name: string(tc.binary.Path),
		Args: []string{"-test.run", "^" + tc.name + "$", "-test.count=1"},
		Dir:  string(tc.binary.Dir),
		Env: []string{
			EnvProbeLog + "=" + logPath,
			EnvExecID + "=" + execID,
		},
		Timeout: a.timeout,
	})
	if err != nil {
		return false, false, err
	}

	if err := marker.write(MarkerEnd + "\t" + execID + "\n"); err != nil {
		return false, false, err
	}

	if res.TimedOut {
		slog.Warn("test timed out", "test", tc.id, "timeout", a.timeout)
	}

	return res.Success(), res.TimedOut, nil
}

type markerWriter struct {
	mu   sync.Mutex
	file *os.File
}

func (w *markerWriter) write(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.WriteString(line); err != nil {
		return fmt.Errorf("%w: write probe log marker: %v", m.ErrInfrastructure, err)
	}

	return nil
}
