package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	m "faultline.dev/pkg/faultline/internal/model"
)

// workDirName is the per-subject scratch directory for test binaries. The go
// tool ignores directories starting with a dot, so it never becomes a package.
const workDirName = ".faultline"

// maxDiagnostics bounds the compiler lines kept in a BuildResult.
const maxDiagnostics = 50

// TestBinary is a compiled `go test -c` executable of one package.
type TestBinary struct {
	ImportPath string
	Dir        m.Path // tests run with the package directory as working directory
	Path       m.Path
}

// BuildResult is the outcome of compiling a subject.
type BuildResult struct {
	Success     bool
	Diagnostics []string
	Binaries    []TestBinary
	Duration    time.Duration
}

// BuildAdapter compiles a subject module.
type BuildAdapter interface {
	// ListPackages returns the packages of the module rooted at root.
	ListPackages(ctx context.Context, root m.Path) ([]m.Package, error)

	// Compile builds every package and links one test binary per package with
	// tests. A compile error or timeout yields Success=false, not an error;
	// errors are reserved for infrastructure failures.
	Compile(ctx context.Context, root m.Path) (BuildResult, error)
}

// GoBuildAdapter implements BuildAdapter with the go command.
type GoBuildAdapter struct {
	runner   ProcessRunner
	timeout  time.Duration
	parallel int
}

// NewGoBuildAdapter constructs a GoBuildAdapter. timeout bounds each go
// invocation; parallel bounds concurrent `go test -c` links.
func NewGoBuildAdapter(runner ProcessRunner, timeout time.Duration, parallel int) *GoBuildAdapter {
	if parallel < 1 {
		parallel = 1
	}

	return &GoBuildAdapter{runner: runner, timeout: timeout, parallel: parallel}
}

// Configure replaces the timeout and link parallelism. It must not be called
// while a build is running.
func (a *GoBuildAdapter) Configure(timeout time.Duration, parallel int) {
	a.timeout = timeout
	a.parallel = max(parallel, 1)
}

type goListPackage struct {
	ImportPath   string
	Name         string
	Dir          string
	GoFiles      []string
	TestGoFiles  []string
	XTestGoFiles []string
	Error        *struct{ Err string }
}

// ListPackages runs `go list -json ./...` in root.
func (a *GoBuildAdapter) ListPackages(ctx context.Context, root m.Path) ([]m.Package, error) {
	res, err := a.runner.Run(ctx, Command{
		Name:    "go",
		Args:    []string{"list", "-e", "-json", "./..."},
		Dir:     string(root),
		Timeout: a.timeout,
	})
	if err != nil {
		return nil, err
	}

	if !res.Success() {
		return nil, fmt.Errorf("%w: go list in %s: %s", m.ErrInfrastructure, root, strings.TrimSpace(string(res.Stderr)))
	}

	var pkgs []m.Package

	dec := json.NewDecoder(bytes.NewReader(res.Stdout))

	for {
		var p goListPackage

		if err := dec.Decode(&p); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: decode go list output: %v", m.ErrInfrastructure, err)
		}

		if p.Error != nil {
			slog.Debug("go list reported package error", "package", p.ImportPath, "error", p.Error.Err)
		}

		pkgs = append(pkgs, m.Package{
			ImportPath:   p.ImportPath,
			Name:         p.Name,
			Dir:          m.Path(p.Dir),
			GoFiles:      p.GoFiles,
			TestGoFiles:  p.TestGoFiles,
			XTestGoFiles: p.XTestGoFiles,
		})
	}

	return pkgs, nil
}

// Compile runs `go build ./...` followed by `go test -c` for each tested package.
func (a *GoBuildAdapter) Compile(ctx context.Context, root m.Path) (BuildResult, error) {
	started := time.Now()

	res, err := a.runner.Run(ctx, Command{
		Name:    "go",
		Args:    []string{"build", "./..."},
		Dir:     string(root),
		Timeout: a.timeout,
	})
	if err != nil {
		return BuildResult{}, err
	}

	if !res.Success() {
		return a.failed(res, started), nil
	}

	pkgs, err := a.ListPackages(ctx, root)
	if err != nil {
		return BuildResult{}, err
	}

	binDir := filepath.Join(string(root), workDirName, "bin")
	if err := os.MkdirAll(binDir, 0o750); err != nil {
		return BuildResult{}, fmt.Errorf("%w: create %s: %v", m.ErrInfrastructure, binDir, err)
	}

	var tested []m.Package

	for _, pkg := range pkgs {
		if pkg.HasTests() {
			tested = append(tested, pkg)
		}
	}

	binaries := make([]TestBinary, len(tested))
	results := make([]ProcessResult, len(tested))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)

	for i, pkg := range tested {
		g.Go(func() error {
			bin := filepath.Join(binDir, binaryName(pkg.ImportPath))

			res, err := a.runner.Run(gctx, Command{
				Name:    "go",
				Args:    []string{"test", "-c", "-o", bin, pkg.ImportPath},
				Dir:     string(root),
				Timeout: a.timeout,
			})
			if err != nil {
				return err
			}

			results[i] = res
			binaries[i] = TestBinary{ImportPath: pkg.ImportPath, Dir: pkg.Dir, Path: m.Path(bin)}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BuildResult{}, err
	}

	for _, res := range results {
		if !res.Success() {
			return a.failed(res, started), nil
		}
	}

	return BuildResult{Success: true, Binaries: binaries, Duration: time.Since(started)}, nil
}

func (a *GoBuildAdapter) failed(res ProcessResult, started time.Time) BuildResult {
	diagnostics := diagnosticLines(res.Output())
	if res.TimedOut {
		diagnostics = append(diagnostics, fmt.Sprintf("build timed out after %s", a.timeout))
	}

	return BuildResult{Success: false, Diagnostics: diagnostics, Duration: time.Since(started)}
}

func diagnosticLines(output string) []string {
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() && len(lines) < maxDiagnostics {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

func binaryName(importPath string) string {
	replacer := strings.NewReplacer("/", "_", ".", "_", "-", "_")
	return replacer.Replace(importPath) + ".test"
}

// SortBinaries orders binaries by import path.
func SortBinaries(binaries []TestBinary) {
	sort.Slice(binaries, func(i, j int) bool { return binaries[i].ImportPath < binaries[j].ImportPath })
}
