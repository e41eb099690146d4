package domain

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"faultline.dev/pkg/faultline/internal/adapter"
	adaptermocks "faultline.dev/pkg/faultline/internal/adapter/mocks"
	m "faultline.dev/pkg/faultline/internal/model"
)

type validatorFixture struct {
	root    string
	file    string
	build   *adaptermocks.MockBuildAdapter
	tests   *adaptermocks.MockTestRunnerAdapter
	types   *adaptermocks.MockTypeResolver
	builds  []string // source of calc.go at every Compile
	metrics *adapter.Metrics
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()

	root := writeModule(t)

	f := &validatorFixture{
		root:    root,
		file:    filepath.Join(root, "calc.go"),
		build:   adaptermocks.NewMockBuildAdapter(t),
		tests:   adaptermocks.NewMockTestRunnerAdapter(t),
		types:   adaptermocks.NewMockTypeResolver(t),
		metrics: adapter.NewMetrics(),
	}

	f.types.EXPECT().Resolve(mock.Anything, m.Path(root), m.Path(f.file)).Return(nil, errors.New("no export data")).Maybe()

	return f
}

// compileWith makes Compile fail whenever the instrumented file contains one of broken.
func (f *validatorFixture) compileWith(t *testing.T, broken ...string) {
	f.compileWhen(t, func(src string) string {
		for _, b := range broken {
			if strings.Contains(src, b) {
				return b
			}
		}

		return ""
	})
}

// compileWhen fails every Compile for which undefined returns a non-empty name.
func (f *validatorFixture) compileWhen(t *testing.T, undefined func(src string) string) {
	f.build.EXPECT().Compile(mock.Anything, m.Path(f.root)).RunAndReturn(func(context.Context, m.Path) (adapter.BuildResult, error) {
		content, err := os.ReadFile(f.file)
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(f.root, ProbeRuntimeFile))
		require.NoError(t, err, "probe runtime must be written before compiling")

		f.builds = append(f.builds, string(content))

		if name := undefined(string(content)); name != "" {
			return adapter.BuildResult{Diagnostics: []string{"calc.go:7:5: undefined: " + name}}, nil
		}

		return adapter.BuildResult{Success: true}, nil
	})
}

func (f *validatorFixture) validator(store adapter.PredicateStore, opts ValidatorOptions) CandidateValidator {
	return NewCandidateValidator(ValidatorDeps{
		FS:           adapter.NewLocalSourceFSAdapter(),
		GoFiles:      adapter.NewLocalGoFileAdapter(),
		Types:        f.types,
		Build:        f.build,
		Tests:        f.tests,
		Store:        store,
		Instrumentor: NewInstrumentor(m.NewInterner()),
		Collector:    NewSpectrumCollector(),
		Metrics:      f.metrics,
	}, opts)
}

func (f *validatorFixture) args(candidates ...m.Predicate) ValidateArgs {
	return ValidateArgs{
		Location:        m.Location{Method: 1, Line: 7},
		Root:            m.Path(f.root),
		File:            m.Path(f.file),
		RelFile:         "calc.go",
		PkgPath:         "example.com/calc",
		Candidates:      candidates,
		ExpectedFailing: []string{"example.com/calc.TestNegative"},
	}
}

func (f *validatorFixture) assertRestored(t *testing.T) {
	t.Helper()

	content, err := os.ReadFile(f.file)
	require.NoError(t, err)
	assert.Equal(t, absSource, string(content))

	_, err = os.Stat(filepath.Join(f.root, ProbeRuntimeFile))
	assert.True(t, os.IsNotExist(err), "probe runtime must be removed")
}

func candidate(expr string, probability float64) m.Predicate {
	return m.Predicate{Expression: expr, Variable: "x", VariableType: "int", Probability: probability}
}

func expressions(preds []m.Predicate) []string {
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = p.Expression
	}

	return out
}

const acceptedLog = "#test\te1\texample.com/calc.TestNegative\n" +
	"e1\t1#7#x > 0#0\n" +
	"e1\t1#7#!(x > 0)#1\n" +
	"#end\te1\n" +
	"#test\te2\texample.com/calc.TestPositive\n" +
	"e2\t1#7#x > 0#1\n" +
	"e2\t1#4\n" +
	"#end\te2\n"

func TestCandidateValidator_Accepted(t *testing.T) {
	f := newValidatorFixture(t)
	f.compileWith(t)
	f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
		Failing:     []string{"example.com/calc.TestNegative"},
		RawProbeLog: []byte(acceptedLog),
	}, nil).Once()

	checksum := fmt.Sprintf("%x", sha256.Sum256([]byte(absSource)))

	store := adaptermocks.NewMockPredicateStore(t)
	store.EXPECT().Load(mock.Anything, m.Path("calc.go"), 7).Return(nil, nil).Once()
	store.EXPECT().Save(mock.Anything, mock.MatchedBy(func(records []m.PredicateRecord) bool {
		return len(records) == 2 &&
			records[0].Expression == "x > 0" &&
			records[1].Expression == "!(x > 0)" &&
			records[0].Checksum == checksum &&
			records[0].File == "calc.go" &&
			records[0].Line == 7
	})).Return(nil).Once()

	// Duplicates, including a complement, are built once.
	report, err := f.validator(store, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
		candidate("x>0", 0.9),
		candidate("(x > 0)", 0.8),
		candidate("!(x>0)", 0.7),
	))
	require.NoError(t, err)

	assert.Equal(t, m.Accepted, report.Outcome)
	assert.Equal(t, []string{"x > 0", "!(x > 0)"}, expressions(report.Accepted))
	assert.Equal(t, 2, report.Builds)
	require.Len(t, f.builds, 2)
	assert.Contains(t, f.builds[0], `faultlineHit("1#7#x > 0#1")`)
	assert.NotContains(t, f.builds[0], `!(x > 0)#1`)
	assert.Contains(t, f.builds[1], `faultlineHit("1#7#!(x > 0)#1")`)

	loc := m.Location{Method: 1, Line: 7}
	assert.Equal(t, m.Spectra{
		{Location: loc, Predicate: "x > 0"}:    {Passed: 1},
		{Location: loc, Predicate: "!(x > 0)"}: {Failed: 1},
	}, report.Coverage.Spectra)
	assert.Contains(t, report.Coverage.OnlyFailing, m.SpectrumKey{Location: loc, Predicate: "!(x > 0)"})
	assert.Equal(t, 1, report.Coverage.TotalFailed)
	assert.Equal(t, 1, report.Coverage.TotalPassed)

	f.assertRestored(t)
}

func TestCandidateValidator_BehaviorChanged(t *testing.T) {
	f := newValidatorFixture(t)
	f.compileWith(t)
	f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
		RawProbeLog: []byte(acceptedLog),
	}, nil).Once()

	report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
		candidate("x > 0", 0.9),
	))
	require.NoError(t, err)

	assert.Equal(t, m.TestBehaviorChanged, report.Outcome)
	assert.Empty(t, report.Accepted)
	assert.Len(t, report.Discarded, 2)
	assert.Empty(t, report.Coverage.Spectra)
	f.assertRestored(t)
}

func TestCandidateValidator_TopK(t *testing.T) {
	f := newValidatorFixture(t)
	f.compileWith(t)
	f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
		Failing: []string{"example.com/calc.TestNegative"},
	}, nil).Once()

	report, err := f.validator(nil, ValidatorOptions{TopK: 3, NoOpposite: true}).Validate(context.Background(), f.args(
		candidate("x > 1", 0.5),
		candidate("x > 2", 0.4),
		candidate("x > 3", 0.3),
		candidate("x > 4", 0.2),
		candidate("x > 0", 0.6),
	))
	require.NoError(t, err)

	assert.Equal(t, m.Accepted, report.Outcome)
	assert.Equal(t, []string{"x > 0", "x > 1", "x > 2"}, expressions(report.Accepted))
	assert.Equal(t, 4, report.Builds)
	f.assertRestored(t)
}

func TestCandidateValidator_BuildFailures(t *testing.T) {
	t.Run("failing candidate is discarded", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWith(t, "missing")
		f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
			Failing: []string{"example.com/calc.TestNegative"},
		}, nil).Once()

		report, err := f.validator(nil, ValidatorOptions{TopK: 10, NoOpposite: true}).Validate(context.Background(), f.args(
			candidate("missing > 0", 0.9),
			candidate("x > 0", 0.5),
		))
		require.NoError(t, err)

		assert.Equal(t, m.Accepted, report.Outcome)
		assert.Equal(t, []string{"x > 0"}, expressions(report.Accepted))
		assert.Equal(t, []string{"missing > 0"}, expressions(report.Discarded))
		require.NotEmpty(t, report.Diagnostics)
		assert.Contains(t, report.Diagnostics[0], "undefined: missing")
		f.assertRestored(t)
	})

	t.Run("no legal candidate", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWith(t, "missing")

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
			candidate("missing > 0", 0.9),
		))
		require.NoError(t, err)

		assert.Equal(t, m.BuildFailed, report.Outcome)
		assert.Equal(t, 1, report.Builds)
		assert.Empty(t, report.Accepted)
		f.assertRestored(t)
	})

	t.Run("combined build fails", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWhen(t, func(src string) string {
			if strings.Contains(src, "x > 0#1") && strings.Contains(src, "x < 5#1") {
				return "faultlineT7_1"
			}

			return ""
		})

		report, err := f.validator(nil, ValidatorOptions{TopK: 10, NoOpposite: true}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
			candidate("x < 5", 0.8),
		))
		require.NoError(t, err)

		assert.Equal(t, m.BuildFailed, report.Outcome)
		assert.Equal(t, 3, report.Builds)
		assert.Empty(t, report.Accepted)
		assert.Len(t, report.Discarded, 2)
		f.assertRestored(t)
	})
}

func TestCandidateValidator_Skipped(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		f := newValidatorFixture(t)

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args())
		require.NoError(t, err)

		assert.Equal(t, m.Skipped, report.Outcome)
		assert.Zero(t, report.Builds)
		f.assertRestored(t)
	})

	t.Run("malformed candidates only", func(t *testing.T) {
		f := newValidatorFixture(t)

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
			candidate("x >", 0.9),
			candidate("x := 1", 0.8),
		))
		require.NoError(t, err)

		assert.Equal(t, m.Skipped, report.Outcome)
		assert.Zero(t, report.Builds)
	})

	t.Run("line without a statement is never compiled", func(t *testing.T) {
		f := newValidatorFixture(t)

		args := f.args(candidate("x > 0", 0.9))
		args.Location.Line = 2

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), args)
		require.NoError(t, err)

		assert.Zero(t, report.Builds)
		assert.Empty(t, report.Accepted)
		require.Len(t, report.Discarded, 1)
		assert.Equal(t, "x > 0", report.Discarded[0].Expression)
		f.build.AssertNotCalled(t, "Compile", mock.Anything, mock.Anything)
		f.assertRestored(t)
	})

	t.Run("canceled context", func(t *testing.T) {
		f := newValidatorFixture(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(ctx, f.args(candidate("x > 0", 0.9)))
		require.ErrorIs(t, err, context.Canceled)
		f.assertRestored(t)
	})
}

func TestCandidateValidator_Cache(t *testing.T) {
	checksum := fmt.Sprintf("%x", sha256.Sum256([]byte(absSource)))

	t.Run("fresh records skip the individual build", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWith(t)
		f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
			Failing: []string{"example.com/calc.TestNegative"},
		}, nil).Once()

		store := adaptermocks.NewMockPredicateStore(t)
		store.EXPECT().Load(mock.Anything, m.Path("calc.go"), 7).Return([]m.PredicateRecord{
			{File: "calc.go", Line: 7, Expression: "x > 0", Checksum: checksum},
		}, nil).Once()
		store.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()

		report, err := f.validator(store, ValidatorOptions{TopK: 10, NoOpposite: true}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
		))
		require.NoError(t, err)

		assert.Equal(t, m.Accepted, report.Outcome)
		assert.Equal(t, 1, report.Builds)
		require.Len(t, report.Accepted, 1)
		assert.True(t, report.Accepted[0].Cached)
	})

	t.Run("stale records are validated again", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWith(t)
		f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
			Failing: []string{"example.com/calc.TestNegative"},
		}, nil).Once()

		store := adaptermocks.NewMockPredicateStore(t)
		store.EXPECT().Load(mock.Anything, m.Path("calc.go"), 7).Return([]m.PredicateRecord{
			{File: "calc.go", Line: 7, Expression: "x > 0", Checksum: "stale"},
		}, nil).Once()
		store.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()

		report, err := f.validator(store, ValidatorOptions{TopK: 10, NoOpposite: true}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
		))
		require.NoError(t, err)

		assert.Equal(t, 2, report.Builds)
		assert.False(t, report.Accepted[0].Cached)
	})

	t.Run("store errors are not fatal", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWith(t)
		f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").Return(adapter.TestRun{
			Failing: []string{"example.com/calc.TestNegative"},
		}, nil).Once()

		store := adaptermocks.NewMockPredicateStore(t)
		store.EXPECT().Load(mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("locked")).Once()
		store.EXPECT().Save(mock.Anything, mock.Anything).Return(errors.New("locked")).Once()

		report, err := f.validator(store, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
		))
		require.NoError(t, err)
		assert.Equal(t, m.Accepted, report.Outcome)
	})
}

func TestCandidateValidator_Infrastructure(t *testing.T) {
	t.Run("compile error", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.build.EXPECT().Compile(mock.Anything, m.Path(f.root)).
			Return(adapter.BuildResult{}, fmt.Errorf("%w: go: not found", m.ErrInfrastructure)).Once()

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
		))
		require.ErrorIs(t, err, m.ErrInfrastructure)
		assert.Equal(t, m.InfrastructureFailed, report.Outcome)
		f.assertRestored(t)
	})

	t.Run("harness error", func(t *testing.T) {
		f := newValidatorFixture(t)
		f.compileWith(t)
		f.tests.EXPECT().Run(mock.Anything, mock.Anything, "").
			Return(adapter.TestRun{}, fmt.Errorf("%w: spawn", m.ErrInfrastructure)).Once()

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
		))
		require.ErrorIs(t, err, m.ErrInfrastructure)
		assert.Equal(t, m.InfrastructureFailed, report.Outcome)
		assert.Empty(t, report.Accepted)
		f.assertRestored(t)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newValidatorFixture(t)
		require.NoError(t, os.Remove(f.file))

		report, err := f.validator(nil, ValidatorOptions{TopK: 10}).Validate(context.Background(), f.args(
			candidate("x > 0", 0.9),
		))
		require.ErrorIs(t, err, m.ErrInfrastructure)
		assert.Equal(t, m.InfrastructureFailed, report.Outcome)
	})
}

func TestSameTests(t *testing.T) {
	assert.True(t, sameTests(nil, nil))
	assert.True(t, sameTests([]string{"b", "a"}, []string{"a", "b"}))
	assert.False(t, sameTests([]string{"a"}, []string{"a", "b"}))
	assert.False(t, sameTests([]string{"a", "c"}, []string{"a", "b"}))
}
