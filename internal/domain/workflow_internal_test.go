package domain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	m "faultline.dev/pkg/faultline/internal/model"
)

func TestMatchPackage(t *testing.T) {
	tests := []struct {
		rel     string
		pattern string
		want    bool
	}{
		{rel: ".", pattern: "./...", want: true},
		{rel: "internal/calc", pattern: "./...", want: true},
		{rel: ".", pattern: ".", want: true},
		{rel: "internal", pattern: ".", want: false},
		{rel: "internal/calc", pattern: "./internal/...", want: true},
		{rel: "internal", pattern: "./internal/...", want: true},
		{rel: "internals", pattern: "./internal/...", want: false},
		{rel: "internal/calc", pattern: "internal/calc", want: true},
		{rel: "internal/calc/sub", pattern: "internal/calc", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.rel+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPackage(tt.rel, tt.pattern))
		})
	}
}

func TestSelectPackages(t *testing.T) {
	root := m.Path(filepath.FromSlash("/work/calc"))
	pkgs := []m.Package{
		{ImportPath: "example.com/calc", Dir: root},
		{ImportPath: "example.com/calc/internal/ops", Dir: m.Path(filepath.Join(string(root), "internal", "ops"))},
		{ImportPath: "example.com/calc/cmd", Dir: m.Path(filepath.Join(string(root), "cmd"))},
	}

	assert.Len(t, selectPackages(root, pkgs, nil), 3)

	got := selectPackages(root, pkgs, []m.Path{"./internal/..."})
	assert.Len(t, got, 1)
	assert.Equal(t, "example.com/calc/internal/ops", got[0].ImportPath)

	got = selectPackages(root, pkgs, []m.Path{".", "./cmd"})
	assert.Len(t, got, 2)
}

func TestTopLocations(t *testing.T) {
	loc := func(line int) m.Location { return m.Location{Method: 1, Line: line} }

	spectra := m.Spectra{
		{Location: loc(4)}: {Failed: 1, Passed: 1},
		{Location: loc(5)}: {Failed: 1},
		{Location: loc(7)}: {Passed: 1},
	}
	scores := []m.SuspiciousnessScore{
		{Key: m.SpectrumKey{Location: loc(5)}, Value: 1},
		{Key: m.SpectrumKey{Location: loc(4), Predicate: "x < 0"}, Value: 1},
		{Key: m.SpectrumKey{Location: loc(4)}, Value: 0.7},
		{Key: m.SpectrumKey{Location: loc(7)}, Value: 0},
	}

	assert.Equal(t, []m.Location{loc(5), loc(4)}, topLocations(scores, spectra, 10))
	assert.Equal(t, []m.Location{loc(5)}, topLocations(scores, spectra, 1))
	assert.Empty(t, topLocations(scores, spectra, 0))
}

func TestPredicateCoverage(t *testing.T) {
	at := m.Location{Method: 1, Line: 7}
	other := m.Location{Method: 1, Line: 4}

	cov := m.Coverage{
		Spectra: m.Spectra{
			{Location: at, Predicate: "x > 0"}:    {Failed: 1},
			{Location: at, Predicate: "y > 0"}:    {Failed: 1, Passed: 1},
			{Location: other, Predicate: "x > 0"}: {Failed: 1},
			{Location: at}:                        {Failed: 1},
		},
		TotalFailed: 1,
		TotalPassed: 1,
	}

	got := predicateCoverage(cov, at, []string{"x > 0", "y > 0"})

	assert.Len(t, got.Spectra, 2)
	assert.Contains(t, got.OnlyFailing, m.SpectrumKey{Location: at, Predicate: "x > 0"})
	assert.NotContains(t, got.OnlyFailing, m.SpectrumKey{Location: at, Predicate: "y > 0"})
	assert.Equal(t, 1, got.TotalFailed)
}

func TestSourceLine(t *testing.T) {
	src := []byte("package calc\n\n\treturn x\n")

	assert.Equal(t, "return x", sourceLine(src, 3))
	assert.Equal(t, "", sourceLine(src, 0))
	assert.Equal(t, "", sourceLine(src, 10))
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := UnifiedDiff("calc.go", []byte("a\nb\n"), []byte("a\nc\n"))
	assert.NoError(t, err)
	assert.Contains(t, diff, "-b")
	assert.Contains(t, diff, "+c")

	same, err := UnifiedDiff("calc.go", []byte("a\n"), []byte("a\n"))
	assert.NoError(t, err)
	assert.Empty(t, same)
}

func TestBrokenFiles(t *testing.T) {
	root := m.Path(filepath.FromSlash("/src/calc"))
	calc := instrumentedFile{path: m.Path(filepath.FromSlash("/src/calc/calc.go"))}
	sub := instrumentedFile{path: m.Path(filepath.FromSlash("/src/calc/sub/sub.go"))}

	broken := brokenFiles(root, []instrumentedFile{calc, sub}, []string{
		"# example.com/calc/sub",
		"sub/sub.go:9:2: undefined: faultlineT9_0",
		"sub/sub.go:12:2: undefined: faultlineT12_0",
		"other.go:1:1: not instrumented",
		"build timed out after 5m0s",
	})

	assert.Equal(t, map[m.Path]string{sub.path: "sub/sub.go:9:2: undefined: faultlineT9_0"}, broken)
	assert.Empty(t, brokenFiles(root, []instrumentedFile{calc}, []string{"# example.com/calc"}))
}

func TestInstrumentsDir(t *testing.T) {
	files := []instrumentedFile{{path: m.Path(filepath.FromSlash("/src/calc/calc.go"))}}

	assert.True(t, instrumentsDir(files, m.Path(filepath.FromSlash("/src/calc/"+ProbeRuntimeFile))))
	assert.False(t, instrumentsDir(files, m.Path(filepath.FromSlash("/src/calc/sub/"+ProbeRuntimeFile))))
}
