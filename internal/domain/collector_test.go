package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "faultline.dev/pkg/faultline/internal/model"
)

func probeLog(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestSpectrumCollector_Collect(t *testing.T) {
	loc4 := m.SpectrumKey{Location: m.Location{Method: 1, Line: 4}}
	loc7 := m.SpectrumKey{Location: m.Location{Method: 1, Line: 7}}
	pred := m.SpectrumKey{Location: m.Location{Method: 1, Line: 7}, Predicate: "x > 0"}

	failing := map[string]struct{}{"calc.TestNegative": {}}

	t.Run("counts executions by test outcome", func(t *testing.T) {
		raw := probeLog(
			"#test\te1\tcalc.TestNegative",
			"e1\t1#4",
			"e1\t1#4",
			"e1\t1#7",
			"#end\te1",
			"#test\te2\tcalc.TestPositive",
			"e2\t1#7",
			"#end\te2",
		)

		cov := NewSpectrumCollector().Collect(raw, failing)

		assert.Equal(t, 1, cov.TotalFailed)
		assert.Equal(t, 1, cov.TotalPassed)
		assert.Equal(t, m.Spectrum{Failed: 1}, cov.Spectra[loc4])
		assert.Equal(t, m.Spectrum{Failed: 1, Passed: 1}, cov.Spectra[loc7])
		assert.Contains(t, cov.OnlyFailing, loc4)
		assert.NotContains(t, cov.OnlyFailing, loc7)
		assert.Zero(t, cov.Malformed)
	})

	t.Run("only true predicate branches count", func(t *testing.T) {
		raw := probeLog(
			"#test\te1\tcalc.TestNegative",
			"e1\t1#7#x > 0#0",
			"#end\te1",
			"#test\te2\tcalc.TestPositive",
			"e2\t1#7#x > 0#1",
			"#end\te2",
		)

		cov := NewSpectrumCollector().Collect(raw, failing)

		assert.Equal(t, m.Spectrum{Passed: 1}, cov.Spectra[pred])
		assert.Len(t, cov.Spectra, 1)
	})

	t.Run("interleaved executions are kept apart", func(t *testing.T) {
		raw := probeLog(
			"#test\te1\tcalc.TestNegative",
			"#test\te2\tcalc.TestPositive",
			"e2\t1#7",
			"e1\t1#4",
			"#end\te2",
			"#end\te1",
		)

		cov := NewSpectrumCollector().Collect(raw, failing)

		assert.Equal(t, m.Spectrum{Failed: 1}, cov.Spectra[loc4])
		assert.Equal(t, m.Spectrum{Passed: 1}, cov.Spectra[loc7])
	})

	t.Run("execution without end marker still counts", func(t *testing.T) {
		raw := probeLog(
			"#test\te1\tcalc.TestNegative",
			"e1\t1#4",
		)

		cov := NewSpectrumCollector().Collect(raw, failing)

		assert.Equal(t, 1, cov.TotalFailed)
		assert.Equal(t, m.Spectrum{Failed: 1}, cov.Spectra[loc4])
	})

	t.Run("malformed lines are counted and skipped", func(t *testing.T) {
		raw := probeLog(
			"#test\te1",
			"#test\te1\tcalc.TestPositive",
			"garbage",
			"e1\tnot-a-probe",
			"e9\t1#4",
			"e1\t1#7#x#5",
			"e1\t1#7",
			"#end",
			"#end\te1",
		)

		cov := NewSpectrumCollector().Collect(raw, failing)

		require.Equal(t, 6, cov.Malformed)
		assert.Equal(t, m.Spectrum{Passed: 1}, cov.Spectra[loc7])
		assert.Len(t, cov.Spectra, 1)
	})

	t.Run("empty log", func(t *testing.T) {
		cov := NewSpectrumCollector().Collect(nil, failing)

		assert.Empty(t, cov.Spectra)
		assert.Empty(t, cov.OnlyFailing)
		assert.Zero(t, cov.TotalFailed+cov.TotalPassed)
	})
}

func TestSpectrumCollector_CollectThenScore(t *testing.T) {
	loc3 := m.SpectrumKey{Location: m.Location{Method: 1, Line: 3}}
	loc4 := m.SpectrumKey{Location: m.Location{Method: 1, Line: 4}}
	loc7 := m.SpectrumKey{Location: m.Location{Method: 1, Line: 7}}

	failing := map[string]struct{}{"calc.TestF1": {}, "calc.TestF2": {}}

	raw := probeLog(
		"#test\te1\tcalc.TestF1",
		"e1\t1#4",
		"e1\t1#7",
		"#end\te1",
		"#test\te2\tcalc.TestF2",
		"e2\t1#4",
		"e2\t1#7",
		"#end\te2",
		"#test\te3\tcalc.TestP1",
		"e3\t1#7",
		"#end\te3",
		"#test\te4\tcalc.TestP2",
		"e4\t1#3",
		"#end\te4",
		"#test\te5\tcalc.TestP3",
		"e5\t1#3",
		"#end\te5",
	)

	cov := NewSpectrumCollector().Collect(raw, failing)
	require.Equal(t, 2, cov.TotalFailed)
	require.Equal(t, 3, cov.TotalPassed)

	assert.Equal(t, m.Spectrum{Failed: 2, Passed: 1}, cov.Spectra[loc7])
	assert.Contains(t, cov.OnlyFailing, loc4)
	assert.NotContains(t, cov.OnlyFailing, loc7)
	assert.NotContains(t, cov.OnlyFailing, loc3)

	scores := NewScorer().Score(cov.Spectra, cov.TotalFailed, cov.TotalPassed, Ochiai{})
	require.Len(t, scores, 3)

	assert.Equal(t, loc4, scores[0].Key)
	assert.InDelta(t, 1.0, scores[0].Value, 1e-9)
	assert.Equal(t, loc7, scores[1].Key)
	assert.InDelta(t, 0.8165, scores[1].Value, 1e-4)
	assert.Equal(t, loc3, scores[2].Key)
	assert.Zero(t, scores[2].Value)
}
