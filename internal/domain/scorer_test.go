package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "faultline.dev/pkg/faultline/internal/model"
)

func TestScorer_Score(t *testing.T) {
	key := func(method m.MethodID, line int, predicate string) m.SpectrumKey {
		return m.SpectrumKey{Location: m.Location{Method: method, Line: line}, Predicate: predicate}
	}

	spectra := m.Spectra{
		key(2, 9, ""):         {Failed: 1, Passed: 1},
		key(1, 4, ""):         {Failed: 2},
		key(1, 7, ""):         {Failed: 2, Passed: 2},
		key(1, 7, "x > 0"):    {Failed: 2},
		key(1, 3, ""):         {Passed: 3},
		key(1, 7, "!(x > 0)"): {Passed: 2},
	}

	scores := NewScorer().Score(spectra, 2, 3, Ochiai{})
	require.Len(t, scores, len(spectra))

	// 1#4 and 1#7#x > 0 tie at 1.0; the tie is broken by location.
	assert.Equal(t, key(1, 4, ""), scores[0].Key)
	assert.Equal(t, key(1, 7, "x > 0"), scores[1].Key)
	assert.InDelta(t, 1.0, scores[0].Value, 1e-9)
	assert.Equal(t, key(1, 7, ""), scores[2].Key)
	assert.Equal(t, key(2, 9, ""), scores[3].Key)

	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Value, scores[i].Value)
	}

	// Zero-scored keys are ordered by key as well.
	assert.Equal(t, key(1, 3, ""), scores[4].Key)
	assert.Equal(t, key(1, 7, "!(x > 0)"), scores[5].Key)
}

func TestScorer_Empty(t *testing.T) {
	assert.Empty(t, NewScorer().Score(m.Spectra{}, 0, 0, Ochiai{}))
}

func TestScorer_Idempotent(t *testing.T) {
	spectra := m.Spectra{
		{Location: m.Location{Method: 1, Line: 4}}:                     {Failed: 2},
		{Location: m.Location{Method: 1, Line: 7}}:                     {Failed: 2, Passed: 1},
		{Location: m.Location{Method: 1, Line: 7}, Predicate: "x > 0"}: {Failed: 1, Passed: 1},
		{Location: m.Location{Method: 2, Line: 3}}:                     {Passed: 3},
	}

	before := make(m.Spectra, len(spectra))
	before.Merge(spectra)

	scorer := NewScorer()
	first := scorer.Score(spectra, 2, 3, Ochiai{})
	second := scorer.Score(spectra, 2, 3, Ochiai{})

	assert.Equal(t, first, second)
	assert.Equal(t, before, spectra)
}
