package domain

import (
	m "faultline.dev/pkg/faultline/internal/model"
)

// Scorer ranks spectra with a suspiciousness formula.
type Scorer interface {
	Score(spectra m.Spectra, totalFailed, totalPassed int, formula Formula) []m.SuspiciousnessScore
}

type scorer struct{}

// NewScorer constructs a Scorer.
func NewScorer() Scorer {
	return &scorer{}
}

// Score scores every key and returns them by descending value; ties are broken
// by ascending location, then predicate text.
func (s *scorer) Score(spectra m.Spectra, totalFailed, totalPassed int, formula Formula) []m.SuspiciousnessScore {
	scores := make([]m.SuspiciousnessScore, 0, len(spectra))

	for key, sp := range spectra {
		scores = append(scores, m.SuspiciousnessScore{
			Key:   key,
			Value: formula.Score(sp.Failed, sp.Passed, totalFailed, totalPassed),
		})
	}

	m.SortScores(scores)

	return scores
}
