package model

import (
	"sort"
	"time"
)

// ValidationOutcome is the result of validating the predicates of one location.
type ValidationOutcome int

const (
	// Accepted means the combined instrumentation compiled and preserved test outcomes.
	Accepted ValidationOutcome = iota
	// BuildFailed means the combined instrumentation did not compile.
	BuildFailed
	// TestBehaviorChanged means the instrumentation altered the failing-test set.
	TestBehaviorChanged
	// Skipped means there was nothing to validate (no legal candidates).
	Skipped
	// InfrastructureFailed means the location was abandoned because of an environment error.
	InfrastructureFailed
)

func (o ValidationOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case BuildFailed:
		return "build_failed"
	case TestBehaviorChanged:
		return "behavior_changed"
	case Skipped:
		return "skipped"
	case InfrastructureFailed:
		return "infrastructure_failed"
	default:
		return "unknown"
	}
}

// SuspiciousnessScore is the score of one spectrum key.
type SuspiciousnessScore struct {
	Key   SpectrumKey
	Value float64
}

// SortScores orders scores by descending value; ties are broken by ascending key.
func SortScores(scores []SuspiciousnessScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}

		return scores[i].Key.Less(scores[j].Key)
	})
}

// LocationOutcome records how a location fared during predicate expansion.
type LocationOutcome struct {
	File        Path
	Line        int
	Method      string
	Outcome     ValidationOutcome
	Candidates  int
	Accepted    []string
	Discarded   int
	Diagnostics []string
}

// RankedPredicate is an accepted predicate with its score.
type RankedPredicate struct {
	Expression  string  `yaml:"expression"`
	Score       float64 `yaml:"score"`
	Failed      int     `yaml:"failed"`
	Passed      int     `yaml:"passed"`
	OnlyFailing bool    `yaml:"only_failing,omitempty"`
}

// RankedLocation is one entry of the final ranking.
type RankedLocation struct {
	Rank       int               `yaml:"rank"`
	File       Path              `yaml:"file"`
	Line       int               `yaml:"line"`
	Method     string            `yaml:"method"`
	Score      float64           `yaml:"score"`
	Failed     int               `yaml:"failed"`
	Passed     int               `yaml:"passed"`
	Predicates []RankedPredicate `yaml:"predicates,omitempty"`
}

// OutcomeSummary is the serialized form of a LocationOutcome.
type OutcomeSummary struct {
	File        Path     `yaml:"file"`
	Line        int      `yaml:"line"`
	Outcome     string   `yaml:"outcome"`
	Candidates  int      `yaml:"candidates"`
	Accepted    []string `yaml:"accepted,omitempty"`
	Discarded   int      `yaml:"discarded"`
	Diagnostics []string `yaml:"diagnostics,omitempty"`
}

// Report is the persisted result of a run.
type Report struct {
	SchemaVersion int              `yaml:"schema_version"`
	RunID         string           `yaml:"run_id"`
	Subject       Path             `yaml:"subject"`
	Formula       string           `yaml:"formula"`
	CreatedAt     time.Time        `yaml:"created_at"`
	TotalFailed   int              `yaml:"total_failed"`
	TotalPassed   int              `yaml:"total_passed"`
	FailingTests  []string         `yaml:"failing_tests"`
	Ranking       []RankedLocation `yaml:"ranking"`
	OnlyFailing   []string         `yaml:"only_failing_covered,omitempty"`
	Outcomes      []OutcomeSummary `yaml:"outcomes,omitempty"`
	Diagnostics   []string         `yaml:"diagnostics,omitempty"`
}

// Summary converts an outcome to its serialized form.
func (o LocationOutcome) Summary() OutcomeSummary {
	return OutcomeSummary{
		File:        o.File,
		Line:        o.Line,
		Outcome:     o.Outcome.String(),
		Candidates:  o.Candidates,
		Accepted:    append([]string(nil), o.Accepted...),
		Discarded:   o.Discarded,
		Diagnostics: append([]string(nil), o.Diagnostics...),
	}
}
