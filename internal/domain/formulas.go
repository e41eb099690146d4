package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Formula maps coverage counts to a suspiciousness value.
type Formula interface {
	Name() string
	Score(failed, passed, totalFailed, totalPassed int) float64
}

// DefaultFormula is used when no formula is configured.
const DefaultFormula = "ochiai"

var formulas = map[string]Formula{
	"ochiai":      Ochiai{},
	"tarantula":   Tarantula{},
	"jaccard":     Jaccard{},
	"dstar":       DStar{Star: 2},
	"op2":         Op2{},
	"barinel":     Barinel{},
	"kulczynski2": Kulczynski2{},
}

// FormulaByName looks up a registered formula.
func FormulaByName(name string) (Formula, error) {
	f, ok := formulas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown formula %q (available: %s)", name, strings.Join(FormulaNames(), ", "))
	}

	return f, nil
}

// FormulaNames lists the registered formulas.
func FormulaNames() []string {
	names := make([]string, 0, len(formulas))
	for name := range formulas {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}

	return finite(num / den)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

// Ochiai is ef / sqrt(F * (ef + ep)).
type Ochiai struct{}

func (Ochiai) Name() string { return "ochiai" }

func (Ochiai) Score(failed, passed, totalFailed, totalPassed int) float64 {
	return ratio(float64(failed), math.Sqrt(float64(totalFailed)*float64(failed+passed)))
}

// Tarantula is (ef/F) / (ef/F + ep/P).
type Tarantula struct{}

func (Tarantula) Name() string { return "tarantula" }

func (Tarantula) Score(failed, passed, totalFailed, totalPassed int) float64 {
	f := ratio(float64(failed), float64(totalFailed))
	p := ratio(float64(passed), float64(totalPassed))

	return ratio(f, f+p)
}

// Jaccard is ef / (F + ep).
type Jaccard struct{}

func (Jaccard) Name() string { return "jaccard" }

func (Jaccard) Score(failed, passed, totalFailed, totalPassed int) float64 {
	return ratio(float64(failed), float64(totalFailed+passed))
}

// DStar is ef^star / (ep + nf). A point covered by every failing test and no
// passing test has a zero denominator and scores math.MaxFloat64.
type DStar struct {
	Star int
}

func (d DStar) Name() string { return "dstar" }

func (d DStar) Score(failed, passed, totalFailed, totalPassed int) float64 {
	if failed == 0 {
		return 0
	}

	num := finite(math.Pow(float64(failed), float64(d.Star)))
	den := float64(passed + totalFailed - failed)

	if den <= 0 {
		return math.MaxFloat64
	}

	return finite(num / den)
}

// Op2 is ef - ep / (P + 1).
type Op2 struct{}

func (Op2) Name() string { return "op2" }

func (Op2) Score(failed, passed, totalFailed, totalPassed int) float64 {
	return finite(float64(failed) - float64(passed)/float64(totalPassed+1))
}

// Barinel is 1 - ep / (ep + ef).
type Barinel struct{}

func (Barinel) Name() string { return "barinel" }

func (Barinel) Score(failed, passed, totalFailed, totalPassed int) float64 {
	if failed+passed == 0 {
		return 0
	}

	return finite(1 - float64(passed)/float64(passed+failed))
}

// Kulczynski2 is (ef/F + ef/(ef+ep)) / 2.
type Kulczynski2 struct{}

func (Kulczynski2) Name() string { return "kulczynski2" }

func (Kulczynski2) Score(failed, passed, totalFailed, totalPassed int) float64 {
	return (ratio(float64(failed), float64(totalFailed)) + ratio(float64(failed), float64(failed+passed))) / 2
}
