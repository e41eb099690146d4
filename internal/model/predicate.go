package model

// Predicate is a boolean expression proposed as an extra observation point.
type Predicate struct {
	Expression   string
	Variable     string
	VariableType string
	Probability  float64
	// Cached marks a predicate recovered from the predicate store for an unchanged file.
	Cached bool
}

// Clone returns an independent copy of p.
func (p Predicate) Clone() Predicate {
	return p
}

// ClonePredicates deep-copies a predicate slice.
func ClonePredicates(in []Predicate) []Predicate {
	if in == nil {
		return nil
	}

	out := make([]Predicate, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}

	return out
}

// Variable is an in-scope variable binding at a location.
type Variable struct {
	Name string
	Type string
}

// PredicateRecord is the persisted form of an accepted predicate.
type PredicateRecord struct {
	SchemaVersion int     `json:"schema_version"`
	File          Path    `json:"file"`
	Line          int     `json:"line"`
	Expression    string  `json:"expression"`
	Variable      string  `json:"variable"`
	VariableType  string  `json:"variable_type,omitempty"`
	Probability   float64 `json:"probability"`
	Checksum      string  `json:"checksum"`
}

// Predicate converts the record back to its in-memory shape.
func (r PredicateRecord) Predicate() Predicate {
	return Predicate{
		Expression:   r.Expression,
		Variable:     r.Variable,
		VariableType: r.VariableType,
		Probability:  r.Probability,
		Cached:       true,
	}
}
