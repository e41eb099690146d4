package model

// Spectrum counts the failing and passing test executions that reached a program point.
type Spectrum struct {
	Failed int
	Passed int
}

// Merge returns the element-wise sum of two spectra.
func (s Spectrum) Merge(other Spectrum) Spectrum {
	return Spectrum{Failed: s.Failed + other.Failed, Passed: s.Passed + other.Passed}
}

// OnlyFailing reports whether the point was reached by failing tests exclusively.
func (s Spectrum) OnlyFailing() bool {
	return s.Failed > 0 && s.Passed == 0
}

// SpectrumKey identifies a spectrum: a plain location, or a location plus the
// normalized text of a predicate observed there.
type SpectrumKey struct {
	Location  Location
	Predicate string
}

// IsPredicate reports whether the key refers to a predicate rather than plain coverage.
func (k SpectrumKey) IsPredicate() bool {
	return k.Predicate != ""
}

// String renders the key in probe-id form without the branch tag.
func (k SpectrumKey) String() string {
	if k.Predicate == "" {
		return k.Location.String()
	}

	return k.Location.String() + "#" + k.Predicate
}

// Less orders keys by location, then predicate text.
func (k SpectrumKey) Less(other SpectrumKey) bool {
	if k.Location != other.Location {
		return k.Location.Less(other.Location)
	}

	return k.Predicate < other.Predicate
}

// Spectra maps keys to their spectra.
type Spectra map[SpectrumKey]Spectrum

// Merge sums other into s, creating missing keys.
func (s Spectra) Merge(other Spectra) {
	for key, spectrum := range other {
		s[key] = s[key].Merge(spectrum)
	}
}

// Replace overwrites s with the spectrum of every key in other.
func (s Spectra) Replace(other Spectra) {
	for key, spectrum := range other {
		s[key] = spectrum
	}
}

// Locations returns the spectra of plain coverage keys only.
func (s Spectra) Locations() Spectra {
	out := make(Spectra)

	for key, spectrum := range s {
		if !key.IsPredicate() {
			out[key] = spectrum
		}
	}

	return out
}

// Coverage is the result of collecting one probe log.
type Coverage struct {
	Spectra     Spectra
	OnlyFailing map[SpectrumKey]struct{}
	TotalFailed int
	TotalPassed int
	Malformed   int
}
