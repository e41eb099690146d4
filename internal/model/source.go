// Package model defines the data structures shared by the fault localization pipeline.
package model

// Path represents a file system path.
type Path string

// File represents a source code file of the subject under test.
type File struct {
	ShortPath Path // path relative to the module root
	FullPath  Path
	Hash      string
}

// Package describes a Go package of the subject as reported by `go list`.
type Package struct {
	ImportPath   string
	Name         string
	Dir          Path
	GoFiles      []string
	TestGoFiles  []string
	XTestGoFiles []string
}

// HasTests reports whether the package has any test files.
func (p Package) HasTests() bool {
	return len(p.TestGoFiles) > 0 || len(p.XTestGoFiles) > 0
}
