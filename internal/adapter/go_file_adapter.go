package adapter

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"

	m "faultline.dev/pkg/faultline/internal/model"
)

// GoFileAdapter encapsulates Go-specific parsing and printing so the domain
// layer can focus on instrumentation rules.
type GoFileAdapter interface {
	// Parse builds a SyntaxFile from the provided source bytes.
	Parse(ctx context.Context, path m.Path, src []byte) (*SyntaxFile, error)
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds a SyntaxFile for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(ctx context.Context, path m.Path, src []byte) (*SyntaxFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return ParseSyntaxFile(path, src)
}

// SyntaxFile is a parsed Go source file together with its original bytes.
// A SyntaxFile is rewritten in place by the instrumentor; Clone yields a fresh,
// unshared tree so the pristine source is never aliased by a rewrite.
type SyntaxFile struct {
	Path    m.Path
	PkgPath string
	Fset    *token.FileSet
	File    *ast.File
	Src     []byte
	Types   *TypeTable

	rewritten []ast.Node
}

// ParseSyntaxFile parses src as a Go file named path.
func ParseSyntaxFile(path m.Path, src []byte) (*SyntaxFile, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, string(path), src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &SyntaxFile{
		Path: path,
		Fset: fset,
		File: file,
		Src:  append([]byte(nil), src...),
	}, nil
}

// Clone re-parses the original bytes. The clone shares the type table, whose
// entries are keyed by offsets and therefore valid for every parse of Src.
func (s *SyntaxFile) Clone() (*SyntaxFile, error) {
	clone, err := ParseSyntaxFile(s.Path, s.Src)
	if err != nil {
		return nil, err
	}

	clone.PkgPath = s.PkgPath
	clone.Types = s.Types

	return clone, nil
}

// Line returns the line of the node's starting position.
func (s *SyntaxFile) Line(node ast.Node) int {
	if node == nil || !node.Pos().IsValid() {
		return 0
	}

	return s.Fset.Position(node.Pos()).Line
}

// LineRange returns the first and last line spanned by the node.
func (s *SyntaxFile) LineRange(node ast.Node) (int, int) {
	if node == nil || !node.Pos().IsValid() {
		return 0, 0
	}

	end := node.End()
	if end.IsValid() && end > node.Pos() {
		end--
	}

	return s.Fset.Position(node.Pos()).Line, s.Fset.Position(end).Line
}

// Offset returns the byte offset of pos within Src.
func (s *SyntaxFile) Offset(pos token.Pos) (int, bool) {
	if !pos.IsValid() {
		return 0, false
	}

	tf := s.Fset.File(pos)
	if tf == nil {
		return 0, false
	}

	return tf.Offset(pos), true
}

// Text returns the original source text of a node.
func (s *SyntaxFile) Text(node ast.Node) string {
	start, ok1 := s.Offset(node.Pos())
	end, ok2 := s.Offset(node.End())

	if !ok1 || !ok2 || start > end || end > len(s.Src) {
		var buf bytes.Buffer
		_ = printer.Fprint(&buf, token.NewFileSet(), node)

		return buf.String()
	}

	return string(s.Src[start:end])
}

// Funcs returns every function declaration that has a body.
func (s *SyntaxFile) Funcs() []*ast.FuncDecl {
	var funcs []*ast.FuncDecl

	for _, decl := range s.File.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Body != nil {
			funcs = append(funcs, fd)
		}
	}

	return funcs
}

// FuncAt returns the function declaration whose body spans line.
func (s *SyntaxFile) FuncAt(line int) (*ast.FuncDecl, bool) {
	for _, fd := range s.Funcs() {
		start, end := s.LineRange(fd)
		if line >= start && line <= end {
			return fd, true
		}
	}

	return nil, false
}

// MarkRewritten records that node's subtree was replaced; comments inside it are
// dropped on Print because their positions no longer match the new statements.
func (s *SyntaxFile) MarkRewritten(node ast.Node) {
	s.rewritten = append(s.rewritten, node)
}

// Print renders the (possibly rewritten) file.
func (s *SyntaxFile) Print() ([]byte, error) {
	file := s.File

	if len(s.rewritten) > 0 {
		kept := make([]*ast.CommentGroup, 0, len(file.Comments))

		for _, group := range file.Comments {
			if !s.insideRewritten(group) {
				kept = append(kept, group)
			}
		}

		file.Comments = kept
	}

	var buf bytes.Buffer

	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, s.Fset, file); err != nil {
		return nil, fmt.Errorf("print %s: %w", s.Path, err)
	}

	return buf.Bytes(), nil
}

func (s *SyntaxFile) insideRewritten(group *ast.CommentGroup) bool {
	for _, node := range s.rewritten {
		if group.Pos() >= node.Pos() && group.End() <= node.End() {
			return true
		}
	}

	return false
}

// ImportName returns the local name under which the file imports path, or false
// when the package is not imported (or only through a dot or blank import).
func (s *SyntaxFile) ImportName(path, defaultName string) (string, bool) {
	for _, spec := range s.File.Imports {
		if spec.Path == nil || spec.Path.Value != fmt.Sprintf("%q", path) {
			continue
		}

		if spec.Name == nil {
			return defaultName, true
		}

		if spec.Name.Name == "." || spec.Name.Name == "_" {
			return "", false
		}

		return spec.Name.Name, true
	}

	return "", false
}
