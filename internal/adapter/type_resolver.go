package adapter

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/tools/go/packages"

	m "faultline.dev/pkg/faultline/internal/model"
)

// TypeResolver loads static type information for subject files.
type TypeResolver interface {
	// Resolve returns the type table of the file at path, or nil when the
	// package could not be type-checked. A nil table is not an error: the
	// instrumentor then skips every construct that needs a resolved type.
	Resolve(ctx context.Context, root m.Path, path m.Path) (*TypeTable, error)

	// Invalidate drops cached tables, e.g. after the subject changed on disk.
	Invalidate()
}

type span struct {
	start, end int
}

// TypeTable records the static types of one file's expressions keyed by their
// byte offsets, so it applies to any parse of the same bytes.
type TypeTable struct {
	pkg    *types.Package
	exprs  map[span]types.Type
	scopes []scopeSpan
}

type scopeSpan struct {
	span
	vars []scopedVar
}

type scopedVar struct {
	m.Variable
	declared int // offset of the declaring identifier
}

// NewTypeTable builds a TypeTable for file from type-checker output.
func NewTypeTable(fset *token.FileSet, file *ast.File, pkg *types.Package, info *types.Info) *TypeTable {
	table := &TypeTable{pkg: pkg, exprs: make(map[span]types.Type)}

	tf := fset.File(file.FileStart)
	if tf == nil {
		return table
	}

	offset := func(pos token.Pos) int { return tf.Offset(pos) }
	within := func(pos token.Pos) bool { return pos >= file.FileStart && pos <= file.FileEnd }

	for expr, tv := range info.Types {
		if tv.Type == nil || !within(expr.Pos()) {
			continue
		}

		table.exprs[span{offset(expr.Pos()), offset(expr.End())}] = tv.Type
	}

	for node, scope := range info.Scopes {
		if !within(node.Pos()) {
			continue
		}

		var vars []scopedVar

		for _, name := range scope.Names() {
			v, ok := scope.Lookup(name).(*types.Var)
			if !ok || name == "_" || !within(v.Pos()) {
				continue
			}

			vars = append(vars, scopedVar{
				Variable: m.Variable{Name: name, Type: types.TypeString(v.Type(), types.RelativeTo(pkg))},
				declared: offset(v.Pos()),
			})
		}

		table.scopes = append(table.scopes, scopeSpan{
			span: span{offset(node.Pos()), offset(node.End())},
			vars: vars,
		})
	}

	sort.Slice(table.scopes, func(i, j int) bool {
		return table.scopes[i].start < table.scopes[j].start
	})

	return table
}

// TypeOf returns the static type of expr within file.
func (t *TypeTable) TypeOf(file *SyntaxFile, expr ast.Expr) (types.Type, bool) {
	if t == nil || expr == nil {
		return nil, false
	}

	start, ok1 := file.Offset(expr.Pos())
	end, ok2 := file.Offset(expr.End())

	if !ok1 || !ok2 {
		return nil, false
	}

	typ, ok := t.exprs[span{start, end}]
	if !ok || typ == types.Typ[types.Invalid] {
		return nil, false
	}

	return typ, true
}

// TypeExpr renders the type of expr as Go source that is legal inside file.
// It fails for untyped constants and for types naming packages the file does
// not import, because no declaration could spell them.
func (t *TypeTable) TypeExpr(file *SyntaxFile, expr ast.Expr) (string, bool) {
	typ, ok := t.TypeOf(file, expr)
	if !ok {
		return "", false
	}

	if basic, isBasic := typ.(*types.Basic); isBasic && basic.Info()&types.IsUntyped != 0 {
		return "", false
	}

	if !t.nameable(typ, 0) {
		return "", false
	}

	resolvable := true
	qualifier := func(other *types.Package) string {
		if other == t.pkg {
			return ""
		}

		name, imported := file.ImportName(other.Path(), other.Name())
		if !imported {
			resolvable = false
		}

		return name
	}

	rendered := types.TypeString(typ, qualifier)
	if !resolvable {
		return "", false
	}

	return rendered, true
}

// nameable reports whether every named type reachable from typ may be spelled
// outside its package.
func (t *TypeTable) nameable(typ types.Type, depth int) bool {
	if depth > 8 {
		return false
	}

	switch typ := typ.(type) {
	case *types.Named:
		obj := typ.Obj()
		if obj.Pkg() != nil && obj.Pkg() != t.pkg && !obj.Exported() {
			return false
		}

		args := typ.TypeArgs()
		for i := 0; i < args.Len(); i++ {
			if !t.nameable(args.At(i), depth+1) {
				return false
			}
		}

		return true
	case *types.Pointer:
		return t.nameable(typ.Elem(), depth+1)
	case *types.Slice:
		return t.nameable(typ.Elem(), depth+1)
	case *types.Array:
		return t.nameable(typ.Elem(), depth+1)
	case *types.Chan:
		return t.nameable(typ.Elem(), depth+1)
	case *types.Map:
		return t.nameable(typ.Key(), depth+1) && t.nameable(typ.Elem(), depth+1)
	default:
		return true
	}
}

// IsBool reports whether expr has the predeclared bool type (typed or untyped).
func (t *TypeTable) IsBool(file *SyntaxFile, expr ast.Expr) bool {
	typ, ok := t.TypeOf(file, expr)
	if !ok {
		return false
	}

	basic, ok := typ.(*types.Basic)

	return ok && basic.Info()&types.IsBoolean != 0
}

// IsNumeric reports whether expr has an integer or floating-point type.
func (t *TypeTable) IsNumeric(file *SyntaxFile, expr ast.Expr) bool {
	typ, ok := t.TypeOf(file, expr)
	if !ok {
		return false
	}

	basic, ok := typ.Underlying().(*types.Basic)

	return ok && basic.Info()&(types.IsInteger|types.IsFloat) != 0
}

// VariablesAt lists variables declared before line and visible there, innermost
// scope first.
func (t *TypeTable) VariablesAt(file *SyntaxFile, line int) []m.Variable {
	if t == nil {
		return nil
	}

	tf := file.Fset.File(file.File.Pos())
	if tf == nil || line <= 0 || line > tf.LineCount() {
		return nil
	}

	offset := tf.Offset(tf.LineStart(line))
	seen := make(map[string]struct{})

	var out []m.Variable

	for i := len(t.scopes) - 1; i >= 0; i-- {
		scope := t.scopes[i]
		if offset < scope.start || offset > scope.end {
			continue
		}

		for _, v := range scope.vars {
			if v.declared >= offset {
				continue
			}

			if _, dup := seen[v.Name]; dup {
				continue
			}

			seen[v.Name] = struct{}{}
			out = append(out, v.Variable)
		}
	}

	return out
}

// PackagesTypeResolver type-checks subject packages with golang.org/x/tools/go/packages.
type PackagesTypeResolver struct {
	mu    sync.Mutex
	cache map[string]*TypeTable
}

// NewPackagesTypeResolver constructs a PackagesTypeResolver.
func NewPackagesTypeResolver() *PackagesTypeResolver {
	return &PackagesTypeResolver{cache: make(map[string]*TypeTable)}
}

// Resolve loads the package containing path and returns the table for that file.
func (r *PackagesTypeResolver) Resolve(ctx context.Context, root m.Path, path m.Path) (*TypeTable, error) {
	abs, err := filepath.Abs(string(path))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	r.mu.Lock()
	if table, ok := r.cache[abs]; ok {
		r.mu.Unlock()
		return table, nil
	}
	r.mu.Unlock()

	cfg := &packages.Config{
		Context: ctx,
		Dir:     string(root),
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo,
		Tests: false,
	}

	pkgs, err := packages.Load(cfg, "file="+abs)
	if err != nil {
		slog.Warn("type information unavailable", "file", path, "error", err)
		return nil, nil
	}

	var table *TypeTable

	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			slog.Debug("package has type errors", "package", pkg.PkgPath, "errors", len(pkg.Errors))
		}

		if pkg.TypesInfo == nil {
			continue
		}

		for i, file := range pkg.Syntax {
			if i < len(pkg.CompiledGoFiles) && sameFile(pkg.CompiledGoFiles[i], abs) {
				table = NewTypeTable(pkg.Fset, file, pkg.Types, pkg.TypesInfo)
			}
		}
	}

	r.mu.Lock()
	r.cache[abs] = table
	r.mu.Unlock()

	return table, nil
}

// Invalidate drops every cached table.
func (r *PackagesTypeResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*TypeTable)
}

func sameFile(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
