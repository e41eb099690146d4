package adapter

import (
	"context"
	"go/ast"
	"go/importer"
	"go/types"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "faultline.dev/pkg/faultline/internal/model"
)

const typedSource = `package calc

type point struct{ x, y int }

func join(names []string) string { return "" }

func Scale(p *point, factor int, names []string) int {
	total := p.x * factor
	if total > 10 {
		label := join(names)
		_ = label
		return total
	}

	return 0
}
`

func checkSource(t *testing.T, src string) (*SyntaxFile, *TypeTable) {
	t.Helper()

	file, err := ParseSyntaxFile("calc.go", []byte(src))
	require.NoError(t, err)

	info := &types.Info{
		Types:  make(map[ast.Expr]types.TypeAndValue),
		Scopes: make(map[ast.Node]*types.Scope),
		Defs:   make(map[*ast.Ident]types.Object),
	}

	cfg := types.Config{Importer: importer.Default()}
	pkg, err := cfg.Check("example.com/calc", file.Fset, []*ast.File{file.File}, info)
	require.NoError(t, err)

	table := NewTypeTable(file.Fset, file.File, pkg, info)
	file.Types = table

	return file, table
}

func TestTypeTable_VariablesAt(t *testing.T) {
	file, table := checkSource(t, typedSource)

	names := make(map[string]string)
	for _, v := range table.VariablesAt(file, 10) {
		names[v.Name] = v.Type
	}

	assert.Equal(t, "int", names["total"])
	assert.Equal(t, "*point", names["p"])
	assert.Equal(t, "int", names["factor"])
	assert.Equal(t, "[]string", names["names"])
	assert.NotContains(t, names, "label", "declared on the line itself")

	later := table.VariablesAt(file, 11)
	require.NotEmpty(t, later)
	assert.Equal(t, "label", later[0].Name, "innermost scope first")

	assert.Empty(t, table.VariablesAt(file, 0))
	assert.Empty(t, table.VariablesAt(file, 10_000))

	var nilTable *TypeTable
	assert.Nil(t, nilTable.VariablesAt(file, 10))
}

func TestTypeTable_ExprQueries(t *testing.T) {
	file, table := checkSource(t, typedSource)

	var (
		cond  ast.Expr
		total ast.Expr
		join  ast.Expr
	)

	ast.Inspect(file.File, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.IfStmt:
			cond = n.Cond
			total = n.Cond.(*ast.BinaryExpr).X
		case *ast.CallExpr:
			if ident, ok := n.Fun.(*ast.Ident); ok && ident.Name == "join" {
				join = n
			}
		}

		return true
	})

	require.NotNil(t, cond)

	assert.True(t, table.IsBool(file, cond))
	assert.False(t, table.IsNumeric(file, cond))
	assert.True(t, table.IsNumeric(file, total))

	typ, ok := table.TypeExpr(file, total)
	assert.True(t, ok)
	assert.Equal(t, "int", typ)

	typ, ok = table.TypeExpr(file, join)
	assert.True(t, ok)
	assert.Equal(t, "string", typ)

	untyped := cond.(*ast.BinaryExpr).Y
	_, ok = table.TypeExpr(file, untyped)
	assert.False(t, ok, "untyped constants have no declarable type")
}

func TestTypeTable_ValidForClones(t *testing.T) {
	file, table := checkSource(t, typedSource)

	clone, err := file.Clone()
	require.NoError(t, err)

	var cond ast.Expr

	ast.Inspect(clone.File, func(n ast.Node) bool {
		if ifs, ok := n.(*ast.IfStmt); ok {
			cond = ifs.Cond
		}

		return true
	})

	assert.True(t, table.IsBool(clone, cond))
}

func TestPackagesTypeResolver_Resolve(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/calc\n\ngo 1.21\n"), 0o600))

	path := filepath.Join(root, "calc.go")
	require.NoError(t, os.WriteFile(path, []byte(typedSource), 0o600))

	resolver := NewPackagesTypeResolver()

	table, err := resolver.Resolve(context.Background(), m.Path(root), m.Path(path))
	require.NoError(t, err)
	require.NotNil(t, table)

	again, err := resolver.Resolve(context.Background(), m.Path(root), m.Path(path))
	require.NoError(t, err)
	assert.Same(t, table, again)

	resolver.Invalidate()

	fresh, err := resolver.Resolve(context.Background(), m.Path(root), m.Path(path))
	require.NoError(t, err)
	assert.NotSame(t, table, fresh)
}
