package adapter

import (
	"context"
	"go/ast"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calcSource = `package calc

import (
	str "strings"
	_ "embed"
)

// Abs returns |x|.
func Abs(x int) int {
	if x < 0 { // negative
		return -x
	}

	return x
}

func Upper(s string) string {
	return str.ToUpper(s)
}
`

func TestLocalGoFileAdapter_Parse(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	file, err := adapter.Parse(context.Background(), "calc.go", []byte(calcSource))
	require.NoError(t, err)

	assert.Equal(t, "calc", file.File.Name.Name)
	assert.Len(t, file.Funcs(), 2)
	assert.Equal(t, calcSource, string(file.Src))
}

func TestLocalGoFileAdapter_Parse_InvalidSource(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	_, err := adapter.Parse(context.Background(), "broken.go", []byte("package foo\n func"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.go")
}

func TestLocalGoFileAdapter_Parse_ContextCancellation(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Parse(ctx, "example.go", []byte("package main\n func main() {}"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSyntaxFile_Positions(t *testing.T) {
	file, err := ParseSyntaxFile("calc.go", []byte(calcSource))
	require.NoError(t, err)

	abs := file.Funcs()[0]
	start, end := file.LineRange(abs)
	assert.Equal(t, 9, start)
	assert.Equal(t, 15, end)

	fd, ok := file.FuncAt(11)
	require.True(t, ok)
	assert.Equal(t, "Abs", fd.Name.Name)

	_, ok = file.FuncAt(3)
	assert.False(t, ok)

	ifStmt := abs.Body.List[0].(*ast.IfStmt)
	assert.Equal(t, 10, file.Line(ifStmt))
	assert.Equal(t, "x < 0", file.Text(ifStmt.Cond))
}

func TestSyntaxFile_ImportName(t *testing.T) {
	file, err := ParseSyntaxFile("calc.go", []byte(calcSource))
	require.NoError(t, err)

	name, ok := file.ImportName("strings", "strings")
	assert.True(t, ok)
	assert.Equal(t, "str", name)

	_, ok = file.ImportName("embed", "embed")
	assert.False(t, ok)

	_, ok = file.ImportName("fmt", "fmt")
	assert.False(t, ok)
}

func TestSyntaxFile_CloneIsIndependent(t *testing.T) {
	file, err := ParseSyntaxFile("calc.go", []byte(calcSource))
	require.NoError(t, err)

	clone, err := file.Clone()
	require.NoError(t, err)

	clone.Funcs()[0].Name.Name = "Renamed"

	assert.Equal(t, "Abs", file.Funcs()[0].Name.Name)
	assert.Same(t, file.Types, clone.Types)
}

func TestSyntaxFile_PrintDropsCommentsOfRewrittenNodes(t *testing.T) {
	file, err := ParseSyntaxFile("calc.go", []byte(calcSource))
	require.NoError(t, err)

	abs := file.Funcs()[0]
	ifStmt := abs.Body.List[0].(*ast.IfStmt)
	ifStmt.Cond = &ast.Ident{Name: "false"}
	file.MarkRewritten(ifStmt)

	out, err := file.Print()
	require.NoError(t, err)

	assert.NotContains(t, string(out), "// negative")
	assert.Contains(t, string(out), "// Abs returns |x|.")
	assert.True(t, strings.Contains(string(out), "if false"))
}
