package domain

import (
	"bytes"
	_ "embed"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"faultline.dev/pkg/faultline/internal/adapter"
	m "faultline.dev/pkg/faultline/internal/model"
)

// ProbeRuntimeFile is the generated file that defines the probe functions in an
// instrumented package.
const ProbeRuntimeFile = "zz_faultline_probe.go"

const (
	hitFunc    = "faultlineHit"
	condFunc   = "faultlineCond"
	tempPrefix = "faultlineT"
)

var numericChecks = []token.Token{token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ}

//go:embed probe_runtime.go.tmpl
var probeRuntimeTemplate string

var probeRuntime = template.Must(template.New("probe").Parse(probeRuntimeTemplate))

// ProbeRuntime renders the probe runtime for package pkgName.
func ProbeRuntime(pkgName string) ([]byte, error) {
	var buf bytes.Buffer

	err := probeRuntime.Execute(&buf, struct {
		Package  string
		EnvLog   string
		EnvExec  string
		HitFunc  string
		CondFunc string
	}{pkgName, adapter.EnvProbeLog, adapter.EnvExecID, hitFunc, condFunc})
	if err != nil {
		return nil, fmt.Errorf("render probe runtime: %w", err)
	}

	return buf.Bytes(), nil
}

// InstrumentPlan selects what to instrument in a file.
type InstrumentPlan struct {
	// Lines restricts instrumentation to statements intersecting these lines.
	// A nil set targets every line.
	Lines map[int]struct{}
	// Coverage emits a coverage probe before each targeted statement.
	Coverage bool
	// Branches hoists the controlling expressions of targeted statements and
	// logs their values, plus the sign checks of numeric returns.
	Branches bool
	// Predicates maps a line to the normalized predicates evaluated there.
	Predicates map[int][]string
}

// PredicatePlan targets exactly one line with the given predicates.
func PredicatePlan(line int, predicates ...string) InstrumentPlan {
	return InstrumentPlan{
		Lines:      map[int]struct{}{line: {}},
		Predicates: map[int][]string{line: predicates},
	}
}

func (p InstrumentPlan) targets(start, end int) bool {
	if p.Lines == nil {
		return true
	}

	for line := range p.Lines {
		if line >= start && line <= end {
			return true
		}
	}

	return false
}

func (p InstrumentPlan) at(line int) bool {
	if p.Lines == nil {
		return true
	}

	_, ok := p.Lines[line]

	return ok
}

// InstrumentResult is the rewritten source of one file.
type InstrumentResult struct {
	Source     []byte
	Package    string
	Probes     int
	Predicates int // predicate checks emitted from the plan
	Methods    []m.MethodID
	Skipped    []string
}

// Instrumentor rewrites Go files to insert probes.
type Instrumentor interface {
	// Instrument rewrites a fresh clone of file according to plan; file itself is
	// never modified.
	Instrument(file *adapter.SyntaxFile, plan InstrumentPlan) (InstrumentResult, error)

	// MethodAt returns the id of the function declared around line.
	MethodAt(file *adapter.SyntaxFile, line int) (m.MethodID, bool)
}

type instrumentor struct {
	interner *m.Interner
}

// NewInstrumentor constructs an Instrumentor that interns function signatures
// in interner.
func NewInstrumentor(interner *m.Interner) Instrumentor {
	return &instrumentor{interner: interner}
}

func (in *instrumentor) MethodAt(file *adapter.SyntaxFile, line int) (m.MethodID, bool) {
	fd, ok := file.FuncAt(line)
	if !ok {
		return 0, false
	}

	return in.interner.Intern(FuncSignature(file, fd), file.Path), true
}

func (in *instrumentor) Instrument(file *adapter.SyntaxFile, plan InstrumentPlan) (InstrumentResult, error) {
	work, err := file.Clone()
	if err != nil {
		return InstrumentResult{}, err
	}

	result := InstrumentResult{Package: work.File.Name.Name}

	for _, fd := range work.Funcs() {
		start, end := work.LineRange(fd.Body)
		if !plan.targets(start, end) {
			continue
		}

		mid := in.interner.Intern(FuncSignature(work, fd), work.Path)

		v := &visitor{
			file:       work,
			plan:       plan,
			mid:        mid,
			results:    fd.Type.Results,
			gotoLabels: gotoTargets(fd.Body),
			temps:      make(map[int]int),
			predsDone:  make(map[int]bool),
		}

		fd.Body.List = v.list(fd.Body.List)

		if v.probes > 0 {
			work.MarkRewritten(fd.Body)
			result.Methods = append(result.Methods, mid)
		}

		result.Probes += v.probes
		result.Predicates += v.predicates
		result.Skipped = append(result.Skipped, v.skipped...)
	}

	out, err := work.Print()
	if err != nil {
		return InstrumentResult{}, err
	}

	if _, err := parser.ParseFile(token.NewFileSet(), string(work.Path), out, parser.SkipObjectResolution); err != nil {
		return InstrumentResult{}, fmt.Errorf("%w: instrumented %s does not parse: %v", m.ErrMalformedInput, work.Path, err)
	}

	result.Source = out

	return result, nil
}

// FuncSignature returns the fully qualified name of fd, e.g.
// "example.com/calc.(*Calc).Add". init functions are disambiguated by position.
func FuncSignature(file *adapter.SyntaxFile, fd *ast.FuncDecl) string {
	pkg := file.PkgPath
	if pkg == "" {
		pkg = file.File.Name.Name
	}

	name := fd.Name.Name
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		name = receiverName(fd.Recv.List[0].Type) + "." + name
	}

	if fd.Recv == nil && (name == "init" || name == "_") {
		name += "@" + filepath.Base(string(file.Path)) + ":" + strconv.Itoa(file.Line(fd))
	}

	return pkg + "." + name
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return "(*" + receiverName(t.X) + ")"
	case *ast.ParenExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return "?"
	}
}

func gotoTargets(body *ast.BlockStmt) map[string]bool {
	labels := make(map[string]bool)

	ast.Inspect(body, func(n ast.Node) bool {
		if br, ok := n.(*ast.BranchStmt); ok && br.Tok == token.GOTO && br.Label != nil {
			labels[br.Label.Name] = true
		}

		return true
	})

	return labels
}

type visitor struct {
	file       *adapter.SyntaxFile
	plan       InstrumentPlan
	mid        m.MethodID
	results    *ast.FieldList
	gotoLabels map[string]bool
	temps      map[int]int
	predsDone  map[int]bool
	probes     int
	predicates int
	skipped    []string
}

func (v *visitor) list(stmts []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))

	for _, s := range stmts {
		start, end := v.file.LineRange(s)
		if !v.plan.targets(start, end) {
			out = append(out, s)
			continue
		}

		v.closures(s)

		if v.plan.Coverage {
			if _, empty := s.(*ast.EmptyStmt); !empty {
				out = append(out, v.hit(v.locationID(start)))
			}
		}

		out = append(out, v.stmt(s, nil)...)
	}

	return out
}

func (v *visitor) block(b *ast.BlockStmt) *ast.BlockStmt {
	if b != nil {
		b.List = v.list(b.List)
	}

	return b
}

// stmt rewrites one statement. label, when set, is the label that must stay
// attached to the construct itself.
func (v *visitor) stmt(s ast.Stmt, label *ast.Ident) []ast.Stmt {
	line := v.file.Line(s)

	switch s := s.(type) {
	case *ast.LabeledStmt:
		return v.stmt(s.Stmt, s.Label)
	case *ast.IfStmt:
		return v.ifStmt(s, label)
	case *ast.ForStmt:
		return v.forStmt(s, label)
	case *ast.RangeStmt:
		s.Body = v.block(s.Body)
		s.Body.List = append(v.predicatesAt(line), s.Body.List...)

		return []ast.Stmt{labeled(label, s)}
	case *ast.SwitchStmt:
		return v.switchStmt(s, label)
	case *ast.TypeSwitchStmt:
		for _, clause := range s.Body.List {
			cc := clause.(*ast.CaseClause)
			cc.Body = v.list(cc.Body)
		}

		return append(v.predicatesAt(line), labeled(label, s))
	case *ast.SelectStmt:
		for _, clause := range s.Body.List {
			cc := clause.(*ast.CommClause)
			cc.Body = v.list(cc.Body)
		}

		return append(v.predicatesAt(line), labeled(label, s))
	case *ast.ReturnStmt:
		return v.returnStmt(s, label)
	case *ast.BlockStmt:
		v.block(s)
		return append(v.predicatesAt(line), labeled(label, s))
	case *ast.BranchStmt, *ast.EmptyStmt, *ast.BadStmt:
		return append(v.predicatesAt(line), labeled(label, s))
	case *ast.ExprStmt:
		if isPanic(s.X) {
			return append(v.predicatesAt(line), labeled(label, s))
		}

		return append([]ast.Stmt{labeled(label, s)}, v.predicatesAt(line)...)
	case *ast.AssignStmt, *ast.IncDecStmt, *ast.DeclStmt, *ast.SendStmt, *ast.GoStmt, *ast.DeferStmt:
		return append([]ast.Stmt{labeled(label, s)}, v.predicatesAt(line)...)
	default:
		return []ast.Stmt{labeled(label, s)}
	}
}

func (v *visitor) hoistAt(line int) bool {
	return v.plan.at(line) && (v.plan.Branches || len(v.plan.Predicates[line]) > 0)
}

func (v *visitor) gotoTarget(label *ast.Ident) bool {
	return label != nil && v.gotoLabels[label.Name]
}

func (v *visitor) ifStmt(s *ast.IfStmt, label *ast.Ident) []ast.Stmt {
	line := v.file.Line(s)

	s.Body = v.block(s.Body)
	if s.Else != nil {
		s.Else = v.elseBranch(s.Else)
	}

	condText, err := printExpr(stripParens(s.Cond))
	if !v.hoistAt(line) || v.gotoTarget(label) || err != nil {
		if err != nil && v.hoistAt(line) {
			v.skip(line, "if condition spans lines")
		}

		return append(v.predicatesAt(line), labeled(label, s))
	}

	tmp := v.temp(line)
	wrapper := &ast.BlockStmt{}

	if s.Init != nil {
		wrapper.List = append(wrapper.List, s.Init)
		s.Init = nil
	}

	wrapper.List = append(wrapper.List,
		define(tmp, s.Cond),
		v.cond(v.predicateID(line, condText), tmp, v.file.Types.IsBool(v.file, s.Cond)),
	)
	wrapper.List = append(wrapper.List, v.predicatesAt(line)...)

	s.Cond = ast.NewIdent(tmp)
	wrapper.List = append(wrapper.List, labeled(label, s))

	return []ast.Stmt{wrapper}
}

// elseBranch rewrites an else arm; the result is always a legal else (an if or a block).
func (v *visitor) elseBranch(s ast.Stmt) ast.Stmt {
	if block, ok := s.(*ast.BlockStmt); ok {
		return v.block(block)
	}

	rewritten := v.list([]ast.Stmt{s})
	if len(rewritten) == 1 {
		switch r := rewritten[0].(type) {
		case *ast.IfStmt, *ast.BlockStmt:
			return r
		}
	}

	return &ast.BlockStmt{List: rewritten}
}

func (v *visitor) forStmt(s *ast.ForStmt, label *ast.Ident) []ast.Stmt {
	s.Body = v.block(s.Body)

	if s.Cond == nil {
		fallback := 0
		if s.Init != nil {
			fallback = v.file.Line(s.Init)
		} else if s.Post != nil {
			fallback = v.file.Line(s.Post)
		}

		head := v.predicatesAt(v.file.Line(s))
		if fallback > 0 && v.plan.Coverage && v.plan.at(fallback) {
			head = append([]ast.Stmt{v.hit(v.locationID(fallback))}, head...)
		}

		s.Body.List = append(head, s.Body.List...)

		return []ast.Stmt{labeled(label, s)}
	}

	line := v.file.Line(s.Cond)

	condText, err := printExpr(stripParens(s.Cond))
	if !v.hoistAt(line) || err != nil {
		s.Body.List = append(v.predicatesAt(line), s.Body.List...)
		return []ast.Stmt{labeled(label, s)}
	}

	tmp := v.temp(line)
	head := []ast.Stmt{
		define(tmp, s.Cond),
		v.cond(v.predicateID(line, condText), tmp, v.file.Types.IsBool(v.file, s.Cond)),
	}
	head = append(head, v.predicatesAt(line)...)
	head = append(head, &ast.IfStmt{
		Cond: &ast.UnaryExpr{Op: token.NOT, X: ast.NewIdent(tmp)},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.BranchStmt{Tok: token.BREAK}}},
	})

	s.Cond = nil
	s.Body.List = append(head, s.Body.List...)

	return []ast.Stmt{labeled(label, s)}
}

func (v *visitor) switchStmt(s *ast.SwitchStmt, label *ast.Ident) []ast.Stmt {
	line := v.file.Line(s)

	for _, clause := range s.Body.List {
		cc := clause.(*ast.CaseClause)
		cc.Body = v.list(cc.Body)
	}

	if s.Tag == nil || !v.hoistAt(line) || v.gotoTarget(label) {
		return append(v.predicatesAt(line), labeled(label, s))
	}

	typeText, ok := v.file.Types.TypeExpr(v.file, s.Tag)
	if !ok {
		v.skip(line, "switch tag type unresolved")
		return append(v.predicatesAt(line), labeled(label, s))
	}

	typeExpr, err := parser.ParseExpr(typeText)
	if err != nil {
		v.skip(line, "switch tag type not expressible")
		return append(v.predicatesAt(line), labeled(label, s))
	}

	tmp := v.temp(line)
	wrapper := &ast.BlockStmt{}

	if s.Init != nil {
		wrapper.List = append(wrapper.List, s.Init)
		s.Init = nil
	}

	wrapper.List = append(wrapper.List, declare(tmp, typeExpr, s.Tag))
	wrapper.List = append(wrapper.List, v.predicatesAt(line)...)

	s.Tag = ast.NewIdent(tmp)
	wrapper.List = append(wrapper.List, labeled(label, s))

	return []ast.Stmt{wrapper}
}

func (v *visitor) returnStmt(s *ast.ReturnStmt, label *ast.Ident) []ast.Stmt {
	line := v.file.Line(s)

	resultType := v.singleResult()
	if len(s.Results) != 1 || resultType == nil || !v.hoistAt(line) || v.gotoTarget(label) {
		return append(v.predicatesAt(line), labeled(label, s))
	}

	typeExpr, err := parser.ParseExpr(v.file.Text(resultType))
	if err != nil {
		v.skip(line, "result type not expressible")
		return append(v.predicatesAt(line), labeled(label, s))
	}

	tmp := v.temp(line)
	wrapper := &ast.BlockStmt{List: []ast.Stmt{declare(tmp, typeExpr, s.Results[0])}}

	if v.plan.Branches && v.numeric(resultType) {
		for _, op := range numericChecks {
			check := &ast.BinaryExpr{X: ast.NewIdent(tmp), Op: op, Y: &ast.BasicLit{Kind: token.INT, Value: "0"}}
			wrapper.List = append(wrapper.List, v.check(check, v.predicateID(line, "return "+op.String()+" 0")+"#1"))
		}
	}

	wrapper.List = append(wrapper.List, v.predicatesAt(line)...)

	s.Results = []ast.Expr{ast.NewIdent(tmp)}
	wrapper.List = append(wrapper.List, labeled(label, s))

	return []ast.Stmt{wrapper}
}

// singleResult returns the type of the only, possibly named, result.
func (v *visitor) singleResult() ast.Expr {
	if v.results == nil || len(v.results.List) != 1 {
		return nil
	}

	field := v.results.List[0]
	if len(field.Names) > 1 {
		return nil
	}

	return field.Type
}

func (v *visitor) numeric(typeExpr ast.Expr) bool {
	if v.file.Types != nil {
		return v.file.Types.IsNumeric(v.file, typeExpr)
	}

	ident, ok := typeExpr.(*ast.Ident)
	if !ok {
		return false
	}

	switch ident.Name {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "byte", "rune":
		return true
	}

	return false
}

// closures instruments function literals in the expressions owned by s. Nested
// statement bodies are left to the recursive walk.
func (v *visitor) closures(s ast.Stmt) {
	for _, node := range ownExprs(s) {
		ast.Inspect(node, func(n ast.Node) bool {
			lit, ok := n.(*ast.FuncLit)
			if !ok {
				return true
			}

			outer := v.results
			v.results = lit.Type.Results
			lit.Body = v.block(lit.Body)
			v.results = outer

			return false
		})
	}
}

func ownExprs(s ast.Stmt) []ast.Node {
	switch s := s.(type) {
	case *ast.ExprStmt:
		return []ast.Node{s.X}
	case *ast.AssignStmt:
		return exprNodes(s.Rhs)
	case *ast.DeclStmt:
		return []ast.Node{s.Decl}
	case *ast.ReturnStmt:
		return exprNodes(s.Results)
	case *ast.GoStmt:
		return []ast.Node{s.Call}
	case *ast.DeferStmt:
		return []ast.Node{s.Call}
	case *ast.SendStmt:
		return []ast.Node{s.Value}
	case *ast.IfStmt:
		return nodes(s.Init, s.Cond)
	case *ast.ForStmt:
		return nodes(s.Init, s.Cond, s.Post)
	case *ast.RangeStmt:
		return nodes(s.X)
	case *ast.SwitchStmt:
		return nodes(s.Init, s.Tag)
	case *ast.LabeledStmt:
		return ownExprs(s.Stmt)
	default:
		return nil
	}
}

func exprNodes(exprs []ast.Expr) []ast.Node {
	out := make([]ast.Node, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, e)
	}

	return out
}

func nodes(candidates ...ast.Node) []ast.Node {
	var out []ast.Node

	for _, n := range candidates {
		if n != nil {
			out = append(out, n)
		}
	}

	return out
}

// predicatesAt returns the checks of the predicates planned for line, once per line.
func (v *visitor) predicatesAt(line int) []ast.Stmt {
	exprs := v.plan.Predicates[line]
	if len(exprs) == 0 || v.predsDone[line] || !v.plan.at(line) {
		return nil
	}

	v.predsDone[line] = true

	var out []ast.Stmt

	for _, text := range exprs {
		expr, err := parser.ParseExpr(text)
		if err != nil {
			v.skip(line, "predicate "+strconv.Quote(text)+" does not parse")
			continue
		}

		out = append(out, v.check(expr, v.predicateID(line, text)+"#1"))
		v.predicates++
	}

	return out
}

func (v *visitor) check(cond ast.Expr, id string) ast.Stmt {
	return &ast.IfStmt{Cond: cond, Body: &ast.BlockStmt{List: []ast.Stmt{v.hit(id)}}}
}

func (v *visitor) hit(id string) ast.Stmt {
	v.probes++

	return &ast.ExprStmt{X: &ast.CallExpr{
		Fun:  ast.NewIdent(hitFunc),
		Args: []ast.Expr{stringLit(id)},
	}}
}

func (v *visitor) cond(id, tmp string, isBool bool) ast.Stmt {
	v.probes++

	var value ast.Expr = ast.NewIdent(tmp)
	if !isBool {
		value = &ast.CallExpr{Fun: ast.NewIdent("bool"), Args: []ast.Expr{value}}
	}

	return &ast.ExprStmt{X: &ast.CallExpr{
		Fun:  ast.NewIdent(condFunc),
		Args: []ast.Expr{stringLit(id), value},
	}}
}

func (v *visitor) temp(line int) string {
	n := v.temps[line]
	v.temps[line] = n + 1

	return tempPrefix + strconv.Itoa(line) + "_" + strconv.Itoa(n)
}

func (v *visitor) locationID(line int) string {
	return m.Location{Method: v.mid, Line: line}.String()
}

func (v *visitor) predicateID(line int, expr string) string {
	return v.locationID(line) + "#" + expr
}

func (v *visitor) skip(line int, reason string) {
	v.skipped = append(v.skipped, fmt.Sprintf("%s:%d: %s", v.file.Path, line, reason))
}

func labeled(label *ast.Ident, s ast.Stmt) ast.Stmt {
	if label == nil {
		return s
	}

	return &ast.LabeledStmt{Label: label, Stmt: s}
}

func define(name string, value ast.Expr) ast.Stmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{ast.NewIdent(name)},
		Tok: token.DEFINE,
		Rhs: []ast.Expr{value},
	}
}

func declare(name string, typ, value ast.Expr) ast.Stmt {
	return &ast.DeclStmt{Decl: &ast.GenDecl{
		Tok: token.VAR,
		Specs: []ast.Spec{&ast.ValueSpec{
			Names:  []*ast.Ident{ast.NewIdent(name)},
			Type:   typ,
			Values: []ast.Expr{value},
		}},
	}}
}

func stringLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func isPanic(expr ast.Expr) bool {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return false
	}

	ident, ok := call.Fun.(*ast.Ident)

	return ok && ident.Name == "panic"
}

// ProbeID splits a probe id into its location and optional predicate and tag.
func ProbeID(id string) (loc m.Location, predicate, tag string, err error) {
	first := strings.IndexByte(id, '#')
	if first < 0 {
		return m.Location{}, "", "", fmt.Errorf("%w: probe id %q", m.ErrMalformedInput, id)
	}

	rest := id[first+1:]

	second := strings.IndexByte(rest, '#')
	if second < 0 {
		loc, err = m.ParseLocation(id)
		return loc, "", "", err
	}

	loc, err = m.ParseLocation(id[:first+1+second])
	if err != nil {
		return m.Location{}, "", "", err
	}

	tail := rest[second+1:]

	last := strings.LastIndexByte(tail, '#')
	if last <= 0 {
		return m.Location{}, "", "", fmt.Errorf("%w: predicate probe id %q", m.ErrMalformedInput, id)
	}

	predicate, tag = tail[:last], tail[last+1:]
	if tag != "0" && tag != "1" {
		return m.Location{}, "", "", fmt.Errorf("%w: branch tag in %q", m.ErrMalformedInput, id)
	}

	return loc, predicate, tag, nil
}
