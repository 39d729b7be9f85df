package pysyntax

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
	"github.com/go-python/gpython/py"
)

// ErrNotSingleStatement is returned by ParseStatement when the fragment holds
// zero or several statements.
var ErrNotSingleStatement = errors.New("fragment is not a single statement")

// Module is a parsed Python source file. It is never modified after parsing.
type Module struct {
	body    []statement
	skipped []Skipped
}

// statement is a top-level statement. lineOffset is added to the line
// numbers gpython reports, which are relative to the text it was given.
type statement struct {
	node       ast.Stmt
	lineOffset int
}

// Parse parses Python source in exec mode. filename is only used in error
// messages.
func Parse(src, filename string) (*Module, error) {
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	mod, err := parser.Parse(strings.NewReader(src), filename, py.ExecMode)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	module, ok := mod.(*ast.Module)
	if !ok {
		return nil, fmt.Errorf("parsing %s: unexpected root node %T", filename, mod)
	}
	m := &Module{body: make([]statement, len(module.Body))}
	for i, stmt := range module.Body {
		m.body[i] = statement{node: stmt}
	}
	return m, nil
}

// Len returns the number of top-level statements.
func (m *Module) Len() int {
	return len(m.body)
}

// Assignments returns every assignment statement in document pre-order,
// including those nested in function, class and control-flow bodies.
// The walk does not descend into an assignment once it has been collected.
func (m *Module) Assignments() []*Assign {
	var out []*Assign
	for _, stmt := range m.body {
		ast.Walk(stmt.node, func(n ast.Ast) bool {
			a, ok := n.(*ast.Assign)
			if !ok {
				return true
			}
			assign := convertAssign(a)
			assign.Line += stmt.lineOffset
			out = append(out, assign)
			return false
		})
	}
	return out
}

// ParseStatement parses a standalone fragment that must contain exactly one
// statement, and returns it converted. Statements other than assignments are
// returned as Other.
func ParseStatement(src string) (Node, error) {
	m, err := Parse(src, "<fragment>")
	if err != nil {
		return nil, err
	}
	if len(m.body) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrNotSingleStatement, len(m.body))
	}
	if a, ok := m.body[0].node.(*ast.Assign); ok {
		return convertAssign(a), nil
	}
	return &Other{Type: fmt.Sprintf("%T", m.body[0].node)}, nil
}

func convertAssign(a *ast.Assign) *Assign {
	targets := make([]Node, len(a.Targets))
	for i, t := range a.Targets {
		targets[i] = convertExpr(t)
	}
	return &Assign{
		Targets: targets,
		Value:   convertExpr(a.Value),
		Line:    a.GetLineno(),
	}
}

func convertExpr(e ast.Expr) Node {
	switch n := e.(type) {
	case nil:
		return nil
	case *ast.Name:
		return &Name{ID: string(n.Id)}
	case *ast.Tuple:
		return &Tuple{Elts: convertExprs(n.Elts)}
	case *ast.Call:
		return &Call{Func: convertExpr(n.Func), Args: convertExprs(n.Args)}
	case *ast.Bytes:
		return BytesLiteral([]byte(n.S))
	case *ast.Str:
		return StrLiteral(string(n.S))
	case *ast.Num:
		return NumLiteral(fmt.Sprint(n.N))
	case *ast.NameConstant:
		return &Literal{kind: KindConstant, Text: fmt.Sprint(n.Value)}
	default:
		return &Other{Type: fmt.Sprintf("%T", e)}
	}
}

func convertExprs(exprs []ast.Expr) []Node {
	out := make([]Node, len(exprs))
	for i, e := range exprs {
		out[i] = convertExpr(e)
	}
	return out
}
