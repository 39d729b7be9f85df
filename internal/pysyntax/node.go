// Package pysyntax provides a small, parser-independent view of Python syntax
// trees: node kinds, the handful of node shapes the deobfuscator inspects, and
// composable structural predicates over them.
//
// Only assignments, names, tuples, calls and literal constants are modelled in
// detail. Everything else becomes an Other node so that shape checks fail
// cleanly instead of panicking on unexpected input.
package pysyntax

import "fmt"

// Kind identifies the shape of a Node.
type Kind int

const (
	KindOther Kind = iota
	KindAssign
	KindName
	KindTuple
	KindCall
	KindBytes
	KindStr
	KindNum
	KindConstant // True, False, None
)

var kindNames = map[Kind]string{
	KindOther:    "other",
	KindAssign:   "assign",
	KindName:     "name",
	KindTuple:    "tuple",
	KindCall:     "call",
	KindBytes:    "bytes",
	KindStr:      "str",
	KindNum:      "num",
	KindConstant: "constant",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is a statement or expression.
type Node interface {
	Kind() Kind
}

// Assign is `t1 = t2 = ... = value`.
type Assign struct {
	Targets []Node
	Value   Node
	Line    int
}

// Name is a bare identifier.
type Name struct {
	ID string
}

// Tuple is a tuple display, parenthesised or not.
type Tuple struct {
	Elts []Node
}

// Call is a call expression. Only positional arguments are kept.
type Call struct {
	Func Node
	Args []Node
}

// Literal is a constant: bytes, str, number or singleton.
type Literal struct {
	kind  Kind
	Bytes []byte // KindBytes
	Text  string // KindStr; printed value for KindNum and KindConstant
}

// Other stands in for any syntax this package does not model.
type Other struct {
	Type string
}

func (*Assign) Kind() Kind { return KindAssign }
func (*Name) Kind() Kind { return KindName }
func (*Tuple) Kind() Kind { return KindTuple }
func (*Call) Kind() Kind { return KindCall }
func (l *Literal) Kind() Kind { return l.kind }
func (*Other) Kind() Kind { return KindOther }

// BytesLiteral returns a bytes constant node.
func BytesLiteral(b []byte) *Literal {
	return &Literal{kind: KindBytes, Bytes: b}
}

// StrLiteral returns a str constant node.
func StrLiteral(s string) *Literal {
	return &Literal{kind: KindStr, Text: s}
}

// NumLiteral returns a numeric constant node holding its printed form.
func NumLiteral(repr string) *Literal {
	return &Literal{kind: KindNum, Text: repr}
}

// IsLiteral reports whether n is any constant.
func IsLiteral(n Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case KindBytes, KindStr, KindNum, KindConstant:
		return true
	}
	return false
}
