// Package extractor harvests the marshalled bytecode fragments that Specter
// hides in dunder-named assignments and assembles them into one blob.
//
// The recognised statement shape is
//
//	__name__ = (<anything>, <callee>(<anything>, b'<payload>'))
//
// Any other statement is ignored.
package extractor

import (
	"errors"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/whit3rabbit/unspecter/internal/pysyntax"
)

// ErrSchemeMismatch means no payload-carrying symbol was found: the input is
// not a Specter-obfuscated program, or uses a different variant.
var ErrSchemeMismatch = errors.New("no embedded payload symbols found")

// AssignmentSource yields assignment statements in document pre-order.
// *pysyntax.Module satisfies it.
type AssignmentSource interface {
	Assignments() []*pysyntax.Assign
}

// payloadShape is the structural predicate for one payload assignment.
var payloadShape = pysyntax.SingleTarget(
	pysyntax.NameWhere(IsDunder),
	pysyntax.TupleOf(
		pysyntax.Any,
		pysyntax.CallWithArgs(pysyntax.Any, pysyntax.IsKind(pysyntax.KindBytes)),
	),
)

// IsDunder reports whether name starts and ends with a double underscore.
func IsDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// MatchPayload returns the symbol name and payload bytes carried by a, or
// ok=false when a does not have the payload shape.
func MatchPayload(a *pysyntax.Assign) (name string, payload []byte, ok bool) {
	if a == nil || !payloadShape(a) {
		return "", nil, false
	}
	name = a.Targets[0].(*pysyntax.Name).ID
	call := a.Value.(*pysyntax.Tuple).Elts[1].(*pysyntax.Call)
	return name, call.Args[1].(*pysyntax.Literal).Bytes, true
}

// SymbolTable maps symbol names to payloads, ordered by first appearance.
// Re-assigning a name replaces its payload but keeps its original position.
type SymbolTable struct {
	m *orderedmap.OrderedMap
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{m: orderedmap.New()}
}

// Set records payload for name.
func (t *SymbolTable) Set(name string, payload []byte) {
	t.m.Set(name, payload)
}

// Get returns the payload recorded for name.
func (t *SymbolTable) Get(name string) ([]byte, bool) {
	v, ok := t.m.Get(name)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Names returns the symbol names in table order.
func (t *SymbolTable) Names() []string {
	return t.m.Keys()
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int {
	return len(t.m.Keys())
}

// Blob concatenates every payload in table order.
func (t *SymbolTable) Blob() []byte {
	var size int
	names := t.Names()
	for _, name := range names {
		p, _ := t.Get(name)
		size += len(p)
	}
	blob := make([]byte, 0, size)
	for _, name := range names {
		p, _ := t.Get(name)
		blob = append(blob, p...)
	}
	return blob
}

// Extract walks src and builds the symbol table. It returns
// ErrSchemeMismatch when nothing matched.
func Extract(src AssignmentSource) (*SymbolTable, error) {
	table := NewSymbolTable()
	for _, a := range src.Assignments() {
		if name, payload, ok := MatchPayload(a); ok {
			table.Set(name, payload)
		}
	}
	if table.Len() == 0 {
		return nil, ErrSchemeMismatch
	}
	return table, nil
}
