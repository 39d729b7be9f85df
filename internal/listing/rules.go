package listing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/whit3rabbit/unspecter/internal/pysyntax"
)

// Paragraph positions and markers used by the rules.
const (
	stateTableParagraph = 0
	keyParagraph        = 1
	keyLine             = 1
	orderParagraph      = -1

	keyStartMarker = "int(b'"
	keyEndMarker   = "')))"

	orderCallSeparator = ")("
)

// closingSyntaxLen is the number of characters that follow the final name of
// the order list: the two closing parentheses of the enclosing calls.
//
// This is a positional assumption about pycdc's 3.9 rendering and cannot be
// checked against anything else in the listing. Order lines have every comma
// removed before the cut, so a trailing comma pycdc places between the name
// and the parentheses does not shift it.
const closingSyntaxLen = 2

// StateTable maps scrambled names to their literal payloads in listing order.
type StateTable struct {
	m       *orderedmap.OrderedMap
	skipped []string
}

// NewStateTable returns an empty table.
func NewStateTable() *StateTable {
	return &StateTable{m: orderedmap.New()}
}

// Get returns the literal assigned to name.
func (t *StateTable) Get(name string) (*pysyntax.Literal, bool) {
	v, ok := t.m.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*pysyntax.Literal), true
}

// Names returns the table's names in assignment order.
func (t *StateTable) Names() []string {
	return t.m.Keys()
}

// Len returns the number of entries.
func (t *StateTable) Len() int {
	return len(t.m.Keys())
}

// Skipped lists names whose right-hand value was not a literal and was left
// out of the table.
func (t *StateTable) Skipped() []string {
	return t.skipped
}

// Set records lit under name. Re-setting a name keeps its position.
func (t *StateTable) Set(name string, lit *pysyntax.Literal) {
	t.m.Set(name, lit)
}

// StateTableRule reads the last line of the first payload paragraph as a
// tuple assignment `(names...) = (literals...)` and pairs the two sides.
// Pairs whose value is not a literal are skipped and recorded.
func StateTableRule(l *Layout) (*StateTable, error) {
	para, err := l.Paragraph(stateTableParagraph)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(para, "\n")
	stmt, err := pysyntax.ParseStatement(lines[len(lines)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconstructionParse, err)
	}

	assign, ok := stmt.(*pysyntax.Assign)
	if !ok || len(assign.Targets) != 1 {
		return nil, fmt.Errorf("%w: expected a single-target assignment, got %s", ErrReconstructionParse, stmt.Kind())
	}
	names, ok := assign.Targets[0].(*pysyntax.Tuple)
	if !ok {
		return nil, fmt.Errorf("%w: assignment target is not a tuple", ErrReconstructionParse)
	}
	values, ok := assign.Value.(*pysyntax.Tuple)
	if !ok {
		return nil, fmt.Errorf("%w: assigned value is not a tuple", ErrReconstructionParse)
	}
	if len(names.Elts) != len(values.Elts) {
		return nil, fmt.Errorf("%w: %d names but %d values", ErrReconstructionParse, len(names.Elts), len(values.Elts))
	}

	table := NewStateTable()
	for i, target := range names.Elts {
		name, ok := target.(*pysyntax.Name)
		if !ok {
			return nil, fmt.Errorf("%w: target %d is a %s, not a name", ErrReconstructionParse, i, target.Kind())
		}
		lit, ok := values.Elts[i].(*pysyntax.Literal)
		if !ok {
			table.skipped = append(table.skipped, name.ID)
			continue
		}
		table.Set(name.ID, lit)
	}
	return table, nil
}

// KeyRule extracts the integer between `int(b'` and `')))` on the second
// line of the decode paragraph.
func KeyRule(l *Layout) (int, error) {
	para, err := l.Paragraph(keyParagraph)
	if err != nil {
		return 0, err
	}
	lines := splitLines(para)
	if len(lines) <= keyLine {
		return 0, fmt.Errorf("%w: decode paragraph has %d lines", ErrReconstructionParse, len(lines))
	}
	line := lines[keyLine]

	start := strings.Index(line, keyStartMarker)
	if start < 0 {
		return 0, fmt.Errorf("%w: key start marker %q not found", ErrReconstructionParse, keyStartMarker)
	}
	end := strings.Index(line, keyEndMarker)
	if end < 0 {
		return 0, fmt.Errorf("%w: key end marker %q not found", ErrReconstructionParse, keyEndMarker)
	}
	start += len(keyStartMarker)
	if end < start {
		return 0, fmt.Errorf("%w: key end marker precedes start marker", ErrReconstructionParse)
	}

	key, err := strconv.Atoi(strings.TrimSpace(line[start:end]))
	if err != nil {
		return 0, fmt.Errorf("%w: key %q is not an integer", ErrReconstructionParse, line[start:end])
	}
	return key, nil
}

// OrderRule isolates the argument list after the last `)(` of the final
// paragraph and reads one name per line, skipping the call-opening line.
func OrderRule(l *Layout) ([]string, error) {
	para, err := l.Paragraph(orderParagraph)
	if err != nil {
		return nil, err
	}
	segments := strings.Split(para, orderCallSeparator)
	lines := splitLines(segments[len(segments)-1])
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: order list is empty", ErrReconstructionParse)
	}

	order := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		order = append(order, strings.ReplaceAll(strings.TrimSpace(line), ",", ""))
	}

	last, err := trimClosingSyntax(order[len(order)-1])
	if err != nil {
		return nil, err
	}
	order[len(order)-1] = last
	return order, nil
}

// trimClosingSyntax removes the closing parentheses glued to the final name.
func trimClosingSyntax(entry string) (string, error) {
	if len(entry) <= closingSyntaxLen {
		return "", fmt.Errorf("%w: final order entry %q is too short to carry a name", ErrReconstructionParse, entry)
	}
	return entry[:len(entry)-closingSyntaxLen], nil
}
