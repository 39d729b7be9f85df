package pysyntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AssignmentsInDocumentOrder(t *testing.T) {
	src := `import os

first = 1

def helper():
    nested = (1, 2)
    return nested

class Holder:
    attr = b'\x00\x01'

a = b = "chained"
last = f(x, b'payload')
`
	m, err := Parse(src, "sample.py")
	require.NoError(t, err)
	assert.Equal(t, 6, m.Len())

	assigns := m.Assignments()
	require.Len(t, assigns, 5)

	var firstTargets []string
	for _, a := range assigns {
		if name, ok := a.Targets[0].(*Name); ok {
			firstTargets = append(firstTargets, name.ID)
		}
	}
	assert.Equal(t, []string{"first", "nested", "attr", "a", "last"}, firstTargets)

	assert.Len(t, assigns[3].Targets, 2, "chained assignment keeps both targets")

	attr := assigns[2].Value.(*Literal)
	assert.Equal(t, KindBytes, attr.Kind())
	assert.Equal(t, []byte{0x00, 0x01}, attr.Bytes)

	call := assigns[4].Value.(*Call)
	require.Len(t, call.Args, 2)
	assert.Equal(t, KindName, call.Args[0].Kind())
	assert.Equal(t, []byte("payload"), call.Args[1].(*Literal).Bytes)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse("def broken(:\n", "broken.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.py")
}

func TestParseStatement_TupleAssignment(t *testing.T) {
	node, err := ParseStatement(`(qa, qb, qc) = (b'1\x002', 'text', g())`)
	require.NoError(t, err)

	a, ok := node.(*Assign)
	require.True(t, ok)
	require.Len(t, a.Targets, 1)

	targets := a.Targets[0].(*Tuple)
	values := a.Value.(*Tuple)
	require.Len(t, targets.Elts, 3)
	require.Len(t, values.Elts, 3)

	assert.Equal(t, "qb", targets.Elts[1].(*Name).ID)
	assert.Equal(t, []byte("1\x002"), values.Elts[0].(*Literal).Bytes)
	assert.Equal(t, "text", values.Elts[1].(*Literal).Text)
	assert.Equal(t, KindCall, values.Elts[2].Kind())
	assert.False(t, IsLiteral(values.Elts[2]))
}

func TestParseStatement_RejectsMultipleStatements(t *testing.T) {
	_, err := ParseStatement("a = 1\nb = 2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSingleStatement))
}

func TestParseStatement_NonAssignment(t *testing.T) {
	node, err := ParseStatement("print('x')")
	require.NoError(t, err)
	assert.Equal(t, KindOther, node.Kind())
}

func TestPredicates(t *testing.T) {
	isDunder := NameWhere(func(id string) bool { return len(id) >= 4 && id[:2] == "__" && id[len(id)-2:] == "__" })
	shape := SingleTarget(
		isDunder,
		TupleOf(nil, CallWithArgs(nil, IsKind(KindBytes))),
	)

	match := &Assign{
		Targets: []Node{&Name{ID: "__x__"}},
		Value: &Tuple{Elts: []Node{
			&Other{Type: "lambda"},
			&Call{Func: &Name{ID: "define"}, Args: []Node{NumLiteral("1"), BytesLiteral([]byte("p"))}},
		}},
	}
	assert.True(t, shape(match))

	tests := []struct {
		name   string
		mutate func(a *Assign)
	}{
		{"plain name", func(a *Assign) { a.Targets[0] = &Name{ID: "x"} }},
		{"two targets", func(a *Assign) { a.Targets = append(a.Targets, &Name{ID: "__y__"}) }},
		{"value not tuple", func(a *Assign) { a.Value = BytesLiteral(nil) }},
		{"call has three args", func(a *Assign) {
			call := a.Value.(*Tuple).Elts[1].(*Call)
			call.Args = append(call.Args, NumLiteral("3"))
		}},
		{"second arg is str", func(a *Assign) {
			a.Value.(*Tuple).Elts[1].(*Call).Args[1] = StrLiteral("p")
		}},
		{"nil value", func(a *Assign) { a.Value = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clone := &Assign{
				Targets: []Node{&Name{ID: "__x__"}},
				Value: &Tuple{Elts: []Node{
					&Other{Type: "lambda"},
					&Call{Func: &Name{ID: "define"}, Args: []Node{NumLiteral("1"), BytesLiteral([]byte("p"))}},
				}},
			}
			tt.mutate(clone)
			assert.False(t, shape(clone))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bytes", KindBytes.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
