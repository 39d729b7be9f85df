package pysyntax

// Predicate is a structural check on a single node.
type Predicate func(Node) bool

// And holds when every predicate holds. Evaluation stops at the first failure,
// so later predicates may assume the shape established by earlier ones.
func And(preds ...Predicate) Predicate {
	return func(n Node) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}
}

// IsKind matches nodes of kind k.
func IsKind(k Kind) Predicate {
	return func(n Node) bool {
		return n != nil && n.Kind() == k
	}
}

// NameWhere matches a Name whose identifier satisfies match.
func NameWhere(match func(id string) bool) Predicate {
	return func(n Node) bool {
		name, ok := n.(*Name)
		return ok && match(name.ID)
	}
}

// TupleOf matches a tuple of exactly len(elts) elements where element i
// satisfies elts[i]. A nil entry accepts anything.
func TupleOf(elts ...Predicate) Predicate {
	return func(n Node) bool {
		tup, ok := n.(*Tuple)
		if !ok || len(tup.Elts) != len(elts) {
			return false
		}
		return matchAll(tup.Elts, elts)
	}
}

// CallWithArgs matches a call with exactly len(args) positional arguments
// where argument i satisfies args[i]. A nil entry accepts anything.
func CallWithArgs(args ...Predicate) Predicate {
	return func(n Node) bool {
		call, ok := n.(*Call)
		if !ok || len(call.Args) != len(args) {
			return false
		}
		return matchAll(call.Args, args)
	}
}

// SingleTarget matches an assignment with exactly one target satisfying target
// and a value satisfying value.
func SingleTarget(target, value Predicate) Predicate {
	return func(n Node) bool {
		a, ok := n.(*Assign)
		return ok && len(a.Targets) == 1 && target(a.Targets[0]) && value(a.Value)
	}
}

// Any matches every node, including nil.
func Any(Node) bool { return true }

func matchAll(nodes []Node, preds []Predicate) bool {
	for i, p := range preds {
		if p != nil && !p(nodes[i]) {
			return false
		}
	}
	return true
}
