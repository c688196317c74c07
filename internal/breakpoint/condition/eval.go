package condition

import (
	"errors"
	"fmt"
)

// ErrUnresolvedName is returned by a Resolver when an identifier's first
// path segment names neither a visible local nor a field of `this`
// (§4.5.1: "fails with UnresolvedName").
var ErrUnresolvedName = errors.New("condition: unresolved name")

// Value is the runtime result of evaluating a sub-expression: one of null,
// bool, int, float, string, or an object reference identified by ObjectID.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Float    float64
	Str      string
	ObjectID string
}

// Resolver supplies identifier values. Resolve is handed the full dotted
// path at once (e.g. ["this", "account", "balance"]) because the resolution
// order in §4.5.1 — current frame locals first, then this's fields, then
// each further segment as a field access on the previous result — requires
// remote-VM field lookups this package has no business performing itself.
type Resolver interface {
	Resolve(parts []string) (Value, error)
}

// Eval evaluates expr against r and reduces the result to a boolean per
// §4.5.1's truthiness rules.
func Eval(expr Expr, r Resolver) (bool, error) {
	v, err := evalExpr(expr, r)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func evalExpr(expr Expr, r Resolver) (Value, error) {
	switch e := expr.(type) {
	case *Literal:
		return Value{Kind: e.Kind, Bool: e.Bool, Int: e.Int, Float: e.Float, Str: e.Str}, nil
	case *Ident:
		return r.Resolve(e.Parts)
	case *UnaryExpr:
		v, err := evalExpr(e.X, r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: !truthy(v)}, nil
	case *BinaryExpr:
		return evalBinary(e, r)
	default:
		return Value{}, fmt.Errorf("condition: unknown expression node %T", expr)
	}
}

func evalBinary(e *BinaryExpr, r Resolver) (Value, error) {
	switch e.Op {
	case "&&":
		l, err := evalExpr(e.Left, r)
		if err != nil {
			return Value{}, err
		}
		if !truthy(l) {
			return Value{Kind: KindBool, Bool: false}, nil
		}
		right, err := evalExpr(e.Right, r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: truthy(right)}, nil
	case "||":
		l, err := evalExpr(e.Left, r)
		if err != nil {
			return Value{}, err
		}
		if truthy(l) {
			return Value{Kind: KindBool, Bool: true}, nil
		}
		right, err := evalExpr(e.Right, r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: truthy(right)}, nil
	default:
		l, err := evalExpr(e.Left, r)
		if err != nil {
			return Value{}, err
		}
		right, err := evalExpr(e.Right, r)
		if err != nil {
			return Value{}, err
		}
		return compare(e.Op, l, right)
	}
}

func truthy(v Value) bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	case KindObject:
		return true
	default:
		return false
	}
}

func compare(op string, l, r Value) (Value, error) {
	switch op {
	case "==", "!=":
		eq, err := equal(l, r)
		if err != nil {
			return Value{}, err
		}
		if op == "!=" {
			eq = !eq
		}
		return Value{Kind: KindBool, Bool: eq}, nil
	default:
		lf, lok := numeric(l)
		rf, rok := numeric(r)
		if !lok || !rok {
			return Value{}, fmt.Errorf("condition: operator %s requires numeric operands", op)
		}
		var b bool
		switch op {
		case ">":
			b = lf > rf
		case "<":
			b = lf < rf
		case ">=":
			b = lf >= rf
		case "<=":
			b = lf <= rf
		default:
			return Value{}, fmt.Errorf("condition: unknown comparison operator %q", op)
		}
		return Value{Kind: KindBool, Bool: b}, nil
	}
}

func numeric(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// equal implements §4.5.1's widening rules: strings compare by content,
// reference types by remote identity, primitives by numeric value.
func equal(l, r Value) (bool, error) {
	if l.Kind == KindNull || r.Kind == KindNull {
		return l.Kind == KindNull && r.Kind == KindNull, nil
	}
	if l.Kind == KindObject || r.Kind == KindObject {
		return l.Kind == KindObject && r.Kind == KindObject && l.ObjectID == r.ObjectID, nil
	}
	if l.Kind == KindString || r.Kind == KindString {
		return l.Kind == KindString && r.Kind == KindString && l.Str == r.Str, nil
	}
	if l.Kind == KindBool || r.Kind == KindBool {
		return l.Kind == KindBool && r.Kind == KindBool && l.Bool == r.Bool, nil
	}
	lf, _ := numeric(l)
	rf, _ := numeric(r)
	return lf == rf, nil
}
