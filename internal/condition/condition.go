// Package condition evaluates edge activation conditions: a small
// grammar of {var, op, value} comparisons against a context built from a
// single edge's own projected map, not the full merged downstream input.
package condition

import (
	"fmt"
	"strings"

	"github.com/wandorch/wand/internal/registry"
)

// Op is a comparison operator usable in an edge condition.
type Op string

const (
	OpEq       Op = "=="
	OpNeq      Op = "!="
	OpLt       Op = "<"
	OpLte      Op = "<="
	OpGt       Op = ">"
	OpGte      Op = ">="
	OpContains Op = "contains"
)

// Cond is a single edge activation condition: Var names a key in the
// edge-local context, Op is the comparison, Value is the operand on the
// right-hand side.
type Cond struct {
	Var   string `json:"var"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Eval evaluates c against ctx. Any failure to evaluate — missing
// variable, incomparable types, unknown operator — yields false rather
// than an error: an edge whose condition cannot be evaluated simply does
// not fire.
func Eval(c Cond, ctx registry.Values) bool {
	if c.Var == "" {
		return true
	}
	left, ok := ctx[c.Var]
	if !ok {
		return false
	}
	ok, _ = compare(left, c.Op, c.Value)
	return ok
}

func compare(left any, op Op, right any) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = false, fmt.Errorf("condition: panic comparing values: %v", r)
		}
	}()

	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpContains:
		return containsOp(left, right), nil
	case OpLt, OpLte, OpGt, OpGte:
		lf, lok := toFloat(left)
		rf, rok := toFloat(right)
		if !lok || !rok {
			return false, fmt.Errorf("condition: %v %s %v not numeric", left, op, right)
		}
		switch op {
		case OpLt:
			return lf < rf, nil
		case OpLte:
			return lf <= rf, nil
		case OpGt:
			return lf > rf, nil
		case OpGte:
			return lf >= rf, nil
		}
	}
	return false, fmt.Errorf("condition: unknown operator %q", op)
}

func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsOp(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return false
		}
		return strings.Contains(h, s)
	case []any:
		for _, item := range h {
			if equal(item, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
