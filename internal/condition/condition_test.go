package condition

import (
	"testing"

	"github.com/wandorch/wand/internal/registry"
)

func TestEval(t *testing.T) {
	cases := []struct {
		name string
		cond Cond
		ctx  registry.Values
		want bool
	}{
		{"empty var always fires", Cond{}, registry.Values{}, true},
		{"eq numeric true", Cond{Var: "score", Op: OpEq, Value: 42.0}, registry.Values{"score": 42}, true},
		{"eq numeric false", Cond{Var: "score", Op: OpEq, Value: 41.0}, registry.Values{"score": 42}, false},
		{"neq true", Cond{Var: "status", Op: OpNeq, Value: "ok"}, registry.Values{"status": "error"}, true},
		{"lt true", Cond{Var: "n", Op: OpLt, Value: 10.0}, registry.Values{"n": 5}, true},
		{"lte boundary", Cond{Var: "n", Op: OpLte, Value: 5.0}, registry.Values{"n": 5}, true},
		{"gt false", Cond{Var: "n", Op: OpGt, Value: 5.0}, registry.Values{"n": 5}, false},
		{"gte boundary", Cond{Var: "n", Op: OpGte, Value: 5.0}, registry.Values{"n": 5}, true},
		{"contains string true", Cond{Var: "text", Op: OpContains, Value: "AI"}, registry.Values{"text": "About AI agents"}, true},
		{"contains string false", Cond{Var: "text", Op: OpContains, Value: "ML"}, registry.Values{"text": "About AI agents"}, false},
		{"contains list true", Cond{Var: "tags", Op: OpContains, Value: "x"}, registry.Values{"tags": []any{"a", "x"}}, true},
		{"missing var is false", Cond{Var: "missing", Op: OpEq, Value: 1.0}, registry.Values{}, false},
		{"non-numeric compare is false", Cond{Var: "s", Op: OpLt, Value: 1.0}, registry.Values{"s": "abc"}, false},
		{"unknown operator is false", Cond{Var: "s", Op: "~=", Value: "abc"}, registry.Values{"s": "abc"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eval(tc.cond, tc.ctx); got != tc.want {
				t.Fatalf("Eval(%+v, %+v) = %v, want %v", tc.cond, tc.ctx, got, tc.want)
			}
		})
	}
}
