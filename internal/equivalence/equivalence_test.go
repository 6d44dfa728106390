package equivalence_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dotk-io/acbp/internal/equivalence"
	"github.com/dotk-io/acbp/internal/model"
)

func TestReduce(t *testing.T) {

	tests := []struct {
		note        string
		flags       []string
		constraints []model.Constraint
		classes     [][]string
	}{
		{
			note:    "no constraints yields singletons",
			flags:   []string{"a", "b", "c"},
			classes: [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			note:  "equiv merges two flags",
			flags: []string{"a", "b", "c"},
			constraints: []model.Constraint{
				{Kind: model.KindEquiv, A: "a", B: "b"},
			},
			classes: [][]string{{"a", "b"}, {"c"}},
		},
		{
			note:  "mutual implies is an equivalence",
			flags: []string{"a", "b"},
			constraints: []model.Constraint{
				{Kind: model.KindImplies, A: "a", B: "b"},
				{Kind: model.KindImplies, A: "b", B: "a"},
			},
			classes: [][]string{{"a", "b"}},
		},
		{
			note:  "one-way implies does not merge",
			flags: []string{"a", "b"},
			constraints: []model.Constraint{
				{Kind: model.KindImplies, A: "a", B: "b"},
			},
			classes: [][]string{{"a"}, {"b"}},
		},
		{
			note:  "transitive chain collapses to one class",
			flags: []string{"a", "b", "c", "d"},
			constraints: []model.Constraint{
				{Kind: model.KindEquiv, A: "a", B: "b"},
				{Kind: model.KindEquiv, A: "b", B: "c"},
			},
			classes: [][]string{{"a", "b", "c"}, {"d"}},
		},
		{
			note:  "equiv chained with mutual implies",
			flags: []string{"a", "b", "c"},
			constraints: []model.Constraint{
				{Kind: model.KindEquiv, A: "a", B: "b"},
				{Kind: model.KindImplies, A: "b", B: "c"},
				{Kind: model.KindImplies, A: "c", B: "b"},
			},
			classes: [][]string{{"a", "b", "c"}},
		},
		{
			note:  "members keep declaration order regardless of edge order",
			flags: []string{"x", "y", "z"},
			constraints: []model.Constraint{
				{Kind: model.KindEquiv, A: "z", B: "x"},
			},
			classes: [][]string{{"x", "z"}, {"y"}},
		},
		{
			note:  "mutex and oneof never merge",
			flags: []string{"a", "b"},
			constraints: []model.Constraint{
				{Kind: model.KindMutex, A: "a", B: "b"},
				{Kind: model.KindOneOf, Flags: []string{"a", "b"}},
			},
			classes: [][]string{{"a"}, {"b"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			m := &model.Model{Name: "m", Flags: tc.flags, Constraints: tc.constraints}
			p := equivalence.Reduce(m)

			if diff := cmp.Diff(tc.classes, p.Classes); diff != "" {
				t.Fatalf("partition mismatch (-want +got):\n%s", diff)
			}
			if p.BEff() != len(tc.classes) {
				t.Fatalf("expected B_eff %d, got %d", len(tc.classes), p.BEff())
			}
		})
	}
}

func TestReduceIsDeterministic(t *testing.T) {

	m := &model.Model{
		Name:  "m",
		Flags: []string{"a", "b", "c", "d", "e"},
		Constraints: []model.Constraint{
			{Kind: model.KindEquiv, A: "e", B: "a"},
			{Kind: model.KindEquiv, A: "d", B: "b"},
		},
	}

	first := equivalence.Reduce(m)
	for range 10 {
		if diff := cmp.Diff(first.Classes, equivalence.Reduce(m).Classes); diff != "" {
			t.Fatalf("partition varied between runs:\n%s", diff)
		}
	}
}
