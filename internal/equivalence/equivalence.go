// Package equivalence collapses flags that the constraints force to be
// identical: EQUIV(a,b) edges and pairs of mutually-implying IMPLIES edges.
// The resulting partition is purely advisory. It reports the compressed
// complexity B_eff and never alters enumeration, which always runs over the
// full raw bit width.
package equivalence

import (
	"cmp"
	"slices"

	"github.com/dotk-io/acbp/internal/model"
)

// Partition groups flags into equivalence classes. Classes appear in the
// order of their first member's declaration; members keep declaration order.
type Partition struct {
	Classes [][]string
}

// BEff returns the number of equivalence classes.
func (p Partition) BEff() int {
	return len(p.Classes)
}

// Reduce computes the equivalence partition of the model's flags.
// Unconstrained flags form singleton classes.
func Reduce(m *model.Model) Partition {
	adj := make(map[string][]string, len(m.Flags))
	addEdge := func(a, b string) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}

	implies := make(map[string]map[string]struct{})
	for _, c := range m.Constraints {
		switch c.Kind {
		case model.KindEquiv:
			addEdge(c.A, c.B)
		case model.KindImplies:
			if implies[c.A] == nil {
				implies[c.A] = make(map[string]struct{})
			}
			implies[c.A][c.B] = struct{}{}
		}
	}

	// A pair of mutual IMPLIES edges is an equivalence in disguise.
	for a, bs := range implies {
		for b := range bs {
			if _, ok := implies[b][a]; ok && a < b {
				addEdge(a, b)
			}
		}
	}

	seen := make(map[string]struct{}, len(m.Flags))
	declIndex := m.BitPos()

	var classes [][]string
	for _, f := range m.Flags {
		if _, ok := seen[f]; ok {
			continue
		}

		var members []string
		stack := []string{f}
		for len(stack) > 0 {
			x := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[x]; ok {
				continue
			}
			seen[x] = struct{}{}
			members = append(members, x)
			stack = append(stack, adj[x]...)
		}

		slices.SortFunc(members, func(a, b string) int {
			return cmp.Compare(declIndex[a], declIndex[b])
		})
		classes = append(classes, members)
	}

	return Partition{Classes: classes}
}
