// Package rules compiles the declared constraints into predicate fragments.
// Every constraint yields a rule label paired with a boolean check; bit-only
// constraints additionally yield an in-process predicate over raw masks, and
// category-aware constraints a predicate over (mask, category assignment)
// tuples. The SQL text rendered here is the single source for the emitted
// validator, explainer and decision-space definitions.
package rules

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/dotk-io/acbp/internal/model"
)

// BitRule is a constraint checkable from mask bits alone.
type BitRule struct {
	Label string
	Eval  func(mask uint64) bool
	sql   func(maskExpr string) string
}

func (r BitRule) SQL(maskExpr string) string {
	return r.sql(maskExpr)
}

// CatRule is a constraint that depends on categorical values in addition to
// bits. Opaque rules carry verbatim SQL predicate text (FORBID_IF_SQL) and
// cannot be evaluated in-process; Eval is nil for them.
type CatRule struct {
	Label  string
	Opaque bool
	IfFlag string
	When   model.When
	Eval   func(mask uint64, assign map[string]string) bool
	sql    func(maskExpr string) string
}

func (r CatRule) SQL(maskExpr string) string {
	return r.sql(maskExpr)
}

// Compiled is the immutable result of constraint compilation.
type Compiled struct {
	Model *model.Model
	Bit   []BitRule
	Cat   []CatRule
}

// Compile translates every constraint of an already-validated model. It never
// fails: unknown constraint types cannot survive loading.
func Compile(m *model.Model) *Compiled {
	pos := m.BitPos()
	c := &Compiled{Model: m}

	for _, con := range m.Constraints {
		switch con.Kind {
		case model.KindImplies:
			pa, pb := pos[con.A], pos[con.B]
			c.Bit = append(c.Bit, BitRule{
				Label: fmt.Sprintf("IMPLIES(%s -> %s)", con.A, con.B),
				Eval: func(mask uint64) bool {
					return !(bit(mask, pa) == 1 && bit(mask, pb) == 0)
				},
				sql: func(maskExpr string) string {
					return fmt.Sprintf("(%s = 0 OR %s = 1)", bitExpr(pa, maskExpr), bitExpr(pb, maskExpr))
				},
			})
		case model.KindEquiv:
			pa, pb := pos[con.A], pos[con.B]
			c.Bit = append(c.Bit, BitRule{
				Label: fmt.Sprintf("EQUIV(%s <-> %s)", con.A, con.B),
				Eval: func(mask uint64) bool {
					return bit(mask, pa) == bit(mask, pb)
				},
				sql: func(maskExpr string) string {
					return fmt.Sprintf("(%s = %s)", bitExpr(pa, maskExpr), bitExpr(pb, maskExpr))
				},
			})
		case model.KindMutex:
			pa, pb := pos[con.A], pos[con.B]
			c.Bit = append(c.Bit, BitRule{
				Label: fmt.Sprintf("MUTEX(%s, %s)", con.A, con.B),
				Eval: func(mask uint64) bool {
					return bit(mask, pa)+bit(mask, pb) <= 1
				},
				sql: func(maskExpr string) string {
					return fmt.Sprintf("(%s + %s <= 1)", bitExpr(pa, maskExpr), bitExpr(pb, maskExpr))
				},
			})
		case model.KindOneOf:
			var selected uint64
			for _, f := range con.Flags {
				selected |= uint64(1) << pos[f]
			}
			c.Bit = append(c.Bit, BitRule{
				Label: fmt.Sprintf("ONEOF(%s)", strings.Join(con.Flags, ", ")),
				Eval: func(mask uint64) bool {
					return bits.OnesCount64(mask&selected) == 1
				},
				sql: func(maskExpr string) string {
					return fmt.Sprintf("(acbp_popcount(%s & %d) = 1)", maskExpr, selected)
				},
			})
		case model.KindForbidWhen:
			p := pos[con.IfFlag]
			when := con.When
			whenSQL := whenConditionSQL(when)
			c.Cat = append(c.Cat, CatRule{
				Label:  fmt.Sprintf("FORBID(%s when %s)", con.IfFlag, formatWhen(when)),
				IfFlag: con.IfFlag,
				When:   when,
				Eval: func(mask uint64, assign map[string]string) bool {
					return !(whenHolds(when, assign) && bit(mask, p) == 1)
				},
				sql: func(maskExpr string) string {
					return fmt.Sprintf("NOT ( (%s) AND (%s = 1) )", whenSQL, bitExpr(p, maskExpr))
				},
			})
		case model.KindForbidIfSQL:
			p := pos[con.IfFlag]
			condition := con.Condition
			c.Cat = append(c.Cat, CatRule{
				Label:  fmt.Sprintf("FORBID(%s when SQL: %s)", con.IfFlag, condition),
				IfFlag: con.IfFlag,
				Opaque: true,
				sql: func(maskExpr string) string {
					return fmt.Sprintf("NOT ( (%s) AND (%s = 1) )", condition, bitExpr(p, maskExpr))
				},
			})
		}
	}
	return c
}

// HasCatRules reports whether any category-aware validator/explainer must be
// emitted.
func (c *Compiled) HasCatRules() bool {
	return len(c.Cat) > 0
}

// BitPredicateSQL renders the conjunction of all bit-only fragments, or TRUE
// when there are none.
func (c *Compiled) BitPredicateSQL(maskExpr string) string {
	if len(c.Bit) == 0 {
		return "TRUE"
	}
	preds := make([]string, len(c.Bit))
	for i, r := range c.Bit {
		preds[i] = r.SQL(maskExpr)
	}
	return strings.Join(preds, " AND\n    ")
}

// CatPredicatesSQL renders the category-aware fragments in declaration order.
func (c *Compiled) CatPredicatesSQL(maskExpr string) []string {
	preds := make([]string, len(c.Cat))
	for i, r := range c.Cat {
		preds[i] = r.SQL(maskExpr)
	}
	return preds
}

// BitPredicate returns the aggregate in-process bit-only predicate.
func (c *Compiled) BitPredicate() func(mask uint64) bool {
	rules := c.Bit
	return func(mask uint64) bool {
		for _, r := range rules {
			if !r.Eval(mask) {
				return false
			}
		}
		return true
	}
}

// EvalCats evaluates the aggregate category-aware predicate (bit-only AND
// checkable category rules). Opaque rules are skipped; the second return
// value reports how many were.
func (c *Compiled) EvalCats(mask uint64, assign map[string]string) (bool, int) {
	skipped := 0
	ok := c.BitPredicate()(mask)
	for _, r := range c.Cat {
		if r.Opaque {
			skipped++
			continue
		}
		if !r.Eval(mask, assign) {
			ok = false
		}
	}
	return ok, skipped
}

// Finding is one (rule, check) row of the explanation list.
type Finding struct {
	Rule      string
	OK        bool
	Checkable bool
}

// Findings explains a (mask, assignment) tuple rule by rule: bit-only rules
// first, then category rules, each group in declaration order, matching the
// generated SQL explainer.
func (c *Compiled) Findings(mask uint64, assign map[string]string) []Finding {
	out := make([]Finding, 0, len(c.Bit)+len(c.Cat))
	for _, r := range c.Bit {
		out = append(out, Finding{Rule: r.Label, OK: r.Eval(mask), Checkable: true})
	}
	for _, r := range c.Cat {
		if r.Opaque {
			out = append(out, Finding{Rule: r.Label})
			continue
		}
		out = append(out, Finding{Rule: r.Label, OK: r.Eval(mask, assign), Checkable: true})
	}
	return out
}

func bit(mask uint64, p int) int {
	return int((mask >> p) & 1)
}

func bitExpr(p int, maskExpr string) string {
	return fmt.Sprintf("(((%s >> %d) & 1))", maskExpr, p)
}

// QuoteLiteral escapes a string for use as a SQL text literal.
func QuoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func whenHolds(when model.When, assign map[string]string) bool {
	for _, term := range when {
		v, ok := assign[term.Category]
		if !ok {
			return false
		}
		found := false
		for _, accept := range term.Values {
			if v == accept {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// whenConditionSQL renders the when-mapping as a conjunction of equality or
// set-membership checks on the category columns.
func whenConditionSQL(when model.When) string {
	if len(when) == 0 {
		return "TRUE"
	}
	conds := make([]string, len(when))
	for i, term := range when {
		if term.Scalar {
			conds[i] = fmt.Sprintf("(%s = '%s')", term.Category, QuoteLiteral(term.Values[0]))
		} else {
			quoted := make([]string, len(term.Values))
			for j, v := range term.Values {
				quoted[j] = "'" + QuoteLiteral(v) + "'"
			}
			conds[i] = fmt.Sprintf("(%s IN (%s))", term.Category, strings.Join(quoted, ", "))
		}
	}
	return strings.Join(conds, " AND ")
}

// formatWhen renders a when-mapping for rule labels: scalar entries as k=v,
// sets as k={v1|v2}.
func formatWhen(when model.When) string {
	parts := make([]string, len(when))
	for i, term := range when {
		if term.Scalar {
			parts[i] = fmt.Sprintf("%s=%s", term.Category, term.Values[0])
		} else {
			parts[i] = fmt.Sprintf("%s={%s}", term.Category, strings.Join(term.Values, "|"))
		}
	}
	return strings.Join(parts, ", ")
}
