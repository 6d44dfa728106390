package model

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Kind discriminates the closed set of constraint variants. Documents use a
// case-insensitive type tag; anything outside this set is rejected at load.
type Kind string

const (
	KindImplies     Kind = "IMPLIES"
	KindEquiv       Kind = "EQUIV"
	KindMutex       Kind = "MUTEX"
	KindOneOf       Kind = "ONEOF"
	KindForbidWhen  Kind = "FORBID_WHEN"
	KindForbidIfSQL Kind = "FORBID_IF_SQL"
)

// BitOnly reports whether the constraint is checkable from mask bits alone.
func (k Kind) BitOnly() bool {
	switch k {
	case KindImplies, KindEquiv, KindMutex, KindOneOf:
		return true
	}
	return false
}

// Constraint is the closed tagged variant. Only the fields belonging to the
// kind are populated; decoding enforces that per-kind required fields are
// present and that the type tag is known.
type Constraint struct {
	Kind      Kind     `json:"type"`
	A         string   `json:"a,omitempty"`
	B         string   `json:"b,omitempty"`
	Flags     []string `json:"flags,omitempty"`
	IfFlag    string   `json:"if_flag,omitempty"`
	When      When     `json:"when,omitempty"`
	Condition string   `json:"condition,omitempty"`
}

// When is the ordered category→values condition of a FORBID_WHEN constraint.
// Scalar entries and single-element lists carry different SQL (equality vs.
// IN) and different rule labels, so the distinction is preserved.
type When []WhenTerm

type WhenTerm struct {
	Category string
	Values   []string
	Scalar   bool
}

func (c *Constraint) UnmarshalJSON(bs []byte) error {
	type rawConstraint Constraint // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawConstraint

	if err := json.Unmarshal(bs, &raw); err != nil {
		return err
	}

	*c = Constraint(raw)
	return c.normalize()
}

func (c *Constraint) UnmarshalYAML(bs []byte) error {
	type rawConstraint Constraint
	var raw rawConstraint

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return err
	}

	*c = Constraint(raw)
	return c.normalize()
}

// normalize upper-cases the type tag and enforces the per-kind shape.
func (c *Constraint) normalize() error {
	c.Kind = Kind(strings.ToUpper(string(c.Kind)))

	switch c.Kind {
	case "":
		return formatErrorf("constraint: missing required field 'type'")
	case KindImplies, KindEquiv, KindMutex:
		if c.A == "" || c.B == "" {
			return formatErrorf("%s constraint: fields 'a' and 'b' are required", c.Kind)
		}
	case KindOneOf:
		if len(c.Flags) == 0 {
			return formatErrorf("ONEOF constraint: field 'flags' must name at least one flag")
		}
	case KindForbidWhen:
		if c.IfFlag == "" {
			return formatErrorf("FORBID_WHEN constraint: field 'if_flag' is required")
		}
		if len(c.When) == 0 {
			return formatErrorf("FORBID_WHEN constraint: field 'when' must name at least one category")
		}
	case KindForbidIfSQL:
		if c.IfFlag == "" {
			return formatErrorf("FORBID_IF_SQL constraint: field 'if_flag' is required")
		}
		if c.Condition == "" {
			return formatErrorf("FORBID_IF_SQL constraint: field 'condition' is required")
		}
	default:
		return formatErrorf("unknown constraint type %q", c.Kind)
	}
	return nil
}

// validateAgainst checks the references a constraint makes into the model.
func (c *Constraint) validateAgainst(m *Model) error {
	flagDeclared := func(f string) bool { return slices.Contains(m.Flags, f) }

	switch c.Kind {
	case KindImplies, KindEquiv, KindMutex:
		for _, f := range []string{c.A, c.B} {
			if !flagDeclared(f) {
				return formatErrorf("%s references undeclared flag %q", c.Kind, f)
			}
		}
	case KindOneOf:
		for _, f := range c.Flags {
			if !flagDeclared(f) {
				return formatErrorf("ONEOF references undeclared flag %q", f)
			}
		}
	case KindForbidWhen:
		if !flagDeclared(c.IfFlag) {
			return formatErrorf("FORBID_WHEN references undeclared flag %q", c.IfFlag)
		}
		for _, term := range c.When {
			cat, ok := m.Category(term.Category)
			if !ok {
				return formatErrorf("FORBID_WHEN references undeclared category %q", term.Category)
			}
			for _, v := range term.Values {
				if !slices.Contains(cat.Values, v) {
					return formatErrorf("FORBID_WHEN references undeclared value %q for category %q", v, term.Category)
				}
			}
		}
	case KindForbidIfSQL:
		// The condition is opaque predicate text, passed through verbatim.
		// This is an explicit trust boundary; only the flag is checked.
		if !flagDeclared(c.IfFlag) {
			return formatErrorf("FORBID_IF_SQL references undeclared flag %q", c.IfFlag)
		}
	}
	return nil
}

func (w *When) UnmarshalJSON(bs []byte) error {
	pairs, err := orderedJSONObject(bs)
	if err != nil {
		return formatErrorf("when: %v", err)
	}

	out := make(When, 0, len(pairs))
	for _, p := range pairs {
		term, err := whenTerm(p.key, p.value)
		if err != nil {
			return err
		}
		out = append(out, term)
	}
	*w = out
	return nil
}

func (w *When) UnmarshalYAML(bs []byte) error {
	items, err := orderedYAMLObject(bs)
	if err != nil {
		return formatErrorf("when: %v", err)
	}

	out := make(When, 0, len(items))
	for _, p := range items {
		term, err := whenTerm(p.key, p.value)
		if err != nil {
			return err
		}
		out = append(out, term)
	}
	*w = out
	return nil
}

func whenTerm(category string, value any) (WhenTerm, error) {
	switch v := value.(type) {
	case string:
		return WhenTerm{Category: category, Values: []string{v}, Scalar: true}, nil
	default:
		values, err := stringList(value)
		if err != nil {
			return WhenTerm{}, formatErrorf("when entry %q: %v", category, err)
		}
		return WhenTerm{Category: category, Values: values}, nil
	}
}

func (w When) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(w))
	for _, term := range w {
		if term.Scalar {
			out[term.Category] = term.Values[0]
		} else {
			out[term.Category] = term.Values
		}
	}
	return json.Marshal(out)
}

func asFormatError(err error, target **FormatError) bool {
	return errors.As(err, target)
}
