package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Internal representation of ACBP model documents. A model declares boolean
// flags (bit positions), categorical dimensions and cross-constraints; the
// compiler turns it into an enumerated mask set, a SQL artifact and a sanity
// estimate.

// DefaultEnumerationLimitBits bounds brute-force enumeration at 2^22
// predicate evaluations unless the document says otherwise.
const DefaultEnumerationLimitBits = 22

// MaxEnumerationLimitBits is the hard ceiling accepted from documents.
const MaxEnumerationLimitBits = 30

// MaxFlags keeps every mask representable as a non-negative SQL bigint.
const MaxFlags = 63

// FormatError reports a structurally invalid model document: missing required
// fields, malformed constraints, references to undeclared flags or categories,
// or unknown constraint types. The compiler aborts on it before any artifact
// is written.
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string {
	return e.msg
}

func formatErrorf(format string, args ...any) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

// Model is the top-level document structure.
type Model struct {
	Name                 string       `json:"name"`
	Flags                []string     `json:"flags"`
	Categories           Categories   `json:"categories,omitempty"`
	Constraints          []Constraint `json:"constraints,omitempty"`
	EnumerationLimitBits int          `json:"enumeration_limit_bits,omitempty" minimum:"0" maximum:"30"`

	_ struct{} `additionalProperties:"false"`
}

// Category is one categorical dimension with a closed, ordered value set.
type Category struct {
	Name   string
	Values []string
}

// Categories preserves declaration order; the order fixes generated column
// order and function signatures, so it must survive decoding.
type Categories []Category

// B returns the raw flag count.
func (m *Model) B() int {
	return len(m.Flags)
}

// MaxMask returns 2^B - 1.
func (m *Model) MaxMask() uint64 {
	return (uint64(1) << m.B()) - 1
}

// BitPos maps each flag name to its bit position (declaration index).
func (m *Model) BitPos() map[string]int {
	pos := make(map[string]int, len(m.Flags))
	for i, f := range m.Flags {
		pos[f] = i
	}
	return pos
}

// LimitBits returns the enumeration limit, defaulting when the document left
// it unset.
func (m *Model) LimitBits() int {
	if m.EnumerationLimitBits == 0 {
		return DefaultEnumerationLimitBits
	}
	return m.EnumerationLimitBits
}

// NEff returns the product of category cardinalities (1 for no categories).
func (m *Model) NEff() int64 {
	n := int64(1)
	for _, c := range m.Categories {
		if len(c.Values) > 0 {
			n *= int64(len(c.Values))
		}
	}
	return n
}

func (m *Model) Category(name string) (Category, bool) {
	for _, c := range m.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Validate checks the cross-referential invariants that the JSON schema
// cannot express: unique flag names, declared flag/category references, and
// sane enumeration limits.
func (m *Model) Validate() error {
	if m.Name == "" {
		return formatErrorf("model: missing required field 'name'")
	}
	if strings.Contains(m.Name, `"`) {
		return formatErrorf("model %q: name must not contain double quotes", m.Name)
	}
	if len(m.Flags) == 0 {
		return formatErrorf("model %q: missing required field 'flags'", m.Name)
	}
	if len(m.Flags) > MaxFlags {
		return formatErrorf("model %q: %d flags exceed the maximum of %d", m.Name, len(m.Flags), MaxFlags)
	}

	seen := make(map[string]struct{}, len(m.Flags))
	for _, f := range m.Flags {
		if f == "" {
			return formatErrorf("model %q: empty flag name", m.Name)
		}
		if _, ok := seen[f]; ok {
			return formatErrorf("model %q: duplicate flag %q", m.Name, f)
		}
		seen[f] = struct{}{}
	}

	catSeen := make(map[string]struct{}, len(m.Categories))
	for _, c := range m.Categories {
		if c.Name == "" {
			return formatErrorf("model %q: empty category name", m.Name)
		}
		if c.Name == "mask" {
			return formatErrorf("model %q: category name 'mask' collides with the mask column", m.Name)
		}
		if _, ok := catSeen[c.Name]; ok {
			return formatErrorf("model %q: duplicate category %q", m.Name, c.Name)
		}
		catSeen[c.Name] = struct{}{}
		if len(c.Values) == 0 {
			return formatErrorf("model %q: category %q declares no values", m.Name, c.Name)
		}
		if len(c.Values) != len(slices.Compact(slices.Sorted(slices.Values(c.Values)))) {
			return formatErrorf("model %q: category %q has duplicate values", m.Name, c.Name)
		}
	}

	if m.EnumerationLimitBits < 0 || m.EnumerationLimitBits > MaxEnumerationLimitBits {
		return formatErrorf("model %q: enumeration_limit_bits %d out of range [1,%d]",
			m.Name, m.EnumerationLimitBits, MaxEnumerationLimitBits)
	}

	for i := range m.Constraints {
		if err := m.Constraints[i].validateAgainst(m); err != nil {
			return fmt.Errorf("model %q: constraint %d: %w", m.Name, i+1, err)
		}
	}
	return nil
}

// UnmarshalJSON keeps Model decodable by both codecs while routing the
// ordered sub-documents through their own unmarshalers.
func (m *Model) UnmarshalJSON(bs []byte) error {
	type rawModel Model // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawModel

	if err := json.Unmarshal(bs, &raw); err != nil {
		return err
	}

	*m = Model(raw)
	return nil
}

func (m *Model) UnmarshalYAML(bs []byte) error {
	type rawModel Model
	var raw rawModel

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return err
	}

	*m = Model(raw)
	return nil
}

func (c *Categories) UnmarshalJSON(bs []byte) error {
	pairs, err := orderedJSONObject(bs)
	if err != nil {
		return formatErrorf("categories: %v", err)
	}

	out := make(Categories, 0, len(pairs))
	for _, p := range pairs {
		values, err := stringList(p.value)
		if err != nil {
			return formatErrorf("category %q: %v", p.key, err)
		}
		out = append(out, Category{Name: p.key, Values: values})
	}
	*c = out
	return nil
}

func (c *Categories) UnmarshalYAML(bs []byte) error {
	items, err := orderedYAMLObject(bs)
	if err != nil {
		return formatErrorf("categories: %v", err)
	}

	out := make(Categories, 0, len(items))
	for _, p := range items {
		values, err := stringList(p.value)
		if err != nil {
			return formatErrorf("category %q: %v", p.key, err)
		}
		out = append(out, Category{Name: p.key, Values: values})
	}
	*c = out
	return nil
}

func (c Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cat := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cat.Name)
		if err != nil {
			return nil, err
		}
		values, err := json.Marshal(cat.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(values)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Load reads, schema-validates and decodes a model document. YAML and JSON
// documents are both accepted; the extension picks the codec.
func Load(path string) (*Model, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bs, strings.EqualFold(filepath.Ext(path), ".json"))
}

// Parse decodes and validates a model document from raw bytes.
func Parse(bs []byte, isJSON bool) (*Model, error) {
	if err := ValidateDocument(bs); err != nil {
		return nil, &FormatError{msg: err.Error()}
	}

	var m Model
	if isJSON {
		if err := json.Unmarshal(bs, &m); err != nil {
			return nil, wrapFormat(err)
		}
	} else {
		if err := yaml.Unmarshal(bs, &m); err != nil {
			return nil, wrapFormat(err)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func wrapFormat(err error) error {
	var fe *FormatError
	if ok := asFormatError(err, &fe); ok {
		return fe
	}
	return &FormatError{msg: err.Error()}
}
