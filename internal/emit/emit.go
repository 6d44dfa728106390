// Package emit renders a compiled model into a self-contained batch of
// Postgres definitions. Every definition is CREATE OR REPLACE under a name
// derived deterministically from the model name, so reapplying the batch
// replaces prior definitions instead of duplicating them. Rendering walks
// flags, categories and constraints strictly in declaration order; an
// unchanged model always produces byte-identical output.
package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotk-io/acbp/internal/rules"
)

// WriteError reports a failure writing the output artifact.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SQL renders the full artifact batch.
func SQL(c *rules.Compiled) string {
	m := c.Model
	name := m.Name
	pos := m.BitPos()

	var b strings.Builder

	b.WriteString(fmt.Sprintf("-- ACBP Postgres SQL for model: %s\n-- Flags:\n", name))
	for _, f := range m.Flags {
		b.WriteString(fmt.Sprintf("-- %24s : bit %d\n", f, pos[f]))
	}

	b.WriteString("\n-- === ACBP helpers (idempotent) ===\n" +
		"CREATE OR REPLACE FUNCTION acbp_popcount(x bigint)\n" +
		"RETURNS int\n" +
		"LANGUAGE sql IMMUTABLE STRICT AS $$\n" +
		"  SELECT length(replace((x)::bit(64)::text, '0',''));\n" +
		"$$;\n")

	catsCTE := categoriesCTE(c)
	haveCats := len(m.Categories) > 0

	b.WriteString(fmt.Sprintf("\n-- === Categories for %s ===\n", name))
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE VIEW \"%s_categories\" AS\n", name))
	b.WriteString(fmt.Sprintf("WITH %s\nSELECT * FROM cats;\n", catsCTE))

	bitPredQualified := c.BitPredicateSQL("m.mask")
	catPredsQualified := c.CatPredicatesSQL("m.mask")
	fullPred := "(" + bitPredQualified + ")"
	if len(catPredsQualified) > 0 {
		fullPred += " AND (\n    " + strings.Join(catPredsQualified, " AND\n    ") + "\n  )"
	}

	b.WriteString(fmt.Sprintf("\n-- === Decision space for %s (PRUNED by bit + category rules) ===\n", name))
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE VIEW \"%s_decision_space\" AS\n", name))
	b.WriteString("WITH masks AS (\n")
	b.WriteString(fmt.Sprintf("  SELECT gs::bigint AS mask FROM generate_series(0, %d) gs\n", m.MaxMask()))
	b.WriteString("),\n")
	b.WriteString(catsCTE + "\n")
	if haveCats {
		b.WriteString("SELECT m.mask, c.*\nFROM masks m\nCROSS JOIN cats c\n")
	} else {
		b.WriteString("SELECT m.mask\nFROM masks m\n\n")
	}
	b.WriteString(fmt.Sprintf("WHERE\n  %s\n;\n", fullPred))

	b.WriteString(fmt.Sprintf("\n-- === Valid masks for %s (derived from PRUNED decision space) ===\n", name))
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE VIEW \"%s_valid_masks\" AS\n", name))
	b.WriteString(fmt.Sprintf("SELECT DISTINCT mask FROM \"%s_decision_space\";\n", name))

	bitCols := make([]string, len(m.Flags))
	for i, f := range m.Flags {
		bitCols[i] = fmt.Sprintf("((((mask >> %d) & 1))) AS \"%s\"", pos[f], f)
	}
	b.WriteString(fmt.Sprintf("\n-- === Bit-explained view for %s ===\n", name))
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE VIEW \"%s_explain\" AS\n", name))
	b.WriteString("SELECT\n  mask,\n  " + strings.Join(bitCols, ",\n  ") + "\n")
	b.WriteString(fmt.Sprintf("FROM \"%s_valid_masks\";\n", name))

	bitPred := c.BitPredicateSQL("mask")
	b.WriteString(fmt.Sprintf("\n-- === Validator (bit-only) for %s ===\n", name))
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION \"acbp_is_valid__%s\"(mask bigint)\n", name))
	b.WriteString("RETURNS boolean\nLANGUAGE sql IMMUTABLE STRICT AS $$\n")
	b.WriteString(fmt.Sprintf("  SELECT (%s);\n$$;\n", bitPred))

	bitUnions := bitExplainUnions(c)
	b.WriteString(fmt.Sprintf("\n-- === Bit-only explainer for %s ===\n", name))
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION \"acbp_explain_rules__%s\"(mask bigint)\n", name))
	b.WriteString("RETURNS TABLE(rule text, ok boolean)\nLANGUAGE sql IMMUTABLE STRICT AS $$\n")
	b.WriteString(bitUnions + "\n$$;\n")

	if c.HasCatRules() {
		catSig := make([]string, len(m.Categories))
		for i, cat := range m.Categories {
			catSig[i] = cat.Name + " text"
		}
		sig := strings.Join(catSig, ", ")
		if sig != "" {
			sig = ", " + sig
		}

		catPreds := c.CatPredicatesSQL("mask")
		predicate := strings.Join(append([]string{bitPred}, catPreds...), " AND ")

		b.WriteString(fmt.Sprintf("\n-- === Category-aware validator for %s ===\n", name))
		b.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION \"acbp_is_valid__%s_cats\"(mask bigint%s)\n", name, sig))
		b.WriteString("RETURNS boolean\nLANGUAGE sql IMMUTABLE STRICT AS $$\n")
		b.WriteString(fmt.Sprintf("  SELECT (%s);\n$$;\n", predicate))

		b.WriteString(fmt.Sprintf("\n-- === Category-aware explainer for %s ===\n", name))
		b.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION \"acbp_explain__%s\"(mask bigint%s)\n", name, sig))
		b.WriteString("RETURNS TABLE(rule text, ok boolean)\nLANGUAGE sql IMMUTABLE STRICT AS $$\n")
		b.WriteString("WITH bit_rules AS (\n" + bitUnions + "\n), cat_rules AS (\n" + catExplainUnions(c) + "\n)\n")
		b.WriteString("SELECT * FROM bit_rules\nUNION ALL\nSELECT * FROM cat_rules;\n$$;\n")
	}

	return b.String()
}

// WriteFile writes the artifact all-or-nothing: the batch is rendered fully
// in memory, written to a temporary file and renamed into place, so a failed
// write never leaves a partial artifact behind.
func WriteFile(path, sql string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(sql); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// categoriesCTE renders the cross product of every category's declared
// values, or a single placeholder row when there are none.
func categoriesCTE(c *rules.Compiled) string {
	cats := c.Model.Categories
	if len(cats) == 0 {
		return "cats AS (SELECT 1 AS dummy)"
	}

	parts := make([]string, len(cats))
	for i, cat := range cats {
		quoted := make([]string, len(cat.Values))
		for j, v := range cat.Values {
			quoted[j] = "'" + rules.QuoteLiteral(v) + "'"
		}
		parts[i] = fmt.Sprintf("(SELECT unnest(ARRAY[%s]) AS \"%s\") c%d", strings.Join(quoted, ", "), cat.Name, i+1)
	}
	return "cats AS (\n  SELECT * FROM " + strings.Join(parts, "\n  CROSS JOIN ") + "\n)"
}

func bitExplainUnions(c *rules.Compiled) string {
	if len(c.Bit) == 0 {
		return "SELECT 'TRUE'::text AS rule, TRUE::boolean AS ok"
	}
	unions := make([]string, len(c.Bit))
	for i, r := range c.Bit {
		unions[i] = fmt.Sprintf("SELECT '%s'::text AS rule, (%s)::boolean AS ok",
			rules.QuoteLiteral(r.Label), r.SQL("mask"))
	}
	return strings.Join(unions, "\nUNION ALL\n")
}

func catExplainUnions(c *rules.Compiled) string {
	if len(c.Cat) == 0 {
		return "SELECT 'TRUE'::text, TRUE::boolean"
	}
	unions := make([]string, len(c.Cat))
	for i, r := range c.Cat {
		unions[i] = fmt.Sprintf("SELECT '%s'::text AS rule, (%s)::boolean AS ok",
			rules.QuoteLiteral(r.Label), r.SQL("mask"))
	}
	return strings.Join(unions, "\nUNION ALL\n")
}
