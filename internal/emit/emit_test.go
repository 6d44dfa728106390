package emit_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotk-io/acbp/internal/emit"
	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/rules"
)

const doc = `
name: checkout
flags: [promo, vip, beta]
categories:
  region: [eu, us]
  tier: [basic, pro]
constraints:
  - type: IMPLIES
    a: vip
    b: promo
  - type: FORBID_WHEN
    if_flag: beta
    when:
      region: eu
  - type: FORBID_IF_SQL
    if_flag: promo
    condition: "tier = 'basic'"
`

func compile(t *testing.T, doc string) *rules.Compiled {
	t.Helper()
	m, err := model.Parse([]byte(doc), false)
	if err != nil {
		t.Fatal(err)
	}
	return rules.Compile(m)
}

func TestSQLIsByteStable(t *testing.T) {

	c := compile(t, doc)
	first := emit.SQL(c)
	for range 5 {
		if emit.SQL(c) != first {
			t.Fatal("regenerated artifact differs from the first rendering")
		}
	}

	// The same holds across independent loads of the same document.
	if emit.SQL(compile(t, doc)) != first {
		t.Fatal("artifact differs across loads of an unchanged document")
	}
}

func TestSQLNames(t *testing.T) {

	sql := emit.SQL(compile(t, doc))

	for _, want := range []string{
		`CREATE OR REPLACE FUNCTION acbp_popcount(x bigint)`,
		`CREATE OR REPLACE VIEW "checkout_categories" AS`,
		`CREATE OR REPLACE VIEW "checkout_decision_space" AS`,
		`CREATE OR REPLACE VIEW "checkout_valid_masks" AS`,
		`CREATE OR REPLACE VIEW "checkout_explain" AS`,
		`CREATE OR REPLACE FUNCTION "acbp_is_valid__checkout"(mask bigint)`,
		`CREATE OR REPLACE FUNCTION "acbp_explain_rules__checkout"(mask bigint)`,
		`CREATE OR REPLACE FUNCTION "acbp_is_valid__checkout_cats"(mask bigint, region text, tier text)`,
		`CREATE OR REPLACE FUNCTION "acbp_explain__checkout"(mask bigint, region text, tier text)`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("artifact lacks %q", want)
		}
	}

	// Every definition replaces; none may merely create.
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(line, "CREATE ") && !strings.HasPrefix(line, "CREATE OR REPLACE ") {
			t.Errorf("non-idempotent definition: %s", line)
		}
	}

	// 3 flags means masks 0..7.
	if !strings.Contains(sql, "generate_series(0, 7)") {
		t.Error("decision space does not cover the full mask range")
	}

	// Flag comment header documents bit positions in declaration order.
	if !strings.Contains(sql, ": bit 0") || !strings.Contains(sql, ": bit 2") {
		t.Error("missing flag-to-bit header comments")
	}
}

func TestSQLOmitsCatDefinitionsWithoutCatRules(t *testing.T) {

	sql := emit.SQL(compile(t, `
name: bitsonly
flags: [a, b]
constraints:
  - type: MUTEX
    a: a
    b: b
`))

	if strings.Contains(sql, "acbp_is_valid__bitsonly_cats") {
		t.Error("category validator emitted for a model without category rules")
	}
	if strings.Contains(sql, "acbp_explain__bitsonly") {
		t.Error("category explainer emitted for a model without category rules")
	}
	if !strings.Contains(sql, "cats AS (SELECT 1 AS dummy)") {
		t.Error("missing placeholder categories CTE")
	}
}

func TestSQLEscapesLiterals(t *testing.T) {

	sql := emit.SQL(compile(t, `
name: quoted
flags: [f]
categories:
  mood: ["it's fine", "ok"]
constraints:
  - type: FORBID_WHEN
    if_flag: f
    when:
      mood: "it's fine"
`))

	if !strings.Contains(sql, "'it''s fine'") {
		t.Error("single quotes in category values must be doubled")
	}
	if strings.Contains(sql, "'it's fine'") {
		t.Error("unescaped single quote in artifact")
	}
}

func TestWriteFile(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "out.sql")

	if err := emit.WriteFile(path, "SELECT 1;\n"); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "SELECT 1;\n" {
		t.Fatalf("unexpected content: %q", bs)
	}

	// Overwrite must replace cleanly and leave no temp files behind.
	if err := emit.WriteFile(path, "SELECT 2;\n"); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact in %s, found %d entries", dir, len(entries))
	}
}

func TestWriteFileMissingDirectory(t *testing.T) {

	err := emit.WriteFile(filepath.Join(t.TempDir(), "no", "such", "dir", "out.sql"), "SELECT 1;")
	if err == nil {
		t.Fatal("expected error")
	}

	var we *emit.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %T", err)
	}
}
