package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotk-io/acbp/internal/cmd"
)

const doc = `
name: checkout
flags: [promo, vip]
constraints:
  - type: IMPLIES
    a: vip
    b: promo
`

func writeModel(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.Root()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCompilePrintsReportAndSQL(t *testing.T) {

	path := writeModel(t, t.TempDir(), "checkout.yaml")

	out, err := execute(t, "compile", "--enumerate", path)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Model: checkout",
		"Valid masks enumerated (bit-only): 3 / 4",
		`CREATE OR REPLACE VIEW "checkout_decision_space"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q\n%s", want, out)
		}
	}
}

func TestCompileWritesArtifact(t *testing.T) {

	dir := t.TempDir()
	path := writeModel(t, dir, "checkout.yaml")
	artifact := filepath.Join(dir, "checkout.sql")

	if _, err := execute(t, "compile", "-o", artifact, path); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bs), `"acbp_is_valid__checkout"`) {
		t.Fatalf("unexpected artifact:\n%s", bs)
	}

	// A fresh artifact is in sync with its model.
	if _, err := execute(t, "compile", "-o", artifact, "--check", path); err != nil {
		t.Fatalf("check on a fresh artifact: %v", err)
	}

	// Drift must fail the check and show a diff.
	if err := os.WriteFile(artifact, append(bs, []byte("-- drift\n")...), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "compile", "-o", artifact, "--check", path)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(out, "-- drift") {
		t.Fatalf("expected a diff naming the drift:\n%s", out)
	}
}

func TestCompileGlob(t *testing.T) {

	dir := t.TempDir()
	writeModel(t, dir, "a.yaml")
	writeModel(t, dir, "b.yaml")

	out, err := execute(t, "compile", filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out, "Model: checkout"); got != 2 {
		t.Fatalf("expected 2 reports, got %d\n%s", got, out)
	}
}

func TestCompileBadModel(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("name: bad\nflags: [a]\nconstraints:\n  - type: NOPE\n    a: a\n    b: a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "compile", path); err == nil {
		t.Fatal("expected load error for unknown constraint type")
	}
}

func TestExplain(t *testing.T) {

	path := writeModel(t, t.TempDir(), "checkout.yaml")

	// vip without promo violates the implication (vip is bit 1).
	out, err := execute(t, "explain", "--mask", "2", path)
	if err == nil {
		t.Fatal("expected violation error")
	}
	if !strings.Contains(out, "IMPLIES(vip -> promo)") {
		t.Fatalf("expected the failing rule in the output:\n%s", out)
	}

	if _, err := execute(t, "explain", "--mask", "3", path); err != nil {
		t.Fatalf("mask 3 satisfies the model: %v", err)
	}

	if _, err := execute(t, "explain", "--mask", "9", path); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
