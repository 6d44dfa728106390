package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/pipeline"
	"github.com/dotk-io/acbp/internal/report"
)

const doc = `
name: checkout
flags: [promo, vip]
categories:
  region: [eu, us]
constraints:
  - type: EQUIV
    a: promo
    b: vip
  - type: FORBID_WHEN
    if_flag: promo
    when:
      region: eu
`

func run(t *testing.T, opts pipeline.Options) *pipeline.Result {
	t.Helper()
	m, err := model.Parse([]byte(doc), false)
	if err != nil {
		t.Fatal(err)
	}
	res, err := pipeline.Run(t.Context(), m, opts)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestWrite(t *testing.T) {

	res := run(t, pipeline.Options{Enumerate: true})

	var buf bytes.Buffer
	if err := report.Write(&buf, res, ""); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Model: checkout",
		"B (flags):       2",
		"B_eff (reduced): 1",
		"n_eff (cats):    2",
		"Complexity:      2^1 * 2",
		"Valid masks enumerated (bit-only): 2 / 4",
		"First few: [0, 3]",
		"=== Sanity estimates",
		"Flag prevalence among valid masks: promo=50.0%, vip=50.0%",
		"Theoretical max rows (bit-only):   4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report lacks %q\n%s", want, out)
		}
	}
}

func TestWriteSkippedEnumeration(t *testing.T) {

	m, err := model.Parse([]byte("name: big\nflags: [a, b, c]\nenumeration_limit_bits: 2\n"), false)
	if err != nil {
		t.Fatal(err)
	}
	res, err := pipeline.Run(t.Context(), m, pipeline.Options{Enumerate: true})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, res, ""); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "Enumeration skipped (B>2).") {
		t.Fatalf("missing skip line:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Sanity estimates") {
		t.Fatal("no estimates without enumerated masks")
	}
}

func TestWriteIsDeterministic(t *testing.T) {

	res := run(t, pipeline.Options{Enumerate: true})

	var first bytes.Buffer
	if err := report.Write(&first, res, ""); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		var buf bytes.Buffer
		if err := report.Write(&buf, res, ""); err != nil {
			t.Fatal(err)
		}
		if buf.String() != first.String() {
			t.Fatal("report varied between renders")
		}
	}
}

func TestWriteActuals(t *testing.T) {

	resultsDir := t.TempDir()
	path := filepath.Join(resultsDir, "20250101T000000Z", "checkout")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "summary.csv"),
		[]byte("decision_rows,present_rows\n3,1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res := run(t, pipeline.Options{Enumerate: true, ResultsDir: resultsDir})

	var buf bytes.Buffer
	if err := report.Write(&buf, res, resultsDir); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"=== Actuals (latest summary) ===",
		"Decision rows: 3",
		"Present-only rows: 1",
		filepath.Join(resultsDir, "20250101T000000Z", "checkout", "summary.csv"),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report lacks %q\n%s", want, out)
		}
	}
}
