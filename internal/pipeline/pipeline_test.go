package pipeline_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/pipeline"
)

const doc = `
name: checkout
flags: [promo, vip, beta]
categories:
  region: [eu, us]
constraints:
  - type: IMPLIES
    a: vip
    b: promo
  - type: MUTEX
    a: promo
    b: beta
  - type: FORBID_WHEN
    if_flag: beta
    when:
      region: eu
`

func load(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Parse([]byte(doc), false)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRunWithEnumeration(t *testing.T) {

	res, err := pipeline.Run(t.Context(), load(t), pipeline.Options{Enumerate: true})
	if err != nil {
		t.Fatal(err)
	}

	// vip -> promo and promo/beta mutex over bits promo=1, vip=2, beta=4.
	exp := []uint64{0, 1, 3, 4}
	if diff := cmp.Diff(exp, res.Enumeration.Masks); diff != "" {
		t.Fatalf("masks mismatch (-want +got):\n%s", diff)
	}

	if res.Partition.BEff() != 3 {
		t.Fatalf("expected B_eff 3, got %d", res.Partition.BEff())
	}
	if res.Estimate == nil {
		t.Fatal("expected an estimate for an enumerated model")
	}
	if res.Estimate.TheoreticalMax != int64(len(exp))*2 {
		t.Fatalf("expected max %d, got %d", len(exp)*2, res.Estimate.TheoreticalMax)
	}
	if res.SQL == "" {
		t.Fatal("expected a rendered artifact")
	}
}

func TestRunWithoutEnumeration(t *testing.T) {

	res, err := pipeline.Run(t.Context(), load(t), pipeline.Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res.Enumeration.Total != 0 || res.Enumeration.Masks != nil {
		t.Fatal("enumeration ran although not requested")
	}
	if res.Estimate != nil {
		t.Fatal("estimate requires enumeration")
	}
	if res.SQL == "" {
		t.Fatal("artifact must render without enumeration")
	}
}

func TestRunSkipsLargeModels(t *testing.T) {

	m := load(t)
	m.EnumerationLimitBits = 2 // below B=3

	res, err := pipeline.Run(t.Context(), m, pipeline.Options{Enumerate: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Enumeration.Skipped {
		t.Fatal("expected enumeration skip")
	}
	if res.Estimate != nil {
		t.Fatal("no estimate without enumerated masks")
	}
}

func TestRunIsDeterministic(t *testing.T) {

	first, err := pipeline.Run(t.Context(), load(t), pipeline.Options{Enumerate: true, Workers: 4})
	if err != nil {
		t.Fatal(err)
	}

	for range 5 {
		res, err := pipeline.Run(t.Context(), load(t), pipeline.Options{Enumerate: true, Workers: 2})
		if err != nil {
			t.Fatal(err)
		}
		if res.SQL != first.SQL {
			t.Fatal("artifact varied between runs")
		}
		if diff := cmp.Diff(first.Enumeration.Masks, res.Enumeration.Masks); diff != "" {
			t.Fatalf("masks varied between runs:\n%s", diff)
		}
	}
}
