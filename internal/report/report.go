// Package report renders the deterministic textual compile report.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dotk-io/acbp/internal/history"
	"github.com/dotk-io/acbp/internal/pipeline"
)

// previewMasks caps how many enumerated masks the report shows.
const previewMasks = 16

// Write renders the report for one compile. Output depends only on the
// result, so compiling an unchanged model twice prints identical reports.
func Write(w io.Writer, res *pipeline.Result, resultsDir string) error {
	m := res.Model

	fmt.Fprintf(w, "Model: %s\n", m.Name)
	fmt.Fprintf(w, "  B (flags):       %d\n", m.B())
	fmt.Fprintf(w, "  B_eff (reduced): %d\n", res.Partition.BEff())
	fmt.Fprintf(w, "  n_eff (cats):    %d\n", m.NEff())
	fmt.Fprintf(w, "  Complexity:      2^%d * %d\n", res.Partition.BEff(), m.NEff())

	if err := writeFlagTable(w, res); err != nil {
		return err
	}

	enum := res.Enumeration
	switch {
	case enum.Skipped:
		fmt.Fprintf(w, "  Enumeration skipped (B>%d).\n", m.LimitBits())
	case enum.Total > 0:
		fmt.Fprintf(w, "  Valid masks enumerated (bit-only): %d / %d\n", len(enum.Masks), enum.Total)
		fmt.Fprintf(w, "  First few: %s\n", maskPreview(enum.Masks))
	}

	if est := res.Estimate; est != nil {
		prev := make([]string, len(est.Prevalence))
		for i, p := range est.Prevalence {
			prev[i] = fmt.Sprintf("%s=%.1f%%", p.Flag, p.Fraction*100)
		}

		fmt.Fprintf(w, "\n=== Sanity estimates (uniform, independent categories; FORBID_WHEN only) ===\n")
		fmt.Fprintf(w, "  Flag prevalence among valid masks: %s\n", strings.Join(prev, ", "))
		fmt.Fprintf(w, "  Theoretical max rows (bit-only):   %s\n", comma(est.TheoreticalMax))
		fmt.Fprintf(w, "  Est. remaining rows (cat rules):   %s  (~%.1f%% of max)\n", comma(est.EstRemaining), est.PctRemaining)
		fmt.Fprintf(w, "  Est. pruned rows (cat rules):      %s\n", comma(est.EstPruned))
		if len(est.Notes) > 0 {
			fmt.Fprintf(w, "  note: %s\n", strings.Join(est.Notes, " "))
		}

		writeActuals(w, res, resultsDir)
	}

	return nil
}

func writeFlagTable(w io.Writer, res *pipeline.Result) error {
	classOf := make(map[string]int)
	for i, class := range res.Partition.Classes {
		for _, f := range class {
			classOf[f] = i
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header("Flag", "Bit", "Class")
	for bit, f := range res.Model.Flags {
		if err := table.Append([]string{f, strconv.Itoa(bit), strconv.Itoa(classOf[f])}); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeActuals(w io.Writer, res *pipeline.Result, resultsDir string) {
	sm := res.History
	if sm == nil || sm.DecisionRows == nil || res.Estimate == nil {
		return
	}

	actual := *sm.DecisionRows
	max := res.Estimate.TheoreticalMax
	pct := 0.0
	if max > 0 {
		pct = float64(actual) / float64(max) * 100
	}

	fmt.Fprintf(w, "\n=== Actuals (latest summary) ===\n")
	fmt.Fprintf(w, "  Decision rows: %s  (~%.1f%% of theoretical; pruned %s)\n", comma(actual), pct, comma(max-actual))
	if sm.PresentRows != nil {
		fmt.Fprintf(w, "  Present-only rows: %s\n", comma(*sm.PresentRows))
	}
	if sm.DataRows != nil {
		fmt.Fprintf(w, "  Data rows: %s\n", comma(*sm.DataRows))
	}
	fmt.Fprintf(w, "  Source: %s\n", filepath.Join(resultsDir, sm.Timestamp, res.Model.Name, history.SummaryFile))
}

func maskPreview(masks []uint64) string {
	n := min(len(masks), previewMasks)
	parts := make([]string, n)
	for i := range n {
		parts[i] = strconv.FormatUint(masks[i], 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// comma renders n with thousands separators, e.g. 1234567 -> 1,234,567.
func comma(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
