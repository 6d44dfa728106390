// Package estimate predicts the decision-space row count after
// category-dependent pruning without materializing the cross product. The
// estimate assumes uniform, independent categories and only decomposes
// FORBID_WHEN rules; FORBID_IF_SQL conditions are opaque text and are
// excluded, which is reported rather than hidden. Purely advisory: nothing
// downstream gates on it.
package estimate

import (
	"fmt"
	"math"
	"strings"

	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/rules"
)

type FlagPrevalence struct {
	Flag     string
	Fraction float64
}

type Estimate struct {
	Prevalence       []FlagPrevalence
	TheoreticalMax   int64
	EstRemaining     int64
	EstPruned        int64
	PctRemaining     float64
	Notes            []string
	ExcludedSQLRules int
}

// Compute derives the estimate from the bit-only valid masks.
func Compute(m *model.Model, compiled *rules.Compiled, validMasks []uint64) Estimate {
	v := int64(len(validMasks))
	theoreticalMax := v * m.NEff()

	pos := m.BitPos()
	prevalence := make([]FlagPrevalence, len(m.Flags))
	byFlag := make(map[string]float64, len(m.Flags))
	for i, f := range m.Flags {
		frac := 0.0
		if v > 0 {
			set := 0
			for _, mask := range validMasks {
				set += int((mask >> pos[f]) & 1)
			}
			frac = float64(set) / float64(v)
		}
		prevalence[i] = FlagPrevalence{Flag: f, Fraction: frac}
		byFlag[f] = frac
	}

	// keep_probability = Π(1 - prevalence * condition_fraction), each factor
	// clamped to [0,1], so est_remaining can never leave [0, theoretical_max].
	keep := 1.0
	var applied []string
	excluded := 0
	for _, r := range compiled.Cat {
		if r.Opaque {
			excluded++
			continue
		}

		condFrac := 1.0
		for _, term := range r.When {
			condFrac *= math.Min(1.0, valueFraction(m, term))
		}
		pruned := math.Max(0.0, math.Min(1.0, byFlag[r.IfFlag]*condFrac))
		keep *= 1.0 - pruned

		// The note quotes the first when-entry's fraction, as a quick
		// indication of how selective the rule is.
		if len(r.When) > 0 {
			applied = append(applied, fmt.Sprintf("%s@%.2f%%", r.IfFlag, valueFraction(m, r.When[0])*100))
		}
	}

	estRemaining := int64(math.Round(float64(theoreticalMax) * keep))
	pct := 0.0
	if theoreticalMax > 0 {
		pct = float64(estRemaining) / float64(theoreticalMax) * 100
	}

	var notes []string
	if len(applied) > 0 {
		notes = append(notes, "Applied FORBID_WHEN estimates: "+strings.Join(applied, "; ")+".")
	}
	if excluded > 0 {
		notes = append(notes, fmt.Sprintf("Excluded %d FORBID_IF_SQL rule(s) from estimate.", excluded))
	}

	return Estimate{
		Prevalence:       prevalence,
		TheoreticalMax:   theoreticalMax,
		EstRemaining:     estRemaining,
		EstPruned:        theoreticalMax - estRemaining,
		PctRemaining:     pct,
		Notes:            notes,
		ExcludedSQLRules: excluded,
	}
}

// valueFraction is the share of a category's values accepted by a when-term.
func valueFraction(m *model.Model, term model.WhenTerm) float64 {
	denom := len(term.Values)
	if cat, ok := m.Category(term.Category); ok {
		denom = len(cat.Values)
	}
	if denom < 1 {
		denom = 1
	}
	return float64(len(term.Values)) / float64(denom)
}
