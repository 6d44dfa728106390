// Package pipeline runs the compiler stages in their fixed order: load has
// already happened by the time Run is called; reduction, constraint
// compilation, enumeration, estimation and emission each consume the
// immutable result of the previous stage. One invocation is one synchronous
// batch; nothing is shared across stage boundaries.
package pipeline

import (
	"context"

	"github.com/dotk-io/acbp/internal/enumerate"
	"github.com/dotk-io/acbp/internal/equivalence"
	"github.com/dotk-io/acbp/internal/estimate"
	"github.com/dotk-io/acbp/internal/emit"
	"github.com/dotk-io/acbp/internal/history"
	"github.com/dotk-io/acbp/internal/logging"
	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/progress"
	"github.com/dotk-io/acbp/internal/rules"
)

type Options struct {
	Enumerate  bool
	Workers    int
	Bar        *progress.Bar
	ResultsDir string // consulted read-only; empty disables the comparison
	Log        *logging.Logger
}

// Result is the immutable outcome of one compile.
type Result struct {
	Model       *model.Model
	Partition   equivalence.Partition
	Compiled    *rules.Compiled
	Enumeration enumerate.Result
	Estimate    *estimate.Estimate
	History     *history.Summary
	SQL         string
}

// Run executes the pipeline over an already-loaded, validated model.
func Run(ctx context.Context, m *model.Model, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = logging.NewLogger(logging.Config{Level: logging.LevelError})
	}

	res := &Result{Model: m}

	res.Partition = equivalence.Reduce(m)
	log.Debugf("reduced %d flags to %d equivalence classes", m.B(), res.Partition.BEff())

	res.Compiled = rules.Compile(m)
	log.Debugf("compiled %d bit-only and %d category-aware rules", len(res.Compiled.Bit), len(res.Compiled.Cat))

	if opts.Enumerate {
		enumRes, err := enumerate.Run(ctx, m.B(), m.LimitBits(), res.Compiled.BitPredicate(), enumerate.Options{
			Workers: opts.Workers,
			Bar:     opts.Bar,
		})
		if err != nil {
			return nil, err
		}
		res.Enumeration = enumRes
		if enumRes.Skipped {
			log.Debugf("enumeration skipped: B=%d exceeds limit of %d bits", m.B(), m.LimitBits())
		} else {
			log.Debugf("enumerated %d valid masks out of %d", len(enumRes.Masks), enumRes.Total)
		}

		if !enumRes.Skipped && len(enumRes.Masks) > 0 {
			est := estimate.Compute(m, res.Compiled, enumRes.Masks)
			res.Estimate = &est

			if opts.ResultsDir != "" {
				summary, err := history.Latest(opts.ResultsDir, m.Name)
				if err != nil {
					// Historical records are diagnostic only; a broken one
					// must not fail the compile.
					log.Warnf("history lookup failed: %v", err)
				} else {
					res.History = summary
				}
			}
		}
	}

	res.SQL = emit.SQL(res.Compiled)
	return res, nil
}
