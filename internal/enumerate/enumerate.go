// Package enumerate brute-forces the bit-only predicate over every mask in
// [0, 2^B). Evaluations are independent and side-effect free, so the range is
// partitioned into contiguous chunks evaluated in parallel; concatenating the
// per-chunk results in partition order preserves the ascending output
// sequence regardless of scheduling.
package enumerate

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/dotk-io/acbp/internal/progress"
)

// Result is the outcome of one enumeration. Skipped is a reported condition,
// not an error: it means B exceeded the configured limit and the 2^B scan was
// not attempted.
type Result struct {
	Masks   []uint64
	Total   uint64
	Skipped bool
}

type Options struct {
	Workers int
	Bar     *progress.Bar
}

// checkInterval masks per context poll; also the progress granularity.
const checkInterval = 1 << 16

// Run evaluates pred for every mask in [0, 2^bits) in ascending order,
// unless bits exceeds limitBits, in which case enumeration is skipped.
func Run(ctx context.Context, bits, limitBits int, pred func(mask uint64) bool, opts Options) (Result, error) {
	if bits > limitBits {
		return Result{Skipped: true}, nil
	}

	total := uint64(1) << bits

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if uint64(workers) > total {
		workers = int(total)
	}

	chunks := make([][]uint64, workers)
	span := total / uint64(workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		lo := uint64(w) * span
		hi := lo + span
		if w == workers-1 {
			hi = total
		}

		g.Go(func() error {
			var out []uint64
			for next := lo; next < hi; next += checkInterval {
				if err := ctx.Err(); err != nil {
					return err
				}
				end := min(next+checkInterval, hi)
				for m := next; m < end; m++ {
					if pred(m) {
						out = append(out, m)
					}
				}
				opts.Bar.Add(int64(end - next))
			}
			chunks[w] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	opts.Bar.Finish()

	var n int
	for _, c := range chunks {
		n += len(c)
	}
	masks := make([]uint64, 0, n)
	for _, c := range chunks {
		masks = append(masks, c...)
	}

	return Result{Masks: masks, Total: total}, nil
}
