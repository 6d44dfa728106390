package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Bar wraps the progress bar implementation so that callers can pass a nil
// *Bar to disable progress reporting entirely.
type Bar struct {
	bar *progressbar.ProgressBar
}

func New(w io.Writer, max int64, description string) *Bar {
	return &Bar{
		bar: progressbar.NewOptions64(max,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (b *Bar) Add(n int64) {
	if b == nil {
		return
	}
	_ = b.bar.Add64(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
