package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// parseProgress reports files as the source model parses them.
type parseProgress struct {
	bar *progressbar.ProgressBar
}

// newParseProgress returns nil when quiet; a nil *parseProgress is a no-op.
func newParseProgress(w io.Writer, total int, quiet bool) *parseProgress {
	if quiet || total == 0 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Parsing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
	return &parseProgress{bar: bar}
}

// fileParsed is safe for concurrent use.
func (p *parseProgress) fileParsed(string) {
	if p == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *parseProgress) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

// callback adapts the progress to tsmodel.Options.Progress.
func (p *parseProgress) callback() func(string) {
	if p == nil {
		return nil
	}
	return p.fileParsed
}
