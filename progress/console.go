package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/chronos-imaging/chronos/model"
)

// ConsoleReporter drives a terminal progress bar from a stream of
// OperationProgress events, for interactive CLI invocations that want visual
// feedback rather than structured output.
type ConsoleReporter struct {
	bar *progressbar.ProgressBar
}

// NewConsoleReporter creates a reporter writing to out, sized to
// totalBytes.
func NewConsoleReporter(out io.Writer, totalBytes uint64, description string) *ConsoleReporter {
	bar := progressbar.NewOptions64(int64(totalBytes),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return &ConsoleReporter{bar: bar}
}

// Report advances the bar to match ev.
func (c *ConsoleReporter) Report(ev model.OperationProgress) {
	c.bar.Describe(string(ev.Phase) + ": " + ev.StatusMessage)
	c.bar.Set64(int64(ev.BytesProcessed))
}

// Finish marks the bar complete.
func (c *ConsoleReporter) Finish() error {
	return c.bar.Finish()
}
