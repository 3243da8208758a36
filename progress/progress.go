// Package progress tracks translation progress and renders an in-place
// console bar.
//
// The tracker is plain explicit state owned by the pipeline; packages that
// produce progress call its methods and the owner decides how to display
// changes via the OnChange callback.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ---------------------------------------------------------------------------
// Tracker
// ---------------------------------------------------------------------------

// Tracker holds the unit counters for one run.
type Tracker struct {
	total int
	done  int

	// OnChange is invoked after every state change with the current counts
	// and a preview of the text being processed (may be empty).
	OnChange func(done, total int, preview string)
}

// NewTracker returns a tracker expecting total units.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// Start reports that a unit is about to be processed.
func (t *Tracker) Start(preview string) {
	t.notify(preview)
}

// Done marks one unit as completed.
func (t *Tracker) Done() {
	t.done++
	t.notify("")
}

// Counts returns the completed and total unit counts.
func (t *Tracker) Counts() (done, total int) {
	return t.done, t.total
}

// Percent returns the completion percentage. An empty run is 100% done.
func (t *Tracker) Percent() float64 {
	if t.total == 0 {
		return 100
	}
	return float64(t.done) / float64(t.total) * 100
}

func (t *Tracker) notify(preview string) {
	if t.OnChange != nil {
		t.OnChange(t.done, t.total, preview)
	}
}

// ---------------------------------------------------------------------------
// Bar
// ---------------------------------------------------------------------------

// barWidth is the number of cells in the rendered bar.
const barWidth = 30

// previewLimit is the maximum rune length of the text preview.
const previewLimit = 40

// Bar renders a fixed-width progress bar rewritten in place with \r.
type Bar struct {
	out      io.Writer
	lastLen  int
	rendered bool
}

// NewBar returns a bar writing to out.
func NewBar(out io.Writer) *Bar {
	return &Bar{out: out}
}

// IsTerminal reports whether f is an interactive terminal, which is when an
// in-place bar makes sense.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render redraws the bar for the given counts.
func (b *Bar) Render(done, total int, preview string) {
	line := Line(done, total, preview)

	// Pad with spaces so a shorter line fully overwrites the previous one.
	pad := b.lastLen - len([]rune(line))
	if pad < 0 {
		pad = 0
	}
	b.lastLen = len([]rune(line))
	b.rendered = true

	fmt.Fprintf(b.out, "\r%s%s", line, strings.Repeat(" ", pad))
}

// Finish terminates the bar line so following output starts fresh.
func (b *Bar) Finish() {
	if b.rendered {
		fmt.Fprintln(b.out)
		b.rendered = false
		b.lastLen = 0
	}
}

// Line formats one bar line without the carriage return.
func Line(done, total int, preview string) string {
	percent := 100.0
	filled := barWidth
	if total > 0 {
		percent = float64(done) / float64(total) * 100
		filled = barWidth * done / total
		if filled > barWidth {
			filled = barWidth
		}
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("Progress: [%s] %d/%d (%.1f%%)", bar, done, total, percent)
	if preview != "" {
		line += " | " + truncate(preview, previewLimit)
	}
	return line
}

// truncate shortens s to limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
