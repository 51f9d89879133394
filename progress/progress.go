// Package progress provides a side channel for reporting iteration progress
// of long batch analyses. Reporters must not influence computed results;
// every analysis function accepts a Reporter and treats nil as no-op.
package progress

import (
	"fmt"
	"io"
	"strings"
)

// Reporter receives multi-dimensional iteration indices. current and total
// have equal length; labels may be nil or name each dimension.
type Reporter interface {
	Step(current, total []int, labels []string)
}

// Nop discards all progress updates.
type Nop struct{}

// Step implements Reporter.
func (Nop) Step(current, total []int, labels []string) {}

// Bar renders a single-line terminal progress bar, redrawn in place with a
// carriage return. Safe for any io.Writer; no terminal control beyond "\r".
type Bar struct {
	W     io.Writer
	Width int // bar width in characters, default 30
}

// NewBar returns a Bar writing to w.
func NewBar(w io.Writer) *Bar {
	return &Bar{W: w, Width: 30}
}

// Step implements Reporter. The completion fraction is the linearized index
// over the product of all totals, so nested loops advance monotonically.
func (b *Bar) Step(current, total []int, labels []string) {
	if b.W == nil || len(current) == 0 || len(current) != len(total) {
		return
	}

	idx, n := 0, 1
	for i := range current {
		idx = idx*total[i] + current[i]
		n *= total[i]
	}
	if n <= 0 {
		return
	}

	frac := float64(idx+1) / float64(n)
	width := b.Width
	if width <= 0 {
		width = 30
	}
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}

	var sb strings.Builder
	sb.WriteString("\r[")
	sb.WriteString(strings.Repeat("=", filled))
	sb.WriteString(strings.Repeat(" ", width-filled))
	fmt.Fprintf(&sb, "] %5.1f%%", frac*100)

	for i, label := range labels {
		if i < len(current) {
			fmt.Fprintf(&sb, " %s=%d/%d", label, current[i]+1, total[i])
		}
	}
	if frac >= 1 {
		sb.WriteString("\n")
	}

	fmt.Fprint(b.W, sb.String())
}
