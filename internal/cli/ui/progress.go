package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders a determinate progress line. It is safe for
// concurrent use so that worker goroutines can report completion directly.
type ProgressBar struct {
	mu      sync.Mutex
	writer  io.Writer
	total   int
	current int
	width   int
	message string
	noColor bool
}

// ProgressBarOptions configures progress bar behavior
type ProgressBarOptions struct {
	Total   int
	Width   int // Default: 40
	Message string
	NoColor bool
}

// NewProgressBar creates a new progress bar
func NewProgressBar(w io.Writer, opts ProgressBarOptions) *ProgressBar {
	if opts.Width <= 0 {
		opts.Width = 40
	}
	return &ProgressBar{
		writer:  w,
		total:   opts.Total,
		width:   opts.Width,
		message: opts.Message,
		noColor: opts.NoColor,
	}
}

// Increment advances the bar by one
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < p.total {
		p.current++
	}
	p.render()
}

// Current returns the completed count
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish fills the bar and ends the line
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

func (p *ProgressBar) render() {
	if p.total == 0 {
		return
	}
	filled := p.width * p.current / p.total

	var bar strings.Builder
	bar.WriteString("[")
	newColor(p.noColor, color.FgCyan).Fprint(&bar, strings.Repeat("█", filled))
	newColor(p.noColor, color.FgHiBlack).Fprint(&bar, strings.Repeat("░", p.width-filled))
	bar.WriteString("]")

	fmt.Fprintf(p.writer, "\r%s %d/%d", bar.String(), p.current, p.total)
	if p.message != "" {
		fmt.Fprintf(p.writer, " %s", p.message)
	}
}
