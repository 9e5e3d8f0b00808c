package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress follows a batch of renders through the pool callback. Besides
// counts it keeps which job finished last, which jobs failed, how many grids
// came out constant (normalized to all zeros) and the slowest render.
type Progress struct {
	startTime   time.Time
	output      io.Writer
	last        string
	slowest     string
	failedJobs  []string
	slowestTime time.Duration
	total       int
	completed   int
	constant    int
	mu          sync.RWMutex
	enabled     bool
}

// NewProgress creates a progress tracker writing to stderr.
func NewProgress(total int, enabled bool) *Progress {
	return NewProgressTo(os.Stderr, total, enabled)
}

// NewProgressTo creates a progress tracker writing to w.
func NewProgressTo(w io.Writer, total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    w,
		enabled:   enabled,
	}
}

// Observe records a finished task.
func (p *Progress) Observe(res Result, completed, total int) {
	name := res.Task.Job.Name

	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.last = name
	switch {
	case res.Err != nil:
		p.failedJobs = append(p.failedJobs, name)
	default:
		if res.Render.Stats.Degenerate {
			p.constant++
		}
		if res.Elapsed > p.slowestTime {
			p.slowest = name
			p.slowestTime = res.Elapsed
		}
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Observe
}

// Failed returns the names of the jobs that failed, in completion order.
func (p *Progress) Failed() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.failedJobs...)
}

// Print writes the current progress line to output.
func (p *Progress) Print() {
	p.mu.RLock()
	completed, total := p.completed, p.total
	failed, constant := len(p.failedJobs), p.constant
	last := p.last
	elapsed := time.Since(p.startTime)
	p.mu.RUnlock()

	filled := 0
	if total > 0 {
		filled = completed * barWidth / total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var b strings.Builder
	fmt.Fprintf(&b, "\r[%s] %d/%d images", bar, completed, total)
	if last != "" {
		fmt.Fprintf(&b, " - last %s", last)
	}
	if failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", failed)
	}
	if constant > 0 {
		fmt.Fprintf(&b, " (%d constant)", constant)
	}
	if completed > 0 && completed < total {
		perImage := elapsed / time.Duration(completed)
		fmt.Fprintf(&b, " - ETA: %s", formatDuration(perImage*time.Duration(total-completed)))
	}
	if completed == total {
		fmt.Fprintf(&b, " - Done in %s", formatDuration(elapsed))
	}
	// Pad to clear previous line content
	b.WriteString("          ")

	fmt.Fprint(p.output, b.String())
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary describes the finished batch in one line.
func (p *Progress) Summary() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.startTime)
	var rate float64
	if elapsed > 0 {
		rate = float64(p.completed) / elapsed.Seconds()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rendered %d/%d images in %s (%.1f images/sec)",
		p.completed-len(p.failedJobs), p.total, formatDuration(elapsed), rate)
	if len(p.failedJobs) > 0 {
		fmt.Fprintf(&b, "; failed: %s", strings.Join(p.failedJobs, ", "))
	}
	if p.constant > 0 {
		fmt.Fprintf(&b, "; %d constant field(s) rendered flat", p.constant)
	}
	if p.slowest != "" {
		fmt.Fprintf(&b, "; slowest %s (%s)", p.slowest, p.slowestTime.Round(time.Millisecond))
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
