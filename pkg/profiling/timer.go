package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stopper ends a timed span.
type Stopper interface {
	Stop()
}

// Span is one finished timing.
type Span struct {
	Name     string
	Start    time.Time
	Duration time.Duration
}

type span struct {
	name     string
	start    time.Time
	profiler *Profiler
	once     sync.Once
}

// Stop records the span. Calling it twice records it once.
func (s *span) Stop() {
	s.once.Do(func() {
		s.profiler.record(Span{Name: s.name, Start: s.start, Duration: time.Since(s.start)})
	})
}

// Profiler collects spans from any number of goroutines.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	spans   []Span
}

var defaultProfiler = &Profiler{}

// Enable turns on the global profiler.
func Enable() {
	defaultProfiler.Enable()
}

// Start begins a span on the global profiler.
func Start(name string) Stopper {
	return defaultProfiler.Start(name)
}

// Summarize writes the global profiler's spans to w.
func Summarize(w io.Writer) {
	defaultProfiler.Summarize(w)
}

// Enable turns the profiler on. Spans started before are not recorded.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.started = time.Now()
}

// Start begins a span. It is a no-op while the profiler is disabled.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	enabled := p.enabled
	p.mu.Unlock()
	if !enabled {
		return noopStopper{}
	}
	return &span{name: name, start: time.Now(), profiler: p}
}

// Spans returns the recorded spans ordered by start time.
func (p *Profiler) Spans() []Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]Span(nil), p.spans...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Summarize prints every span with its offset from Enable and its share of
// the total run time.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	enabled, started := p.enabled, p.started
	p.mu.Unlock()
	if !enabled {
		return
	}

	total := time.Since(started)
	fmt.Fprintln(w, "\n--- Timing Profile ---")
	for _, s := range p.Spans() {
		share := 0.0
		if total > 0 {
			share = float64(s.Duration) / float64(total) * 100
		}
		fmt.Fprintf(w, "- %s (+%v, %v, %.1f%%)\n",
			s.Name,
			s.Start.Sub(started).Round(time.Millisecond),
			s.Duration.Round(100*time.Microsecond),
			share)
	}
	fmt.Fprintf(w, "total %v\n", total.Round(time.Millisecond))
	fmt.Fprintln(w, "----------------------")
}

func (p *Profiler) record(s Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = append(p.spans, s)
}

type noopStopper struct{}

func (noopStopper) Stop() {}
