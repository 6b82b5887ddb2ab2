package metrics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Error classes used in the probe report.
const (
	ClassTimeout = "Timeout"
	ClassRefused = "Refused"
	ClassReset   = "Reset"
	ClassDNS     = "DNS"
	ClassProxy   = "Proxy"
	ClassOther   = "Other"
)

// Collector aggregates probe outcomes. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	latencies        []time.Duration
	successByAttempt map[int]int
	errorCounts      map[string]int
	failures         int
}

func New() *Collector {
	return &Collector{
		successByAttempt: make(map[int]int),
		errorCounts:      make(map[string]int),
	}
}

// RecordSuccess stores a successful dial; attempt is zero-based.
func (c *Collector) RecordSuccess(attempt int, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies = append(c.latencies, latency)
	c.successByAttempt[attempt]++
}

func (c *Collector) RecordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	c.errorCounts[Classify(err)]++
}

// Classify buckets a dial error by its message.
func Classify(err error) string {
	if err == nil {
		return ClassOther
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return ClassTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return ClassTimeout
	case strings.Contains(msg, "refused"):
		return ClassRefused
	case strings.Contains(msg, "reset"):
		return ClassReset
	case strings.Contains(msg, "no such host"):
		return ClassDNS
	case strings.Contains(msg, "socks"), strings.Contains(msg, "proxy"):
		return ClassProxy
	}
	return ClassOther
}

// Snapshot is a copy of the counters.
type Snapshot struct {
	Successes int
	Failures  int
	ByAttempt map[int]int
	Errors    map[string]int
	P50       time.Duration
	P90       time.Duration
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Successes: len(c.latencies),
		Failures:  c.failures,
		ByAttempt: make(map[int]int, len(c.successByAttempt)),
		Errors:    make(map[string]int, len(c.errorCounts)),
	}
	for k, v := range c.successByAttempt {
		s.ByAttempt[k] = v
	}
	for k, v := range c.errorCounts {
		s.Errors[k] = v
	}
	if n := len(c.latencies); n > 0 {
		sorted := append([]time.Duration(nil), c.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.P50 = sorted[n/2]
		s.P90 = sorted[int(float64(n)*0.9)]
	}
	return s
}

// PrintReport writes the probe summary and tuning hints for the prober
// section of config.yaml.
func (c *Collector) PrintReport(out io.Writer, timeout time.Duration, retries int) {
	s := c.Snapshot()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "\n\033[1mPROBE REPORT\033[0m")
	fmt.Fprintln(w, "────────────────────────────────────────")

	fmt.Fprintln(w, "\033[1;36m[ LATENCY ]\033[0m")
	if s.Successes == 0 {
		fmt.Fprintln(w, "  No reachable domains.")
	} else {
		fmt.Fprintf(w, "  p50:\t%v\n", s.P50)
		fmt.Fprintf(w, "  p90:\t%v\n", s.P90)
		fmt.Fprintf(w, "  Suggested timeout:\t%s (current %s)\n", (s.P90 + 500*time.Millisecond).Round(100*time.Millisecond), timeout)
		for i := 0; i <= retries; i++ {
			fmt.Fprintf(w, "  Reached on try %d:\t%d\n", i+1, s.ByAttempt[i])
		}
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "\033[1;36m[ ERRORS ]\033[0m")
	fmt.Fprintf(w, "  Failed attempts:\t%d\n", s.Failures)
	classes := make([]string, 0, len(s.Errors))
	for k := range s.Errors {
		classes = append(classes, k)
	}
	sort.Strings(classes)
	for _, k := range classes {
		fmt.Fprintf(w, "  %s:\t%d\n", k, s.Errors[k])
	}
	if s.Failures > 0 && float64(s.Errors[ClassTimeout])/float64(s.Failures) > 0.7 {
		fmt.Fprintln(w, "  Mostly timeouts: consider lowering prober.worker_count")
	}
	w.Flush()
}
