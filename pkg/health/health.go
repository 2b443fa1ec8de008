// Package health runs named dependency checks and aggregates their results.
//
// Every check gets its own timeout and runs concurrently with the others.
package health

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc is a health check function. It should return nil if the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Status values reported for checks and reports.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
)

// Result is the outcome of one check.
type Result struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates the results of a run, sorted by check name.
type Report struct {
	Status string   `json:"status"`
	Checks []Result `json:"checks"`
}

// Healthy reports whether every check passed.
func (r *Report) Healthy() bool {
	return r.Status == StatusOK
}

// Failures maps failing check names to their error messages.
func (r *Report) Failures() map[string]string {
	failures := make(map[string]string)
	for _, c := range r.Checks {
		if c.Status != StatusOK {
			failures[c.Name] = c.Error
		}
	}
	return failures
}

// WriteJSON encodes the report to w.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Probe holds the registered checks.
type Probe struct {
	mu     sync.RWMutex
	checks []check
}

// New creates an empty Probe.
func New() *Probe {
	return &Probe{}
}

// Add registers a check. A non-positive timeout means the check is bounded
// only by the context passed to Run.
func (p *Probe) Add(name string, timeout time.Duration, fn CheckFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks = append(p.checks, check{name: name, timeout: timeout, fn: fn})
}

// Run executes every check concurrently and waits for all of them.
func (p *Probe) Run(ctx context.Context) *Report {
	p.mu.RLock()
	checks := append([]check(nil), p.checks...)
	p.mu.RUnlock()

	// Checks report failures in their Result, so the group never cancels.
	results := make([]Result, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = c.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := &Report{Status: StatusOK, Checks: results}
	for _, r := range results {
		if r.Status != StatusOK {
			report.Status = StatusUnhealthy
			break
		}
	}
	return report
}

func (c check) run(ctx context.Context) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.fn(ctx)
	res := Result{
		Name:     c.name,
		Status:   StatusOK,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}
