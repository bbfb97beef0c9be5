// Package health reports whether the key tap, the audio sink and the
// history store are working, and serves the results over HTTP next to the
// metrics endpoint.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout bounds a single check when NewChecker is given zero.
const DefaultTimeout = 5 * time.Second

// Status is the health of one component or of the whole board.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown is reported until a component's first check.
	StatusUnknown Status = "unknown"
)

// Result is the outcome of one check.
type Result struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
	Took      time.Duration  `json:"took_ns"`
}

// Check inspects one component.
type Check func(ctx context.Context) Result

type probe struct {
	critical bool
	check    Check
}

// Checker runs the registered checks and keeps their last results.
type Checker struct {
	timeout time.Duration

	mu      sync.RWMutex
	probes  map[string]probe
	last    map[string]Result
	started time.Time
	ready   bool
}

// NewChecker returns a Checker whose checks each get timeout to finish.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		timeout: timeout,
		probes:  make(map[string]probe),
		last:    make(map[string]Result),
		started: time.Now(),
	}
}

// Add registers check under name, replacing an earlier check of that name.
// A failing critical check makes the whole board unhealthy; any other
// failure only degrades it.
func (c *Checker) Add(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe{critical: critical, check: check}
	c.last[name] = Result{Status: StatusUnknown}
}

// SetReady marks the board as dispatching (or not).
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// Ready reports the value last passed to SetReady.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Run runs every check concurrently, records the results and returns them.
func (c *Checker) Run(ctx context.Context) map[string]Result {
	c.mu.RLock()
	probes := make(map[string]probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]Result, len(probes))
	)
	for name, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := c.runOne(ctx, p.check)
			mu.Lock()
			out[name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()

	c.mu.Lock()
	for name, r := range out {
		// Skip checks replaced while running.
		if _, ok := c.probes[name]; ok {
			c.last[name] = r
		}
	}
	c.mu.Unlock()
	return out
}

func (c *Checker) runOne(ctx context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	r := guard(ctx, check)
	r.CheckedAt = start
	r.Took = time.Since(start)
	return r
}

// guard calls check, turning a panic or an expired ctx into an unhealthy
// result. The buffered channel lets an abandoned check finish.
func guard(ctx context.Context, check Check) Result {
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- Result{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(v)}
			}
		}()
		done <- check(ctx)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{Status: StatusUnhealthy, Message: "check timed out", Error: ctx.Err().Error()}
	}
}

// Results returns a copy of the last recorded results.
func (c *Checker) Results() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.last))
	for name, r := range c.last {
		out[name] = r
	}
	return out
}

// Status folds the last results into one status. Unknown wins over
// degraded only for critical components.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := StatusHealthy
	for name, r := range c.last {
		critical := c.probes[name].critical
		switch {
		case r.Status == StatusUnhealthy && critical:
			return StatusUnhealthy
		case r.Status == StatusUnknown && critical:
			status = StatusUnknown
		case r.Status == StatusUnhealthy, r.Status == StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	return status
}

// Report is the /healthz body.
type Report struct {
	Status     Status            `json:"status"`
	Ready      bool              `json:"ready"`
	Uptime     float64           `json:"uptime_seconds"`
	Failing    []string          `json:"failing,omitempty"`
	Components map[string]Result `json:"components"`
}

// Report builds a Report from the last results, rerunning every check
// first when refresh is set.
func (c *Checker) Report(ctx context.Context, refresh bool) Report {
	if refresh {
		c.Run(ctx)
	}
	results := c.Results()

	var failing []string
	for name, r := range results {
		if r.Status == StatusUnhealthy || r.Status == StatusDegraded {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	c.mu.RLock()
	ready, uptime := c.ready, time.Since(c.started)
	c.mu.RUnlock()

	return Report{
		Status:     c.Status(),
		Ready:      ready,
		Uptime:     uptime.Seconds(),
		Failing:    failing,
		Components: results,
	}
}
