// Package health runs readiness checks against the service's dependencies.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Check results.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DefaultTimeout bounds a full readiness run.
const DefaultTimeout = 5 * time.Second

// Checker is implemented by anything that can report its own health,
// such as the batch stores.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Result is the outcome of one named check.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Registry holds named checkers.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry creates an empty registry. A non-positive timeout uses DefaultTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register adds or replaces the checker for name. A nil checker is ignored.
func (r *Registry) Register(name string, c Checker) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.checkers[name] = c
	r.mu.Unlock()
}

// Run executes every check concurrently under the registry timeout and
// returns the results sorted by name.
func (r *Registry) Run(ctx context.Context) []Result {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	checkers := make([]Checker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = r.checkers[name]
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			err := checkers[i].HealthCheck(ctx)
			results[i] = Result{Name: names[i], Err: err, Elapsed: time.Since(start)}
		}(i)
	}
	wg.Wait()
	return results
}

// Healthy reports whether every result passed.
func Healthy(results []Result) bool {
	for _, res := range results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Statuses maps each check name to StatusOK or StatusError.
func Statuses(results []Result) map[string]string {
	out := make(map[string]string, len(results))
	for _, res := range results {
		if res.Err != nil {
			out[res.Name] = StatusError
		} else {
			out[res.Name] = StatusOK
		}
	}
	return out
}
