// Package healthz aggregates named health checks and serves the result as
// JSON.
package healthz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the outcome of one checker.
type Check struct {
	Name     string  `json:"name"`
	Status   Status  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration_ms"`
}

// Result is the aggregate health check result.
type Result struct {
	Status    Status    `json:"status"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckFunc reports nil when healthy. Errors wrapped with Degraded lower
// the status to degraded instead of unhealthy.
type CheckFunc func(ctx context.Context) error

type degradedError struct{ err error }

func (e *degradedError) Error() string { return e.err.Error() }
func (e *degradedError) Unwrap() error { return e.err }

// Degraded marks err as non-fatal.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &degradedError{err: err}
}

// Registry holds the registered checks.
type Registry struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

func New() *Registry {
	return &Registry{
		checks:  make(map[string]CheckFunc),
		timeout: 2 * time.Second,
	}
}

// Register adds or replaces the check called name.
func (r *Registry) Register(name string, fn CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = fn
}

// Run executes every check and reports the worst status.
func (r *Registry) Run(ctx context.Context) Result {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]CheckFunc, len(names))
	for i, name := range names {
		fns[i] = r.checks[name]
	}
	r.mu.RUnlock()

	result := Result{
		Status:    StatusHealthy,
		Checks:    make([]Check, 0, len(names)),
		Timestamp: time.Now().UTC(),
	}
	for i, name := range names {
		check := r.run(ctx, name, fns[i])
		result.Checks = append(result.Checks, check)

		switch {
		case check.Status == StatusUnhealthy:
			result.Status = StatusUnhealthy
		case check.Status == StatusDegraded && result.Status == StatusHealthy:
			result.Status = StatusDegraded
		}
	}
	return result
}

func (r *Registry) run(ctx context.Context, name string, fn CheckFunc) Check {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	check := Check{
		Name:     name,
		Status:   StatusHealthy,
		Duration: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		check.Status = StatusUnhealthy
		var d *degradedError
		if errors.As(err, &d) {
			check.Status = StatusDegraded
		}
		check.Message = err.Error()
	}
	return check
}

// Handler serves Run as JSON; unhealthy answers 503.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		result := r.Run(req.Context())

		w.Header().Set("Content-Type", "application/json")
		if result.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
}
