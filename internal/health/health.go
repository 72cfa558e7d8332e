// Package health reports whether the pieces funcchat depends on are usable.
package health

import (
	"sort"
	"sync"
	"time"
)

// Status values, worst last.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthReport aggregates health from all components.
type HealthReport struct {
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
}

// Status is the worst component status.
func (r HealthReport) Status() string {
	status := StatusOK
	for _, c := range r.Components {
		switch c.Status {
		case StatusError:
			return StatusError
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// HealthChecker interface for components to implement.
type HealthChecker interface {
	HealthCheck() ComponentHealth
}

// CheckerFunc adapts a func to HealthChecker.
type CheckerFunc func() ComponentHealth

func (f CheckerFunc) HealthCheck() ComponentHealth { return f() }

// Registry holds health checkers for all components.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewRegistry creates a new health registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]HealthChecker)}
}

// Register adds a component health checker.
func (r *Registry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs all health checks and returns a report sorted by component name.
func (r *Registry) Check() HealthReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := HealthReport{Timestamp: time.Now()}
	for name, checker := range r.checkers {
		c := checker.HealthCheck()
		if c.Name == "" {
			c.Name = name
		}
		report.Components = append(report.Components, c)
	}
	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i].Name < report.Components[j].Name
	})
	return report
}
