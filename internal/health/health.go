// Package health serves liveness and readiness probes for the gateway.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is a probe outcome.
type Status string

const (
	// StatusUp indicates the component is fully operational.
	StatusUp Status = "up"
	// StatusDegraded indicates the component works but not at full capacity.
	StatusDegraded Status = "degraded"
	// StatusDown indicates the component is not operational.
	StatusDown Status = "down"
)

// Check is one named readiness probe result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc produces a Check when the readiness endpoint is queried.
type CheckFunc func() Check

// Checker aggregates readiness checks and reports process liveness.
type Checker struct {
	version   string
	startTime time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a Checker reporting the given build version.
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// Register adds a named readiness check, replacing any previous check of
// the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	c.checks[name] = fn
	c.mu.Unlock()
}

// Deregister removes a named readiness check.
func (c *Checker) Deregister(name string) {
	c.mu.Lock()
	delete(c.checks, name)
	c.mu.Unlock()
}

type livenessBody struct {
	Status  Status `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

type readinessBody struct {
	Status Status           `json:"status"`
	Checks map[string]Check `json:"checks,omitempty"`
}

// Liveness reports that the process is up.
func (c *Checker) Liveness() (int, any) {
	return http.StatusOK, livenessBody{
		Status:  StatusUp,
		Version: c.version,
		Uptime:  time.Since(c.startTime).Round(time.Second).String(),
	}
}

// Readiness runs every registered check. The aggregate is the worst
// individual outcome; any StatusDown check makes the endpoint report 503.
func (c *Checker) Readiness() (int, any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	body := readinessBody{
		Status: StatusUp,
		Checks: make(map[string]Check, len(c.checks)),
	}
	for name, fn := range c.checks {
		check := fn()
		body.Checks[name] = check
		switch check.Status {
		case StatusDown:
			body.Status = StatusDown
		case StatusDegraded:
			if body.Status != StatusDown {
				body.Status = StatusDegraded
			}
		}
	}

	code := http.StatusOK
	if body.Status == StatusDown {
		code = http.StatusServiceUnavailable
	}
	return code, body
}

// LivenessHandler serves the liveness probe.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return probeHandler(c.Liveness)
}

// ReadinessHandler serves the readiness probe.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return probeHandler(c.Readiness)
}

func probeHandler(probe func() (int, any)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		code, body := probe()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
