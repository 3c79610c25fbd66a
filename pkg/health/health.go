// Package health provides Kubernetes-style liveness and readiness probe
// endpoints. Checks are evaluated when the probe is requested, each under its
// own timeout.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New creates a Health instance. The service starts not ready; call
// SetReady(true) once initialization has finished.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check for the liveness probe. Liveness failure
// means the process should be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check for the readiness probe. Readiness
// failure takes the service out of the load balancer without restarting it.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the service-level readiness flag. While false the readiness
// probe fails regardless of check results, which is used to drain traffic
// during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Health) runChecks(ctx context.Context, checks []check) (map[string]string, bool) {
	results := make(map[string]string, len(checks))
	healthy := true
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.fn(checkCtx)
		cancel()
		if err != nil {
			results[c.name] = err.Error()
			healthy = false
		} else {
			results[c.name] = "ok"
		}
	}
	return results, healthy
}

func respondProbe(w http.ResponseWriter, healthy bool, checks map[string]string) {
	res := probeResult{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !healthy {
		res.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

// LiveEndpoint serves the liveness probe.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := h.liveness
	h.mu.RUnlock()

	results, healthy := h.runChecks(r.Context(), checks)
	respondProbe(w, healthy, results)
}

// ReadyEndpoint serves the readiness probe. It fails while SetReady(false)
// and whenever any readiness check fails.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		respondProbe(w, false, map[string]string{"service": "not ready"})
		return
	}

	h.mu.RLock()
	checks := h.readiness
	h.mu.RUnlock()

	results, healthy := h.runChecks(r.Context(), checks)
	respondProbe(w, healthy, results)
}
