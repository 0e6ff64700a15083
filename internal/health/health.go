// Package health serves the liveness and readiness endpoints for the
// diagnostics server.
//
// Liveness (/healthz) reports that the process is up, with its uptime.
// Readiness (/readyz) evaluates every registered [Check] and fails with 503
// when any of them fails: the session must not be in an error state and the
// audio pipeline's prerequisites (such as the capture binary) must resolve.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// checkTimeout bounds a single readiness check. Checks here are local state
// inspections, so anything slower than this is itself a failure.
const checkTimeout = 2 * time.Second

// Check inspects one dependency and returns nil when it is ready.
type Check func(ctx context.Context) error

// checkResult is the per-check entry in the readiness response.
type checkResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

type response struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime,omitempty"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. Checks may be added after
// construction, so subsystems can register themselves as they come up. Safe
// for concurrent use.
type Handler struct {
	started time.Time

	mu     sync.Mutex
	checks map[string]Check
}

// New creates a Handler with no checks. An empty check set reports ready.
func New() *Handler {
	return &Handler{
		started: time.Now(),
		checks:  make(map[string]Check),
	}
}

// Add registers a named readiness check. Re-adding a name replaces the
// previous check.
func (h *Handler) Add(name string, c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

// Healthz reports process liveness: a 200 with the current uptime.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz evaluates all checks in name order and reports 503 when any fails.
// Every check runs even after a failure so the response shows the full
// picture.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make([]Check, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		checks = append(checks, h.checks[name])
	}
	h.mu.Unlock()

	res := response{Status: "ok", Checks: make(map[string]checkResult, len(names))}
	code := http.StatusOK

	for i, check := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		begin := time.Now()
		err := check(ctx)
		elapsed := time.Since(begin)
		cancel()

		cr := checkResult{Status: "ok", Elapsed: elapsed.Round(time.Microsecond).String()}
		if err != nil {
			cr.Status = "fail"
			cr.Error = err.Error()
			res.Status = "fail"
			code = http.StatusServiceUnavailable
		}
		res.Checks[names[i]] = cr
	}

	writeJSON(w, code, res)
}

// Register mounts both endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
