package handler

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"aircall-sync/internal/http/httperr"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 3 * time.Second

// Check probes one dependency (a backend, Redis, Postgres).
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler serves GET / and GET /health.
type HealthHandler struct {
	service  string
	backends []string
	checks   []Check
}

func NewHealthHandler(service string, backends []string, checks []Check) *HealthHandler {
	return &HealthHandler{service: service, backends: backends, checks: checks}
}

// HealthResponse is the health payload.
type HealthResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Backends []string          `json:"backends"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Health reports liveness. With ?probe=true every dependency is probed
// concurrently and any failure turns the answer into a 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Service: h.service, Backends: h.backends}

	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	if !probe || len(h.checks) == 0 {
		httperr.WriteJSON(w, http.StatusOK, resp)
		return
	}

	resp.Checks = h.probe(r.Context())
	status := http.StatusOK
	for _, result := range resp.Checks {
		if result != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	httperr.WriteJSON(w, status, resp)
}

// Ready is Health with probing always on.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("probe", "true")
	r.URL.RawQuery = q.Encode()
	h.Health(w, r)
}

func (h *HealthHandler) probe(ctx context.Context) map[string]string {
	log := logger.GetLogger(ctx)

	var mu sync.Mutex
	results := make(map[string]string, len(h.checks))

	var g errgroup.Group
	for _, c := range h.checks {
		c := c
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			result := "ok"
			if err := c.Probe(pctx); err != nil {
				result = "error"
				log.Warn(ctx, "health probe failed",
					logger.Module("health"),
					logger.Action("probe"),
					zap.String("check", c.Name),
					zap.Error(err),
				)
			}

			mu.Lock()
			results[c.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CheckNames lists the configured probes, sorted.
func (h *HealthHandler) CheckNames() []string {
	names := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
