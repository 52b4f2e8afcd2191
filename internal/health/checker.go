// Package health aggregates liveness of the gateway's downstream services.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lexgate/internal/audit"
	"lexgate/internal/platform/metrics"
	"lexgate/internal/registry"
	"lexgate/internal/transport"
)

const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnreachable = "unreachable"
)

// Report is the aggregate health document served at GET /health.
type Report struct {
	Status      string            `json:"status"`
	Gateway     string            `json:"gateway"`
	Services    map[string]string `json:"services"`
	RPCChannels []string          `json:"rpc_channels,omitempty"`
}

// HTTPStatus maps the aggregate status onto a response code load balancers
// can act on.
func (r Report) HTTPStatus() int {
	if r.Status == StatusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// Checker probes every registered downstream service.
type Checker struct {
	registry *registry.Registry
	rpc      *transport.RPCClient
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Auditor
}

func New(reg *registry.Registry, rpc *transport.RPCClient, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics, auditor audit.Auditor) *Checker {
	return &Checker{
		registry: reg,
		rpc:      rpc,
		client:   &http.Client{},
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		auditor:  auditor,
	}
}

// CheckAll probes every registered service concurrently with the same timeout
// the forwarder uses. The aggregate is healthy only when every probe is.
func (c *Checker) CheckAll(ctx context.Context) Report {
	report := Report{
		Status:      StatusHealthy,
		Gateway:     "ok",
		Services:    make(map[string]string),
		RPCChannels: c.rpcChannels(),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range c.registry.Names() {
		name := name
		g.Go(func() error {
			status := c.probe(ctx, name)
			c.metrics.IncrementHealthProbe(name, status)

			mu.Lock()
			report.Services[name] = status
			if status != StatusHealthy {
				report.Status = StatusDegraded
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// Fast reports the configured topology without probing anything. Used by
// orchestrators that only need to know the gateway process is up.
func (c *Checker) Fast() Report {
	names := c.registry.Names()
	sort.Strings(names)

	services := make(map[string]string, len(names))
	for _, name := range names {
		services[name] = "configured"
	}
	return Report{
		Status:      StatusHealthy,
		Gateway:     "ok",
		Services:    services,
		RPCChannels: c.rpcChannels(),
	}
}

func (c *Checker) probe(ctx context.Context, name string) string {
	entry, err := c.registry.Lookup(name)
	if err != nil {
		return StatusUnreachable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.BaseURL+"/health", nil)
	if err != nil {
		return StatusUnreachable
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "health probe failed", "service", name, "error", err)
		c.auditor.LogSecurityEvent(ctx, audit.EventHealthCheckError, "health probe failed for "+name)
		return StatusUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "health probe degraded", "service", name, "status", resp.StatusCode)
		return StatusDegraded
	}
	return StatusHealthy
}

func (c *Checker) rpcChannels() []string {
	if c.rpc == nil {
		return nil
	}
	channels := c.rpc.AvailableServices()
	sort.Strings(channels)
	return channels
}
