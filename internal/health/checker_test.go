package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexgate/internal/audit"
	"lexgate/internal/registry"
)

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"whatever"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChecker(reg *registry.Registry, timeout time.Duration) *Checker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(reg, nil, timeout, logger, nil, audit.Nop{})
}

func Test_CheckAll_AllHealthy(t *testing.T) {
	docs := healthServer(t, http.StatusOK)
	deadlines := healthServer(t, http.StatusOK)

	reg := registry.FromEntries(
		registry.Entry{Name: "documents", BaseURL: docs.URL},
		registry.Entry{Name: "deadlines", BaseURL: deadlines.URL},
	)
	c := newChecker(reg, time.Second)

	report := c.CheckAll(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, http.StatusOK, report.HTTPStatus())
	assert.Equal(t, map[string]string{
		"documents": StatusHealthy,
		"deadlines": StatusHealthy,
	}, report.Services)
}

func Test_CheckAll_OneDown(t *testing.T) {
	docs := healthServer(t, http.StatusOK)

	// A server that is already closed refuses connections.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	reg := registry.FromEntries(
		registry.Entry{Name: "documents", BaseURL: docs.URL},
		registry.Entry{Name: "hearings", BaseURL: dead.URL},
	)
	c := newChecker(reg, time.Second)

	report := c.CheckAll(context.Background())

	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, http.StatusServiceUnavailable, report.HTTPStatus())
	assert.Equal(t, StatusHealthy, report.Services["documents"])
	assert.Equal(t, StatusUnreachable, report.Services["hearings"])
}

func Test_CheckAll_DownstreamReportsError(t *testing.T) {
	sick := healthServer(t, http.StatusInternalServerError)

	reg := registry.FromEntries(registry.Entry{Name: "processes", BaseURL: sick.URL})
	c := newChecker(reg, time.Second)

	report := c.CheckAll(context.Background())

	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusDegraded, report.Services["processes"])
}

func Test_CheckAll_ProbeTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	reg := registry.FromEntries(registry.Entry{Name: "documents", BaseURL: slow.URL})
	c := newChecker(reg, 50*time.Millisecond)

	start := time.Now()
	report := c.CheckAll(context.Background())

	assert.Less(t, time.Since(start), time.Second, "probe must respect the timeout")
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUnreachable, report.Services["documents"])
}

func Test_Fast_NoProbing(t *testing.T) {
	probed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed = true
	}))
	t.Cleanup(srv.Close)

	reg := registry.FromEntries(
		registry.Entry{Name: "documents", BaseURL: srv.URL},
		registry.Entry{Name: "deadlines", BaseURL: srv.URL},
	)
	c := newChecker(reg, time.Second)

	report := c.Fast()

	assert.False(t, probed, "fast mode must not touch the network")
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, map[string]string{
		"documents": "configured",
		"deadlines": "configured",
	}, report.Services)
}
