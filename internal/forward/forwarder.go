// Package forward sends requests to named downstream services, propagating
// the caller's identity token and correlation id and normalizing transport
// failures into typed outcomes. There is no retry at this layer; retry
// policy, if any, belongs to the caller.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lexgate/internal/audit"
	"lexgate/internal/platform/metrics"
	"lexgate/internal/registry"
	"lexgate/pkg/platform/sanitize"
	"lexgate/pkg/requestcontext"
)

// Request describes one downstream call. Body may be any JSON-encodable
// value; string fields are sanitized recursively before transmission.
type Request struct {
	Service string
	Method  string
	Path    string
	Body    any
	Query   url.Values
}

// Forwarder issues bounded HTTP calls to registered services.
type Forwarder struct {
	registry *registry.Registry
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Auditor
	tracer   trace.Tracer
}

func New(reg *registry.Registry, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics, auditor audit.Auditor) *Forwarder {
	return &Forwarder{
		registry: reg,
		client:   &http.Client{},
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		auditor:  auditor,
		tracer:   otel.Tracer("lexgate/forward"),
	}
}

// Forward sends the request to the named service and returns a normalized
// outcome. An unregistered service name is a configuration error surfaced as
// unavailable without any network I/O.
func (f *Forwarder) Forward(ctx context.Context, req Request) Outcome {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "forward "+req.Service,
		trace.WithAttributes(
			attribute.String("service", req.Service),
			attribute.String("method", req.Method),
			attribute.String("path", req.Path),
			attribute.String("correlation_id", requestcontext.CorrelationID(ctx)),
		))
	defer span.End()

	outcome := f.forward(ctx, req)

	f.metrics.ObserveForward(req.Service, string(outcome.Class), time.Since(start))
	if !outcome.OK() {
		span.SetStatus(codes.Error, string(outcome.Class))
	}
	return outcome
}

func (f *Forwarder) forward(ctx context.Context, req Request) Outcome {
	entry, err := f.registry.Lookup(req.Service)
	if err != nil {
		f.logger.ErrorContext(ctx, "forward to unregistered service",
			"service", req.Service,
			"error", err,
		)
		f.auditor.LogSecurityEvent(ctx, audit.EventDownstreamUnavailable,
			"service "+req.Service+" is not registered")
		return unavailable()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := encodeBody(req.Body)
		if err != nil {
			f.logger.ErrorContext(ctx, "forward body encoding failed",
				"service", req.Service,
				"error", err,
			)
			return unavailable()
		}
		body = bytes.NewReader(encoded)
	}

	target := strings.TrimRight(entry.BaseURL, "/") + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		f.logger.ErrorContext(ctx, "forward request construction failed",
			"service", req.Service,
			"url", target,
			"error", err,
		)
		return unavailable()
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := requestcontext.BearerToken(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if corrID := requestcontext.CorrelationID(ctx); corrID != "" {
		httpReq.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return f.transportFailure(ctx, req.Service, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return f.transportFailure(ctx, req.Service, target, err)
	}

	class := ClassOK
	if resp.StatusCode >= http.StatusMultipleChoices {
		class = ClassDownstreamError
	}
	return Outcome{Class: class, Status: resp.StatusCode, Payload: payload}
}

// transportFailure maps transport errors to outcomes: an exceeded deadline is
// a timeout, everything else (refused connection, DNS failure, mid-stream
// fault) is unavailable. Both are security-relevant on client-triggered paths.
func (f *Forwarder) transportFailure(ctx context.Context, service, target string, err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		f.logger.WarnContext(ctx, "downstream call timed out",
			"service", service,
			"url", target,
			"timeout", f.timeout,
		)
		f.auditor.LogSecurityEvent(ctx, audit.EventDownstreamTimeout,
			"service "+service+" exceeded its deadline")
		return timedOut()
	}

	f.logger.WarnContext(ctx, "downstream call failed",
		"service", service,
		"url", target,
		"error", err,
	)
	f.auditor.LogSecurityEvent(ctx, audit.EventDownstreamUnavailable,
		"service "+service+" is unreachable")
	return unavailable()
}

// encodeBody round-trips the body through generic JSON so string fields can
// be sanitized regardless of the caller's concrete type.
func encodeBody(body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return json.Marshal(sanitize.Value(decoded))
}
