package gateway

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"lexgate/internal/audit"
	"lexgate/internal/platform/admission"
	"lexgate/internal/platform/metrics"
	dErrors "lexgate/pkg/domain-errors"
	"lexgate/pkg/platform/httputil"
	"lexgate/pkg/requestcontext"
)

const correlationHeader = "X-Correlation-ID"

// Correlation threads a correlation id through the request context and echoes
// it on the response. Downstream forwards reuse the same id.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithCorrelationID(r.Context(), id)))
	})
}

// ClientMetadata captures the client address and user agent for audit
// enrichment.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIP(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ProtocolPreference records whether the caller asked for the RPC transport,
// via header or query parameter. Preference is advisory; the selector falls
// back to HTTP silently when no channel is available.
func ProtocolPreference(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefer := strings.EqualFold(r.Header.Get("X-Prefer-Protocol"), "grpc") ||
			strings.EqualFold(r.URL.Query().Get("protocol"), "grpc")
		next.ServeHTTP(w, r.WithContext(requestcontext.WithPreferRPC(r.Context(), prefer)))
	})
}

// Admission rejects requests over the per-client rate limit with 429.
// Controller errors fail open; capacity protection must not become an outage.
func Admission(ctrl admission.Controller, logger *slog.Logger, m *metrics.Metrics, auditor audit.Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			allowed, err := ctrl.Allow(ctx, requestcontext.ClientIP(ctx))
			if err != nil {
				logger.WarnContext(ctx, "admission check degraded", "error", err)
			}
			if !allowed {
				m.IncrementAdmissionRejected()
				auditor.LogSecurityEvent(ctx, audit.EventRateLimited,
					"rate limit exceeded for "+requestcontext.ClientIP(ctx))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger emits one structured line per completed request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ctx := r.Context()
			logger.InfoContext(ctx, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", requestcontext.ClientIP(ctx),
				"correlation_id", requestcontext.CorrelationID(ctx),
			)
		})
	}
}

// Recovery turns a handler panic into a 500 instead of tearing down the
// connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "handler panic",
						"path", r.URL.Path,
						"panic", rec,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
