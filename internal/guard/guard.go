// Package guard implements the composable authorization predicates evaluated
// in front of every protected handler. Guards are chi middleware; a route
// declares them in order and the chain short-circuits on the first failure.
//
// RequirePermission and RequireRole refuse to run without a prior successful
// RequireAuth: finding no claims in the context is a programming error
// answered with 500, never 403, so a misordered chain cannot silently
// downgrade authentication into authorization.
package guard

import (
	"log/slog"
	"net/http"
	"strings"

	"lexgate/internal/audit"
	"lexgate/internal/platform/metrics"
	dErrors "lexgate/pkg/domain-errors"
	"lexgate/pkg/platform/httputil"
	"lexgate/pkg/requestcontext"
)

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (*requestcontext.TokenClaims, error)
}

// Guard builds the authentication and authorization middleware for a router.
type Guard struct {
	validator TokenValidator
	auditor   audit.Auditor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(validator TokenValidator, auditor audit.Auditor, m *metrics.Metrics, logger *slog.Logger) *Guard {
	return &Guard{validator: validator, auditor: auditor, metrics: m, logger: logger}
}

// Callers get the same generic message for a missing header, a malformed
// token, a bad signature, and an expired token.
const genericUnauthorized = "authentication required"

// RequireAuth validates the bearer token and attaches the claims and the raw
// token to the request context. The raw token is kept for verbatim
// propagation to downstream services.
func (g *Guard) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || raw == "" {
				g.logger.WarnContext(ctx, "unauthenticated request - missing token",
					"path", r.URL.Path,
					"correlation_id", requestcontext.CorrelationID(ctx),
				)
				g.metrics.IncrementAuthFailure("missing_token")
				g.auditor.LogSecurityEvent(ctx, audit.EventAuthMissing, "request without bearer token: "+r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, genericUnauthorized))
				return
			}

			claims, err := g.validator.Validate(raw)
			if err != nil {
				g.logger.WarnContext(ctx, "unauthenticated request - invalid token",
					"path", r.URL.Path,
					"error", err,
					"correlation_id", requestcontext.CorrelationID(ctx),
				)
				g.metrics.IncrementAuthFailure("invalid_token")
				g.auditor.LogSecurityEvent(ctx, audit.EventAuthInvalid, "token rejected: "+r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, genericUnauthorized))
				return
			}

			ctx = requestcontext.WithClaims(ctx, claims)
			ctx = requestcontext.WithBearerToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests whose claims lack the permission.
func (g *Guard) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := requestcontext.Claims(ctx)
			if claims == nil {
				g.invariantViolation(w, r, "permission guard evaluated without authentication")
				return
			}
			if !claims.HasPermission(permission) {
				g.metrics.IncrementAuthFailure("permission_denied")
				g.auditor.LogSecurityEvent(ctx, audit.EventPermissionDenied,
					"subject "+claims.Subject+" lacks permission "+permission+" for "+r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose claims lack the role.
func (g *Guard) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := requestcontext.Claims(ctx)
			if claims == nil {
				g.invariantViolation(w, r, "role guard evaluated without authentication")
				return
			}
			if !claims.HasRole(role) {
				g.metrics.IncrementAuthFailure("role_denied")
				g.auditor.LogSecurityEvent(ctx, audit.EventRoleDenied,
					"subject "+claims.Subject+" lacks role "+role+" for "+r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) invariantViolation(w http.ResponseWriter, r *http.Request, detail string) {
	ctx := r.Context()
	g.logger.ErrorContext(ctx, "guard ordering invariant violated",
		"path", r.URL.Path,
		"detail", detail,
	)
	g.auditor.LogSecurityEvent(ctx, audit.EventGuardInvariant, detail+": "+r.URL.Path)
	httputil.WriteError(w, dErrors.New(dErrors.CodeInvariantViolation, detail))
}
