// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and the forwarder consume them. The
// package stays free of net/http so downstream-facing code can import it
// without pulling transport concerns along.
//
// Usage in services (read values):
//
//	corrID := requestcontext.CorrelationID(ctx)
//	claims := requestcontext.Claims(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCorrelationID(ctx, corrID)
//	ctx = requestcontext.WithBearerToken(ctx, token)
package requestcontext

import "context"

// TokenClaims is the verified content of a session token as seen by the rest
// of the gateway. It is immutable once attached to a context.
type TokenClaims struct {
	Subject     string
	Roles       []string
	Permissions []string
	OfficeID    string
}

// HasPermission reports whether the claims carry the given permission.
func (c *TokenClaims) HasPermission(p string) bool {
	for _, have := range c.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// HasRole reports whether the claims carry the given role.
func (c *TokenClaims) HasRole(r string) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Context key types (unexported for encapsulation).
type (
	claimsKey        struct{}
	bearerTokenKey   struct{}
	correlationIDKey struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
	preferRPCKey     struct{}
)

// Claims retrieves the authenticated token claims, or nil when the request
// carries none.
func Claims(ctx context.Context) *TokenClaims {
	if c, ok := ctx.Value(claimsKey{}).(*TokenClaims); ok {
		return c
	}
	return nil
}

// WithClaims attaches verified claims to the context.
func WithClaims(ctx context.Context, c *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// BearerToken retrieves the raw inbound bearer token for verbatim propagation
// to downstream services.
func BearerToken(ctx context.Context) string {
	if t, ok := ctx.Value(bearerTokenKey{}).(string); ok {
		return t
	}
	return ""
}

// WithBearerToken attaches the raw inbound bearer token.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// CorrelationID retrieves the correlation identifier threaded through every
// downstream call triggered by one inbound request.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID attaches a correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// PreferRPC reports whether the caller signaled a preference for the RPC
// transport on this request.
func PreferRPC(ctx context.Context) bool {
	if p, ok := ctx.Value(preferRPCKey{}).(bool); ok {
		return p
	}
	return false
}

// WithPreferRPC records the caller's transport preference.
func WithPreferRPC(ctx context.Context, prefer bool) context.Context {
	return context.WithValue(ctx, preferRPCKey{}, prefer)
}
