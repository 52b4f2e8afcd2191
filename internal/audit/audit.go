// Package audit routes security-relevant events to configured sinks. Emitting
// an event must never fail the request that triggered it; sinks log their own
// delivery problems and move on.
package audit

import (
	"context"
	"time"

	"github.com/mssola/useragent"

	"lexgate/pkg/requestcontext"
)

// EventType names a security-relevant occurrence.
type EventType string

const (
	EventLoginSuccess          EventType = "login_success"
	EventLoginFailed           EventType = "login_failed"
	EventAuthMissing           EventType = "auth_missing_token"
	EventAuthInvalid           EventType = "auth_invalid_token"
	EventPermissionDenied      EventType = "permission_denied"
	EventRoleDenied            EventType = "role_denied"
	EventGuardInvariant        EventType = "guard_invariant_violation"
	EventDownstreamUnavailable EventType = "downstream_unavailable"
	EventDownstreamTimeout     EventType = "downstream_timeout"
	EventRateLimited           EventType = "rate_limit_exceeded"
	EventOrchestrationDone     EventType = "orchestration_completed"
	EventOrchestrationError    EventType = "orchestration_error"
	EventHealthCheckError      EventType = "health_check_error"
)

// Event is one security-audit record. Client metadata and the correlation id
// are captured from the request context at emission time.
type Event struct {
	Type          EventType `json:"type"`
	Details       string    `json:"details"`
	Actor         string    `json:"actor,omitempty"`
	ClientIP      string    `json:"client_ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Browser       string    `json:"browser,omitempty"`
	OS            string    `json:"os,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Auditor is the collaborator interface handlers and middleware depend on.
type Auditor interface {
	LogSecurityEvent(ctx context.Context, eventType EventType, details string)
}

// enrich fills an event from the request context.
func enrich(ctx context.Context, eventType EventType, details string) Event {
	ev := Event{
		Type:          eventType,
		Details:       details,
		ClientIP:      requestcontext.ClientIP(ctx),
		UserAgent:     requestcontext.UserAgent(ctx),
		CorrelationID: requestcontext.CorrelationID(ctx),
		Timestamp:     time.Now().UTC(),
	}
	if claims := requestcontext.Claims(ctx); claims != nil {
		ev.Actor = claims.Subject
	}
	if ev.UserAgent != "" {
		ua := useragent.New(ev.UserAgent)
		name, version := ua.Browser()
		if name != "" {
			ev.Browser = name + " " + version
		}
		ev.OS = ua.OS()
	}
	return ev
}

// Multi fans one event out to every sink.
type Multi []Auditor

func (m Multi) LogSecurityEvent(ctx context.Context, eventType EventType, details string) {
	for _, sink := range m {
		sink.LogSecurityEvent(ctx, eventType, details)
	}
}

// Nop discards events; useful in tests that don't assert on auditing.
type Nop struct{}

func (Nop) LogSecurityEvent(context.Context, EventType, string) {}
