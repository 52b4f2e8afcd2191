package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes security events to the structured log. It is always
// configured; Kafka delivery is layered on top when brokers are present.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) LogSecurityEvent(ctx context.Context, eventType EventType, details string) {
	ev := enrich(ctx, eventType, details)
	s.logger.WarnContext(ctx, "security event",
		"event_type", ev.Type,
		"details", ev.Details,
		"actor", ev.Actor,
		"client_ip", ev.ClientIP,
		"browser", ev.Browser,
		"os", ev.OS,
		"correlation_id", ev.CorrelationID,
	)
}
