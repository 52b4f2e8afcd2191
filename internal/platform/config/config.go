package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Service identifies a downstream resource service by its logical name.
// These names are the registry keys every handler references.
const (
	ServiceDocuments = "documents"
	ServiceDeadlines = "deadlines"
	ServiceHearings  = "hearings"
	ServiceProcesses = "processes"
	ServiceAuth      = "auth"
)

// ServiceEndpoint holds the addresses for one downstream service.
type ServiceEndpoint struct {
	BaseURL string
	RPCAddr string
}

// Gateway captures process-wide configuration. It is built once at startup
// and never mutated afterwards; every component receives it by value or holds
// a reference to the immutable registry built from it.
type Gateway struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration

	Services map[string]ServiceEndpoint

	RequestTimeout time.Duration
	RPCEnabled     bool

	RedisURL           string
	RateLimitPerMinute int

	KafkaBrokers []string
	AuditTopic   string

	LogLevel string
}

// FromEnv builds a Gateway config from environment variables so main stays
// lean. Defaults target local development; the signing key default is flagged
// at startup.
func FromEnv() Gateway {
	cfg := Gateway{
		Addr:          envOr("GATEWAY_ADDR", ":8000"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", DefaultSigningKey),
		TokenTTL:      envDuration("TOKEN_TTL", 24*time.Hour),
		Services: map[string]ServiceEndpoint{
			ServiceDocuments: {
				BaseURL: envOr("DOCUMENTS_URL", "http://127.0.0.1:5001"),
				RPCAddr: os.Getenv("DOCUMENTS_RPC_ADDR"),
			},
			ServiceDeadlines: {
				BaseURL: envOr("DEADLINES_URL", "http://127.0.0.1:5002"),
				RPCAddr: os.Getenv("DEADLINES_RPC_ADDR"),
			},
			ServiceHearings: {
				BaseURL: envOr("HEARINGS_URL", "http://127.0.0.1:5003"),
				RPCAddr: os.Getenv("HEARINGS_RPC_ADDR"),
			},
			ServiceProcesses: {
				BaseURL: envOr("PROCESSES_URL", "http://127.0.0.1:5005"),
				RPCAddr: os.Getenv("PROCESSES_RPC_ADDR"),
			},
			ServiceAuth: {
				BaseURL: os.Getenv("AUTH_URL"),
			},
		},
		RequestTimeout:     envDuration("REQUEST_TIMEOUT", 5*time.Second),
		RPCEnabled:         envOr("RPC_ENABLED", "true") == "true",
		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 200),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:         envOr("AUDIT_TOPIC", "lexgate.audit.security"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
	}
	return cfg
}

// DefaultSigningKey is the development fallback. Rotating or replacing the
// key invalidates every outstanding token; that is accepted behavior.
const DefaultSigningKey = "dev-secret-key-change-in-production"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
