package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"lexgate/internal/audit"
	"lexgate/internal/forward"
	"lexgate/internal/platform/config"
	"lexgate/internal/registry"
	dErrors "lexgate/pkg/domain-errors"
)

// TokenIssuer mints session tokens for authenticated identities.
type TokenIssuer interface {
	Issue(subject string, roles, permissions []string, officeID string) (string, error)
}

// Service runs the login and registration flows. It prefers the registered
// auth service and falls back to the local store when none is configured or
// the service is down, so a partial outage never locks everyone out.
type Service struct {
	store     *Store
	registry  *registry.Registry
	forwarder *forward.Forwarder
	tokens    TokenIssuer
	auditor   audit.Auditor
	logger    *slog.Logger
}

func NewService(store *Store, reg *registry.Registry, fwd *forward.Forwarder, tokens TokenIssuer, auditor audit.Auditor, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		registry:  reg,
		forwarder: fwd,
		tokens:    tokens,
		auditor:   auditor,
		logger:    logger,
	}
}

// LoginResult is what a successful login hands back to the HTTP layer.
type LoginResult struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// userEnvelope matches the auth service's response shape.
type userEnvelope struct {
	User Identity `json:"user"`
}

// Login verifies credentials and mints a token. The token is always minted by
// the gateway regardless of who verified the password.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	identity, err := s.verify(ctx, username, password)
	if err != nil {
		s.auditor.LogSecurityEvent(ctx, audit.EventLoginFailed, "login failed for "+username)
		return LoginResult{}, err
	}

	signed, err := s.tokens.Issue(identity.Username, identity.Roles, identity.Permissions, identity.OfficeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "token issuance failed", "username", username, "error", err)
		return LoginResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "issuing token")
	}

	s.auditor.LogSecurityEvent(ctx, audit.EventLoginSuccess, "login succeeded for "+username)
	return LoginResult{Token: signed, User: identity}, nil
}

func (s *Service) verify(ctx context.Context, username, password string) (Identity, error) {
	if !s.registry.Has(config.ServiceAuth) {
		return s.store.Authenticate(username, password)
	}

	outcome := s.forwarder.Forward(ctx, forward.Request{
		Service: config.ServiceAuth,
		Method:  http.MethodPost,
		Path:    "/auth/login",
		Body:    map[string]string{"username": username, "password": password},
	})

	switch outcome.Class {
	case forward.ClassOK:
		var envelope userEnvelope
		if err := json.Unmarshal(outcome.Payload, &envelope); err != nil {
			return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding auth service response")
		}
		return envelope.User, nil
	case forward.ClassTimeout, forward.ClassUnavailable:
		// The auth service is configured but not answering. The seeded
		// store still knows the built-in accounts.
		s.logger.WarnContext(ctx, "auth service unreachable, using local store", "username", username)
		return s.store.Authenticate(username, password)
	default:
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
}

// RegisterRequest is a new account as callers submit it.
type RegisterRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	OfficeID    string   `json:"office_id,omitempty"`
}

// Validate applies the same minimum lengths the services enforce.
func (r RegisterRequest) Validate() error {
	if len(r.Username) < 3 {
		return dErrors.New(dErrors.CodeValidation, "username must be at least 3 characters")
	}
	if len(r.Password) < 6 {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}
	return nil
}

// Register creates an account, on the auth service when registered and in the
// local store otherwise. New accounts default to read and write.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Identity, error) {
	if len(req.Roles) == 0 {
		req.Roles = []string{"user"}
	}
	if len(req.Permissions) == 0 {
		req.Permissions = []string{"read", "write"}
	}

	if !s.registry.Has(config.ServiceAuth) {
		identity := Identity{
			Username:    req.Username,
			Roles:       req.Roles,
			Permissions: req.Permissions,
			OfficeID:    req.OfficeID,
		}
		if err := s.store.Create(identity, req.Password); err != nil {
			return Identity{}, err
		}
		return identity, nil
	}

	outcome := s.forwarder.Forward(ctx, forward.Request{
		Service: config.ServiceAuth,
		Method:  http.MethodPost,
		Path:    "/auth/register",
		Body:    req,
	})
	if !outcome.OK() {
		return Identity{}, outcome.DomainError(config.ServiceAuth)
	}

	var envelope userEnvelope
	if err := json.Unmarshal(outcome.Payload, &envelope); err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding auth service response")
	}
	return envelope.User, nil
}
