// Package token issues and validates the signed session tokens the gateway
// hands out at login and checks on every authenticated request.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "lexgate/pkg/domain-errors"
	"lexgate/pkg/requestcontext"
)

// Claims is the JWT payload carried by gateway session tokens. The jti claim
// exists to support future revocation and is otherwise unused.
type Claims struct {
	Subject     string   `json:"sub_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	OfficeID    string   `json:"office_id,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies session tokens. The signing key is process-wide
// configuration loaded once at startup; rotating it invalidates every
// outstanding token.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewService builds a token service with the given signing key and token
// lifetime.
func NewService(signingKey string, issuer string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue mints a signed token for the given identity. Expiry is always
// strictly after issuance.
func (s *Service) Issue(subject string, roles, permissions []string, officeID string) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Subject:     subject,
		Roles:       roles,
		Permissions: permissions,
		OfficeID:    officeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate parses and verifies a token. Malformed tokens, bad signatures, and
// expired tokens all collapse into the same unauthorized error so callers
// never reveal which check failed.
func (s *Service) Validate(tokenString string) (*requestcontext.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	return &requestcontext.TokenClaims{
		Subject:     claims.Subject,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		OfficeID:    claims.OfficeID,
	}, nil
}
