package guard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexgate/internal/audit"
	"lexgate/internal/token"
	"lexgate/pkg/requestcontext"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.EventType
}

func (a *recordingAuditor) LogSecurityEvent(_ context.Context, eventType audit.EventType, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
}

func (a *recordingAuditor) recorded() []audit.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.EventType(nil), a.events...)
}

func testGuard(t *testing.T) (*Guard, *token.Service, *recordingAuditor) {
	t.Helper()
	tokens := token.NewService("guard-test-key", "lexgate", time.Minute)
	auditor := &recordingAuditor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(tokens, auditor, nil, logger), tokens, auditor
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func Test_RequireAuth_MissingToken(t *testing.T) {
	g, _, auditor := testGuard(t)

	router := chi.NewRouter()
	router.With(g.RequireAuth()).Get("/protected", okHandler)

	for name, header := range map[string]string{
		"no header":     "",
		"wrong scheme":  "Basic dXNlcjpwYXNz",
		"empty bearer":  "Bearer ",
		"bare keyword":  "Bearer",
		"token no tag": "eyJhbGciOiJIUzI1NiJ9.e30.sig",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unauthorized", body["error"])
			assert.Equal(t, "authentication required", body["error_description"])
		})
	}

	events := auditor.recorded()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, audit.EventAuthMissing, ev)
	}
}

func Test_RequireAuth_InvalidToken(t *testing.T) {
	g, _, auditor := testGuard(t)

	router := chi.NewRouter()
	router.With(g.RequireAuth()).Get("/protected", okHandler)

	// Signed with a different key than the guard validates with.
	other := token.NewService("some-other-key", "lexgate", time.Minute)
	forged, err := other.Issue("mallory", []string{"admin"}, []string{"write"}, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// The envelope never distinguishes a bad signature from a missing header.
	assert.Equal(t, "authentication required", body["error_description"])

	require.Equal(t, []audit.EventType{audit.EventAuthInvalid}, auditor.recorded())
}

func Test_RequireAuth_AttachesClaimsAndRawToken(t *testing.T) {
	g, tokens, _ := testGuard(t)

	issued, err := tokens.Issue("alice", []string{"lawyer"}, []string{"read", "write"}, "office-7")
	require.NoError(t, err)

	var gotClaims *requestcontext.TokenClaims
	var gotRaw string
	router := chi.NewRouter()
	router.With(g.RequireAuth()).Get("/protected", func(w http.ResponseWriter, r *http.Request) {
		gotClaims = requestcontext.Claims(r.Context())
		gotRaw = requestcontext.BearerToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "alice", gotClaims.Subject)
	assert.Equal(t, []string{"lawyer"}, gotClaims.Roles)
	assert.Equal(t, "office-7", gotClaims.OfficeID)
	assert.True(t, gotClaims.HasPermission("write"))
	assert.Equal(t, issued, gotRaw, "raw token must survive for downstream propagation")
}

func Test_RequirePermission(t *testing.T) {
	g, tokens, auditor := testGuard(t)

	router := chi.NewRouter()
	router.With(g.RequireAuth(), g.RequirePermission("write")).Post("/documents", okHandler)

	issue := func(t *testing.T, permissions []string) string {
		t.Helper()
		issued, err := tokens.Issue("bob", []string{"intern"}, permissions, "")
		require.NoError(t, err)
		return issued
	}

	t.Run("granted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, []string{"read", "write"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, []string{"read"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "forbidden", body["error"])
		assert.Equal(t, "access denied", body["error_description"])
		assert.Contains(t, auditor.recorded(), audit.EventPermissionDenied)
	})
}

func Test_RequireRole(t *testing.T) {
	g, tokens, auditor := testGuard(t)

	router := chi.NewRouter()
	router.With(g.RequireAuth(), g.RequireRole("admin")).Delete("/documents/{id}", okHandler)

	t.Run("granted", func(t *testing.T) {
		issued, err := tokens.Issue("carol", []string{"admin"}, nil, "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodDelete, "/documents/42", nil)
		req.Header.Set("Authorization", "Bearer "+issued)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied", func(t *testing.T) {
		issued, err := tokens.Issue("dave", []string{"lawyer"}, []string{"write"}, "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodDelete, "/documents/42", nil)
		req.Header.Set("Authorization", "Bearer "+issued)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, auditor.recorded(), audit.EventRoleDenied)
	})
}

func Test_GuardOrderingInvariant(t *testing.T) {
	g, tokens, auditor := testGuard(t)

	// Both guards mounted without RequireAuth in front of them. A valid
	// token in the header must not rescue the misordered chain.
	router := chi.NewRouter()
	router.With(g.RequirePermission("read")).Get("/broken-permission", okHandler)
	router.With(g.RequireRole("admin")).Get("/broken-role", okHandler)

	issued, err := tokens.Issue("admin", []string{"admin"}, []string{"read"}, "")
	require.NoError(t, err)

	for _, path := range []string{"/broken-permission", "/broken-role"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+issued)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "invariant_violation", body["error"])
		assert.Empty(t, body["error_description"], "internal detail must not leak")
	}

	events := auditor.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventGuardInvariant, events[0])
	assert.Equal(t, audit.EventGuardInvariant, events[1])
}
