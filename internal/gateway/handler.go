// Package gateway is the HTTP edge: routing, middleware, request validation,
// and translation between downstream outcomes and client responses. Business
// behavior lives in the services it delegates to.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lexgate/internal/audit"
	"lexgate/internal/auth"
	"lexgate/internal/guard"
	"lexgate/internal/health"
	"lexgate/internal/orchestrate"
	"lexgate/internal/platform/admission"
	"lexgate/internal/platform/metrics"
	"lexgate/internal/transport"
	"lexgate/pkg/platform/httputil"
	"lexgate/pkg/requestcontext"
)

// Handler owns the route table and the thin HTTP handlers.
type Handler struct {
	logger    *slog.Logger
	guard     *guard.Guard
	auth      *auth.Service
	selector  *transport.Selector
	engine    *orchestrate.Engine
	health    *health.Checker
	admission admission.Controller
	metrics   *metrics.Metrics
	auditor   audit.Auditor
}

func New(
	logger *slog.Logger,
	g *guard.Guard,
	authSvc *auth.Service,
	selector *transport.Selector,
	engine *orchestrate.Engine,
	checker *health.Checker,
	ctrl admission.Controller,
	m *metrics.Metrics,
	auditor audit.Auditor,
) *Handler {
	return &Handler{
		logger:    logger,
		guard:     g,
		auth:      authSvc,
		selector:  selector,
		engine:    engine,
		health:    checker,
		admission: ctrl,
		metrics:   m,
		auditor:   auditor,
	}
}

// Routes builds the full router. Health and metrics sit outside the /api
// middleware stack so probes are never rate limited.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(h.logger))
	r.Use(Correlation)
	r.Use(ClientMetadata)
	r.Use(RequestLogger(h.logger))

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(Admission(h.admission, h.logger, h.metrics, h.auditor))
		api.Use(ProtocolPreference)

		api.Post("/auth/login", h.handleLogin)
		api.Post("/auth/register", h.handleRegister)

		api.Group(func(authed chi.Router) {
			authed.Use(h.guard.RequireAuth())

			authed.Get("/auth/me", h.handleMe)

			for _, res := range h.resources() {
				h.registerResource(authed, res)
			}

			authed.With(h.guard.RequirePermission("orchestrate")).
				Post("/orchestrate/file-case", h.handleFileCase)
			authed.With(h.guard.RequirePermission("read")).
				Get("/process/{id}/summary", h.handleProcessSummary)
		})
	})

	return r
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[LoginRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[auth.RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}

	identity, err := h.auth.Register(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]auth.Identity{"user": identity})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := requestcontext.Claims(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"username":    claims.Subject,
			"roles":       claims.Roles,
			"permissions": claims.Permissions,
			"office_id":   claims.OfficeID,
		},
	})
}

func (h *Handler) handleFileCase(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[FileCaseRequest](w, r, h.logger)
	if !ok {
		return
	}

	result := h.engine.FileCase(r.Context(), req.FileCaseRequest)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleProcessSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.engine.ProcessSummary(r.Context(), chi.URLParam(r, "id"))
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("fast") {
	case "1", "true", "yes":
		report := h.health.Fast()
		httputil.WriteJSON(w, report.HTTPStatus(), report)
	default:
		report := h.health.CheckAll(r.Context())
		httputil.WriteJSON(w, report.HTTPStatus(), report)
	}
}
