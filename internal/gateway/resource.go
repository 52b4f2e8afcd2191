package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexgate/internal/forward"
	"lexgate/internal/orchestrate"
	"lexgate/internal/platform/config"
	"lexgate/pkg/platform/httputil"
)

const protocolHeader = "X-Protocol-Used"

// resource describes one downstream collection the gateway proxies. decode
// parses and validates the write payload for the resource's own schema.
type resource struct {
	service  string
	base     string
	decode   func(w http.ResponseWriter, r *http.Request, h *Handler) (any, bool)
	hasToday bool
}

func (h *Handler) resources() []resource {
	return []resource{
		{
			service: config.ServiceDocuments,
			base:    "/documents",
			decode: func(w http.ResponseWriter, r *http.Request, h *Handler) (any, bool) {
				return httputil.Decode[DocumentRequest](w, r, h.logger)
			},
		},
		{
			service:  config.ServiceDeadlines,
			base:     "/deadlines",
			hasToday: true,
			decode: func(w http.ResponseWriter, r *http.Request, h *Handler) (any, bool) {
				return httputil.Decode[DeadlineRequest](w, r, h.logger)
			},
		},
		{
			service:  config.ServiceHearings,
			base:     "/hearings",
			hasToday: true,
			decode: func(w http.ResponseWriter, r *http.Request, h *Handler) (any, bool) {
				return httputil.Decode[HearingRequest](w, r, h.logger)
			},
		},
		{
			service: config.ServiceProcesses,
			base:    "/processes",
			decode: func(w http.ResponseWriter, r *http.Request, h *Handler) (any, bool) {
				req, ok := httputil.Decode[ProcessRequest](w, r, h.logger)
				if !ok {
					return nil, false
				}
				// Validate guarantees the number matches; store it canonical.
				req.Number, _ = orchestrate.NormalizeNumber(req.Number)
				return req, true
			},
		},
	}
}

// registerResource mounts the CRUD routes for one downstream collection.
// Reads need the read permission, writes the write permission, deletes the
// delete permission.
func (h *Handler) registerResource(r chi.Router, res resource) {
	r.With(h.guard.RequirePermission("read")).Get(res.base, func(w http.ResponseWriter, req *http.Request) {
		h.proxy(w, req, forward.Request{
			Service: res.service,
			Method:  http.MethodGet,
			Path:    res.base,
			Query:   req.URL.Query(),
		})
	})

	r.With(h.guard.RequirePermission("write")).Post(res.base, func(w http.ResponseWriter, req *http.Request) {
		body, ok := res.decode(w, req, h)
		if !ok {
			return
		}
		h.proxy(w, req, forward.Request{
			Service: res.service,
			Method:  http.MethodPost,
			Path:    res.base,
			Body:    body,
		})
	})

	if res.hasToday {
		r.With(h.guard.RequirePermission("read")).Get(res.base+"/today", func(w http.ResponseWriter, req *http.Request) {
			h.proxy(w, req, forward.Request{
				Service: res.service,
				Method:  http.MethodGet,
				Path:    res.base + "/today",
			})
		})
	}

	r.With(h.guard.RequirePermission("read")).Get(res.base+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		h.proxy(w, req, forward.Request{
			Service: res.service,
			Method:  http.MethodGet,
			Path:    res.base + "/" + chi.URLParam(req, "id"),
		})
	})

	r.With(h.guard.RequirePermission("write")).Put(res.base+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		body, ok := res.decode(w, req, h)
		if !ok {
			return
		}
		h.proxy(w, req, forward.Request{
			Service: res.service,
			Method:  http.MethodPut,
			Path:    res.base + "/" + chi.URLParam(req, "id"),
			Body:    body,
		})
	})

	r.With(h.guard.RequirePermission("delete")).Delete(res.base+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		h.proxy(w, req, forward.Request{
			Service: res.service,
			Method:  http.MethodDelete,
			Path:    res.base + "/" + chi.URLParam(req, "id"),
		})
	})
}

// proxy issues one downstream call over the selected transport and relays the
// result. Downstream responses pass through status and body untouched;
// transport failures translate into the gateway's error envelope.
func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, req forward.Request) {
	ctx := r.Context()
	tr := h.selector.Select(ctx, req.Service)
	w.Header().Set(protocolHeader, tr.Name())

	outcome := tr.Invoke(ctx, req)
	switch outcome.Class {
	case forward.ClassOK, forward.ClassDownstreamError:
		h.relay(w, outcome)
	default:
		httputil.WriteError(w, outcome.DomainError(req.Service))
	}
}

func (h *Handler) relay(w http.ResponseWriter, outcome forward.Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcome.Status)
	if len(outcome.Payload) > 0 {
		_, _ = w.Write(outcome.Payload)
	}
}
