package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"lexgate/internal/forward"
	"lexgate/internal/registry"
	"lexgate/pkg/platform/sanitize"
	"lexgate/pkg/requestcontext"
)

// RPCClient holds one gRPC channel per service that advertises an RPC
// address. Channels are dialed once at startup; a service whose channel never
// reached ready stays unavailable for the process lifetime.
type RPCClient struct {
	conns     map[string]*grpc.ClientConn
	available map[string]bool
	timeout   time.Duration
	logger    *slog.Logger
}

// DialAll connects to every registered service with an RPC address, waiting
// up to timeout for each channel to become ready. Dial failures downgrade the
// service to HTTP-only; they are not fatal.
func DialAll(ctx context.Context, reg *registry.Registry, timeout time.Duration, logger *slog.Logger) *RPCClient {
	c := &RPCClient{
		conns:     make(map[string]*grpc.ClientConn),
		available: make(map[string]bool),
		timeout:   timeout,
		logger:    logger,
	}

	for _, name := range reg.Names() {
		entry, err := reg.Lookup(name)
		if err != nil || entry.RPCAddr == "" {
			continue
		}
		conn, err := grpc.NewClient(entry.RPCAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		)
		if err != nil {
			logger.Warn("rpc channel setup failed", "service", name, "addr", entry.RPCAddr, "error", err)
			continue
		}
		c.conns[name] = conn
		c.available[name] = waitReady(ctx, conn, timeout)
		if !c.available[name] {
			logger.Warn("rpc channel not ready, falling back to http", "service", name, "addr", entry.RPCAddr)
		}
	}
	return c
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		st := conn.GetState()
		if st == connectivity.Ready {
			return true
		}
		if !conn.WaitForStateChange(ctx, st) {
			return false
		}
	}
}

// Available reports whether the service's RPC channel connected at startup.
func (c *RPCClient) Available(service string) bool {
	return c.available[service]
}

// AvailableServices lists services with a live RPC channel, for health
// reporting.
func (c *RPCClient) AvailableServices() []string {
	var out []string
	for name, ok := range c.available {
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// Transport returns the Transport view of one service's channel.
func (c *RPCClient) Transport(service string) Transport {
	return &rpcTransport{client: c, service: service}
}

// Close tears down every channel.
func (c *RPCClient) Close() {
	for _, conn := range c.conns {
		_ = conn.Close()
	}
}

type rpcTransport struct {
	client  *RPCClient
	service string
}

func (t *rpcTransport) Name() string { return "rpc" }

func (t *rpcTransport) Invoke(ctx context.Context, req forward.Request) forward.Outcome {
	conn, ok := t.client.conns[t.service]
	if !ok {
		return forward.Outcome{Class: forward.ClassUnavailable, Status: http.StatusBadGateway}
	}

	method, created := rpcMethod(req)

	// Body, query, and the path's resource identity collapse into one JSON
	// message; resource services treat query filters as ordinary fields. The
	// body gets the same recursive sanitization as the HTTP path.
	message := map[string]any{}
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return forward.Outcome{Class: forward.ClassUnavailable, Status: http.StatusBadGateway}
		}
		if err := json.Unmarshal(raw, &message); err != nil {
			return forward.Outcome{Class: forward.ClassUnavailable, Status: http.StatusBadGateway}
		}
		if clean, ok := sanitize.Value(message).(map[string]any); ok {
			message = clean
		}
	}
	for key := range req.Query {
		message[key] = req.Query.Get(key)
	}
	if field, value, ok := pathIdentity(req.Path); ok {
		message[field] = value
	}

	if token := requestcontext.BearerToken(ctx); token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	if corrID := requestcontext.CorrelationID(ctx); corrID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-correlation-id", corrID)
	}

	ctx, cancel := context.WithTimeout(ctx, t.client.timeout)
	defer cancel()

	var reply json.RawMessage
	if err := conn.Invoke(ctx, method, message, &reply); err != nil {
		return t.mapError(ctx, method, err)
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}
	return forward.Outcome{Class: forward.ClassOK, Status: statusCode, Payload: reply}
}

// rpcMethod maps the REST shape onto the resource service's RPC surface.
// The second return reports whether the call creates a resource.
func rpcMethod(req forward.Request) (string, bool) {
	service := fmt.Sprintf("/lexgate.%s.Resource/", req.Service)
	trimmed := strings.Trim(req.Path, "/")

	switch req.Method {
	case http.MethodPost:
		return service + "CreateItem", true
	case http.MethodPut:
		return service + "UpdateItem", false
	case http.MethodDelete:
		return service + "DeleteItem", false
	default:
		if strings.HasSuffix(trimmed, "/today") {
			return service + "ListTodayItems", false
		}
		if _, _, ok := pathIdentity(req.Path); ok {
			return service + "GetItem", false
		}
		return service + "ListItems", false
	}
}

// pathIdentity extracts the resource identity trailing the collection
// segment: "/documents/doc-1" addresses the item "doc-1", and the process
// lookup "/processes/by-number/PROC-001" addresses by number instead of id.
// The "today" view routes are collection reads and carry no identity.
func pathIdentity(path string) (field, value string, ok bool) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	last := segs[len(segs)-1]
	if len(segs) < 2 || last == "" || last == "today" {
		return "", "", false
	}
	if segs[len(segs)-2] == "by-number" {
		return "number", last, true
	}
	return "id", last, true
}

func (t *rpcTransport) mapError(ctx context.Context, method string, err error) forward.Outcome {
	t.client.logger.WarnContext(ctx, "rpc call failed",
		"service", t.service,
		"method", method,
		"error", err,
	)

	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return forward.Outcome{Class: forward.ClassTimeout, Status: http.StatusGatewayTimeout}
	case codes.NotFound:
		return forward.Outcome{Class: forward.ClassDownstreamError, Status: http.StatusNotFound}
	case codes.AlreadyExists:
		return forward.Outcome{Class: forward.ClassDownstreamError, Status: http.StatusConflict}
	case codes.InvalidArgument:
		return forward.Outcome{Class: forward.ClassDownstreamError, Status: http.StatusBadRequest}
	default:
		return forward.Outcome{Class: forward.ClassUnavailable, Status: http.StatusBadGateway}
	}
}
