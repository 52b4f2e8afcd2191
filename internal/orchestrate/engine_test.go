package orchestrate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexgate/internal/audit"
	"lexgate/internal/forward"
	"lexgate/internal/platform/config"
	"lexgate/internal/platform/metrics"
	"lexgate/internal/registry"
	"lexgate/internal/transport"
)

var testMetrics = metrics.New()

// fakeProcesses is an in-memory stand-in for the processes service with the
// uniqueness semantics the engine depends on.
type fakeProcesses struct {
	mu       sync.Mutex
	byNumber map[string]map[string]any
	// conflictUntil forces 409 responses for this many creations, to
	// exercise the collision retry loop.
	conflictUntil int
	creations     int
}

func newFakeProcesses(seedNumbers ...string) *fakeProcesses {
	f := &fakeProcesses{byNumber: make(map[string]map[string]any)}
	for _, n := range seedNumbers {
		f.byNumber[n] = map[string]any{"number": n, "title": "seeded"}
	}
	return f
}

func (f *fakeProcesses) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/processes", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := make([]map[string]any, 0, len(f.byNumber))
		for _, p := range f.byNumber {
			list = append(list, p)
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	r.Get("/processes/by-number/{number}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.byNumber[chi.URLParam(req, "number")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Process not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
	r.Post("/processes", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		number, _ := body["number"].(string)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.creations++
		if f.creations <= f.conflictUntil {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"number already used"}`))
			return
		}
		if _, exists := f.byNumber[number]; exists {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"number already used"}`))
			return
		}
		f.byNumber[number] = body
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	})
	return r
}

// fakeResource records item creations and serves filtered lists.
type fakeResource struct {
	mu      sync.Mutex
	created []map[string]any
	failAll bool
}

func (f *fakeResource) handler(listPayload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if f.failAll {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch req.Method {
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(req.Body).Decode(&body)
			f.mu.Lock()
			f.created = append(f.created, body)
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(body)
		default:
			_, _ = w.Write([]byte(listPayload))
		}
	})
}

func (f *fakeResource) lastCreated(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.created)
	return f.created[len(f.created)-1]
}

type engineFixture struct {
	engine    *Engine
	processes *fakeProcesses
	documents *fakeResource
	deadlines *fakeResource
	hearings  *fakeResource
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	fx := &engineFixture{
		processes: newFakeProcesses(),
		documents: &fakeResource{},
		deadlines: &fakeResource{},
		hearings:  &fakeResource{},
	}

	procSrv := httptest.NewServer(fx.processes.handler())
	docSrv := httptest.NewServer(fx.documents.handler(`[{"title":"doc"}]`))
	deadSrv := httptest.NewServer(fx.deadlines.handler(`[{"description":"deadline"}]`))
	hearSrv := httptest.NewServer(fx.hearings.handler(`[{"courtroom":"Sala 1"}]`))
	t.Cleanup(func() {
		procSrv.Close()
		docSrv.Close()
		deadSrv.Close()
		hearSrv.Close()
	})

	reg := registry.FromEntries(
		registry.Entry{Name: config.ServiceProcesses, BaseURL: procSrv.URL},
		registry.Entry{Name: config.ServiceDocuments, BaseURL: docSrv.URL},
		registry.Entry{Name: config.ServiceDeadlines, BaseURL: deadSrv.URL},
		registry.Entry{Name: config.ServiceHearings, BaseURL: hearSrv.URL},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	forwarder := forward.New(reg, 2*time.Second, logger, testMetrics, audit.Nop{})
	selector := transport.NewSelector(
		transport.NewHTTPTransport(forwarder),
		transport.DialAll(context.Background(), reg, 100*time.Millisecond, logger),
	)
	fx.engine = NewEngine(selector, logger, testMetrics, audit.Nop{})
	return fx
}

func Test_FileCase_DocumentOnlyCreatesFreshProcess(t *testing.T) {
	fx := newEngineFixture(t)

	result := fx.engine.FileCase(context.Background(), FileCaseRequest{
		Document: map[string]any{"title": "Initial petition", "content": "...", "author": "Dr. Silva"},
	})

	assert.Equal(t, "ok", result.Overall)
	assert.Equal(t, "PROC-001", result.ProcessNumber)
	require.Equal(t, StepOK, result.Steps[StepProcess].Status)
	require.Equal(t, StepOK, result.Steps[StepDocument].Status)

	// The document's resolved reference equals the freshly created number.
	assert.Equal(t, "PROC-001", fx.documents.lastCreated(t)["process_id"])

	// No deadline or hearing steps were attempted.
	_, hasDeadline := result.Steps[StepDeadline]
	_, hasHearing := result.Steps[StepHearing]
	assert.False(t, hasDeadline)
	assert.False(t, hasHearing)
}

func Test_FileCase_NextAvailableScansExisting(t *testing.T) {
	fx := newEngineFixture(t)
	fx.processes.byNumber["PROC-041"] = map[string]any{"number": "PROC-041"}
	fx.processes.byNumber["PROC-002"] = map[string]any{"number": "PROC-002"}

	result := fx.engine.FileCase(context.Background(), FileCaseRequest{
		Process: &ProcessSpec{Title: "New case"},
	})

	assert.Equal(t, "PROC-042", result.ProcessNumber)
	assert.Equal(t, StepOK, result.Steps[StepProcess].Status)
}

func Test_FileCase_CollisionRetriesWithinBound(t *testing.T) {
	fx := newEngineFixture(t)
	fx.processes.conflictUntil = 2 // first two creations collide

	result := fx.engine.FileCase(context.Background(), FileCaseRequest{
		Process: &ProcessSpec{Number: "proc-010", Title: "Collision case"},
	})

	require.Equal(t, StepOK, result.Steps[StepProcess].Status)
	assert.Equal(t, "PROC-012", result.ProcessNumber)
}

func Test_FileCase_CollisionExhaustionIsConflictForProcessStepOnly(t *testing.T) {
	fx := newEngineFixture(t)
	fx.processes.conflictUntil = maxNumberAttempts + 1

	result := fx.engine.FileCase(context.Background(), FileCaseRequest{
		Process:  &ProcessSpec{Number: "PROC-001", Title: "Doomed"},
		Document: map[string]any{"title": "doc", "content": "c", "author": "a"},
	})

	assert.Equal(t, "ok", result.Overall, "outer status stays ok despite step failures")
	assert.Equal(t, StepConflict, result.Steps[StepProcess].Status)
	// The document could not resolve a process reference and was not created.
	assert.Equal(t, StepUnresolved, result.Steps[StepDocument].Status)
	assert.Empty(t, fx.documents.created)
}

func Test_FileCase_ExplicitReferenceValidated(t *testing.T) {
	fx := newEngineFixture(t)
	fx.processes.byNumber["PROC-100"] = map[string]any{"number": "PROC-100"}

	result := fx.engine.FileCase(context.Background(), FileCaseRequest{
		Document: map[string]any{"title": "doc", "process_id": "PROC-404"},
		Deadline: map[string]any{"description": "appeal window", "due_date": "2026-12-31", "process_id": "proc-100"},
	})

	// The dangling reference fails only the document step.
	assert.Equal(t, StepNotFound, result.Steps[StepDocument].Status)
	assert.Empty(t, fx.documents.created)

	// The sibling with a valid reference still succeeds, normalized upper.
	require.Equal(t, StepOK, result.Steps[StepDeadline].Status)
	assert.Equal(t, "PROC-100", fx.deadlines.lastCreated(t)["process_id"])
}

func Test_FileCase_SiblingFailureIsIsolated(t *testing.T) {
	fx := newEngineFixture(t)
	fx.hearings.failAll = true

	result := fx.engine.FileCase(context.Background(), FileCaseRequest{
		Deadline: map[string]any{"description": "reply", "due_date": "2026-01-15"},
		Hearing:  map[string]any{"date": "2026-02-01", "courtroom": "Sala 2"},
	})

	assert.Equal(t, "ok", result.Overall)
	assert.Equal(t, StepOK, result.Steps[StepDeadline].Status)
	assert.Equal(t, StepFailed, result.Steps[StepHearing].Status)
	// The process created for the request is not rolled back.
	assert.Equal(t, StepOK, result.Steps[StepProcess].Status)
}

func Test_ProcessSummary_DegradesFailedCategoryToEmpty(t *testing.T) {
	fx := newEngineFixture(t)
	fx.hearings.failAll = true

	summary := fx.engine.ProcessSummary(context.Background(), "PROC-007")

	assert.Equal(t, "PROC-007", summary.ProcessID)
	assert.JSONEq(t, `[{"title":"doc"}]`, string(summary.Items["documents"]))
	assert.JSONEq(t, `[{"description":"deadline"}]`, string(summary.Items["deadlines"]))
	assert.JSONEq(t, `[]`, string(summary.Items["hearings"]))
}

func Test_ProcessSummary_PassesProcessFilter(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/documents") {
			gotFilter = r.URL.Query().Get("process_id")
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	reg := registry.FromEntries(
		registry.Entry{Name: config.ServiceDocuments, BaseURL: srv.URL},
		registry.Entry{Name: config.ServiceDeadlines, BaseURL: srv.URL},
		registry.Entry{Name: config.ServiceHearings, BaseURL: srv.URL},
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	forwarder := forward.New(reg, time.Second, logger, testMetrics, audit.Nop{})
	selector := transport.NewSelector(
		transport.NewHTTPTransport(forwarder),
		transport.DialAll(context.Background(), reg, 100*time.Millisecond, logger),
	)
	engine := NewEngine(selector, logger, testMetrics, audit.Nop{})

	engine.ProcessSummary(context.Background(), "PROC-031")
	assert.Equal(t, "PROC-031", gotFilter)
}
