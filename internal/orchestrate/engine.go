// Package orchestrate composes forwarder calls into the multi-service
// workflows the gateway exposes: filing a case (one process plus dependent
// documents, deadlines, and hearings) and the read-side process summary.
//
// The write path is deliberately best-effort fan-out: every attempted step's
// outcome is recorded, a failed step never aborts its siblings, and a created
// process is never rolled back because a dependent item failed.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"lexgate/internal/audit"
	"lexgate/internal/forward"
	"lexgate/internal/platform/config"
	"lexgate/internal/platform/metrics"
	"lexgate/internal/transport"
	"lexgate/pkg/requestcontext"
)

// maxNumberAttempts bounds the collision retry loop for process creation.
const maxNumberAttempts = 5

// Engine drives the multi-step workflows.
type Engine struct {
	selector *transport.Selector
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Auditor
	tracer   trace.Tracer
}

func NewEngine(selector *transport.Selector, logger *slog.Logger, m *metrics.Metrics, auditor audit.Auditor) *Engine {
	return &Engine{
		selector: selector,
		logger:   logger,
		metrics:  m,
		auditor:  auditor,
		tracer:   otel.Tracer("lexgate/orchestrate"),
	}
}

func (e *Engine) invoke(ctx context.Context, req forward.Request) forward.Outcome {
	return e.selector.Select(ctx, req.Service).Invoke(ctx, req)
}

// FileCase runs the write-path workflow. The process step completes before
// any dependent step is attempted; the dependent steps then run concurrently
// and fail independently.
func (e *Engine) FileCase(ctx context.Context, req FileCaseRequest) Result {
	ctx, span := e.tracer.Start(ctx, "orchestrate.file_case",
		trace.WithAttributes(attribute.String("correlation_id", requestcontext.CorrelationID(ctx))))
	defer span.End()

	start := time.Now()
	result := Result{Overall: "ok", Steps: make(map[string]StepOutcome)}

	processStep, number := e.createProcess(ctx, req.Process)
	result.Steps[StepProcess] = processStep
	result.ProcessNumber = number
	e.metrics.IncrementStep(StepProcess, string(processStep.Status))

	items := []struct {
		step    string
		service string
		path    string
		body    map[string]any
	}{
		{StepDocument, config.ServiceDocuments, "/documents", req.Document},
		{StepDeadline, config.ServiceDeadlines, "/deadlines", req.Deadline},
		{StepHearing, config.ServiceHearings, "/hearings", req.Hearing},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		if item.body == nil {
			continue
		}
		item := item
		g.Go(func() error {
			outcome := e.createDependent(gctx, item.service, item.path, item.body, number)
			mu.Lock()
			result.Steps[item.step] = outcome
			mu.Unlock()
			e.metrics.IncrementStep(item.step, string(outcome.Status))
			return nil
		})
	}
	// Steps never return errors through the group; failures live in Steps.
	_ = g.Wait()

	e.logger.InfoContext(ctx, "file-case workflow completed",
		"process_number", number,
		"steps", len(result.Steps),
		"duration_ms", time.Since(start).Milliseconds(),
		"correlation_id", requestcontext.CorrelationID(ctx),
	)
	e.auditor.LogSecurityEvent(ctx, audit.EventOrchestrationDone,
		fmt.Sprintf("file-case completed with %d steps for process %s", len(result.Steps), number))
	return result
}

// createProcess determines a candidate number and creates the process,
// retrying deterministically on uniqueness conflicts. It returns the step
// outcome and the created number ("" when creation failed; dependent steps
// without their own reference then become unresolvable).
func (e *Engine) createProcess(ctx context.Context, spec *ProcessSpec) (StepOutcome, string) {
	if spec == nil {
		spec = &ProcessSpec{}
	}
	if spec.Title == "" {
		spec.Title = "Auto-filed case"
	}
	if spec.Status == "" {
		spec.Status = "open"
	}

	candidate, ok := NormalizeNumber(spec.Number)
	if !ok {
		var err error
		candidate, err = e.nextAvailableNumber(ctx)
		if err != nil {
			return StepOutcome{Status: StepFailed, Code: http.StatusBadGateway, Error: "could not determine next process number"}, ""
		}
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		body := map[string]any{
			"number":      candidate,
			"title":       spec.Title,
			"description": spec.Description,
			"status":      spec.Status,
		}
		if claims := requestcontext.Claims(ctx); claims != nil && claims.OfficeID != "" {
			body["office_id"] = claims.OfficeID
		}

		outcome := e.invoke(ctx, forward.Request{
			Service: config.ServiceProcesses,
			Method:  http.MethodPost,
			Path:    "/processes",
			Body:    body,
		})

		if outcome.Class == forward.ClassDownstreamError && outcome.Status == http.StatusConflict {
			e.logger.WarnContext(ctx, "process number collision, retrying",
				"number", candidate,
				"attempt", attempt+1,
			)
			candidate = nextNumber(candidate)
			continue
		}

		step := stepFromOutcome(outcome)
		if step.Status != StepOK {
			return step, ""
		}
		return step, candidate
	}

	return StepOutcome{
		Status: StepConflict,
		Code:   http.StatusConflict,
		Error:  fmt.Sprintf("exhausted %d attempts to find a free process number", maxNumberAttempts),
	}, ""
}

// nextAvailableNumber scans the office's existing processes and increments
// the highest numeric suffix.
func (e *Engine) nextAvailableNumber(ctx context.Context) (string, error) {
	query := url.Values{}
	if claims := requestcontext.Claims(ctx); claims != nil && claims.OfficeID != "" {
		query.Set("office_id", claims.OfficeID)
	}

	outcome := e.invoke(ctx, forward.Request{
		Service: config.ServiceProcesses,
		Method:  http.MethodGet,
		Path:    "/processes",
		Query:   query,
	})
	if !outcome.OK() {
		return "", outcome.DomainError(config.ServiceProcesses)
	}

	var existing []struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(outcome.Payload, &existing); err != nil {
		return "", fmt.Errorf("decode process list: %w", err)
	}

	numbers := make([]string, 0, len(existing))
	for _, p := range existing {
		numbers = append(numbers, p.Number)
	}
	return firstAvailable(numbers), nil
}

// createDependent resolves the item's process reference and creates it. An
// item is never created against an unresolved reference.
func (e *Engine) createDependent(ctx context.Context, service, path string, body map[string]any, createdNumber string) StepOutcome {
	ref, _ := body["process_id"].(string)
	if ref != "" {
		normalized, ok := NormalizeNumber(ref)
		if !ok {
			return StepOutcome{Status: StepNotFound, Code: http.StatusNotFound, Error: "malformed process reference " + ref}
		}
		lookup := e.invoke(ctx, forward.Request{
			Service: config.ServiceProcesses,
			Method:  http.MethodGet,
			Path:    "/processes/by-number/" + normalized,
		})
		if !lookup.OK() {
			return stepFromOutcome(lookup)
		}
		ref = normalized
	} else {
		if createdNumber == "" {
			return StepOutcome{
				Status: StepUnresolved,
				Error:  "no process reference available: process creation did not succeed",
			}
		}
		ref = createdNumber
	}

	// Shallow copy so concurrent steps never share the caller's map.
	item := make(map[string]any, len(body)+1)
	for k, v := range body {
		item[k] = v
	}
	item["process_id"] = ref

	outcome := e.invoke(ctx, forward.Request{
		Service: service,
		Method:  http.MethodPost,
		Path:    path,
		Body:    item,
	})
	return stepFromOutcome(outcome)
}

// ProcessSummary runs the read-path workflow: three independent reads issued
// concurrently, each degrading to an empty list on failure.
func (e *Engine) ProcessSummary(ctx context.Context, processID string) Summary {
	ctx, span := e.tracer.Start(ctx, "orchestrate.process_summary",
		trace.WithAttributes(
			attribute.String("process_id", processID),
			attribute.String("correlation_id", requestcontext.CorrelationID(ctx)),
		))
	defer span.End()

	summary := Summary{
		ProcessID: processID,
		Items:     make(map[string]json.RawMessage, 3),
	}

	reads := []struct {
		category string
		service  string
		path     string
	}{
		{"documents", config.ServiceDocuments, "/documents"},
		{"deadlines", config.ServiceDeadlines, "/deadlines"},
		{"hearings", config.ServiceHearings, "/hearings"},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, read := range reads {
		read := read
		g.Go(func() error {
			query := url.Values{}
			query.Set("process_id", processID)
			outcome := e.invoke(gctx, forward.Request{
				Service: read.service,
				Method:  http.MethodGet,
				Path:    read.path,
				Query:   query,
			})

			payload := json.RawMessage("[]")
			if outcome.OK() {
				payload = outcome.Payload
			} else {
				e.logger.WarnContext(gctx, "summary category degraded to empty",
					"category", read.category,
					"class", outcome.Class,
					"process_id", processID,
				)
			}
			mu.Lock()
			summary.Items[read.category] = payload
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return summary
}
