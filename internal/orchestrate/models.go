package orchestrate

import (
	"encoding/json"
	"net/http"

	"lexgate/internal/forward"
)

// Step names the per-step keys of an orchestration result.
const (
	StepProcess  = "process"
	StepDocument = "document"
	StepDeadline = "deadline"
	StepHearing  = "hearing"
)

// ProcessSpec is the optional embedded process definition of a file-case
// request. An empty Number requests "next available" for the office.
type ProcessSpec struct {
	Number      string `json:"number,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// FileCaseRequest bundles a process with zero or more dependent items. The
// dependent items stay schemaless; the engine only interprets their
// process_id field.
type FileCaseRequest struct {
	Process  *ProcessSpec   `json:"process,omitempty"`
	Document map[string]any `json:"document,omitempty"`
	Deadline map[string]any `json:"deadline,omitempty"`
	Hearing  map[string]any `json:"hearing,omitempty"`
}

// StepStatus classifies one step's outcome.
type StepStatus string

const (
	StepOK         StepStatus = "ok"
	StepFailed     StepStatus = "error"
	StepNotFound   StepStatus = "not_found"
	StepConflict   StepStatus = "conflict"
	StepUnresolved StepStatus = "unresolved_reference"
)

// StepOutcome records one attempted step. Every attempted step is retained in
// the result even when it failed; nothing is rolled back.
type StepOutcome struct {
	Status StepStatus      `json:"status"`
	Code   int             `json:"code,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Result is the aggregated outcome of the file-case workflow. Overall is
// always "ok" when the workflow ran to completion; callers must inspect Steps
// to detect partial failure.
type Result struct {
	Overall       string                 `json:"status"`
	ProcessNumber string                 `json:"process_number,omitempty"`
	Steps         map[string]StepOutcome `json:"results"`
}

// Summary is the read-path aggregation for one process. A failed category
// degrades to an empty list instead of failing the summary.
type Summary struct {
	ProcessID string                     `json:"process_id"`
	Items     map[string]json.RawMessage `json:"summary"`
}

// stepFromOutcome converts a transport outcome into a step record.
func stepFromOutcome(o forward.Outcome) StepOutcome {
	switch {
	case o.OK():
		return StepOutcome{Status: StepOK, Code: o.Status, Data: o.Payload}
	case o.Class == forward.ClassDownstreamError && o.Status == http.StatusNotFound:
		return StepOutcome{Status: StepNotFound, Code: o.Status, Error: "referenced process does not exist"}
	case o.Class == forward.ClassDownstreamError && o.Status == http.StatusConflict:
		return StepOutcome{Status: StepConflict, Code: o.Status, Error: "resource conflict"}
	case o.Class == forward.ClassTimeout:
		return StepOutcome{Status: StepFailed, Code: o.Status, Error: "downstream timeout"}
	case o.Class == forward.ClassUnavailable:
		return StepOutcome{Status: StepFailed, Code: o.Status, Error: "downstream unavailable"}
	default:
		return StepOutcome{Status: StepFailed, Code: o.Status, Error: "downstream error"}
	}
}
