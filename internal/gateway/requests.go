package gateway

import (
	"strings"

	"lexgate/internal/orchestrate"
	dErrors "lexgate/pkg/domain-errors"
)

// LoginRequest carries user credentials. Length minimums match what the auth
// service enforces so bad input fails at the edge.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if len(r.Username) < 3 {
		return dErrors.New(dErrors.CodeValidation, "username must be at least 3 characters")
	}
	if len(r.Password) < 6 {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}
	return nil
}

// DocumentRequest is a document create or update.
type DocumentRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	ProcessID string `json:"process_id,omitempty"`
}

func (r DocumentRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if strings.TrimSpace(r.Author) == "" {
		return dErrors.New(dErrors.CodeValidation, "author is required")
	}
	return nil
}

// DeadlineRequest is a deadline create or update. DueDate stays a string in
// YYYY-MM-DD form; the deadline service owns date semantics.
type DeadlineRequest struct {
	ProcessID   string `json:"process_id"`
	DueDate     string `json:"due_date"`
	Description string `json:"description,omitempty"`
}

func (r DeadlineRequest) Validate() error {
	if strings.TrimSpace(r.ProcessID) == "" {
		return dErrors.New(dErrors.CodeValidation, "process_id is required")
	}
	if strings.TrimSpace(r.DueDate) == "" {
		return dErrors.New(dErrors.CodeValidation, "due_date is required")
	}
	return nil
}

// HearingRequest is a hearing create or update.
type HearingRequest struct {
	ProcessID   string `json:"process_id"`
	Date        string `json:"date"`
	Courtroom   string `json:"courtroom"`
	Description string `json:"description,omitempty"`
}

func (r HearingRequest) Validate() error {
	if strings.TrimSpace(r.ProcessID) == "" {
		return dErrors.New(dErrors.CodeValidation, "process_id is required")
	}
	if strings.TrimSpace(r.Date) == "" {
		return dErrors.New(dErrors.CodeValidation, "date is required")
	}
	if strings.TrimSpace(r.Courtroom) == "" {
		return dErrors.New(dErrors.CodeValidation, "courtroom is required")
	}
	return nil
}

// ProcessRequest is a process create or update. Numbers are normalized to
// the canonical uppercase form before forwarding.
type ProcessRequest struct {
	Number      string `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (r ProcessRequest) Validate() error {
	if _, ok := orchestrate.NormalizeNumber(r.Number); !ok {
		return dErrors.New(dErrors.CodeValidation, "number must match PROC-<digits>")
	}
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

// FileCaseRequest wraps the orchestration payload so the HTTP layer can run
// its minimal validation before handing off to the engine.
type FileCaseRequest struct {
	orchestrate.FileCaseRequest
}

func (r FileCaseRequest) Validate() error {
	if r.Process == nil && r.Document == nil && r.Deadline == nil && r.Hearing == nil {
		return dErrors.New(dErrors.CodeValidation, "request must include at least one of process, document, deadline, hearing")
	}
	return nil
}
