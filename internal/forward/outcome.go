package forward

import (
	"encoding/json"
	"net/http"

	dErrors "lexgate/pkg/domain-errors"
)

// Class is the transport-level classification of one downstream call.
type Class string

const (
	ClassOK              Class = "ok"
	ClassDownstreamError Class = "downstream_error"
	ClassTimeout         Class = "timeout"
	ClassUnavailable     Class = "unavailable"
)

// Outcome is the normalized result of a forward. A response from the
// downstream service, whatever its status code, yields ClassOK or
// ClassDownstreamError with the payload retained; transport failures yield
// ClassTimeout or ClassUnavailable with a synthesized status.
type Outcome struct {
	Class   Class
	Status  int
	Payload json.RawMessage
}

// OK reports whether the downstream call succeeded end to end.
func (o Outcome) OK() bool {
	return o.Class == ClassOK
}

// DomainError translates a failed outcome into the gateway's error taxonomy.
// Returns nil for ClassOK outcomes.
func (o Outcome) DomainError(service string) error {
	switch o.Class {
	case ClassOK:
		return nil
	case ClassTimeout:
		return dErrors.New(dErrors.CodeTimeout, service+" service timeout")
	case ClassUnavailable:
		return dErrors.New(dErrors.CodeUnavailable, service+" service is unavailable")
	default:
		switch o.Status {
		case http.StatusNotFound:
			return dErrors.New(dErrors.CodeNotFound, service+" resource not found")
		case http.StatusConflict:
			return dErrors.New(dErrors.CodeConflict, service+" resource conflict")
		case http.StatusBadRequest:
			return dErrors.New(dErrors.CodeValidation, service+" rejected the request")
		default:
			return dErrors.New(dErrors.CodeUnavailable, service+" service error")
		}
	}
}

// unavailable builds the outcome for a call that never produced a response.
func unavailable() Outcome {
	return Outcome{Class: ClassUnavailable, Status: http.StatusBadGateway}
}

// timedOut builds the outcome for a call that exceeded its deadline.
func timedOut() Outcome {
	return Outcome{Class: ClassTimeout, Status: http.StatusGatewayTimeout}
}
