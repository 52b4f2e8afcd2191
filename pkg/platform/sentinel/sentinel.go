package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Transports and registries return
// these (optionally wrapped) so callers can translate them into domain errors.
//
// These represent factual states about downstream resources, not validation
// failures:
// - ErrNotFound: resource does not exist downstream
// - ErrConflict: resource already exists (e.g. duplicate process number)
// - ErrUnavailable: service unreachable (refused connection, DNS, transport fault)
// - ErrTimeout: downstream call exceeded its deadline
// - ErrUnregistered: service name absent from the registry
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrTimeout      = errors.New("timeout")
	ErrUnregistered = errors.New("service not registered")
)
