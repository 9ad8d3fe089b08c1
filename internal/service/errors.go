package service

import (
	"errors"
	"fmt"
)

// Kind identifies a validation or authorization outcome. Handlers map kinds
// to HTTP statuses; batch sync maps them to per-item failures.
type Kind string

const (
	KindInvalidPayload     Kind = "INVALID_PAYLOAD"
	KindCheckpointNotFound Kind = "CHECKPOINT_NOT_FOUND"
	KindCheckpointInactive Kind = "CHECKPOINT_INACTIVE"
	KindServiceMismatch    Kind = "SERVICE_MISMATCH"
	KindForbidden          Kind = "FORBIDDEN"
	KindNoServiceAssigned  Kind = "NO_SERVICE_ASSIGNED"
	KindOutOfRange         Kind = "OUT_OF_RANGE"
	KindGuardNotEligible   Kind = "GUARD_NOT_ELIGIBLE"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindConflict           Kind = "CONFLICT"
)

// Error is a structured outcome of the patrol validation pipeline.
type Error struct {
	Kind    Kind
	Message string
	// Geofence failures carry the measured distance and the allowed radius
	DistanceM float64
	RadiusM   int
}

func (e *Error) Error() string {
	return e.Message
}

// Is makes errors.Is match on kind, so callers can compare against a bare
// kind error without caring about the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// ErrKind returns a comparison target for errors.Is.
func ErrKind(kind Kind) error {
	return &Error{Kind: kind}
}

// KindOf extracts the kind from err, or "" when err is not a service error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func errOutOfRange(distance float64, radius int) *Error {
	return &Error{
		Kind:      KindOutOfRange,
		Message:   fmt.Sprintf("location out of range: %.2fm from checkpoint, allowed %dm", distance, radius),
		DistanceM: distance,
		RadiusM:   radius,
	}
}
