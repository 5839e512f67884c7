package contracts

import "fmt"

// ViolationClass partitions rejections so callers can tell a malformed
// proposal from a business-rule failure, a signer mismatch, a bad
// attestation, or a protocol/version error. None of these are retryable
// without constructing a different proposal.
type ViolationClass string

const (
	// ShapeViolation: wrong count or type of inputs/outputs for the command.
	ShapeViolation ViolationClass = "SHAPE_VIOLATION"
	// InvariantViolation: business-rule failure on otherwise well-shaped data.
	InvariantViolation ViolationClass = "INVARIANT_VIOLATION"
	// AuthorizationViolation: required-signer set mismatch.
	AuthorizationViolation ViolationClass = "AUTHORIZATION_VIOLATION"
	// AttestationViolation: filtered-view hash mismatch, unknown instrument,
	// or price mismatch. Logged distinctly: may indicate a stale price feed
	// or a malicious proposal.
	AttestationViolation ViolationClass = "ATTESTATION_VIOLATION"
	// UnrecognizedCommand: command tag outside the closed enumeration.
	UnrecognizedCommand ViolationClass = "UNRECOGNIZED_COMMAND"
)

// Rejection is the error value carried by every rejected proposal or
// attestation request. Rejection is always a normal return value; a
// well-typed but invalid proposal must never crash the caller.
type Rejection struct {
	Class  ViolationClass
	Reason string
}

// NewRejection builds a rejection with a stable, human-readable reason.
func NewRejection(class ViolationClass, reason string) *Rejection {
	return &Rejection{Class: class, Reason: reason}
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Class, r.Reason)
}
