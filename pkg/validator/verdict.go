package validator

import (
	"fmt"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

// Verdict is the outcome of validating one proposal against one command.
// Rejection is always a normal value, never a panic.
type Verdict struct {
	Accepted bool
	Class    contracts.ViolationClass
	Reason   string
}

// Accept is the accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject builds a rejecting verdict with a stable reason.
func Reject(class contracts.ViolationClass, reason string) Verdict {
	return Verdict{Class: class, Reason: reason}
}

// Rejection returns the verdict as an error value, or nil when accepted.
func (v Verdict) Rejection() *contracts.Rejection {
	if v.Accepted {
		return nil
	}
	return contracts.NewRejection(v.Class, v.Reason)
}

func (v Verdict) String() string {
	if v.Accepted {
		return "accept"
	}
	return fmt.Sprintf("reject(%s: %s)", v.Class, v.Reason)
}
