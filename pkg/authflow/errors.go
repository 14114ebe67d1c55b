package authflow

import (
	"errors"
	"fmt"
)

// Kind classifies the failures a ceremony can run into.
type Kind int

const (
	KindNone Kind = iota

	// KindInvalidTransition is a command issued from a phase whose guard does
	// not hold. It is the only kind returned to callers.
	KindInvalidTransition

	// KindAuthRejected is an application level "no" from the AuthService
	// (bad credentials, wrong code, resend throttled).
	KindAuthRejected

	// KindConnectivity is a transport failure. The user only ever sees the
	// generic connectivity message for it.
	KindConnectivity

	// KindExpired is the verification window running out.
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindAuthRejected:
		return "auth_rejected"
	case KindConnectivity:
		return "connectivity_failure"
	case KindExpired:
		return "expired"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrInvalidTransition matches any *FlowError of KindInvalidTransition.
	ErrInvalidTransition = errors.New("authflow: invalid transition")

	// ErrClosed is returned by every command once Close has been called.
	ErrClosed = errors.New("authflow: controller closed")
)

// FlowError describes a rejected command.
type FlowError struct {
	Kind   Kind
	Op     string // command name, e.g. "SubmitCode"
	Phase  Phase  // phase the command was issued from
	Reason string
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	return fmt.Sprintf("authflow: %s from %s: %s", e.Op, e.Phase, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidTransition) match rejected commands.
func (e *FlowError) Is(target error) bool {
	return target == ErrInvalidTransition && e.Kind == KindInvalidTransition
}

func invalidTransition(op string, from Phase, reason string) *FlowError {
	return &FlowError{
		Kind:   KindInvalidTransition,
		Op:     op,
		Phase:  from,
		Reason: reason,
	}
}
