package authflow

import "fmt"

// Phase is the single active step of a login ceremony. It is the only thing
// a display needs to decide what to show.
type Phase int

const (
	PhaseLoginForm Phase = iota
	PhaseAuthenticating
	PhaseAwaitingCode
	PhaseVerifying
	PhaseResending
	PhaseGranted
	PhaseDenied
)

var phaseNames = [...]string{
	PhaseLoginForm:      "LoginForm",
	PhaseAuthenticating: "Authenticating",
	PhaseAwaitingCode:   "AwaitingCode",
	PhaseVerifying:      "Verifying",
	PhaseResending:      "Resending",
	PhaseGranted:        "Granted",
	PhaseDenied:         "Denied",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Pending reports whether a call to the AuthService is outstanding while the
// ceremony is in this phase.
func (p Phase) Pending() bool {
	return p == PhaseAuthenticating || p == PhaseVerifying || p == PhaseResending
}
