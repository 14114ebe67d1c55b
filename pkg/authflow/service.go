package authflow

import "context"

// Outcome is the application level answer of the AuthService. A rejected
// outcome carries the message to show the user; an accepted one may carry an
// informational message ("verification code sent").
type Outcome struct {
	OK      bool
	Message string
}

// AuthService is the network boundary the controller orchestrates. A non-nil
// error means the call failed at the transport level (unreachable, timed out,
// malformed answer) and is never shown to the user verbatim.
type AuthService interface {
	Login(ctx context.Context, username, password string) (Outcome, error)
	Verify(ctx context.Context, code string) (Outcome, error)
	Resend(ctx context.Context) (Outcome, error)
	Logout(ctx context.Context) error
}
