/*
Package authflow implements the client side of a two step login ceremony:
credentials first, then a short lived verification code delivered out of band.

# Phases

A Controller is always in exactly one Phase:

	LoginForm -> Authenticating -> AwaitingCode -> Verifying -> Granted
	                                  |    ^
	                                  v    |
	                                Resending

	AwaitingCode / Verifying --(window runs out)--> Denied
	Denied  --Restart--> LoginForm
	Granted --Logout---> LoginForm

Commands (SubmitCredentials, SubmitCode, RequestResend, Restart, Logout) are
only accepted from the phase they start from. Anything else returns a
*FlowError matching ErrInvalidTransition and leaves the controller untouched.

# Service calls

The network side is an AuthService. Each command that talks to it starts the
call on its own goroutine and moves to a pending phase. When the answer
arrives it is applied only if the controller is still in the phase that
issued it; answers that arrive after an expiry or a reset are dropped.

A transport failure (error return, timeout) is reported to the user with a
generic connectivity message. An application rejection (Outcome.OK false)
shows the service's own message.

# Countdown

Entering AwaitingCode after a successful login starts the verification
window (two minutes by default). A wrong code does not reset it; a successful
resend does. The window keeps counting while a resend is in flight.

# Observers

Displays subscribe with an Observer and get a Snapshot after every change,
in order, from a goroutine that does not hold the controller lock:

	c := authflow.New(svc)
	defer c.Close()

	cancel := c.Subscribe(authflow.ObserverFunc(func(s authflow.Snapshot) {
		render(s.Phase, s.Remaining, s.Message)
	}))
	defer cancel()

	if _, err := c.SubmitCredentials(user, pass); err != nil {
		// wrong phase or blank input
	}
*/
package authflow
