package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/aussiebroadwan/stepauth/pkg/authflow"
)

// Countdown marks announced while waiting for a code.
var countdownMarks = map[int]bool{90: true, 60: true, 30: true, 10: true}

// terminalUI renders snapshots as lines of text and signals the ceremony
// loop on every change.
type terminalUI struct {
	out io.Writer

	mu      sync.Mutex
	last    authflow.Snapshot
	changed chan struct{}
}

func newTerminalUI(out io.Writer) *terminalUI {
	return &terminalUI{out: out, changed: make(chan struct{}, 1)}
}

func (u *terminalUI) Observe(s authflow.Snapshot) {
	u.mu.Lock()
	prev := u.last
	u.last = s
	u.mu.Unlock()

	if s.Phase != prev.Phase || s.Message != prev.Message {
		u.render(s)
	} else if s.Running && s.Remaining != prev.Remaining && countdownMarks[s.Remaining] {
		fmt.Fprintf(u.out, "  %ds left to enter the code\n", s.Remaining)
	}

	select {
	case u.changed <- struct{}{}:
	default:
	}
}

func (u *terminalUI) render(s authflow.Snapshot) {
	switch s.Phase {
	case authflow.PhaseAuthenticating:
		fmt.Fprintln(u.out, "Checking credentials...")
	case authflow.PhaseVerifying:
		fmt.Fprintln(u.out, "Checking code...")
	case authflow.PhaseResending:
		fmt.Fprintln(u.out, "Requesting a new code...")
	case authflow.PhaseAwaitingCode:
		if s.Message != "" {
			fmt.Fprintln(u.out, s.Message)
		}
		fmt.Fprintf(u.out, "Enter the code (%ds left). Type r to resend, q to quit.\n", s.Remaining)
	case authflow.PhaseGranted:
		fmt.Fprintln(u.out, "Verified.")
	case authflow.PhaseDenied:
		fmt.Fprintf(u.out, "Denied: %s\n", s.Reason)
	case authflow.PhaseLoginForm:
		if s.Message != "" {
			fmt.Fprintln(u.out, s.Message)
		}
	}
}

// Changed fires after each observed snapshot; bursts collapse into one.
func (u *terminalUI) Changed() <-chan struct{} { return u.changed }
