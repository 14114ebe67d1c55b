package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/stepauth/internal/termx"
	"github.com/aussiebroadwan/stepauth/pkg/authflow"
)

var errQuit = errors.New("login aborted")

type lineResult struct {
	line string
	err  error
}

// runCeremony drives ctrl from terminal input until it reaches Granted.
//
// Prompts in LoginForm are read on the calling goroutine since nothing can
// change the phase there. While a code window is open the read runs in the
// background so an expiry can interrupt it; a pending read is always drained
// before prompting again.
func runCeremony(ctx context.Context, ctrl *authflow.Controller, ui *terminalUI, p *termx.Prompter, username string) error {
	var pending chan lineResult

	readLine := func(prompt string) chan lineResult {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := p.Line(prompt)
			ch <- lineResult{line, err}
		}()
		return ch
	}

	for {
		if err := ctx.Err(); err != nil {
			return errQuit
		}

		switch phase := ctrl.Phase(); phase {
		case authflow.PhaseGranted:
			return nil

		case authflow.PhaseLoginForm:
			user := username
			if user == "" {
				var err error
				if user, err = p.Line("Username: "); err != nil {
					return promptErr(err)
				}
			}
			password, err := p.Secret("Password: ")
			if err != nil {
				return promptErr(err)
			}
			if _, err := ctrl.SubmitCredentials(user, password); err != nil {
				var fe *authflow.FlowError
				if errors.As(err, &fe) {
					fmt.Fprintln(ui.out, fe.Reason)
					continue
				}
				return err
			}

		case authflow.PhaseAwaitingCode, authflow.PhaseDenied:
			if pending == nil {
				prompt := "> "
				if phase == authflow.PhaseDenied {
					prompt = "Press Enter to start over, q to quit: "
				}
				pending = readLine(prompt)
			}

			select {
			case <-ctx.Done():
				return errQuit
			case <-ui.Changed():
				continue
			case res := <-pending:
				pending = nil
				if err := handleLine(ctrl, res); err != nil {
					return err
				}
			}
			continue

		default:
			// A request is in flight.
			select {
			case <-ctx.Done():
				return errQuit
			case <-ui.Changed():
			}
			continue
		}

		// Wait for the submitted command to settle.
		select {
		case <-ctx.Done():
			return errQuit
		case <-ui.Changed():
		}
	}
}

// handleLine applies one line typed in AwaitingCode or Denied. The phase may
// have moved on while the user was typing; the controller rejects commands
// that no longer apply and the loop simply prompts again.
func handleLine(ctrl *authflow.Controller, res lineResult) error {
	line := strings.TrimSpace(res.line)
	if res.err != nil && !errors.Is(res.err, termx.ErrEmpty) {
		return promptErr(res.err)
	}

	if strings.EqualFold(line, "q") {
		return errQuit
	}

	var err error
	switch ctrl.Phase() {
	case authflow.PhaseDenied:
		_, err = ctrl.Restart()
	case authflow.PhaseAwaitingCode:
		switch {
		case line == "":
			return nil
		case strings.EqualFold(line, "r"):
			_, err = ctrl.RequestResend()
		default:
			_, err = ctrl.SubmitCode(line)
		}
	default:
		return nil
	}

	var fe *authflow.FlowError
	if errors.As(err, &fe) {
		return nil
	}
	return err
}

func promptErr(err error) error {
	if errors.Is(err, termx.ErrEmpty) {
		return fmt.Errorf("%w: empty input", errQuit)
	}
	return fmt.Errorf("read input: %w", err)
}
