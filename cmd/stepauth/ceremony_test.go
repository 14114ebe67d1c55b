package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/internal/termx"
	"github.com/aussiebroadwan/stepauth/pkg/authflow"
)

type fakeService struct {
	mu      sync.Mutex
	code    string
	resends int
}

func (f *fakeService) Login(_ context.Context, username, password string) (authflow.Outcome, error) {
	if username == "alireza" && password == "mokhtari" {
		return authflow.Outcome{OK: true, Message: "Verification code sent"}, nil
	}
	return authflow.Outcome{Message: "Invalid username or password"}, nil
}

func (f *fakeService) Verify(_ context.Context, code string) (authflow.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == f.code {
		return authflow.Outcome{OK: true, Message: "Verification successful"}, nil
	}
	return authflow.Outcome{Message: "Invalid verification code"}, nil
}

func (f *fakeService) Resend(context.Context) (authflow.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resends++
	f.code = "654321"
	return authflow.Outcome{OK: true, Message: "New verification code sent"}, nil
}

func (f *fakeService) Logout(context.Context) error { return nil }

func pipedPrompter(t *testing.T, input string) *termx.Prompter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return &termx.Prompter{In: f, Out: io.Discard}
}

func runWith(t *testing.T, svc authflow.AuthService, input, username string) (*authflow.Controller, error) {
	t.Helper()
	ctrl := authflow.New(svc)
	t.Cleanup(ctrl.Close)

	ui := newTerminalUI(io.Discard)
	cancel := ctrl.Subscribe(ui)
	t.Cleanup(cancel)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return ctrl, runCeremony(ctx, ctrl, ui, pipedPrompter(t, input), username)
}

func TestRunCeremony_Granted(t *testing.T) {
	ctrl, err := runWith(t, &fakeService{code: "123456"}, "alireza\nmokhtari\n123456\n", "")
	require.NoError(t, err)
	require.Equal(t, authflow.PhaseGranted, ctrl.Phase())
}

func TestRunCeremony_UsernameFlag(t *testing.T) {
	ctrl, err := runWith(t, &fakeService{code: "123456"}, "mokhtari\n123456\n", "alireza")
	require.NoError(t, err)
	require.Equal(t, authflow.PhaseGranted, ctrl.Phase())
}

func TestRunCeremony_WrongCodeThenResend(t *testing.T) {
	svc := &fakeService{code: "123456"}
	ctrl, err := runWith(t, svc, "alireza\nmokhtari\n000000\nr\n654321\n", "")
	require.NoError(t, err)
	require.Equal(t, authflow.PhaseGranted, ctrl.Phase())
	require.Equal(t, 1, svc.resends)
}

func TestRunCeremony_RetryAfterBadPassword(t *testing.T) {
	ctrl, err := runWith(t, &fakeService{code: "123456"}, "alireza\nwrong\nalireza\nmokhtari\n123456\n", "")
	require.NoError(t, err)
	require.Equal(t, authflow.PhaseGranted, ctrl.Phase())
}

func TestRunCeremony_Quit(t *testing.T) {
	ctrl, err := runWith(t, &fakeService{code: "123456"}, "alireza\nmokhtari\nq\n", "")
	require.ErrorIs(t, err, errQuit)
	require.Equal(t, authflow.PhaseAwaitingCode, ctrl.Phase())
}

func TestRunCeremony_InputExhausted(t *testing.T) {
	_, err := runWith(t, &fakeService{code: "123456"}, "alireza\n", "")
	require.Error(t, err)
}
