package termx_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/internal/termx"
)

func pipedInput(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestPrompter_Piped(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := &termx.Prompter{In: pipedInput(t, "alireza\nmokhtari\n\nlast"), Out: &out}
	require.False(t, p.IsTerminal())

	user, err := p.Line("Username: ")
	require.NoError(t, err)
	require.Equal(t, "alireza", user)

	pw, err := p.NewSecret("Password: ", "Again: ")
	require.NoError(t, err)
	require.Equal(t, "mokhtari", pw)

	_, err = p.Line("Code: ")
	require.ErrorIs(t, err, termx.ErrEmpty)

	last, err := p.Line("Code: ")
	require.NoError(t, err)
	require.Equal(t, "last", last)

	require.Contains(t, out.String(), "Username: ")
	require.NotContains(t, out.String(), "Again: ")
}
