package service_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/internal/verify/service"
)

func TestUserService(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	_, err := e.users.AddUser(testCtx(), "alireza", "x", "1")
	require.ErrorIs(t, err, service.ErrUserExists)

	_, err = e.users.AddUser(testCtx(), "  ", "x", "1")
	require.ErrorIs(t, err, service.ErrInvalidUser)

	u, err := e.users.AddUser(testCtx(), " mohamadreza ", "mohamadi", "801131449")
	require.NoError(t, err)
	require.Equal(t, "mohamadreza", u.Username)
	require.NotEqual(t, "mohamadi", u.PasswordHash)

	users, err := e.users.ListUsers(testCtx())
	require.NoError(t, err)
	require.Len(t, users, 2)

	require.NoError(t, e.users.SetPassword(testCtx(), "mohamadreza", "changed"))
	_, err = e.svc.Login(testCtx(), "mohamadreza", "mohamadi")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = e.svc.Login(testCtx(), "mohamadreza", "changed")
	require.NoError(t, err)

	require.NoError(t, e.users.SetChatID(testCtx(), "mohamadreza", "42"))
	_, err = e.svc.Login(testCtx(), "mohamadreza", "changed")
	require.NoError(t, err)
	require.Equal(t, "42", e.sender.msgs[len(e.sender.msgs)-1].ChatID)

	require.ErrorIs(t, e.users.SetChatID(testCtx(), "nobody", "1"), service.ErrUserNotFound)
	require.NoError(t, e.users.RemoveUser(testCtx(), "mohamadreza"))
	require.ErrorIs(t, e.users.RemoveUser(testCtx(), "mohamadreza"), service.ErrUserNotFound)
}
