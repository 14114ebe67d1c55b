package service_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
)

func TestLogin_DeliversCode(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	issued, err := e.svc.Login(testCtx(), "alireza", "mokhtari")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.WithinDuration(t, e.clock.Now().Add(service.DefaultCodeTTL), issued.ExpiresAt, time.Second)

	require.Equal(t, 1, e.sender.count())
	require.Equal(t, "801131447", e.sender.msgs[0].ChatID)
	require.Contains(t, e.sender.msgs[0].Text, "2 minutes")
	require.Len(t, e.sender.lastCode(t), 6)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Logins.WithLabelValues(metrics.ResultSuccess)))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	_, err := e.svc.Login(testCtx(), "alireza", "wrong")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = e.svc.Login(testCtx(), "nobody", "mokhtari")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	require.Zero(t, e.sender.count())
	require.Equal(t, 2.0, testutil.ToFloat64(e.metrics.Logins.WithLabelValues(metrics.ResultRejected)))
}

func TestLogin_DeliveryFailure(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.sender.failWith(errBotDown)

	_, err := e.svc.Login(testCtx(), "alireza", "mokhtari")
	require.ErrorIs(t, err, service.ErrDeliveryFailed)
	require.ErrorIs(t, err, errBotDown)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Logins.WithLabelValues(metrics.ResultDeliveryFailed)))
}

func TestVerify_IssuesSession(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)

	issued, err := e.svc.Verify(testCtx(), token, e.sender.lastCode(t))
	require.NoError(t, err)

	claims, err := e.session.Verify(issued.Token)
	require.NoError(t, err)
	require.Equal(t, "alireza", claims.Username)
	require.True(t, claims.HasAMR(jwtx.AMROTP))
	require.True(t, claims.HasAMR(jwtx.AMRPassword))

	sess, user, err := e.svc.Session(testCtx(), claims.SID)
	require.NoError(t, err)
	require.Equal(t, "alireza", user.Username)
	require.Equal(t, claims.Subject, sess.UserID)

	// The challenge is consumed.
	_, err = e.svc.Verify(testCtx(), token, e.sender.lastCode(t))
	require.ErrorIs(t, err, service.ErrNoChallenge)
}

func TestVerify_WrongCodeThenExhausted(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	good := e.sender.lastCode(t)

	wrong := "000000"
	if good == wrong {
		wrong = "111111"
	}

	for i := 0; i < service.DefaultMaxAttempts-1; i++ {
		_, err := e.svc.Verify(testCtx(), token, wrong)
		require.ErrorIs(t, err, service.ErrInvalidCode)
	}
	_, err := e.svc.Verify(testCtx(), token, wrong)
	require.ErrorIs(t, err, service.ErrTooManyAttempts)

	_, err = e.svc.Verify(testCtx(), token, good)
	require.ErrorIs(t, err, service.ErrNoChallenge)
}

func TestVerify_MalformedCode(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)

	_, err := e.svc.Verify(testCtx(), token, "12")
	require.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	code := e.sender.lastCode(t)

	e.clock.Advance(service.DefaultCodeTTL)
	_, err := e.svc.Verify(testCtx(), token, code)
	require.ErrorIs(t, err, service.ErrCodeExpired)
}

func TestVerify_BadToken(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	_, err := e.svc.Verify(testCtx(), "", "123456")
	require.ErrorIs(t, err, service.ErrNoChallenge)

	_, err = e.svc.Verify(testCtx(), "not.a.jwt", "123456")
	require.ErrorIs(t, err, service.ErrNoChallenge)
}

func TestResend_RotatesCode(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	first := e.sender.lastCode(t)

	e.clock.Advance(90 * time.Second)
	rotated, err := e.svc.Resend(testCtx(), token)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rotated.Counter)
	require.WithinDuration(t, e.clock.Now().Add(service.DefaultCodeTTL), rotated.ExpiresAt, time.Second)
	require.Equal(t, 2, e.sender.count())
	require.Contains(t, e.sender.msgs[1].Text, "new verification code")

	second := e.sender.lastCode(t)
	if first != second {
		_, err = e.svc.Verify(testCtx(), token, first)
		require.ErrorIs(t, err, service.ErrInvalidCode)
	}

	// Still inside the refreshed window.
	e.clock.Advance(90 * time.Second)
	_, err = e.svc.Verify(testCtx(), token, second)
	require.NoError(t, err)
}

func TestResend_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no challenge", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.svc.Resend(testCtx(), "")
		require.ErrorIs(t, err, service.ErrNoChallenge)
	})

	t.Run("user removed", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		token := e.login(t)
		require.NoError(t, e.users.RemoveUser(testCtx(), "alireza"))

		_, err := e.svc.Resend(testCtx(), token)
		// Removing the user cascades to the challenge.
		require.ErrorIs(t, err, service.ErrNoChallenge)
	})

	t.Run("delivery failure", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		token := e.login(t)
		e.sender.failWith(errBotDown)

		_, err := e.svc.Resend(testCtx(), token)
		require.ErrorIs(t, err, service.ErrDeliveryFailed)
		require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Resends.WithLabelValues(metrics.ResultDeliveryFailed)))
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	token := e.login(t)
	issued, err := e.svc.Verify(testCtx(), token, e.sender.lastCode(t))
	require.NoError(t, err)
	claims, err := e.session.Verify(issued.Token)
	require.NoError(t, err)

	pending := e.login(t)
	challengeID, err := e.svc.ChallengeID(pending)
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(testCtx(), challengeID, claims.SID))

	_, _, err = e.svc.Session(testCtx(), claims.SID)
	require.ErrorIs(t, err, service.ErrSessionInactive)

	_, err = e.svc.Resend(testCtx(), pending)
	require.ErrorIs(t, err, service.ErrNoChallenge)

	// Nothing to drop is fine.
	require.NoError(t, e.svc.Logout(testCtx(), "", ""))
	require.NoError(t, e.svc.Logout(testCtx(), "gone", "gone"))
}

func TestSession_Expired(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	issued, err := e.svc.Verify(testCtx(), token, e.sender.lastCode(t))
	require.NoError(t, err)
	claims, err := e.session.Verify(issued.Token)
	require.NoError(t, err)

	e.clock.Advance(service.DefaultSessionTTL)
	_, _, err = e.svc.Session(testCtx(), claims.SID)
	require.ErrorIs(t, err, service.ErrSessionInactive)
}
