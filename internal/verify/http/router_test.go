package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	verifyhttp "github.com/aussiebroadwan/stepauth/internal/verify/http"
	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/internal/verify/store/drivers/sqlite"
	"github.com/aussiebroadwan/stepauth/pkg/authflow"
	"github.com/aussiebroadwan/stepauth/pkg/cryptox"
	"github.com/aussiebroadwan/stepauth/pkg/httpx"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
	"github.com/aussiebroadwan/stepauth/pkg/verifysdk"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type inbox struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (b *inbox) Send(_ context.Context, _, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return context.DeadlineExceeded
	}
	b.texts = append(b.texts, text)
	return nil
}

func (b *inbox) setFail(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = v
}

func (b *inbox) code(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.texts)
	m := codePattern.FindStringSubmatch(b.texts[len(b.texts)-1])
	require.Len(t, m, 2)
	return m[1]
}

type server struct {
	URL     string
	inbox   *inbox
	metrics *metrics.Metrics
}

func newServer(t *testing.T, limits *verifyhttp.RateLimits) *server {
	t.Helper()

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "verifyd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	keyPEM, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewEdDSASigner(keyPEM)
	require.NoError(t, err)

	hasher := cryptox.NewPasswordHasher("pepper")
	users := &service.UserService{Store: st, Hasher: hasher}
	_, err = users.AddUser(context.Background(), "alireza", "mokhtari", "801131447")
	require.NoError(t, err)

	box := &inbox{}
	m := metrics.New()
	svc := &service.VerificationService{
		Store:             st,
		Sender:            box,
		Hasher:            hasher,
		Signer:            signer,
		ChallengeVerifier: jwtx.NewEdDSAVerifier(service.DefaultIssuer, jwtx.AudienceChallenge, 0, signer.Public()),
		Metrics:           m,
	}

	router := verifyhttp.NewRouter(
		signer,
		jwtx.NewEdDSAVerifier(service.DefaultIssuer, jwtx.AudienceSession, 0, signer.Public()),
		"test",
		st,
		box,
		m,
		slogx.Discard(),
	)
	router.VerificationService = svc
	if limits != nil {
		router.Limits = *limits
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{URL: srv.URL, inbox: box, metrics: m}
}

func TestCeremony_SDK(t *testing.T) {
	t.Parallel()
	s := newServer(t, nil)
	ctx := context.Background()
	c := verifysdk.NewClient(s.URL)

	_, err := c.Me(ctx)
	require.True(t, verifysdk.IsAPIError(err, http.StatusUnauthorized))

	_, err = c.Login(ctx, "alireza", "wrong")
	require.True(t, verifysdk.IsAPIError(err, http.StatusUnauthorized))

	res, err := c.Login(ctx, "alireza", "mokhtari")
	require.NoError(t, err)
	require.Equal(t, "Verification code sent", res.Message)

	_, err = c.Verify(ctx, "abcdef")
	require.True(t, verifysdk.IsAPIError(err, http.StatusBadRequest))

	res, err = c.Resend(ctx)
	require.NoError(t, err)
	require.Equal(t, "New verification code sent", res.Message)

	res, err = c.Verify(ctx, s.inbox.code(t))
	require.NoError(t, err)
	require.Equal(t, "Verification successful", res.Message)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "alireza", me.Username)
	require.NotEmpty(t, me.SessionID)
	require.True(t, me.ExpiresAt.After(time.Now()))

	require.NoError(t, c.Logout(ctx))
	_, err = c.Me(ctx)
	require.True(t, verifysdk.IsAPIError(err, http.StatusUnauthorized))
}

func TestCeremony_Controller(t *testing.T) {
	t.Parallel()
	s := newServer(t, nil)

	ctrl := authflow.New(verifysdk.NewFlowService(verifysdk.NewClient(s.URL)))
	t.Cleanup(ctrl.Close)

	waitPhase := func(want authflow.Phase) {
		t.Helper()
		require.Eventually(t, func() bool { return ctrl.Phase() == want },
			5*time.Second, 5*time.Millisecond, "phase never reached %s (at %s)", want, ctrl.Phase())
	}

	_, err := ctrl.SubmitCredentials("alireza", "wrong")
	require.NoError(t, err)
	waitPhase(authflow.PhaseLoginForm)
	require.Equal(t, "Invalid username or password", ctrl.Snapshot().Message)
	require.Equal(t, authflow.KindAuthRejected, ctrl.Snapshot().Fault)

	_, err = ctrl.SubmitCredentials("alireza", "mokhtari")
	require.NoError(t, err)
	waitPhase(authflow.PhaseAwaitingCode)
	require.True(t, ctrl.Snapshot().Running)

	_, err = ctrl.RequestResend()
	require.NoError(t, err)
	waitPhase(authflow.PhaseAwaitingCode)
	require.Equal(t, "New verification code sent", ctrl.Snapshot().Message)

	_, err = ctrl.SubmitCode(s.inbox.code(t))
	require.NoError(t, err)
	waitPhase(authflow.PhaseGranted)
	require.False(t, ctrl.Snapshot().Running)

	_, err = ctrl.Logout()
	require.NoError(t, err)
	require.Equal(t, authflow.PhaseLoginForm, ctrl.Phase())
}

func TestCeremony_DeliveryFailure(t *testing.T) {
	t.Parallel()
	s := newServer(t, nil)
	s.inbox.setFail(true)

	_, err := verifysdk.NewClient(s.URL).Login(context.Background(), "alireza", "mokhtari")
	require.True(t, verifysdk.IsAPIError(err, http.StatusBadGateway))
}

func TestCeremony_AttemptsExhausted(t *testing.T) {
	t.Parallel()
	limits := verifyhttp.DefaultRateLimits()
	limits.Strict = httpx.RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100}
	s := newServer(t, &limits)
	ctx := context.Background()
	c := verifysdk.NewClient(s.URL)

	_, err := c.Login(ctx, "alireza", "mokhtari")
	require.NoError(t, err)

	wrong := "000000"
	if s.inbox.code(t) == wrong {
		wrong = "111111"
	}
	for i := 0; i < service.DefaultMaxAttempts-1; i++ {
		_, err = c.Verify(ctx, wrong)
		require.True(t, verifysdk.IsAPIError(err, http.StatusBadRequest))
	}
	_, err = c.Verify(ctx, wrong)
	require.True(t, verifysdk.IsAPIError(err, http.StatusTooManyRequests))

	_, err = c.Verify(ctx, s.inbox.code(t))
	require.True(t, verifysdk.IsAPIError(err, http.StatusBadRequest))
}

func TestRequests_Malformed(t *testing.T) {
	t.Parallel()
	s := newServer(t, nil)

	for _, tc := range []struct {
		name, path, body string
		want             int
	}{
		{"login not json", "/api/login", "nope", http.StatusBadRequest},
		{"login unknown field", "/api/login", `{"username":"a","password":"b","x":1}`, http.StatusBadRequest},
		{"login blank", "/api/login", `{"username":" ","password":"b"}`, http.StatusBadRequest},
		{"verify blank", "/api/verify", `{"code":""}`, http.StatusBadRequest},
		{"verify without challenge", "/api/verify", `{"code":"123456"}`, http.StatusBadRequest},
		{"resend without challenge", "/api/resend", ``, http.StatusBadRequest},
		{"logout without anything", "/logout", ``, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(s.URL+tc.path, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.want, resp.StatusCode)

			var res verifysdk.Result
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
			require.Equal(t, tc.want == http.StatusOK, res.Success)
			require.NotEmpty(t, res.Message)
		})
	}
}

func TestLogin_RateLimited(t *testing.T) {
	t.Parallel()
	limits := verifyhttp.DefaultRateLimits()
	limits.Strict = httpx.RateLimitConfig{Requests: 2, Window: time.Minute, Burst: 2}
	s := newServer(t, &limits)
	c := verifysdk.NewClient(s.URL)

	for range 2 {
		_, err := c.Login(context.Background(), "alireza", "wrong")
		require.True(t, verifysdk.IsAPIError(err, http.StatusUnauthorized))
	}
	_, err := c.Login(context.Background(), "alireza", "wrong")
	require.True(t, verifysdk.IsAPIError(err, http.StatusTooManyRequests))
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RateLimited.WithLabelValues("POST /api/login")))
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()
	s := newServer(t, nil)
	c := verifysdk.NewClient(s.URL)

	live, err := c.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := c.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Contains(t, doc["paths"], "/api/login")

	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "GET /livez", "200")))
}
