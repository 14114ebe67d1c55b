package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/internal/verify/store/drivers/sqlite"
	"github.com/aussiebroadwan/stepauth/pkg/cryptox"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type message struct {
	ChatID string
	Text   string
}

// recordingSender keeps every message and can be told to fail.
type recordingSender struct {
	mu   sync.Mutex
	msgs []message
	fail error
}

func (s *recordingSender) Send(_ context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.msgs = append(s.msgs, message{ChatID: chatID, Text: text})
	return nil
}

func (s *recordingSender) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// lastCode returns the code from the most recent message.
func (s *recordingSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.msgs, "no message delivered")
	m := codePattern.FindStringSubmatch(s.msgs[len(s.msgs)-1].Text)
	require.Len(t, m, 2)
	return m[1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	svc     *service.VerificationService
	users   *service.UserService
	store   *sqlite.Store
	sender  *recordingSender
	clock   *clock
	metrics *metrics.Metrics
	session *jwtx.EdDSAVerifier
}

func newEnv(t *testing.T) *env {
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
	sender := &recordingSender{}
	clk := &clock{now: time.Now()}
	m := metrics.New()

	e := &env{
		svc: &service.VerificationService{
			Store:             st,
			Sender:            sender,
			Hasher:            hasher,
			Signer:            signer,
			ChallengeVerifier: jwtx.NewEdDSAVerifier(service.DefaultIssuer, jwtx.AudienceChallenge, 0, signer.Public()),
			Metrics:           m,
			Clock:             clk.Now,
		},
		users:   &service.UserService{Store: st, Hasher: hasher},
		store:   st,
		sender:  sender,
		clock:   clk,
		metrics: m,
		session: jwtx.NewEdDSAVerifier(service.DefaultIssuer, jwtx.AudienceSession, 0, signer.Public()),
	}

	_, err = e.users.AddUser(testCtx(), "alireza", "mokhtari", "801131447")
	require.NoError(t, err)
	return e
}

func testCtx() context.Context {
	return slogx.WithContext(context.Background(), slogx.Discard())
}

func (e *env) login(t *testing.T) string {
	t.Helper()
	issued, err := e.svc.Login(testCtx(), "alireza", "mokhtari")
	require.NoError(t, err)
	return issued.Token
}

var errBotDown = errors.New("bot down")
