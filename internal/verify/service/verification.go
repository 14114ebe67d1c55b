package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/aussiebroadwan/stepauth/internal/verify/domain"
	"github.com/aussiebroadwan/stepauth/internal/verify/messenger"
	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/store"
	"github.com/aussiebroadwan/stepauth/pkg/cryptox"
	"github.com/aussiebroadwan/stepauth/pkg/idx"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
)

const (
	DefaultIssuer      = "stepauth"
	DefaultCodeTTL     = 2 * time.Minute
	DefaultSessionTTL  = 12 * time.Hour
	DefaultMaxAttempts = 5

	// ChallengeTokenTTL bounds a whole ceremony including resends. The code
	// window itself is enforced on the stored challenge.
	ChallengeTokenTTL = 15 * time.Minute
)

var codeOpts = hotp.ValidateOpts{
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Issued is a signed token together with the expiry of what it stands for.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// VerificationService runs the server side of the two step ceremony:
// password check, code delivery, code check and session issuance.
type VerificationService struct {
	Store             store.Store
	Sender            messenger.Sender
	Hasher            *cryptox.PasswordHasher
	Signer            jwtx.Signer
	ChallengeVerifier jwtx.Verifier
	Metrics           *metrics.Metrics

	Issuer      string
	CodeTTL     time.Duration
	SessionTTL  time.Duration
	MaxAttempts int

	// Clock defaults to time.Now.
	Clock func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func (s *VerificationService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *VerificationService) issuer() string {
	if s.Issuer == "" {
		return DefaultIssuer
	}
	return s.Issuer
}

func (s *VerificationService) codeTTL() time.Duration {
	if s.CodeTTL <= 0 {
		return DefaultCodeTTL
	}
	return s.CodeTTL
}

func (s *VerificationService) sessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.SessionTTL
}

func (s *VerificationService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

// Login checks the password, opens a challenge and delivers its first code.
// The returned token identifies the challenge.
func (s *VerificationService) Login(ctx context.Context, username, password string) (Issued, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same argon2 work as a real check.
		_ = s.Hasher.Verify(password, s.dummy())
		s.Metrics.Logins.WithLabelValues(metrics.ResultRejected).Inc()
		return Issued{}, ErrInvalidCredentials
	}
	if err != nil {
		s.Metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Error("stored password hash unusable", "user_id", user.ID, "error", err)
		}
		s.Metrics.Logins.WithLabelValues(metrics.ResultRejected).Inc()
		return Issued{}, ErrInvalidCredentials
	}

	key, err := hotp.Generate(hotp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: user.Username,
		Digits:      codeOpts.Digits,
		Algorithm:   codeOpts.Algorithm,
	})
	if err != nil {
		return Issued{}, fmt.Errorf("failed to generate code secret: %w", err)
	}

	now := s.now()
	challenge := domain.Challenge{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		Secret:    key.Secret(),
		ExpiresAt: now.Add(s.codeTTL()),
		CreatedAt: now,
	}
	if err := s.Store.Challenges().CreateChallenge(ctx, challenge); err != nil {
		return Issued{}, fmt.Errorf("failed to store challenge: %w", err)
	}

	if err := s.deliver(ctx, user, challenge, "Your verification code: %s\nIt is valid for %s."); err != nil {
		_ = s.Store.Challenges().DeleteChallenge(ctx, challenge.ID)
		s.Metrics.Logins.WithLabelValues(metrics.ResultDeliveryFailed).Inc()
		return Issued{}, err
	}

	token, err := s.Signer.Sign(jwtx.NewClaims(jwtx.ClaimParams{
		Issuer:   s.issuer(),
		Audience: jwtx.AudienceChallenge,
		Subject:  user.ID,
		SID:      challenge.ID,
		Username: user.Username,
		AMR:      []string{jwtx.AMRPassword},
		TTL:      ChallengeTokenTTL,
	}, now))
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign challenge token: %w", err)
	}

	log.Info("challenge issued", "user_id", user.ID, "challenge_id", challenge.ID)
	s.Metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()
	return Issued{Token: token, ExpiresAt: challenge.ExpiresAt}, nil
}

// Verify checks code against the challenge named by challengeToken. On
// success the challenge is consumed and a session token is returned.
func (s *VerificationService) Verify(ctx context.Context, challengeToken, code string) (Issued, error) {
	challenge, err := s.challenge(ctx, challengeToken)
	if err != nil {
		s.Metrics.Verifications.WithLabelValues(metrics.ResultRejected).Inc()
		return Issued{}, err
	}
	ctx = slogx.With(ctx, "challenge_id", challenge.ID)

	now := s.now()
	if challenge.Expired(now) {
		s.Metrics.Verifications.WithLabelValues(metrics.ResultExpired).Inc()
		return Issued{}, ErrCodeExpired
	}

	ok, err := hotp.ValidateCustom(code, challenge.Counter, challenge.Secret, codeOpts)
	if err != nil && !errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return Issued{}, fmt.Errorf("failed to validate code: %w", err)
	}
	if !ok {
		return Issued{}, s.recordFailure(ctx, challenge.ID)
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Issued{}, ErrUserNotFound
	}
	if err != nil {
		return Issued{}, fmt.Errorf("failed to load user: %w", err)
	}

	session := domain.Session{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionTTL()),
		CreatedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().DeleteChallenge(ctx, challenge.ID); err != nil {
			return fmt.Errorf("failed to consume challenge: %w", err)
		}
		if err := tx.Sessions().CreateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return Issued{}, err
	}

	token, err := s.Signer.Sign(jwtx.NewClaims(jwtx.ClaimParams{
		Issuer:   s.issuer(),
		Audience: jwtx.AudienceSession,
		Subject:  user.ID,
		SID:      session.ID,
		Username: user.Username,
		AMR:      []string{jwtx.AMRPassword, jwtx.AMROTP},
		TTL:      s.sessionTTL(),
	}, now))
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	slogx.FromContext(ctx).Info("session issued", "user_id", user.ID, "session_id", session.ID)
	s.Metrics.Verifications.WithLabelValues(metrics.ResultSuccess).Inc()
	return Issued{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// recordFailure counts a wrong code and drops the challenge once the
// attempt budget is spent.
func (s *VerificationService) recordFailure(ctx context.Context, challengeID string) error {
	updated, err := s.Store.Challenges().IncrementAttempts(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoChallenge
	}
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if updated.Attempts >= s.maxAttempts() {
		if err := s.Store.Challenges().DeleteChallenge(ctx, challengeID); err != nil {
			return fmt.Errorf("failed to drop challenge: %w", err)
		}
		slogx.FromContext(ctx).Warn("challenge exhausted", "attempts", updated.Attempts)
		s.Metrics.Verifications.WithLabelValues(metrics.ResultExhausted).Inc()
		return ErrTooManyAttempts
	}

	s.Metrics.Verifications.WithLabelValues(metrics.ResultRejected).Inc()
	return ErrInvalidCode
}

// Resend rotates the challenge to a fresh code with a full window and
// delivers it. The previous code stops validating.
func (s *VerificationService) Resend(ctx context.Context, challengeToken string) (domain.Challenge, error) {
	challenge, err := s.challenge(ctx, challengeToken)
	if err != nil {
		s.Metrics.Resends.WithLabelValues(metrics.ResultRejected).Inc()
		return domain.Challenge{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.Resends.WithLabelValues(metrics.ResultRejected).Inc()
		return domain.Challenge{}, ErrUserNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to load user: %w", err)
	}

	rotated, err := s.Store.Challenges().Rotate(ctx, challenge.ID, s.now().Add(s.codeTTL()))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, ErrNoChallenge
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to rotate challenge: %w", err)
	}

	if err := s.deliver(ctx, user, rotated, "Your new verification code: %s\nIt is valid for %s."); err != nil {
		s.Metrics.Resends.WithLabelValues(metrics.ResultDeliveryFailed).Inc()
		return domain.Challenge{}, err
	}

	s.Metrics.Resends.WithLabelValues(metrics.ResultSuccess).Inc()
	return rotated, nil
}

// Logout drops whatever the caller holds: the pending challenge and the
// session. Unknown or invalid tokens are ignored.
func (s *VerificationService) Logout(ctx context.Context, challengeID, sessionID string) error {
	var errs []error
	if challengeID != "" {
		if err := s.Store.Challenges().DeleteChallenge(ctx, challengeID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete challenge: %w", err))
		}
	}
	if sessionID != "" {
		if err := s.Store.Sessions().RevokeSession(ctx, sessionID, s.now()); err != nil {
			errs = append(errs, fmt.Errorf("failed to revoke session: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Session returns the live session and its user.
func (s *VerificationService) Session(ctx context.Context, sessionID string) (domain.Session, domain.User, error) {
	session, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.User{}, ErrSessionInactive
	}
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Active(s.now()) {
		return domain.Session{}, domain.User{}, ErrSessionInactive
	}

	user, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.User{}, ErrSessionInactive
	}
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return session, user, nil
}

// ChallengeID extracts the challenge id from a challenge token. Any token
// problem reads as ErrNoChallenge.
func (s *VerificationService) ChallengeID(challengeToken string) (string, error) {
	if challengeToken == "" {
		return "", ErrNoChallenge
	}
	claims, err := s.ChallengeVerifier.Verify(challengeToken)
	if err != nil || claims.SID == "" {
		return "", ErrNoChallenge
	}
	return claims.SID, nil
}

func (s *VerificationService) challenge(ctx context.Context, challengeToken string) (domain.Challenge, error) {
	id, err := s.ChallengeID(challengeToken)
	if err != nil {
		return domain.Challenge{}, err
	}
	c, err := s.Store.Challenges().GetChallenge(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, ErrNoChallenge
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to load challenge: %w", err)
	}
	return c, nil
}

func (s *VerificationService) deliver(ctx context.Context, user domain.User, c domain.Challenge, format string) error {
	code, err := hotp.GenerateCodeCustom(c.Secret, c.Counter, codeOpts)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.Sender.Send(ctx, user.ChatID, fmt.Sprintf(format, code, humanDuration(s.codeTTL()))); err != nil {
		slogx.FromContext(ctx).Error("code delivery failed", "user_id", user.ID, "challenge_id", c.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	s.Metrics.CodesDelivered.Inc()
	return nil
}

func (s *VerificationService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("not-a-real-password")
		if err != nil {
			slog.Default().Error("failed to prepare dummy hash", "error", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
}
