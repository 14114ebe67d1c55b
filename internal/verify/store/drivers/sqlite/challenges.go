package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/stepauth/internal/verify/domain"
)

type challengesRepo struct {
	db dbtx
}

const challengeColumns = `id, user_id, secret, counter, attempts, expires_at, created_at`

func scanChallenge(row interface{ Scan(...any) error }) (domain.Challenge, error) {
	var (
		c                    domain.Challenge
		counter              int64
		expiresAt, createdAt int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Secret, &counter, &c.Attempts, &expiresAt, &createdAt); err != nil {
		return domain.Challenge{}, err
	}
	c.Counter = uint64(counter)
	c.ExpiresAt = fromMillis(expiresAt)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Secret, int64(c.Counter), c.Attempts, toMillis(c.ExpiresAt), toMillis(c.CreatedAt))
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	c, err := scanChallenge(r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id))
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) IncrementAttempts(ctx context.Context, id string) (domain.Challenge, error) {
	c, err := scanChallenge(r.db.QueryRowContext(ctx,
		`UPDATE challenges SET attempts = attempts + 1 WHERE id = ? RETURNING `+challengeColumns, id))
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) Rotate(ctx context.Context, id string, expiresAt time.Time) (domain.Challenge, error) {
	c, err := scanChallenge(r.db.QueryRowContext(ctx,
		`UPDATE challenges SET counter = counter + 1, attempts = 0, expires_at = ?
		 WHERE id = ? RETURNING `+challengeColumns,
		toMillis(expiresAt), id))
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
