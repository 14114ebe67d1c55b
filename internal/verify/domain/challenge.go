package domain

import "time"

// Challenge is a pending second factor issued after a successful password
// check. The code is HOTP(Secret, Counter); resending bumps Counter so the
// previous code stops validating.
type Challenge struct {
	ID        string // ULID, carried in the challenge cookie as sid
	UserID    string
	Secret    string // base32 HOTP secret
	Counter   uint64
	Attempts  int // failed verify attempts
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code window has closed at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
