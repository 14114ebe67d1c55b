// Package jwtx issues and verifies the EdDSA signed tokens carried in the
// challenge and session cookies.
package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/stepauth/pkg/idx"
)

// Audiences keep a challenge token from being accepted as a session token
// and the other way round.
const (
	AudienceChallenge = "stepauth:challenge"
	AudienceSession   = "stepauth:session"
)

// Authentication method references.
const (
	AMRPassword = "pwd" // password checked
	AMROTP      = "otp" // one-time code checked
	AMRMFA      = "mfa"
)

// Claims are the token claims shared by challenge and session tokens.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the challenge id in challenge tokens and the session id in
	// session tokens.
	SID string `json:"sid,omitempty"`

	AMR      []string `json:"amr,omitempty"`
	Username string   `json:"username,omitempty"`
}

// ClaimParams describes a token to issue.
type ClaimParams struct {
	Issuer   string
	Audience string
	Subject  string
	SID      string
	Username string
	AMR      []string
	TTL      time.Duration
}

// NewClaims builds claims valid from now for p.TTL.
func NewClaims(p ClaimParams, now time.Time) Claims {
	now = now.UTC()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings{p.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
			ID:        idx.NewAt(now).String(),
		},
		SID:      p.SID,
		AMR:      p.AMR,
		Username: p.Username,
	}
}

// HasAMR reports whether method is listed in the amr claim.
func (c Claims) HasAMR(method string) bool {
	return slices.Contains(c.AMR, method)
}
