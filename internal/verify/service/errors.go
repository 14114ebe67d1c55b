package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoChallenge        = errors.New("no pending verification")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrUserNotFound       = errors.New("user not found")
	ErrDeliveryFailed     = errors.New("failed to deliver verification code")
	ErrSessionInactive    = errors.New("session revoked or expired")
	ErrInvalidUser        = errors.New("username, password and chat id are required")
	ErrUserExists         = errors.New("username already taken")
)
