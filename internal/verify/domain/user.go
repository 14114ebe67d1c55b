package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id PHC string
	ChatID       string // messenger chat the codes are delivered to
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
