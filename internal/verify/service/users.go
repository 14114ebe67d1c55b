package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/stepauth/internal/verify/domain"
	"github.com/aussiebroadwan/stepauth/internal/verify/store"
	"github.com/aussiebroadwan/stepauth/pkg/cryptox"
	"github.com/aussiebroadwan/stepauth/pkg/idx"
)

// UserService provisions the accounts allowed to log in.
type UserService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
}

// AddUser creates a user with a hashed password.
func (s *UserService) AddUser(ctx context.Context, username, password, chatID string) (domain.User, error) {
	username = strings.TrimSpace(username)
	chatID = strings.TrimSpace(chatID)
	if username == "" || password == "" || chatID == "" {
		return domain.User{}, ErrInvalidUser
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		ChatID:       chatID,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return s.Store.Users().GetUserByID(ctx, u.ID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

// SetPassword replaces the password of username.
func (s *UserService) SetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return ErrInvalidUser
	}
	u, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
}

// SetChatID moves code delivery for username to another chat.
func (s *UserService) SetChatID(ctx context.Context, username, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ErrInvalidUser
	}
	u, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdateChatID(ctx, u.ID, chatID)
}

// RemoveUser deletes username together with its challenges and sessions.
func (s *UserService) RemoveUser(ctx context.Context, username string) error {
	u, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}
	return s.Store.Users().DeleteUser(ctx, u.ID)
}

func (s *UserService) lookup(ctx context.Context, username string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}
