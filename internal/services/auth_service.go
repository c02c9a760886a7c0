package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"go.uber.org/zap"
)

type AuthService struct {
	users UserStore
	log   *zap.Logger
}

func NewAuthService(users UserStore, log *zap.Logger) *AuthService {
	return &AuthService{users: users, log: log}
}

// Login checks credentials. Only ACTIVE accounts may obtain a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		s.log.Info("login failed", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	switch user.Status {
	case models.StatusActive:
		return user, nil
	case models.StatusPending:
		return nil, ErrAccountPending
	case models.StatusSuspended, models.StatusInactive:
		return nil, ErrAccountDisabled
	}
	return nil, ErrAccountDisabled
}

// ChangePassword replaces the password of a signed-in user after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(oldPassword, user.Password) {
		return invalid("oldPassword", "does not match")
	}
	if err := checkPassword("newPassword", newPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.log.Info("password changed", zap.Uint("user_id", user.ID))
	return nil
}
