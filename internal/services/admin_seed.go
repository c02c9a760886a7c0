package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolsite/internal/config"
	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type adminSeedForm struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// SeedAdmin creates the bootstrap ADMIN account when configured and no admin
// exists yet. The seed goes through the same username, email and password
// rules as a regular signup.
func SeedAdmin(ctx context.Context, conn *gorm.DB, seed config.AdminSeed, log *zap.Logger) error {
	if seed.Username == "" && seed.Email == "" && seed.Password == "" {
		log.Debug("Admin seed not configured, skipping")
		return nil
	}

	form := adminSeedForm{
		Username: strings.TrimSpace(seed.Username),
		Email:    NormalizeEmail(seed.Email),
	}
	if err := newValidator().Struct(form); err != nil {
		return fmt.Errorf("admin seed: %w", toValidationError(err))
	}
	if err := checkPassword("password", seed.Password); err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}

	tx := conn.WithContext(ctx)
	var existing models.User
	err := tx.Where("role = ?", models.RoleAdmin).First(&existing).Error
	if err == nil {
		log.Debug("Admin already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := utils.HashPassword(seed.Password)
	if err != nil {
		return err
	}
	now := time.Now()
	admin := &models.User{
		Username:   form.Username,
		Email:      form.Email,
		Password:   hash,
		Name:       "Administrator",
		Role:       models.RoleAdmin,
		Status:     models.StatusActive,
		ApprovedAt: &now,
	}
	if err := NewGormUserStore(conn).Create(ctx, admin); err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}
	log.Info("Initial admin created", zap.String("username", admin.Username))
	return nil
}
