package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolsite/internal/auth"
	"schoolsite/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountService holds the ADMIN-only operations on user accounts.
type AccountService struct {
	db       *gorm.DB
	notifier StatusNotifier
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewAccountService(db *gorm.DB, notifier StatusNotifier, timeout time.Duration, log *zap.Logger) *AccountService {
	return &AccountService{db: db, notifier: notifier, timeout: timeout, log: log, now: time.Now}
}

// StatusChange is an admin request to move a user to Status and optionally Role.
type StatusChange struct {
	Status models.Status `json:"status" binding:"required"`
	Role   *models.Role  `json:"role"`
}

// ListUsers returns users newest first, optionally filtered by status.
func (s *AccountService) ListUsers(ctx context.Context, actor *auth.Session, status models.Status) ([]models.User, error) {
	if !auth.IsAdmin(actor) {
		return nil, ErrForbidden
	}
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		if !status.Valid() {
			return nil, invalid("status", "unknown status")
		}
		q = q.Where("status = ?", status)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ChangeStatus applies an admin's approve/suspend/deactivate (and role) decision.
func (s *AccountService) ChangeStatus(ctx context.Context, actor *auth.Session, userID uint, change StatusChange) (*models.User, error) {
	if !auth.IsAdmin(actor) {
		return nil, ErrForbidden
	}
	if !change.Status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	if change.Role != nil && !change.Role.Valid() {
		return nil, invalid("role", "unknown role")
	}
	if userID == actor.UserID() {
		demoted := change.Role != nil && *change.Role != models.RoleAdmin
		if change.Status != models.StatusActive || demoted {
			return nil, invalid("id", "admins cannot suspend or demote themselves")
		}
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		previous := user.Status
		updates := map[string]any{"status": change.Status}
		user.Status = change.Status
		if change.Role != nil {
			updates["role"] = *change.Role
			user.Role = *change.Role
		}
		if change.Status == models.StatusActive && user.ApprovedAt == nil {
			approved := s.now()
			updates["approved_at"] = approved
			user.ApprovedAt = &approved
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}

		if previous == change.Status {
			return nil
		}
		actorID := actor.UserID()
		return tx.Create(&models.Notification{
			UserID:  user.ID,
			ActorID: &actorID,
			Type:    models.NotificationTypeAccountStatus,
			Message: fmt.Sprintf("계정 상태가 %s(으)로 변경되었습니다.", change.Status),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("change status: %w", err)
	}

	s.log.Info("user status changed",
		zap.Uint("user_id", user.ID),
		zap.String("status", string(user.Status)),
		zap.String("role", string(user.Role)),
		zap.Uint("admin_id", actor.UserID()),
	)

	if s.notifier != nil {
		go s.notify(user)
	}
	return &user, nil
}

func (s *AccountService) notify(user models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.notifier.SendAccountStatus(ctx, &user); err != nil {
		s.log.Error("account status mail failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}

// DeleteUser removes a user and everything they own in one transaction.
func (s *AccountService) DeleteUser(ctx context.Context, actor *auth.Session, userID uint) error {
	if !auth.IsAdmin(actor) {
		return ErrForbidden
	}
	if userID == actor.UserID() {
		return invalid("id", "admins cannot delete themselves")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		postIDs := tx.Model(&models.Post{}).Select("id").Where("author_id = ?", userID)

		steps := []struct {
			name string
			run  func() error
		}{
			{"reactions", func() error {
				return tx.Where("user_id = ? OR post_id IN (?)", userID, postIDs).Delete(&models.Reaction{}).Error
			}},
			{"comments", func() error {
				return tx.Where("author_id = ? OR post_id IN (?)", userID, postIDs).Delete(&models.Comment{}).Error
			}},
			{"posts", func() error {
				return tx.Where("author_id = ?", userID).Delete(&models.Post{}).Error
			}},
			{"announcements", func() error {
				return tx.Where("author_id = ?", userID).Delete(&models.Announcement{}).Error
			}},
			{"album images", func() error {
				albumIDs := tx.Model(&models.Album{}).Select("id").Where("author_id = ?", userID)
				return tx.Where("album_id IN (?)", albumIDs).Delete(&models.AlbumImage{}).Error
			}},
			{"albums", func() error {
				return tx.Where("author_id = ?", userID).Delete(&models.Album{}).Error
			}},
			{"notifications", func() error {
				return tx.Where("user_id = ? OR actor_id = ?", userID, userID).Delete(&models.Notification{}).Error
			}},
			{"inquiries", func() error {
				return tx.Model(&models.Inquiry{}).Where("author_id = ?", userID).Update("author_id", nil).Error
			}},
			{"user", func() error {
				return tx.Delete(&user).Error
			}},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.log.Info("user deleted", zap.Uint("user_id", userID), zap.Uint("admin_id", actor.UserID()))
	return nil
}
