package services

import (
	"context"
	"testing"

	"schoolsite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogin(t *testing.T) {
	conn := newTestDB(t)
	svc := NewAuthService(NewGormUserStore(conn), zap.NewNop())
	ctx := context.Background()

	active := createUser(t, conn, "active.user", "active@b.com", models.RoleTeacher, models.StatusActive)
	createUser(t, conn, "pending.user", "pending@b.com", models.RoleStudent, models.StatusPending)
	createUser(t, conn, "suspended.user", "suspended@b.com", models.RoleStudent, models.StatusSuspended)
	createUser(t, conn, "inactive.user", "inactive@b.com", models.RoleParent, models.StatusInactive)

	user, err := svc.Login(ctx, " active.user ", "existing-pass")
	require.NoError(t, err)
	assert.Equal(t, active.ID, user.ID)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"wrong password", "active.user", "nope-nope", ErrInvalidCredentials},
		{"unknown user", "ghost", "existing-pass", ErrInvalidCredentials},
		{"empty password", "active.user", "", ErrInvalidCredentials},
		{"pending", "pending.user", "existing-pass", ErrAccountPending},
		{"suspended", "suspended.user", "existing-pass", ErrAccountDisabled},
		{"inactive", "inactive.user", "existing-pass", ErrAccountDisabled},
		{"pending with wrong password", "pending.user", "nope-nope", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, user)
		})
	}
}

func TestChangePassword(t *testing.T) {
	conn := newTestDB(t)
	users := NewGormUserStore(conn)
	svc := NewAuthService(users, zap.NewNop())
	ctx := context.Background()
	user := createUser(t, conn, "teacher.lee", "lee@b.com", models.RoleTeacher, models.StatusActive)

	err := svc.ChangePassword(ctx, user.ID, "wrong-old-pass", "brand-new-pass")
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.ChangePassword(ctx, user.ID, "existing-pass", "short")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "existing-pass", "brand-new-pass"))
	_, err = svc.Login(ctx, "teacher.lee", "brand-new-pass")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "teacher.lee", "existing-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, svc.ChangePassword(ctx, 9999, "x", "brand-new-pass"), ErrUserNotFound)
}
