package services

import (
	"context"
	"testing"

	"schoolsite/internal/config"
	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedAdmin(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	seed := config.AdminSeed{Username: "admin.kim", Email: " Admin@School.TEST ", Password: "bootstrap-pass"}

	require.NoError(t, SeedAdmin(ctx, conn, seed, zap.NewNop()))

	var admin models.User
	require.NoError(t, conn.Where("username = ?", "admin.kim").First(&admin).Error)
	assert.Equal(t, "admin@school.test", admin.Email)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, models.StatusActive, admin.Status)
	assert.NotNil(t, admin.ApprovedAt)
	assert.True(t, utils.CheckPasswordHash("bootstrap-pass", admin.Password))

	// A second start keeps the existing admin.
	require.NoError(t, SeedAdmin(ctx, conn, config.AdminSeed{Username: "other.admin", Email: "o@school.test", Password: "bootstrap-pass"}, zap.NewNop()))
	var count int64
	conn.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSeedAdminSkipsWhenUnset(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, SeedAdmin(context.Background(), conn, config.AdminSeed{}, zap.NewNop()))

	var count int64
	conn.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)
}

func TestSeedAdminValidatesAccount(t *testing.T) {
	tests := []struct {
		name  string
		seed  config.AdminSeed
		field string
	}{
		{"short username", config.AdminSeed{Username: "adm", Email: "a@school.test", Password: "bootstrap-pass"}, "username"},
		{"username with space", config.AdminSeed{Username: "admin kim", Email: "a@school.test", Password: "bootstrap-pass"}, "username"},
		{"invalid email", config.AdminSeed{Username: "admin.kim", Email: "not-an-email", Password: "bootstrap-pass"}, "email"},
		{"missing email", config.AdminSeed{Username: "admin.kim", Password: "bootstrap-pass"}, "email"},
		{"short password", config.AdminSeed{Username: "admin.kim", Email: "a@school.test", Password: "short"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newTestDB(t)
			err := SeedAdmin(context.Background(), conn, tt.seed, zap.NewNop())

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			var count int64
			conn.Model(&models.User{}).Count(&count)
			assert.Zero(t, count)
		})
	}
}
