package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"schoolsite/internal/config"
	"schoolsite/internal/db"
	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentCode struct {
	Email   string
	Purpose Purpose
	Code    string
}

type fakeDelivery struct {
	codes chan sentCode
	err   error
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{codes: make(chan sentCode, 32)}
}

func (f *fakeDelivery) SendCode(_ context.Context, email string, purpose Purpose, code string) error {
	f.codes <- sentCode{Email: email, Purpose: purpose, Code: code}
	return f.err
}

// next waits for the code dispatched by the most recent SendCode.
func (f *fakeDelivery) next(t *testing.T) sentCode {
	t.Helper()
	select {
	case c := <-f.codes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no verification code delivered")
		return sentCode{}
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(conn))
	return conn
}

func testVerificationConfig() config.VerificationConfig {
	return config.VerificationConfig{
		TempKeySecret:   "test-secret-0123456789",
		CodeTTL:         5 * time.Minute,
		ResendInterval:  30 * time.Second,
		MaxAttempts:     5,
		TempKeyTTL:      10 * time.Minute,
		DeliveryTimeout: time.Second,
	}
}

type registrationFixture struct {
	reg      *Registration
	users    *GormUserStore
	db       *gorm.DB
	clock    *testClock
	delivery *fakeDelivery
	keys     *TempKeyIssuer
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	conn := newTestDB(t)
	clock := newTestClock()
	cfg := testVerificationConfig()
	users := NewGormUserStore(conn)
	keys := NewTempKeyIssuer(cfg.TempKeySecret, cfg.TempKeyTTL, clock.Now)
	delivery := newFakeDelivery()

	reg := NewRegistration(users, NewMemoryStoreWithClock(1000, clock.Now), keys, delivery, cfg, zap.NewNop())
	return &registrationFixture{reg: reg, users: users, db: conn, clock: clock, delivery: delivery, keys: keys}
}

// verifiedKey walks SendCode and VerifyCode and returns the temporary key.
func (f *registrationFixture) verifiedKey(t *testing.T, email string, purpose Purpose) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.reg.SendCode(ctx, email, purpose))
	sent := f.delivery.next(t)
	key, err := f.reg.VerifyCode(ctx, email, sent.Code, purpose)
	require.NoError(t, err)
	return key
}

func createUser(t *testing.T, conn *gorm.DB, username, email string, role models.Role, status models.Status) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("existing-pass")
	require.NoError(t, err)
	u := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		Name:     username,
		Role:     role,
		Status:   status,
	}
	require.NoError(t, conn.Create(u).Error)
	return u
}

func studentForm(username string) SignupForm {
	return SignupForm{
		Username:   username,
		Password:   "p@ssw0rd!",
		Role:       models.RoleStudent,
		Name:       "Student One",
		KoreanName: "학생일",
		Birthdate:  "2010-04-01",
		Gender:     "F",
		Age:        15,
		Grade:      9,
		AgreeTerms: true,
	}
}
