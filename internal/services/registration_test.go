package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"schoolsite/internal/auth"
	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupEndToEnd(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reg.SendCode(ctx, " A@B.com ", PurposeSignup))
	sent := f.delivery.next(t)
	assert.Equal(t, "a@b.com", sent.Email)
	assert.Equal(t, PurposeSignup, sent.Purpose)
	assert.Regexp(t, `^[0-9]{6}$`, sent.Code)

	key, err := f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	userID, err := f.reg.CompleteSignup(ctx, key, studentForm("stud.ent1"))
	require.NoError(t, err)

	user, err := f.users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, user.Status)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, 9, user.Grade)
	assert.Nil(t, user.ApprovedAt)
	assert.True(t, utils.CheckPasswordHash("p@ssw0rd!", user.Password))

	assert.False(t, auth.CanWriteBoard(auth.ResolveSession(user)), "pending users get no session")

	user.Status = models.StatusActive
	assert.True(t, auth.CanWriteBoard(auth.ResolveSession(user)))
}

func TestSendCodeTwiceInvalidatesFirst(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	first := f.delivery.next(t)

	f.clock.Advance(31 * time.Second)
	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	second := f.delivery.next(t)
	if first.Code == second.Code {
		t.Skip("random codes collided")
	}

	_, err := f.reg.VerifyCode(ctx, "a@b.com", first.Code, PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.reg.VerifyCode(ctx, "a@b.com", second.Code, PurposeSignup)
	assert.NoError(t, err)
}

func TestSendCodeRateLimited(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	f.delivery.next(t)

	err := f.reg.SendCode(ctx, "a@b.com", PurposeSignup)
	assert.ErrorIs(t, err, ErrRateLimited)

	require.NoError(t, f.reg.SendCode(ctx, "other@b.com", PurposeSignup), "throttle is per email")
	f.delivery.next(t)

	f.clock.Advance(31 * time.Second)
	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	f.delivery.next(t)
}

func TestSendCodeRules(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	createUser(t, f.db, "existing", "taken@b.com", models.RoleTeacher, models.StatusActive)

	err := f.reg.SendCode(ctx, "not-an-email", PurposeSignup)
	assert.ErrorIs(t, err, ErrValidation)

	err = f.reg.SendCode(ctx, "taken@b.com", PurposeSignup)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	err = f.reg.SendCode(ctx, "nobody@b.com", PurposePasswordReset)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = f.reg.SendCode(ctx, "a@b.com", Purpose("LOGIN"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendCodeDeliveryFailureIsNotSurfaced(t *testing.T) {
	f := newRegistrationFixture(t)
	f.delivery.err = errors.New("smtp down")

	require.NoError(t, f.reg.SendCode(context.Background(), "a@b.com", PurposeSignup))
	f.delivery.next(t)
}

func TestVerifyCodeExpired(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	sent := f.delivery.next(t)

	f.clock.Advance(5*time.Minute + time.Second)
	_, err := f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyCodeSingleUse(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	sent := f.delivery.next(t)

	_, err := f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	require.NoError(t, err)
	_, err = f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyCodeIsBoundToPurpose(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	createUser(t, f.db, "existing", "a@b.com", models.RoleTeacher, models.StatusActive)

	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposePasswordReset))
	sent := f.delivery.next(t)

	_, err := f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposePasswordReset)
	assert.NoError(t, err)
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestVerifyCodeAttemptCap(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	sent := f.delivery.next(t)

	for i := 0; i < 4; i++ {
		_, err := f.reg.VerifyCode(ctx, "a@b.com", wrongCode(sent.Code), PurposeSignup)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
	_, err := f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	assert.NoError(t, err, "retries below the cap keep the code alive")

	f.clock.Advance(31 * time.Second)
	require.NoError(t, f.reg.SendCode(ctx, "a@b.com", PurposeSignup))
	sent = f.delivery.next(t)
	for i := 0; i < 5; i++ {
		_, err := f.reg.VerifyCode(ctx, "a@b.com", wrongCode(sent.Code), PurposeSignup)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
	_, err = f.reg.VerifyCode(ctx, "a@b.com", sent.Code, PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode, "the cap burns the code")
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		_, err := f.reg.VerifyCode(ctx, "a@b.com", code, PurposeSignup)
		assert.ErrorIs(t, err, ErrInvalidCode, code)
	}
}

func TestTempKeyPurposeMismatch(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	createUser(t, f.db, "existing", "reset@b.com", models.RoleTeacher, models.StatusActive)

	resetKey := f.verifiedKey(t, "reset@b.com", PurposePasswordReset)
	_, err := f.reg.CompleteSignup(ctx, resetKey, studentForm("stud.ent1"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey)

	signupKey := f.verifiedKey(t, "new@b.com", PurposeSignup)
	err = f.reg.ResetPassword(ctx, signupKey, "new-password-1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey)
}

func TestCompleteSignupKeyIsSingleUse(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	key := f.verifiedKey(t, "a@b.com", PurposeSignup)
	_, err := f.reg.CompleteSignup(ctx, key, studentForm("stud.ent1"))
	require.NoError(t, err)

	_, err = f.reg.CompleteSignup(ctx, key, studentForm("stud.ent2"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey)
}

func TestCompleteSignupExpiredOrTamperedKey(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	key := f.verifiedKey(t, "a@b.com", PurposeSignup)

	forged, _, err := NewTempKeyIssuer("another-secret-0123456789", time.Hour, f.clock.Now).Issue("a@b.com", PurposeSignup)
	require.NoError(t, err)
	_, err = f.reg.CompleteSignup(ctx, forged, studentForm("stud.ent1"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey)

	_, err = f.reg.CompleteSignup(ctx, "", studentForm("stud.ent1"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey)

	f.clock.Advance(10*time.Minute + time.Second)
	_, err = f.reg.CompleteSignup(ctx, key, studentForm("stud.ent1"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey)
}

func TestCompleteSignupDuplicateUsername(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	createUser(t, f.db, "taken.name", "someone@b.com", models.RoleStudent, models.StatusActive)

	key := f.verifiedKey(t, "fresh@b.com", PurposeSignup)
	_, err := f.reg.CompleteSignup(ctx, key, studentForm("taken.name"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	// the key was not spent by the conflict
	_, err = f.reg.CompleteSignup(ctx, key, studentForm("free.name"))
	assert.NoError(t, err)
}

func TestCompleteSignupDuplicateEmail(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	key := f.verifiedKey(t, "race@b.com", PurposeSignup)
	// the address gets registered between verification and completion
	createUser(t, f.db, "first.one", "race@b.com", models.RoleStudent, models.StatusPending)

	_, err := f.reg.CompleteSignup(ctx, key, studentForm("second.one"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCompleteSignupConcurrentSameUsername(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	keyA := f.verifiedKey(t, "a@b.com", PurposeSignup)
	keyB := f.verifiedKey(t, "b@b.com", PurposeSignup)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, key := range []string{keyA, keyB} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			_, errs[i] = f.reg.CompleteSignup(ctx, key, studentForm("same.name"))
		}(i, key)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateUsername):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
}

func TestCompleteSignupValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*SignupForm)
		field string
	}{
		{"short username", func(f *SignupForm) { f.Username = "abc" }, "username"},
		{"long username", func(f *SignupForm) { f.Username = "abcdefghijklmnopqrstu" }, "username"},
		{"bad username chars", func(f *SignupForm) { f.Username = "stud-ent" }, "username"},
		{"short password", func(f *SignupForm) { f.Password = "1234567" }, "password"},
		{"missing name", func(f *SignupForm) { f.Name = "" }, "name"},
		{"student without grade", func(f *SignupForm) { f.Grade = 0 }, "grade"},
		{"parent without student name", func(f *SignupForm) { f.Role = models.RoleParent; f.Grade = 0 }, "studentName"},
		{"admin self signup", func(f *SignupForm) { f.Role = models.RoleAdmin }, "role"},
		{"unknown role", func(f *SignupForm) { f.Role = "JANITOR" }, "role"},
		{"bad birthdate", func(f *SignupForm) { f.Birthdate = "01/04/2010" }, "birthdate"},
		{"terms not accepted", func(f *SignupForm) { f.AgreeTerms = false }, "agreeTerms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture(t)
			ctx := context.Background()
			key := f.verifiedKey(t, "a@b.com", PurposeSignup)

			form := studentForm("stud.ent1")
			tt.edit(&form)
			_, err := f.reg.CompleteSignup(ctx, key, form)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.field, verr.Field)

			// a form error leaves the key usable
			_, err = f.reg.CompleteSignup(ctx, key, studentForm("stud.ent1"))
			assert.NoError(t, err)
		})
	}
}

func TestCompleteSignupParentAndTeacher(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	parent := studentForm("parent.kim")
	parent.Role = models.RoleParent
	parent.Grade = 0
	parent.StudentName = "Kim Minji"
	id, err := f.reg.CompleteSignup(ctx, f.verifiedKey(t, "parent@b.com", PurposeSignup), parent)
	require.NoError(t, err)
	u, err := f.users.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kim Minji", u.StudentName)

	teacher := studentForm("teacher.lee")
	teacher.Role = models.RoleTeacher
	teacher.Grade = 3 // ignored for non-students
	id, err = f.reg.CompleteSignup(ctx, f.verifiedKey(t, "teacher@b.com", PurposeSignup), teacher)
	require.NoError(t, err)
	u, err = f.users.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Grade)
	assert.Equal(t, models.StatusPending, u.Status)
}

func TestResetPassword(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	user := createUser(t, f.db, "teacher.lee", "lee@b.com", models.RoleTeacher, models.StatusActive)

	key := f.verifiedKey(t, "LEE@b.com", PurposePasswordReset)

	err := f.reg.ResetPassword(ctx, key, "short")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "newPassword", verr.Field)

	require.NoError(t, f.reg.ResetPassword(ctx, key, "brand-new-pass"))

	reloaded, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPasswordHash("brand-new-pass", reloaded.Password))

	err = f.reg.ResetPassword(ctx, key, "another-pass-1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredKey, "reset keys are single use")
}
