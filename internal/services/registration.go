package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"time"

	"schoolsite/internal/config"
	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	codeLength        = 6
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt input limit
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{4,20}$`)
	codePattern     = regexp.MustCompile(`^[0-9]{6}$`)
)

// SignupForm is everything but the email, which comes from the temporary key.
type SignupForm struct {
	Username    string      `json:"username" validate:"required,username"`
	Password    string      `json:"password" validate:"required"`
	Role        models.Role `json:"role" validate:"required,oneof=TEACHER STUDENT PARENT GUEST"`
	Name        string      `json:"name" validate:"required,max=50"`
	KoreanName  string      `json:"koreanName" validate:"max=50"`
	Birthdate   string      `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Gender      string      `json:"gender" validate:"omitempty,oneof=M F"`
	Age         int         `json:"age" validate:"gte=0,lte=120"`
	Grade       int         `json:"grade" validate:"required_if=Role STUDENT,gte=0,lte=12"`
	StudentName string      `json:"studentName" validate:"required_if=Role PARENT,max=50"`
	AgreeTerms  bool        `json:"agreeTerms"`
}

// Registration drives EMAIL_ENTERED → CODE_SENT → CODE_VERIFIED → ACCOUNT_CREATED
// and the password reset variant of the same flow.
type Registration struct {
	users    UserStore
	store    CodeStore
	keys     *TempKeyIssuer
	delivery CodeDelivery
	cfg      config.VerificationConfig
	log      *zap.Logger
	validate *validator.Validate
}

func NewRegistration(users UserStore, store CodeStore, keys *TempKeyIssuer, delivery CodeDelivery, cfg config.VerificationConfig, log *zap.Logger) *Registration {
	return &Registration{
		users:    users,
		store:    store,
		keys:     keys,
		delivery: delivery,
		cfg:      cfg,
		log:      log,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeEmail is the canonical form used for storage and store keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func challengeKey(prefix string, email string, purpose Purpose) string {
	return prefix + string(purpose) + ":" + email
}

func (r *Registration) checkEmail(email string) error {
	if err := r.validate.Var(email, "required,email,max=255"); err != nil {
		return invalid("email", "must be a valid email address")
	}
	return nil
}

// SendCode issues a fresh code for (email, purpose), replacing any live one,
// and hands it to the delivery channel without waiting for it.
func (r *Registration) SendCode(ctx context.Context, email string, purpose Purpose) error {
	email = NormalizeEmail(email)
	if err := r.checkEmail(email); err != nil {
		return err
	}
	if !purpose.Valid() {
		return invalid("purpose", "unknown purpose")
	}

	exists, err := r.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	switch purpose {
	case PurposeSignup:
		if exists {
			return ErrDuplicateEmail
		}
	case PurposePasswordReset:
		if !exists {
			return ErrUserNotFound
		}
	}

	throttleKey := challengeKey(throttleKeyPrefix, email, purpose)
	if r.cfg.ResendInterval > 0 {
		ok, err := r.store.SetNX(ctx, throttleKey, "1", r.cfg.ResendInterval)
		if err != nil {
			return fmt.Errorf("throttle check: %w", err)
		}
		if !ok {
			return ErrRateLimited
		}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, challengeKey(codeKeyPrefix, email, purpose), code, r.cfg.CodeTTL); err != nil {
		_ = r.store.Delete(ctx, throttleKey)
		return fmt.Errorf("store verification code: %w", err)
	}
	if err := r.store.Delete(ctx, challengeKey(attemptsKeyPrefix, email, purpose)); err != nil {
		r.log.Warn("reset verification attempts failed", zap.String("email", email), zap.Error(err))
	}

	go r.deliver(email, purpose, code)

	r.log.Info("verification code issued", zap.String("email", email), zap.String("purpose", string(purpose)))
	return nil
}

func (r *Registration) deliver(email string, purpose Purpose, code string) {
	timeout := r.cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := r.delivery.SendCode(ctx, email, purpose, code); err != nil {
		r.log.Error("verification code delivery failed",
			zap.String("email", email),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	}
}

// VerifyCode consumes a matching live code and returns a temporary key.
// After MaxAttempts wrong guesses the code is burned and must be re-sent.
func (r *Registration) VerifyCode(ctx context.Context, email, code string, purpose Purpose) (string, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if !purpose.Valid() {
		return "", invalid("purpose", "unknown purpose")
	}
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}

	codeKey := challengeKey(codeKeyPrefix, email, purpose)
	attemptsKey := challengeKey(attemptsKeyPrefix, email, purpose)

	stored, err := r.store.Get(ctx, codeKey)
	if errors.Is(err, ErrCacheMiss) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("load verification code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		attempts, err := r.store.Incr(ctx, attemptsKey, r.cfg.CodeTTL)
		if err != nil {
			return "", fmt.Errorf("count verification attempts: %w", err)
		}
		if attempts >= int64(r.cfg.MaxAttempts) {
			_ = r.store.Delete(ctx, codeKey)
			_ = r.store.Delete(ctx, attemptsKey)
			r.log.Warn("verification code burned after too many attempts", zap.String("email", email))
		}
		return "", ErrInvalidCode
	}

	// Take makes the code single use even when two requests race here.
	taken, err := r.store.Take(ctx, codeKey)
	if errors.Is(err, ErrCacheMiss) || (err == nil && taken != code) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("consume verification code: %w", err)
	}
	_ = r.store.Delete(ctx, attemptsKey)

	key, _, err := r.keys.Issue(email, purpose)
	if err != nil {
		return "", err
	}
	return key, nil
}

// openKey parses a temporary key and rejects keys already spent.
func (r *Registration) openKey(ctx context.Context, tempKey string, purpose Purpose) (*TempKeyClaims, error) {
	claims, err := r.keys.Parse(tempKey, purpose)
	if err != nil {
		return nil, err
	}
	_, err = r.store.Get(ctx, usedKeyPrefix+claims.ID)
	if err == nil {
		return nil, fmt.Errorf("%w: already used", ErrInvalidOrExpiredKey)
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, fmt.Errorf("check temporary key: %w", err)
	}
	return claims, nil
}

// spendKey marks the key used. Only one caller can win.
func (r *Registration) spendKey(ctx context.Context, claims *TempKeyClaims) error {
	ok, err := r.store.SetNX(ctx, usedKeyPrefix+claims.ID, "1", r.keys.remaining(claims))
	if err != nil {
		return fmt.Errorf("spend temporary key: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: already used", ErrInvalidOrExpiredKey)
	}
	return nil
}

func (r *Registration) releaseKey(ctx context.Context, claims *TempKeyClaims) {
	if err := r.store.Delete(ctx, usedKeyPrefix+claims.ID); err != nil {
		r.log.Warn("release temporary key failed", zap.String("jti", claims.ID), zap.Error(err))
	}
}

// CompleteSignup creates a PENDING account for the verified email.
func (r *Registration) CompleteSignup(ctx context.Context, tempKey string, form SignupForm) (uint, error) {
	claims, err := r.openKey(ctx, tempKey, PurposeSignup)
	if err != nil {
		return 0, err
	}
	if err := r.validateSignup(&form); err != nil {
		return 0, err
	}

	email := claims.Email()
	if taken, err := r.users.ExistsByUsername(ctx, form.Username); err != nil {
		return 0, err
	} else if taken {
		return 0, ErrDuplicateUsername
	}
	if taken, err := r.users.ExistsByEmail(ctx, email); err != nil {
		return 0, err
	} else if taken {
		return 0, ErrDuplicateEmail
	}

	hash, err := utils.HashPassword(form.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	if err := r.spendKey(ctx, claims); err != nil {
		return 0, err
	}

	user := &models.User{
		Username:    form.Username,
		Email:       email,
		Password:    hash,
		Name:        strings.TrimSpace(form.Name),
		KoreanName:  strings.TrimSpace(form.KoreanName),
		Role:        form.Role,
		Status:      models.StatusPending,
		Birthdate:   form.Birthdate,
		Gender:      form.Gender,
		Age:         form.Age,
		StudentName: strings.TrimSpace(form.StudentName),
	}
	if form.Role == models.RoleStudent {
		user.Grade = form.Grade
	}
	if err := r.users.Create(ctx, user); err != nil {
		r.releaseKey(ctx, claims)
		return 0, err
	}

	r.log.Info("account created, pending approval",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)
	return user.ID, nil
}

// ResetPassword replaces the password of the account owning the verified email.
func (r *Registration) ResetPassword(ctx context.Context, tempKey, newPassword string) error {
	claims, err := r.openKey(ctx, tempKey, PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := checkPassword("newPassword", newPassword); err != nil {
		return err
	}

	user, err := r.users.FindByEmail(ctx, claims.Email())
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := r.spendKey(ctx, claims); err != nil {
		return err
	}
	if err := r.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		r.releaseKey(ctx, claims)
		return err
	}

	r.log.Info("password reset", zap.Uint("user_id", user.ID))
	return nil
}

func (r *Registration) validateSignup(form *SignupForm) error {
	form.Username = strings.TrimSpace(form.Username)
	if err := r.validate.Struct(form); err != nil {
		return toValidationError(err)
	}
	if err := checkPassword("password", form.Password); err != nil {
		return err
	}
	if !form.AgreeTerms {
		return invalid("agreeTerms", "terms must be accepted")
	}
	return nil
}

// toValidationError reports the first failed rule as a ValidationError.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(fe.Field(), describeRule(fe))
	}
	return invalid("", err.Error())
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "username":
		return "must be 4-20 letters, digits, '.' or '_'"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a YYYY-MM-DD date"
	default:
		return fmt.Sprintf("failed %s %s", fe.Tag(), fe.Param())
	}
}

func checkPassword(field, password string) error {
	if len([]rune(password)) < minPasswordLength {
		return invalid(field, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return invalid(field, fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
