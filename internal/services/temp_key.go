package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose binds a verification code or temporary key to one downstream action.
type Purpose string

const (
	PurposeSignup        Purpose = "SIGNUP"
	PurposePasswordReset Purpose = "PASSWORD_RESET"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeSignup, PurposePasswordReset:
		return true
	}
	return false
}

const tempKeyIssuer = "schoolsite/verification"

// TempKeyClaims proves that Subject (an email) passed verification for Purpose.
type TempKeyClaims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Email returns the verified address carried by the key.
func (c *TempKeyClaims) Email() string { return c.Subject }

// TempKeyIssuer signs and verifies temporary keys with HMAC-SHA256.
type TempKeyIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTempKeyIssuer(secret string, ttl time.Duration, now func() time.Time) *TempKeyIssuer {
	if now == nil {
		now = time.Now
	}
	return &TempKeyIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue creates a key for email and purpose.
func (i *TempKeyIssuer) Issue(email string, purpose Purpose) (string, *TempKeyClaims, error) {
	now := i.now()
	claims := &TempKeyClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tempKeyIssuer,
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign temporary key: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry and purpose. Any failure is ErrInvalidOrExpiredKey.
func (i *TempKeyIssuer) Parse(tokenString string, purpose Purpose) (*TempKeyClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidOrExpiredKey
	}

	claims := &TempKeyClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tempKeyIssuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredKey, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: issued for %s", ErrInvalidOrExpiredKey, claims.Purpose)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredKey, errors.New("missing subject or id"))
	}
	return claims, nil
}

// remaining is how long the key stays valid from now.
func (i *TempKeyIssuer) remaining(claims *TempKeyClaims) time.Duration {
	if claims.ExpiresAt == nil {
		return i.ttl
	}
	d := claims.ExpiresAt.Time.Sub(i.now())
	if d < time.Second {
		return time.Second
	}
	return d
}
