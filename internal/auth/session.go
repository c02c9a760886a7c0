// Package auth derives a request's identity and answers capability questions.
//
// A Session is built from a freshly loaded user row on every request and is
// passed explicitly to the predicates; nothing here reads ambient state or
// client supplied role claims.
package auth

import (
	"schoolsite/internal/models"
)

// SessionUser is the server-side projection of the signed-in user.
type SessionUser struct {
	ID     uint          `json:"id"`
	Role   models.Role   `json:"role"`
	Status models.Status `json:"status"`
}

// Session is request scoped. A nil *Session or a nil User means anonymous.
type Session struct {
	User *SessionUser `json:"user"`
}

// Anonymous is the session of a visitor without a usable account.
var Anonymous = &Session{}

// ResolveSession projects a stored user into a session. Users that are not
// ACTIVE, or whose role is unknown, resolve to the anonymous session.
func ResolveSession(user *models.User) *Session {
	if user == nil || user.ID == 0 || !user.IsActive() || !user.Role.Valid() {
		return Anonymous
	}
	return &Session{User: &SessionUser{
		ID:     user.ID,
		Role:   user.Role,
		Status: user.Status,
	}}
}

func (s *Session) user() *SessionUser {
	if s == nil {
		return nil
	}
	return s.User
}

// UserID returns the signed-in user's id, or 0.
func (s *Session) UserID() uint {
	if u := s.user(); u != nil {
		return u.ID
	}
	return 0
}
