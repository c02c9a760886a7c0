package auth

import (
	"schoolsite/internal/models"
)

// IsAuthenticated reports whether a user is attached to the session.
func IsAuthenticated(s *Session) bool {
	u := s.user()
	return u != nil && u.ID != 0
}

// IsAdmin reports whether the session belongs to an ADMIN.
func IsAdmin(s *Session) bool {
	return hasRole(s, func(r models.Role) bool {
		switch r {
		case models.RoleAdmin:
			return true
		case models.RoleTeacher, models.RoleStudent, models.RoleParent, models.RoleGuest:
			return false
		}
		return false
	})
}

// IsTeacherOrAdmin reports whether the session belongs to a TEACHER or ADMIN.
func IsTeacherOrAdmin(s *Session) bool {
	return hasRole(s, func(r models.Role) bool {
		switch r {
		case models.RoleAdmin, models.RoleTeacher:
			return true
		case models.RoleStudent, models.RoleParent, models.RoleGuest:
			return false
		}
		return false
	})
}

// CanModifyContent is the single edit/delete rule for owned records:
// admins may modify anything, everyone else only what they authored.
func CanModifyContent(s *Session, authorID uint) bool {
	if !IsAuthenticated(s) {
		return false
	}
	if IsAdmin(s) {
		return true
	}
	return authorID != 0 && s.User.ID == authorID
}

// CanReadBoard gates the free board behind login.
func CanReadBoard(s *Session) bool {
	return IsAuthenticated(s)
}

// CanWriteBoard allows ADMIN, TEACHER and STUDENT to post on the board.
func CanWriteBoard(s *Session) bool {
	return hasRole(s, func(r models.Role) bool {
		switch r {
		case models.RoleAdmin, models.RoleTeacher, models.RoleStudent:
			return true
		case models.RoleParent, models.RoleGuest:
			return false
		}
		return false
	})
}

func CanManageAnnouncements(s *Session) bool { return IsAdmin(s) }

func CanManageAlbums(s *Session) bool { return IsAdmin(s) }

func CanManageResources(s *Session) bool { return IsAdmin(s) }

func hasRole(s *Session, allow func(models.Role) bool) bool {
	if !IsAuthenticated(s) {
		return false
	}
	return allow(s.User.Role)
}
