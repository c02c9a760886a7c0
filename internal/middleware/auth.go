package middleware

import (
	"errors"
	"net/http"

	"schoolsite/internal/auth"
	"schoolsite/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	CheckUserKey   = "user"
	SessionKey     = "session"
	UnreadCountKey = "unread_count"

	// SessionUserIDKey is the only value kept in the cookie session.
	SessionUserIDKey = "user_id"
)

// Abort writes the JSON error envelope and stops the chain.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// LoadUser reloads the signed-in user on every request and stores the derived
// session. Users that are gone or no longer ACTIVE are signed out.
func LoadUser(conn *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(SessionKey, auth.Anonymous)

		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserIDKey).(uint)
		if !ok || userID == 0 {
			c.Next()
			return
		}

		var user models.User
		if err := conn.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error("load session user failed", zap.Uint("user_id", userID), zap.Error(err))
			}
			clearSession(session, log)
			c.Next()
			return
		}

		s := auth.ResolveSession(&user)
		if !auth.IsAuthenticated(s) {
			clearSession(session, log)
			c.Next()
			return
		}

		c.Set(CheckUserKey, &user)
		c.Set(SessionKey, s)

		var count int64
		conn.WithContext(c.Request.Context()).Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", user.ID, false).
			Count(&count)
		c.Set(UnreadCountKey, count)

		c.Next()
	}
}

func clearSession(session sessions.Session, log *zap.Logger) {
	session.Delete(SessionUserIDKey)
	if err := session.Save(); err != nil {
		log.Warn("clear session failed", zap.Error(err))
	}
}

// CurrentSession returns the request's session, anonymous when none was loaded.
func CurrentSession(c *gin.Context) *auth.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(*auth.Session); ok && s != nil {
			return s
		}
	}
	return auth.Anonymous
}

// CurrentUser returns the loaded user row, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// AuthRequired ensures a user is logged in.
func AuthRequired() gin.HandlerFunc {
	return Require(auth.IsAuthenticated)
}

// Require gates a route on a capability predicate. Anonymous callers get 401,
// signed-in callers lacking the capability get 403.
func Require(can func(*auth.Session) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if can(s) {
			c.Next()
			return
		}
		if !auth.IsAuthenticated(s) {
			Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "로그인이 필요합니다.")
			return
		}
		Abort(c, http.StatusForbidden, "FORBIDDEN", "권한이 없습니다.")
	}
}
