package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"schoolsite/internal/middleware"
	"schoolsite/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// respond writes the success envelope.
func respond(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, code int, errCode, message string) {
	middleware.Abort(c, code, errCode, message)
}

// respondError maps a service error onto a status code. Unknown errors are
// logged and reported as INTERNAL without details.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, "VALIDATION", verr.Error())
	case errors.Is(err, services.ErrInvalidCode):
		fail(c, http.StatusBadRequest, "INVALID_CODE", "인증 코드가 올바르지 않거나 만료되었습니다.")
	case errors.Is(err, services.ErrDuplicateUsername):
		fail(c, http.StatusConflict, "DUPLICATE_USERNAME", "이미 사용 중인 아이디입니다.")
	case errors.Is(err, services.ErrDuplicateEmail):
		fail(c, http.StatusConflict, "DUPLICATE_EMAIL", "이미 가입된 이메일입니다.")
	case errors.Is(err, services.ErrInvalidOrExpiredKey):
		fail(c, http.StatusUnauthorized, "INVALID_OR_EXPIRED_KEY", "인증이 만료되었습니다. 이메일 인증을 다시 진행해 주세요.")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "아이디 또는 비밀번호가 올바르지 않습니다.")
	case errors.Is(err, services.ErrAccountPending):
		fail(c, http.StatusForbidden, "ACCOUNT_PENDING", "관리자 승인 대기 중인 계정입니다.")
	case errors.Is(err, services.ErrAccountDisabled):
		fail(c, http.StatusForbidden, "ACCOUNT_DISABLED", "정지되었거나 비활성화된 계정입니다.")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, "FORBIDDEN", "권한이 없습니다.")
	case errors.Is(err, services.ErrRateLimited):
		fail(c, http.StatusTooManyRequests, "RATE_LIMITED", "잠시 후 다시 시도해 주세요.")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, "USER_NOT_FOUND", "사용자를 찾을 수 없습니다.")
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, "NOT_FOUND", "요청한 항목을 찾을 수 없습니다.")
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "INTERNAL", "서버 오류가 발생했습니다.")
	}
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, "VALIDATION", message)
}

func notFound(c *gin.Context) {
	fail(c, http.StatusNotFound, "NOT_FOUND", "요청한 항목을 찾을 수 없습니다.")
}

func forbidden(c *gin.Context) {
	fail(c, http.StatusForbidden, "FORBIDDEN", "권한이 없습니다.")
}

// paramID parses a positive numeric path parameter, answering 404 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		notFound(c)
		return 0, false
	}
	return uint(id), true
}

type page struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

func (p page) offset() int { return (p.Page - 1) * p.Size }

func pageParams(c *gin.Context) page {
	p := page{Page: 1, Size: defaultPageSize}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(c.Query("size")); err == nil && n > 0 {
		p.Size = min(n, maxPageSize)
	}
	return p
}

// pageOf is the paginated list payload.
func pageOf[T any](items []T, p page, total int64) gin.H {
	if items == nil {
		items = []T{}
	}
	return gin.H{"items": items, "page": p.Page, "size": p.Size, "total": total}
}
