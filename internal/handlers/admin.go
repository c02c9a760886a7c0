package handlers

import (
	"net/http"

	"schoolsite/internal/middleware"
	"schoolsite/internal/models"
	"schoolsite/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAdminHandler(accounts *services.AccountService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, log: log}
}

// ListUsers 회원 목록, ?status=PENDING 으로 승인 대기만 조회
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.accounts.ListUsers(c.Request.Context(), middleware.CurrentSession(c), models.Status(c.Query("status")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respond(c, http.StatusOK, users)
}

// UpdateUser 승인, 정지, 비활성화 및 역할 변경
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var change services.StatusChange
	if err := c.ShouldBindJSON(&change); err != nil {
		badRequest(c, "status 값이 필요합니다.")
		return
	}

	user, err := h.accounts.ChangeStatus(c.Request.Context(), middleware.CurrentSession(c), id, change)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"message": "회원 정보가 변경되었습니다.",
		"user":    user,
	})
}

// DeleteUser 회원과 작성한 콘텐츠 일괄 삭제
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), middleware.CurrentSession(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "회원이 삭제되었습니다."})
}
