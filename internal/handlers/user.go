package handlers

import (
	"net/http"
	"strings"

	"schoolsite/internal/middleware"
	"schoolsite/internal/models"
	"schoolsite/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserHandler struct {
	db   *gorm.DB
	auth *services.AuthService
	log  *zap.Logger
}

func NewUserHandler(db *gorm.DB, auth *services.AuthService, log *zap.Logger) *UserHandler {
	return &UserHandler{db: db, auth: auth, log: log}
}

type settingsRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=50"`
	KoreanName  *string `json:"koreanName" binding:"omitempty,max=50"`
	Image       *string `json:"image" binding:"omitempty,url"`
	OldPassword string  `json:"oldPassword"`
	NewPassword string  `json:"newPassword"`
}

// userStats 작성 글 수와 댓글 수
func userStats(tx *gorm.DB, userID uint) (postCount, commentCount int64) {
	tx.Model(&models.Post{}).Where("author_id = ?", userID).Count(&postCount)
	tx.Model(&models.Comment{}).Where("author_id = ?", userID).Count(&commentCount)
	return
}

// Profile 회원 공개 정보 /api/users/:id
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tx := h.db.WithContext(c.Request.Context())

	var user models.User
	if err := tx.Where("id = ? AND status = ?", id, models.StatusActive).First(&user).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	posts, comments := userStats(tx, user.ID)

	var recent []models.Post
	tx.Where("author_id = ?", user.ID).Order("created_at DESC").Limit(10).Find(&recent)
	if recent == nil {
		recent = []models.Post{}
	}

	respond(c, http.StatusOK, gin.H{
		"user":         authorOf(user),
		"postCount":    posts,
		"commentCount": comments,
		"recentPosts":  recent,
	})
}

// UpdateSettings 내 정보 수정, 비밀번호 변경 포함
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "입력값을 확인해 주세요.")
		return
	}
	user := middleware.CurrentUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "로그인이 필요합니다.")
		return
	}

	if req.NewPassword != "" {
		if err := h.auth.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
			respondError(c, h.log, err)
			return
		}
	}

	updates := make(map[string]any)
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" && name != user.Name {
			updates["name"] = name
			user.Name = name
		}
	}
	if req.KoreanName != nil && *req.KoreanName != user.KoreanName {
		updates["korean_name"] = strings.TrimSpace(*req.KoreanName)
		user.KoreanName = strings.TrimSpace(*req.KoreanName)
	}
	if req.Image != nil && *req.Image != user.Image {
		updates["image"] = *req.Image
		user.Image = *req.Image
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			respondError(c, h.log, err)
			return
		}
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}
