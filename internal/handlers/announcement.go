package handlers

import (
	"net/http"
	"strings"

	"schoolsite/internal/middleware"
	"schoolsite/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AnnouncementHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAnnouncementHandler(db *gorm.DB, log *zap.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{db: db, log: log}
}

type announcementRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	IsPinned *bool   `json:"isPinned"`
}

func (h *AnnouncementHandler) List(c *gin.Context) {
	p := pageParams(c)
	tx := h.db.WithContext(c.Request.Context())

	var total int64
	if err := tx.Model(&models.Announcement{}).Count(&total).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	var items []models.Announcement
	if err := tx.Order("is_pinned DESC, created_at DESC, id DESC").
		Limit(p.Size).Offset(p.offset()).
		Find(&items).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, pageOf(items, p, total))
}

func (h *AnnouncementHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var item models.Announcement
	if err := h.db.WithContext(c.Request.Context()).First(&item, id).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, item)
}

// apply merges req into item and reports a validation message, if any.
func (req announcementRequest) apply(item *models.Announcement) string {
	if req.Title != nil {
		item.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		item.Content = *req.Content
	}
	if req.IsPinned != nil {
		item.IsPinned = *req.IsPinned
	}
	if item.Title == "" || len([]rune(item.Title)) > 200 {
		return "제목은 1~200자여야 합니다."
	}
	return ""
}

func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	item := models.Announcement{AuthorID: middleware.CurrentSession(c).UserID()}
	if msg := req.apply(&item); msg != "" {
		badRequest(c, msg)
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

func (h *AnnouncementHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	tx := h.db.WithContext(c.Request.Context())

	var item models.Announcement
	if err := tx.First(&item, id).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	if msg := req.apply(&item); msg != "" {
		badRequest(c, msg)
		return
	}
	if err := tx.Save(&item).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *AnnouncementHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Announcement{}, id)
	if res.Error != nil {
		respondError(c, h.log, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "삭제되었습니다."})
}
