package handlers

import (
	"net/http"

	"schoolsite/internal/middleware"
	"schoolsite/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewNotificationHandler(db *gorm.DB, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, log: log}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.CurrentSession(c).UserID()

	var notifications []models.Notification
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(50).
		Find(&notifications).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	unread, _ := c.Get(middleware.UnreadCountKey)
	respond(c, http.StatusOK, gin.H{"items": notifications, "unread": unread})
}

// Read marks one of the caller's notifications as read. Other users'
// notifications look like missing ones.
func (h *NotificationHandler) Read(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID := middleware.CurrentSession(c).UserID()

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		respondError(c, h.log, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "isRead": true})
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	userID := middleware.CurrentSession(c).UserID()

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		respondError(c, h.log, res.Error)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": res.RowsAffected})
}
