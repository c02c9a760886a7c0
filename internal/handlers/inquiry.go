package handlers

import (
	"net/http"
	"strings"
	"time"

	"schoolsite/internal/auth"
	"schoolsite/internal/middleware"
	"schoolsite/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InquiryHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewInquiryHandler(db *gorm.DB, log *zap.Logger) *InquiryHandler {
	return &InquiryHandler{db: db, log: log}
}

type inquiryRequest struct {
	Name    string `json:"name" binding:"required,max=50"`
	Email   string `json:"email" binding:"required,email,max=255"`
	Title   string `json:"title" binding:"required,max=200"`
	Content string `json:"content" binding:"required,max=5000"`
}

type answerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// Create 문의 접수, 로그인 상태면 작성자를 기록
func (h *InquiryHandler) Create(c *gin.Context) {
	var req inquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "이름, 이메일, 제목, 내용을 모두 입력해 주세요.")
		return
	}

	inquiry := models.Inquiry{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
	}
	if s := middleware.CurrentSession(c); auth.IsAuthenticated(s) {
		id := s.UserID()
		inquiry.AuthorID = &id
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&inquiry).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"id": inquiry.ID, "message": "문의가 접수되었습니다."})
}

func (h *InquiryHandler) List(c *gin.Context) {
	p := pageParams(c)
	tx := h.db.WithContext(c.Request.Context()).Model(&models.Inquiry{})
	switch c.Query("answered") {
	case "true":
		tx = tx.Where("answered_at IS NOT NULL")
	case "false":
		tx = tx.Where("answered_at IS NULL")
	}

	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	var items []models.Inquiry
	if err := tx.Order("created_at DESC, id DESC").Limit(p.Size).Offset(p.offset()).Find(&items).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, pageOf(items, p, total))
}

// Answer 관리자 답변 등록
func (h *InquiryHandler) Answer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Answer) == "" {
		badRequest(c, "답변 내용을 입력해 주세요.")
		return
	}
	tx := h.db.WithContext(c.Request.Context())

	var inquiry models.Inquiry
	if err := tx.First(&inquiry, id).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	now := time.Now()
	inquiry.Answer = req.Answer
	inquiry.AnsweredAt = &now
	if err := tx.Model(&inquiry).Updates(map[string]any{"answer": req.Answer, "answered_at": now}).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, inquiry)
}
