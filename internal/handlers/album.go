package handlers

import (
	"net/http"

	"schoolsite/internal/middleware"
	"schoolsite/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AlbumHandler manages photo albums. Images are references to files that
// were uploaded elsewhere.
type AlbumHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAlbumHandler(db *gorm.DB, log *zap.Logger) *AlbumHandler {
	return &AlbumHandler{db: db, log: log}
}

type albumImageRequest struct {
	URL     string `json:"url" binding:"required,url"`
	Caption string `json:"caption" binding:"max=200"`
}

type albumRequest struct {
	Title       string              `json:"title" binding:"required,max=200"`
	Description string              `json:"description" binding:"max=1000"`
	Images      []albumImageRequest `json:"images" binding:"required,min=1,max=100,dive"`
}

func (h *AlbumHandler) List(c *gin.Context) {
	p := pageParams(c)
	tx := h.db.WithContext(c.Request.Context())

	var total int64
	if err := tx.Model(&models.Album{}).Count(&total).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	var albums []models.Album
	if err := tx.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order(`"order" ASC, id ASC`)
	}).
		Order("created_at DESC, id DESC").
		Limit(p.Size).Offset(p.offset()).
		Find(&albums).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, pageOf(albums, p, total))
}

func (h *AlbumHandler) Create(c *gin.Context) {
	var req albumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "제목과 이미지 주소가 필요합니다.")
		return
	}

	album := models.Album{
		AuthorID:    middleware.CurrentSession(c).UserID(),
		Title:       req.Title,
		Description: req.Description,
	}
	for i, img := range req.Images {
		album.Images = append(album.Images, models.AlbumImage{URL: img.URL, Caption: img.Caption, Order: i})
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&album).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, album)
}

func (h *AlbumHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var album models.Album
		if err := tx.First(&album, id).Error; err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", album.ID).Delete(&models.AlbumImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&album).Error
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "삭제되었습니다."})
}
