package models

import (
	"time"
)

// Album groups already uploaded image references.
type Album struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	AuthorID    uint         `gorm:"not null;index" json:"authorId"`
	Title       string       `gorm:"size:200;not null" json:"title"`
	Description string       `gorm:"size:1000" json:"description"`
	Images      []AlbumImage `gorm:"constraint:OnDelete:CASCADE;" json:"images"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type AlbumImage struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	AlbumID uint   `gorm:"not null;index" json:"albumId"`
	URL     string `gorm:"not null" json:"url"`
	Caption string `gorm:"size:200" json:"caption"`
	Order   int    `gorm:"default:0" json:"order"`
}
