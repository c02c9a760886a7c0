package models

import (
	"time"
)

// Post is a free board entry.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"authorId"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"` // markdown
	Views     int       `gorm:"default:0" json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// filled on read
	CommentCount  int `gorm:"-" json:"commentCount"`
	ReactionCount int `gorm:"-" json:"reactionCount"`
}
