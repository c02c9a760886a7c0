package models

import (
	"time"
)

// Reaction is a like on a post. One per user and post.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_user_post" json:"userId"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_reaction_user_post;index" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}
