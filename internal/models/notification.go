package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeCommentPost   NotificationType = "comment_post"
	NotificationTypeReplyComment  NotificationType = "reply_comment"
	NotificationTypeAccountStatus NotificationType = "account_status"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"userId"` // receiver
	ActorID   *uint            `gorm:"index" json:"actorId"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Message   string           `gorm:"type:text" json:"message"`
	Link      string           `json:"link"`
	IsRead    bool             `gorm:"default:false;index" json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}
