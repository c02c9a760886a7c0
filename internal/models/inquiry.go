package models

import (
	"time"
)

// Inquiry is a contact-form message; AuthorID is set when the sender was logged in.
type Inquiry struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AuthorID   *uint      `gorm:"index" json:"authorId"`
	Name       string     `gorm:"size:50;not null" json:"name"`
	Email      string     `gorm:"size:255;not null" json:"email"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	Answer     string     `gorm:"type:text" json:"answer"`
	AnsweredAt *time.Time `json:"answeredAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}
