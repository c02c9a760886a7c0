package models

import (
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
	RoleParent  Role = "PARENT"
	RoleGuest   Role = "GUEST"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleParent, RoleGuest}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent, RoleGuest:
		return true
	}
	return false
}

// Status is the account lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusInactive  Status = "INACTIVE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email       string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"not null" json:"-"` // bcrypt hash
	Name        string     `gorm:"size:50;not null" json:"name"`
	KoreanName  string     `gorm:"size:50" json:"koreanName"`
	Role        Role       `gorm:"size:20;not null;default:'GUEST';index" json:"role"`
	Status      Status     `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Birthdate   string     `gorm:"size:10" json:"birthdate"` // YYYY-MM-DD
	Gender      string     `gorm:"size:1" json:"gender"`
	Age         int        `json:"age"`
	Grade       int        `json:"grade"`
	StudentName string     `gorm:"size:50" json:"studentName"` // child's name, parents only
	Image       string     `json:"image"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ApprovedAt  *time.Time `json:"approvedAt"`
}

// IsActive reports whether the account may hold a session.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}
