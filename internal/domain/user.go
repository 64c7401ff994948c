package domain

import (
	"time"
)

// RoleAdmin marks the bootstrap account created on first run. Every other
// account carries RoleUser.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name           *string    `json:"name"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash   string     `json:"-" gorm:"not null"`
	Secret         *string    `json:"-"`
	MFA            bool       `json:"mfa" gorm:"not null;default:false"`
	Role           string     `json:"role" gorm:"not null;default:'user'"`
	Terms          string     `json:"terms" gorm:"not null;default:''"`
	FailedAttempts int        `json:"-" gorm:"not null;default:0"`
	LockUntil      *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Session is the server-side half of a login. Its ID is a one-way derivation
// of the bearer token the client holds; the raw token is never stored.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"not null;index"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings is a single-row table of site-wide flags. The auth core only reads
// it; mutation belongs to the admin surface.
type Settings struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	MFA      bool `json:"mfa" gorm:"not null;default:false"`
	AllowReg bool `json:"allowReg" gorm:"not null;default:false"`
}
