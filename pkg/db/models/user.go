package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a customer account. Guest checkouts may provision one with an empty
// password hash; such accounts cannot sign in until activated out-of-band.
type User struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"column:username;not null;uniqueIndex"`
	Email        string    `gorm:"column:email;not null"`
	FirstName    string    `gorm:"column:first_name;not null;default:''"`
	LastName     string    `gorm:"column:last_name;not null;default:''"`
	PasswordHash string    `gorm:"column:password_hash;not null;default:''"`
	IsStaff      bool      `gorm:"column:is_staff;not null;default:false"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// HasUsableCredential reports whether the account can authenticate at all.
func (u User) HasUsableCredential() bool {
	return u.PasswordHash != ""
}
