package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User represents a Mist account
type User struct {
	ID                string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	Username          string     `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	Sex               string     `json:"sex,omitempty"`
	PhoneNumber       *string    `gorm:"uniqueIndex" json:"phone_number,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	ProfilePictureURL string     `json:"picture,omitempty"`
	ExpoPushToken     string     `json:"-"`
	IsSuperuser       bool       `gorm:"not null" json:"is_superuser"`
	CreatedAt         time.Time  `json:"date_joined"`
	UpdatedAt         time.Time  `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

// BeforeSave normalizes the email so lookups are case-insensitive
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// HasLocation reports whether both coordinates are set
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}
