package models

import "gorm.io/gorm"

// EmailAuthentication is a verification code sent to an email address
// before registration.
type EmailAuthentication struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email          string   `gorm:"uniqueIndex;not null" json:"email"`
	Code           string   `gorm:"not null" json:"-"`
	CodeTime       float64  `gorm:"not null" json:"code_time"`
	Validated      bool     `gorm:"not null" json:"validated"`
	ValidationTime *float64 `json:"validation_time,omitempty"`
}

// PhoneNumberAuthentication is a verification code sent by SMS. It is also
// reused for phone-number login once the number belongs to a user.
type PhoneNumberAuthentication struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email          string   `gorm:"index;not null" json:"email"`
	PhoneNumber    string   `gorm:"uniqueIndex;not null" json:"phone_number"`
	Code           string   `gorm:"not null" json:"-"`
	CodeTime       float64  `gorm:"not null" json:"code_time"`
	Validated      bool     `gorm:"not null" json:"validated"`
	ValidationTime *float64 `json:"validation_time,omitempty"`
}

// PasswordReset tracks a reset code for an existing account
type PasswordReset struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email          string   `gorm:"uniqueIndex;not null" json:"email"`
	Code           string   `gorm:"not null" json:"-"`
	CodeTime       float64  `gorm:"not null" json:"code_time"`
	Validated      bool     `gorm:"not null" json:"validated"`
	ValidationTime *float64 `json:"validation_time,omitempty"`
}

// Ban permanently blocks an email from authenticating
type Ban struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string  `gorm:"uniqueIndex;not null" json:"email"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

func (e *EmailAuthentication) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}

func (p *PhoneNumberAuthentication) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (p *PasswordReset) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (b *Ban) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	stampIfZero(&b.Timestamp)
	return nil
}
