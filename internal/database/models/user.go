package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

// CanOrganize reports whether the role may create events.
func (r Role) CanOrganize() bool {
	return r == RoleOrganizer || r == RoleAdmin
}

type User struct {
	Base
	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	Name         string  `json:"name"`
	Image        string  `json:"image,omitempty"`
	PasswordHash *string `json:"-"` // nil for OAuth-only users
	Role         Role    `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`

	EmailVerifiedAt         *time.Time `json:"email_verified_at,omitempty"`
	EmailVerificationToken  *string    `gorm:"uniqueIndex" json:"-"`
	EmailVerificationExpiry *time.Time `json:"-"`

	Phone          *string    `gorm:"index" json:"phone,omitempty"`
	PhoneVerified  bool       `gorm:"not null;default:false" json:"phone_verified"`
	PhoneOTP       *string    `gorm:"column:phone_otp;type:varchar(6)" json:"-"`
	PhoneOTPExpiry *time.Time `gorm:"column:phone_otp_expiry" json:"-"`

	// Relationships
	Accounts []Account `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// Account links a user to an external OAuth provider identity.
type Account struct {
	Base
	UserID            uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Provider          string    `gorm:"not null;uniqueIndex:idx_provider_account" json:"provider"`
	ProviderAccountID string    `gorm:"not null;uniqueIndex:idx_provider_account" json:"provider_account_id"`

	// age encrypted provider tokens
	EncryptedAccessToken  []byte     `json:"-"`
	EncryptedRefreshToken []byte     `json:"-"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}
