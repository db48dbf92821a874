package models

import (
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	TelegramID            *int64          `gorm:"uniqueIndex" json:"telegram_id"` // nil for admin-only accounts
	Username              string          `gorm:"size:64" json:"username"`
	FirstName             string          `gorm:"size:128" json:"first_name"`
	Email                 *string         `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	PasswordHash          string          `gorm:"size:255" json:"-"`
	Role                  string          `gorm:"size:20;not null;default:'CUSTOMER';index" json:"role"` // CUSTOMER | ADMIN
	ReferralCode          string          `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`
	ReferrerID            *uint           `gorm:"index" json:"referrer_id"`
	ReferralPercentage    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:3" json:"referral_percentage"`
	TotalReferralEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_referral_earnings"`
	AvailableBalance      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"available_balance"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `gorm:"index" json:"-"`

	Referrer *User `gorm:"foreignKey:ReferrerID" json:"-"`
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }

// ChatID returns the Telegram chat to message the user in, or 0 when unknown.
func (u *User) ChatID() int64 {
	if u.TelegramID == nil {
		return 0
	}
	return *u.TelegramID
}

// DisplayName prefers the Telegram username.
func (u *User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	case u.Email != nil:
		return *u.Email
	}
	return "user"
}
