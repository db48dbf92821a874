package models

import (
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

type PayoutRequest struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Reference      string          `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CardNumber     string          `gorm:"size:32;not null" json:"card_number"`
	CardHolderName string          `gorm:"size:128;not null" json:"card_holder_name"`
	BankName       string          `gorm:"size:128;not null" json:"bank_name"`
	Status         string          `gorm:"size:20;not null;index" json:"status"` // PENDING, PROCESSING, COMPLETED, REJECTED
	RequestedAt    time.Time       `gorm:"not null;index" json:"requested_at"`
	ProcessedAt    *time.Time      `json:"processed_at"`
	ProcessedByID  *uint           `json:"processed_by_id,omitempty"`
	AdminComment   *string         `gorm:"type:text" json:"admin_comment"`
	ReceiptURL     string          `gorm:"size:512" json:"receipt_url,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (PayoutRequest) TableName() string {
	return "payout_requests"
}

func (p *PayoutRequest) IsActive() bool {
	return p.Status == domain.PayoutStatusPending || p.Status == domain.PayoutStatusProcessing
}

// MaskedCard keeps the last four digits, for logs and user-facing lists.
func (p *PayoutRequest) MaskedCard() string {
	n := len(p.CardNumber)
	if n <= 4 {
		return p.CardNumber
	}
	masked := make([]byte, n)
	for i := 0; i < n-4; i++ {
		masked[i] = '*'
	}
	copy(masked[n-4:], p.CardNumber[n-4:])
	return string(masked)
}
