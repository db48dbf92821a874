package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralPayout is an append-only ledger entry: one commission credited to a
// referrer for one delivered order. The unique index on OrderID is what makes
// crediting at-most-once, including under concurrent deliveries.
type ReferralPayout struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ReferrerID     uint            `gorm:"not null;index" json:"referrer_id"`
	ReferredUserID uint            `gorm:"not null;index" json:"referred_user_id"`
	OrderID        uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	OrderAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"order_amount"`
	Percentage     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percentage"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`

	Referrer     User `gorm:"foreignKey:ReferrerID" json:"-"`
	ReferredUser User `gorm:"foreignKey:ReferredUserID" json:"-"`
}

func (ReferralPayout) TableName() string { return "referral_payouts" }
