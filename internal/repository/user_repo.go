package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInsufficientBalance = errors.New("insufficient available balance")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// generateReferralCode returns an 8-character hex referral code.
func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create inserts the user, assigning a fresh unique referral code when none is set.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	if u.ReferralCode != "" {
		return r.db.WithContext(ctx).Create(u).Error
	}
	for i := 0; i < 10; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return err
		}
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		u.ReferralCode = code
		return r.db.WithContext(ctx).Create(u).Error
	}
	return fmt.Errorf("failed to generate a unique referral code after retries")
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDForUpdate loads the user with a row lock; use inside a transaction.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreditReferralEarning adds amount to both lifetime earnings and the
// available balance in a single UPDATE, so concurrent credits cannot lose writes.
// ROUND keeps SQLite, which adds in REAL, on whole cents.
func (r *UserRepository) CreditReferralEarning(ctx context.Context, userID uint, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"total_referral_earnings": gorm.Expr("ROUND(total_referral_earnings + CAST(? AS DECIMAL(20,2)), 2)", amount),
			"available_balance":       gorm.Expr("ROUND(available_balance + CAST(? AS DECIMAL(20,2)), 2)", amount),
		}).Error
}

// DebitAvailableBalance subtracts amount only if the balance covers it.
// The guard lives in the WHERE clause so the check and the write are one statement.
func (r *UserRepository) DebitAvailableBalance(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND available_balance >= CAST(? AS DECIMAL(20,2))", userID, amount).
		UpdateColumn("available_balance", gorm.Expr("ROUND(available_balance - CAST(? AS DECIMAL(20,2)), 2)", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *UserRepository) SetReferralPercentage(ctx context.Context, userID uint, pct decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("referral_percentage", pct).Error
}

func (r *UserRepository) SetRole(ctx context.Context, userID uint, role string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", role).Error
}

// ListAdmins returns every ADMIN account.
func (r *UserRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var list []models.User
	err := r.db.WithContext(ctx).Where("role = ?", domain.RoleAdmin).Order("id ASC").Find(&list).Error
	return list, err
}

// ListReferred returns the users invited by referrerID, newest first.
func (r *UserRepository) ListReferred(ctx context.Context, referrerID uint, limit, offset int) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("referrer_id = ?", referrerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.User
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}
