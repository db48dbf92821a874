package service

import (
	"context"

	"storefront/config"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// SettingsService exposes admin-editable settings with config fallbacks.
type SettingsService struct {
	repo     *repository.SettingRepository
	defaults config.ReferralConfig
}

func NewSettingsService(repo *repository.SettingRepository, defaults config.ReferralConfig) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults}
}

// SeedDefaults writes the configured values for keys that are not stored yet.
func (s *SettingsService) SeedDefaults(ctx context.Context) error {
	return s.repo.SeedDefaults(ctx, map[string]string{
		domain.SettingMinPayoutAmount:           s.defaults.MinPayoutAmount.StringFixed(2),
		domain.SettingDefaultReferralPercentage: s.defaults.DefaultPercentage.StringFixed(2),
	})
}

func (s *SettingsService) MinPayoutAmount(ctx context.Context) decimal.Decimal {
	return s.repo.GetDecimal(ctx, domain.SettingMinPayoutAmount, s.defaults.MinPayoutAmount)
}

func (s *SettingsService) DefaultReferralPercentage(ctx context.Context) decimal.Decimal {
	return s.repo.GetDecimal(ctx, domain.SettingDefaultReferralPercentage, s.defaults.DefaultPercentage)
}

// All returns every known setting with its effective value.
func (s *SettingsService) All(ctx context.Context) map[string]string {
	return map[string]string{
		domain.SettingMinPayoutAmount:           s.MinPayoutAmount(ctx).StringFixed(2),
		domain.SettingDefaultReferralPercentage: s.DefaultReferralPercentage(ctx).StringFixed(2),
	}
}

// Update validates every value before writing any of them.
func (s *SettingsService) Update(ctx context.Context, values map[string]string) error {
	normalized := make(map[string]string, len(values))
	for key, raw := range values {
		d, err := decimal.NewFromString(raw)
		switch key {
		case domain.SettingMinPayoutAmount:
			if err != nil || d.IsNegative() {
				return newError(CodeInvalidAmount, "%s must be a non-negative number", key)
			}
		case domain.SettingDefaultReferralPercentage:
			if err != nil || d.IsNegative() || d.GreaterThan(hundred) {
				return newError(CodeInvalidPercentage, "%s must be between 0 and 100", key)
			}
		default:
			return newError(CodeUnknownSetting, "unknown setting %q", key)
		}
		normalized[key] = d.Round(2).StringFixed(2)
	}
	for key, val := range normalized {
		if err := s.repo.Set(ctx, key, val); err != nil {
			return err
		}
	}
	return nil
}
