package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repository"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// referralPrefix is accepted in front of a referral code in start links
// (t.me/<bot>?startapp=ref_<code>).
const referralPrefix = "ref_"

// Tokens is the pair handed to a client after login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
	settings *SettingsService
	now      func() time.Time
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository, settings *SettingsService) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo, settings: settings, now: time.Now}
}

// LoginWithTelegram verifies WebApp init data and returns the matching user,
// creating it on first contact. A referrer is attached only at creation time.
// The bool result reports whether the user was created.
func (s *AuthService) LoginWithTelegram(ctx context.Context, rawInitData, startParam string) (*models.User, *Tokens, bool, error) {
	if s.cfg.Telegram.BotToken == "" {
		return nil, nil, false, ErrTelegramDisabled
	}
	data, err := auth.ValidateInitData(rawInitData, s.cfg.Telegram.BotToken, s.cfg.Telegram.InitDataTTL, s.now())
	if err != nil {
		return nil, nil, false, err
	}
	tg := data.User

	u, err := s.userRepo.GetByTelegramID(ctx, tg.ID)
	switch {
	case err == nil:
		if u.Username != tg.Username || u.FirstName != tg.FirstName {
			u.Username, u.FirstName = tg.Username, tg.FirstName
			if err := s.userRepo.Update(ctx, u); err != nil {
				return nil, nil, false, err
			}
		}
		tokens, err := s.issue(u)
		return u, tokens, false, err
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil, false, err
	}

	tgID := tg.ID
	u = &models.User{
		TelegramID:         &tgID,
		Username:           tg.Username,
		FirstName:          tg.FirstName,
		Role:               domain.RoleCustomer,
		ReferralPercentage: s.settings.DefaultReferralPercentage(ctx),
	}
	if startParam == "" {
		startParam = data.StartParam
	}
	if ref := s.resolveReferrer(ctx, startParam); ref != nil {
		u.ReferrerID = &ref.ID
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, nil, false, err
	}
	log.WithFields(log.Fields{"user_id": u.ID, "telegram_id": tgID, "referrer_id": u.ReferrerID}).Info("[auth] new user registered")
	tokens, err := s.issue(u)
	return u, tokens, true, err
}

// resolveReferrer returns the user owning the referral code in param, or nil.
func (s *AuthService) resolveReferrer(ctx context.Context, param string) *models.User {
	code := strings.TrimPrefix(strings.TrimSpace(param), referralPrefix)
	if code == "" {
		return nil
	}
	ref, err := s.userRepo.GetByReferralCode(ctx, code)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Warn("[auth] referral code lookup failed")
		}
		return nil
	}
	return ref
}

// AdminLogin checks email and password and requires the ADMIN role.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*models.User, *Tokens, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCreds
		}
		return nil, nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCreds
	}
	if !u.IsAdmin() {
		return nil, nil, ErrNotAdmin
	}
	tokens, err := s.issue(u)
	return u, tokens, err
}

// Refresh exchanges a refresh token for a new pair. The role is reloaded so
// demoted admins lose access at the next refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (*Tokens, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, u.ID)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}
