package database

import (
	"context"
	"errors"
	"fmt"

	"storefront/config"
	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repository"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin makes sure the configured administrator exists and carries the
// ADMIN role. It is a no-op when no admin email is configured.
func SeedAdmin(ctx context.Context, db *gorm.DB, cfg *config.AdminConfig) error {
	if cfg.Email == "" {
		return nil
	}
	users := repository.NewUserRepository(db)
	u, err := users.GetByEmail(ctx, cfg.Email)
	if err == nil {
		if u.Role == domain.RoleAdmin {
			return nil
		}
		log.Printf("[seed] promoting %s to admin", cfg.Email)
		return users.SetRole(ctx, u.ID, domain.RoleAdmin)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if cfg.Password == "" {
		return fmt.Errorf("seed admin: password required for new admin %s", cfg.Email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	email := cfg.Email
	admin := &models.User{
		Email:        &email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		FirstName:    "Administrator",
	}
	if cfg.TelegramID != 0 {
		tgID := cfg.TelegramID
		admin.TelegramID = &tgID
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	log.Printf("[seed] created admin %s (id=%d)", cfg.Email, admin.ID)
	return nil
}
