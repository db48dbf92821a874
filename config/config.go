package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Referral   ReferralConfig   `yaml:"referral"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessExpiry  time.Duration `yaml:"access_expiry"`
	RefreshExpiry time.Duration `yaml:"refresh_expiry"`
	Issuer        string        `yaml:"issuer"`
}

// TelegramConfig holds the bot token used both for sending messages and for
// verifying WebApp init data.
type TelegramConfig struct {
	BotToken     string        `yaml:"bot_token"`
	AdminChatIDs []int64       `yaml:"admin_chat_ids"`
	InitDataTTL  time.Duration `yaml:"init_data_ttl"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

// ReferralConfig holds fallbacks; admins can override both through system settings.
type ReferralConfig struct {
	MinPayoutAmount   decimal.Decimal `yaml:"min_payout_amount"`
	DefaultPercentage decimal.Decimal `yaml:"default_percentage"`
}

type RateLimitConfig struct {
	Requests  int           `yaml:"requests"`
	Window    time.Duration `yaml:"window"`
	RedisAddr string        `yaml:"redis_addr"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AdminConfig seeds the first administrator account when none exists.
type AdminConfig struct {
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	TelegramID int64  `yaml:"telegram_id"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8099",
			Env:            "development",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			DSN:             "storefront:storefront@tcp(localhost:3306)/storefront?charset=utf8mb4&parseTime=True&loc=Local",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  "change-me-in-production",
			RefreshSecret: "change-me-refresh",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "storefront",
		},
		Telegram: TelegramConfig{
			InitDataTTL: 24 * time.Hour,
		},
		Cloudinary: CloudinaryConfig{
			Folder: "storefront/payout-receipts",
		},
		Referral: ReferralConfig{
			MinPayoutAmount:   decimal.NewFromInt(1000),
			DefaultPercentage: decimal.NewFromInt(3),
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   60 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally environment variables (a local .env is honoured).
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Env, "APP_ENV")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.JWT.AccessSecret, "JWT_ACCESS_SECRET")
	setString(&c.JWT.RefreshSecret, "JWT_REFRESH_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_ADMIN_CHAT_IDS"); v != "" {
		ids := make([]int64, 0)
		for _, s := range splitList(v) {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("config: TELEGRAM_ADMIN_CHAT_IDS: %w", err)
			}
			ids = append(ids, id)
		}
		c.Telegram.AdminChatIDs = ids
	}
	setString(&c.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&c.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	setString(&c.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")
	if v := os.Getenv("MIN_PAYOUT_AMOUNT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("config: MIN_PAYOUT_AMOUNT: %w", err)
		}
		c.Referral.MinPayoutAmount = d
	}
	setString(&c.RateLimit.RedisAddr, "REDIS_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")
	setString(&c.Admin.Email, "ADMIN_EMAIL")
	setString(&c.Admin.Password, "ADMIN_PASSWORD")
	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: ADMIN_TELEGRAM_ID: %w", err)
		}
		c.Admin.TelegramID = id
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
