package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds everything the process needs at startup.
type Config struct {
	AppPort          string
	DBDriver         string
	DatabaseDSN      string
	JWTSecret        string
	RabbitMQURL      string
	RabbitMQExchange string
	RedisAddr        string
	RedisTTL         time.Duration
	UploadDir        string
	LateFeePerDay    decimal.Decimal
	LoyaltyUnit      decimal.Decimal
	MaxRentalDays    int
	OverdueScanCron  string
	LogLevel         string
	Location         *time.Location
	BootstrapStaff   StaffAccount
}

// StaffAccount is the staff login created at startup when Username is set.
type StaffAccount struct {
	Username string
	Password string
	Email    string
}

// Load reads config.yaml (if present) and the environment, environment winning.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith is Load on a caller-supplied viper instance, mostly for tests.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:sewabaju.db?_foreign_keys=on")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "rental.exchange")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_TTL", "1m")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("LATE_FEE_PER_DAY", "10000")
	v.SetDefault("LOYALTY_UNIT", "10000")
	v.SetDefault("MAX_RENTAL_DAYS", 30)
	v.SetDefault("OVERDUE_SCAN_CRON", "0 0 7 * * *")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "Asia/Jakarta")
	v.SetDefault("BOOTSTRAP_STAFF_USERNAME", "")
	v.SetDefault("BOOTSTRAP_STAFF_PASSWORD", "")
	v.SetDefault("BOOTSTRAP_STAFF_EMAIL", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	lateFee, err := decimal.NewFromString(v.GetString("LATE_FEE_PER_DAY"))
	if err != nil {
		return nil, fmt.Errorf("invalid LATE_FEE_PER_DAY: %w", err)
	}
	loyaltyUnit, err := decimal.NewFromString(v.GetString("LOYALTY_UNIT"))
	if err != nil || !loyaltyUnit.IsPositive() {
		return nil, fmt.Errorf("invalid LOYALTY_UNIT %q", v.GetString("LOYALTY_UNIT"))
	}
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		AppPort:          v.GetString("APP_PORT"),
		DBDriver:         v.GetString("DB_DRIVER"),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisTTL:         v.GetDuration("REDIS_TTL"),
		UploadDir:        v.GetString("UPLOAD_DIR"),
		LateFeePerDay:    lateFee,
		LoyaltyUnit:      loyaltyUnit,
		MaxRentalDays:    v.GetInt("MAX_RENTAL_DAYS"),
		OverdueScanCron:  v.GetString("OVERDUE_SCAN_CRON"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		Location:         loc,
		BootstrapStaff: StaffAccount{
			Username: v.GetString("BOOTSTRAP_STAFF_USERNAME"),
			Password: v.GetString("BOOTSTRAP_STAFF_PASSWORD"),
			Email:    v.GetString("BOOTSTRAP_STAFF_EMAIL"),
		},
	}
	if cfg.MaxRentalDays < 1 {
		return nil, fmt.Errorf("MAX_RENTAL_DAYS must be at least 1, got %d", cfg.MaxRentalDays)
	}
	if cfg.BootstrapStaff.Username != "" && len(cfg.BootstrapStaff.Password) < 6 {
		return nil, errors.New("BOOTSTRAP_STAFF_PASSWORD must be at least 6 characters")
	}
	return cfg, nil
}
