package config_test

import (
	"testing"

	"sewabaju/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := config.LoadWith(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "10000", cfg.LateFeePerDay.String())
	assert.Equal(t, "10000", cfg.LoyaltyUnit.String())
	assert.Equal(t, 30, cfg.MaxRentalDays)
	assert.Equal(t, "Asia/Jakarta", cfg.Location.String())
}

func TestLoadWith_EnvOverrides(t *testing.T) {
	t.Setenv("LATE_FEE_PER_DAY", "15000")
	t.Setenv("MAX_RENTAL_DAYS", "14")
	t.Setenv("DB_DRIVER", "postgres")

	cfg, err := config.LoadWith(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "15000", cfg.LateFeePerDay.String())
	assert.Equal(t, 14, cfg.MaxRentalDays)
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestLoadWith_RejectsBadLoyaltyUnit(t *testing.T) {
	t.Setenv("LOYALTY_UNIT", "0")

	_, err := config.LoadWith(viper.New())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LOYALTY_UNIT")
}

func TestLoadWith_BootstrapStaff(t *testing.T) {
	t.Setenv("BOOTSTRAP_STAFF_USERNAME", "admin")
	t.Setenv("BOOTSTRAP_STAFF_PASSWORD", "secret1")
	t.Setenv("BOOTSTRAP_STAFF_EMAIL", "admin@example.com")

	cfg, err := config.LoadWith(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "admin", cfg.BootstrapStaff.Username)
	assert.Equal(t, "admin@example.com", cfg.BootstrapStaff.Email)

	t.Setenv("BOOTSTRAP_STAFF_PASSWORD", "123")
	_, err = config.LoadWith(viper.New())
	assert.Error(t, err)
}
