package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.Production)

	assert.Equal(t, 1000, cfg.Economy.ExchangePoints)
	assert.Equal(t, 10, cfg.Economy.ExchangeCoin)
	assert.Equal(t, 30, cfg.Economy.BaseUpgradeCost)
	assert.Equal(t, 1.5, cfg.Economy.UpgradeMultiplier)
	assert.Equal(t, float64(25), cfg.Economy.BasePointsPerClick)
	assert.Equal(t, 1.25, cfg.Economy.ClickMultiplier)
	assert.Equal(t, float64(12), cfg.Economy.BaseCoinPerHour)
	assert.Equal(t, 1.2, cfg.Economy.IdleMultiplier)
	assert.Equal(t, 24, cfg.Economy.MaxIdleHours)
	assert.Equal(t, float64(50), cfg.Economy.MinWithdraw)

	assert.Equal(t, "withdraw(address,uint256)", cfg.Chain.MethodSignature)
	assert.Equal(t, uint64(220000), cfg.Chain.GasLimit)
	assert.Equal(t, 18, cfg.Chain.CoinDecimals)
	assert.Equal(t, uint64(1), cfg.Chain.Confirmations)
	assert.Equal(t, 120*time.Second, cfg.Chain.ConfirmTimeout)

	assert.Equal(t, 30*time.Minute, cfg.Admin.StaleProcessingAge)
	assert.Equal(t, 10*time.Minute, cfg.Admin.SweepInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("EXCHANGE_POINTS", "2000")
	t.Setenv("MIN_WITHDRAW", "25.5")
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("CHAIN_WITHDRAW_CONFIRMATIONS", "3")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.Production)
	assert.Equal(t, 2000, cfg.Economy.ExchangePoints)
	assert.Equal(t, 25.5, cfg.Economy.MinWithdraw)
	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
	assert.Equal(t, uint64(3), cfg.Chain.Confirmations)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("EXCHANGE_POINTS", "not-a-number")
	t.Setenv("IDLE_COIN_MULTIPLIER", "")

	cfg := Load()

	assert.Equal(t, 1000, cfg.Economy.ExchangePoints)
	assert.Equal(t, 1.2, cfg.Economy.IdleMultiplier)
}
