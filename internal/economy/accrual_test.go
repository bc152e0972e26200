package economy

import (
	"testing"
	"time"

	"tapcoin/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestAccrueNewLedger(t *testing.T) {
	r := NewRates(testEconomyConfig())
	now := time.Now()
	ledger := &model.PlayerLedger{IdleLevel: 1}

	earned := r.Accrue(ledger, now)

	assert.Zero(t, earned)
	assert.Equal(t, now, ledger.LastAccrualTime)
	assert.Zero(t, ledger.SpendableCoin)
}

func TestAccrueNoElapsedTime(t *testing.T) {
	r := NewRates(testEconomyConfig())
	now := time.Now()
	ledger := &model.PlayerLedger{IdleLevel: 1, LastAccrualTime: now}

	assert.Zero(t, r.Accrue(ledger, now))
	// Clock skew guard: a watermark in the future credits nothing
	assert.Zero(t, r.Accrue(ledger, now.Add(-time.Minute)))
	assert.Zero(t, ledger.SpendableCoin)
}

func TestAccrueCreditsElapsedHours(t *testing.T) {
	r := NewRates(testEconomyConfig())
	now := time.Now()
	ledger := &model.PlayerLedger{IdleLevel: 1, LastAccrualTime: now.Add(-2 * time.Hour)}

	earned := r.Accrue(ledger, now)

	// 2h at 12 coin/h
	assert.Equal(t, 24.0, earned)
	assert.Equal(t, 24.0, ledger.SpendableCoin)
	assert.Equal(t, now, ledger.LastAccrualTime)
}

func TestAccrueCappedByMaxIdleHours(t *testing.T) {
	r := NewRates(testEconomyConfig())
	now := time.Now()
	ledger := &model.PlayerLedger{IdleLevel: 1, LastAccrualTime: now.Add(-100 * time.Hour)}

	earned := r.Accrue(ledger, now)

	// Capped at 24h of 12 coin/h, not 100h worth
	assert.Equal(t, 288.0, earned)
	assert.Equal(t, 288.0, ledger.SpendableCoin)
}

func TestAccrueAdvancesWatermarkOnZeroEarn(t *testing.T) {
	r := NewRates(testEconomyConfig())
	now := time.Now()
	// A few seconds of idle floors to zero coin
	ledger := &model.PlayerLedger{IdleLevel: 1, LastAccrualTime: now.Add(-5 * time.Second)}

	earned := r.Accrue(ledger, now)

	assert.Zero(t, earned)
	// The watermark still moves so the interval is not counted again
	assert.Equal(t, now, ledger.LastAccrualTime)
}

func TestAccrueUsesIdleLevelRate(t *testing.T) {
	r := NewRates(testEconomyConfig())
	now := time.Now()
	ledger := &model.PlayerLedger{IdleLevel: 2, LastAccrualTime: now.Add(-time.Hour)}

	// 1h at 14.4 coin/h floors to 14
	assert.Equal(t, 14.0, r.Accrue(ledger, now))
}
