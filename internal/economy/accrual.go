package economy

import (
	"math"
	"time"

	"tapcoin/internal/model"
)

// Accrue credits idle income earned since the ledger's last accrual and
// advances the watermark. It runs first inside every mutating operation and
// profile read, so displayed balances stay current without a background job.
//
// The watermark moves whenever any time has elapsed, even when the earned
// amount floors to zero; otherwise sub-threshold intervals would be counted
// again on the next call.
func (r Rates) Accrue(ledger *model.PlayerLedger, now time.Time) float64 {
	if ledger.LastAccrualTime.IsZero() {
		// Brand-new ledger: start the clock, no retroactive credit.
		ledger.LastAccrualTime = now
		return 0
	}

	elapsed := now.Sub(ledger.LastAccrualTime)
	if elapsed <= 0 {
		return 0
	}

	maxIdle := time.Duration(r.cfg.MaxIdleHours) * time.Hour
	if elapsed > maxIdle {
		elapsed = maxIdle
	}

	earned := math.Floor(elapsed.Hours() * r.CoinPerHour(ledger.IdleLevel))
	if earned > 0 {
		ledger.SpendableCoin += earned
	}
	ledger.LastAccrualTime = now
	return earned
}
