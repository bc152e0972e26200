package economy

import (
	"math"

	"tapcoin/internal/config"
)

// Rates computes the per-level economic rates and prices. All methods are
// pure and deterministic so the values shown to the client match what the
// engine later charges.
type Rates struct {
	cfg config.EconomyConfig
}

func NewRates(cfg config.EconomyConfig) Rates {
	return Rates{cfg: cfg}
}

// PointsPerCoin is the effective exchange price of one coin in points.
func (r Rates) PointsPerCoin() float64 {
	if r.cfg.ExchangeCoin > 0 {
		return float64(r.cfg.ExchangePoints) / float64(r.cfg.ExchangeCoin)
	}
	return 100
}

// PointsPerClick returns the points earned by a single click at the level.
func (r Rates) PointsPerClick(level int) int64 {
	lvl := sanitizeLevel(level)
	points := r.cfg.BasePointsPerClick * math.Pow(r.cfg.ClickMultiplier, float64(lvl-1))
	return int64(math.Round(points))
}

// CoinPerClick is the coin-equivalent value of one click, for display only.
func (r Rates) CoinPerClick(level int) float64 {
	perCoin := r.PointsPerCoin()
	if perCoin <= 0 {
		return 0
	}
	return round2(float64(r.PointsPerClick(level)) / perCoin)
}

// CoinPerHour returns the idle income rate at the level.
func (r Rates) CoinPerHour(level int) float64 {
	lvl := sanitizeLevel(level)
	coins := r.cfg.BaseCoinPerHour * math.Pow(r.cfg.IdleMultiplier, float64(lvl-1))
	return round2(coins)
}

// UpgradeCost returns the price of moving from the given level to the next,
// never below 1 coin.
func (r Rates) UpgradeCost(level int) float64 {
	lvl := sanitizeLevel(level)
	price := math.Round(float64(r.cfg.BaseUpgradeCost) * math.Pow(r.cfg.UpgradeMultiplier, float64(lvl-1)))
	return math.Max(1, price)
}

func sanitizeLevel(level int) int {
	if level < 1 {
		return 1
	}
	return level
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
