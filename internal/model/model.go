package model

import (
	"time"
)

// Player statuses
const (
	PlayerStatusActive = "active"
	PlayerStatusBanned = "banned"
)

// PlayerLedger is the per-wallet balance record. The wallet address is the
// natural key, stored lower-cased. Coin sitting in LockedCoin belongs to the
// wallet's current non-terminal withdrawal request and is not spendable.
type PlayerLedger struct {
	WalletAddress   string    `json:"wallet_address"`
	Points          int64     `json:"points"`
	SpendableCoin   float64   `json:"spendable_coin"`
	LockedCoin      float64   `json:"locked_coin"`
	ClickLevel      int       `json:"click_level"`
	IdleLevel       int       `json:"idle_level"`
	LastAccrualTime time.Time `json:"last_accrual_time"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ExchangeRecord is an append-only audit row for a points-to-coin exchange.
type ExchangeRecord struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	PointsSpent   int64     `json:"points_spent"`
	CoinReceived  float64   `json:"coin_received"`
	CreatedAt     time.Time `json:"created_at"`
}

// UpgradeRecord is an append-only audit row for a level upgrade purchase.
type UpgradeRecord struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	UpgradeType   string    `json:"upgrade_type"`
	LevelBefore   int       `json:"level_before"`
	LevelAfter    int       `json:"level_after"`
	CoinCost      float64   `json:"coin_cost"`
	CreatedAt     time.Time `json:"created_at"`
}

// Upgrade types
const (
	UpgradeTypeClick = "click"
	UpgradeTypeIdle  = "idle"
)

// Profile is the ledger snapshot returned to clients, extended with the
// computed per-level rates so the UI shows exactly what the engine will charge.
type Profile struct {
	PlayerLedger
	PointsPerClick int64        `json:"points_per_click"`
	CoinPerClick   float64      `json:"coin_per_click"`
	CoinPerHour    float64      `json:"coin_per_hour"`
	ExchangeRate   ExchangeRate `json:"exchange_rate"`
	NextClickCost  float64      `json:"next_click_cost"`
	NextIdleCost   float64      `json:"next_idle_cost"`
	IdleEarned     float64      `json:"idle_earned"`
}

type ExchangeRate struct {
	Points        int     `json:"points"`
	Coin          int     `json:"coin"`
	PointsPerCoin float64 `json:"points_per_coin"`
}

// Response is the common API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
