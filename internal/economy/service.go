package economy

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"tapcoin/internal/config"
	"tapcoin/internal/database"
	"tapcoin/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Settler submits an approved withdrawal to the chain, blocking until the
// configured confirmation count is observed. Any returned error, including a
// confirmation timeout, is treated as a failed settlement.
type Settler interface {
	Submit(ctx context.Context, toAddress string, amount float64) (txHash string, err error)
	// Configured returns a non-nil error when the signer, RPC endpoint or
	// contract address is missing.
	Configured() error
}

// Service implements the economy operations. Every mutating operation runs as
// one database transaction: load ledger, accrue idle income, validate, mutate,
// persist, append history.
type Service struct {
	db      *database.Database
	cfg     config.EconomyConfig
	rates   Rates
	settler Settler
	log     *zap.Logger
	now     func() time.Time
}

func NewService(db *database.Database, cfg config.EconomyConfig, settler Settler, log *zap.Logger) *Service {
	return &Service{
		db:      db,
		cfg:     cfg,
		rates:   NewRates(cfg),
		settler: settler,
		log:     log,
		now:     time.Now,
	}
}

func normalizeAddress(walletAddress string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(walletAddress))
	if address == "" {
		return "", newError(KindInvalidInput, "wallet address is required")
	}
	if !common.IsHexAddress(address) {
		return "", newError(KindInvalidInput, "invalid wallet address: %s", walletAddress)
	}
	return address, nil
}

func ensureActive(ledger *model.PlayerLedger) error {
	if ledger.Status == model.PlayerStatusBanned {
		return newError(KindAccountBanned, "account is banned")
	}
	return nil
}

// ClickResult is the outcome of a batch of clicks.
type ClickResult struct {
	Profile      *model.Profile `json:"profile"`
	PointsEarned int64          `json:"points_earned"`
	Clicks       int64          `json:"clicks"`
}

// ExchangeResult is the outcome of a points-to-coin exchange.
type ExchangeResult struct {
	Profile      *model.Profile `json:"profile"`
	PointsSpent  int64          `json:"points_spent"`
	CoinReceived float64        `json:"coin_received"`
}

// UpgradeResult is the outcome of a level upgrade purchase.
type UpgradeResult struct {
	Profile     *model.Profile `json:"profile"`
	UpgradeType string         `json:"upgrade_type"`
	Cost        float64        `json:"cost"`
	LevelBefore int            `json:"level_before"`
	LevelAfter  int            `json:"level_after"`
}

// GetProfile returns the current ledger snapshot with computed rates. Idle
// income accrued by the read is persisted so it is not credited twice.
func (s *Service) GetProfile(walletAddress string) (*model.Profile, error) {
	address, err := normalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}

	var profile *model.Profile
	err = s.db.Atomic(func(tx *sql.Tx) error {
		ledger, err := s.db.GetOrCreateLedgerTx(tx, address, s.now())
		if err != nil {
			return err
		}
		idleEarned := s.rates.Accrue(ledger, s.now())
		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}
		profile = s.buildProfile(ledger, idleEarned)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RecordClick credits points for a batch of clicks at the wallet's click level.
func (s *Service) RecordClick(walletAddress string, clicks int64) (*ClickResult, error) {
	address, err := normalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if clicks <= 0 {
		return nil, newError(KindInvalidInput, "clicks must be > 0")
	}

	var result *ClickResult
	err = s.db.Atomic(func(tx *sql.Tx) error {
		ledger, err := s.db.GetOrCreateLedgerTx(tx, address, s.now())
		if err != nil {
			return err
		}
		if err := ensureActive(ledger); err != nil {
			return err
		}
		idleEarned := s.rates.Accrue(ledger, s.now())

		pointsEarned := s.rates.PointsPerClick(ledger.ClickLevel) * clicks
		ledger.Points += pointsEarned

		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}
		result = &ClickResult{
			Profile:      s.buildProfile(ledger, idleEarned),
			PointsEarned: pointsEarned,
			Clicks:       clicks,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExchangePoints converts points into spendable coin at the configured ratio.
// The amount must be a positive exact multiple of the exchange points unit.
func (s *Service) ExchangePoints(walletAddress string, pointsToExchange int64) (*ExchangeResult, error) {
	address, err := normalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if pointsToExchange <= 0 {
		return nil, newError(KindInvalidInput, "pointsToExchange must be > 0")
	}
	if pointsToExchange%int64(s.cfg.ExchangePoints) != 0 {
		return nil, newError(KindInvalidInput, "pointsToExchange must be a multiple of %d", s.cfg.ExchangePoints)
	}

	var result *ExchangeResult
	err = s.db.Atomic(func(tx *sql.Tx) error {
		ledger, err := s.db.GetOrCreateLedgerTx(tx, address, s.now())
		if err != nil {
			return err
		}
		if err := ensureActive(ledger); err != nil {
			return err
		}
		idleEarned := s.rates.Accrue(ledger, s.now())

		if pointsToExchange > ledger.Points {
			return newError(KindInsufficientPoints, "insufficient points: have %d, need %d", ledger.Points, pointsToExchange)
		}

		coins := pointsToExchange / int64(s.cfg.ExchangePoints) * int64(s.cfg.ExchangeCoin)
		if coins <= 0 {
			return newError(KindAmountTooSmall, "exchange amount too small")
		}

		ledger.Points -= pointsToExchange
		ledger.SpendableCoin += float64(coins)

		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}
		if err := s.db.InsertExchangeTx(tx, &model.ExchangeRecord{
			WalletAddress: address,
			PointsSpent:   pointsToExchange,
			CoinReceived:  float64(coins),
			CreatedAt:     s.now(),
		}); err != nil {
			return err
		}

		result = &ExchangeResult{
			Profile:      s.buildProfile(ledger, idleEarned),
			PointsSpent:  pointsToExchange,
			CoinReceived: float64(coins),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Upgrade buys the next level on the click or idle track.
func (s *Service) Upgrade(walletAddress string, upgradeType string) (*UpgradeResult, error) {
	address, err := normalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if upgradeType != model.UpgradeTypeClick && upgradeType != model.UpgradeTypeIdle {
		return nil, newError(KindInvalidInput, "upgradeType must be click or idle")
	}

	var result *UpgradeResult
	err = s.db.Atomic(func(tx *sql.Tx) error {
		ledger, err := s.db.GetOrCreateLedgerTx(tx, address, s.now())
		if err != nil {
			return err
		}
		if err := ensureActive(ledger); err != nil {
			return err
		}
		idleEarned := s.rates.Accrue(ledger, s.now())

		level := ledger.ClickLevel
		if upgradeType == model.UpgradeTypeIdle {
			level = ledger.IdleLevel
		}
		cost := s.rates.UpgradeCost(level)
		if ledger.SpendableCoin < cost {
			return newError(KindInsufficientBalance, "insufficient coin: have %g, need %g", ledger.SpendableCoin, cost)
		}

		ledger.SpendableCoin -= cost
		if upgradeType == model.UpgradeTypeClick {
			ledger.ClickLevel = level + 1
		} else {
			ledger.IdleLevel = level + 1
		}

		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}
		if err := s.db.InsertUpgradeTx(tx, &model.UpgradeRecord{
			WalletAddress: address,
			UpgradeType:   upgradeType,
			LevelBefore:   level,
			LevelAfter:    level + 1,
			CoinCost:      cost,
			CreatedAt:     s.now(),
		}); err != nil {
			return err
		}

		result = &UpgradeResult{
			Profile:     s.buildProfile(ledger, idleEarned),
			UpgradeType: upgradeType,
			Cost:        cost,
			LevelBefore: level,
			LevelAfter:  level + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetPlayerStatus bans or reinstates a wallet. Banned wallets keep their
// balances but all mutating operations are rejected.
func (s *Service) SetPlayerStatus(walletAddress string, status string) (*model.Profile, error) {
	address, err := normalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if status != model.PlayerStatusActive && status != model.PlayerStatusBanned {
		return nil, newError(KindInvalidInput, "status must be active or banned")
	}

	var profile *model.Profile
	err = s.db.Atomic(func(tx *sql.Tx) error {
		ledger, err := s.db.GetLedgerTx(tx, address)
		if err == sql.ErrNoRows {
			return newError(KindNotFound, "unknown wallet: %s", address)
		}
		if err != nil {
			return err
		}
		ledger.Status = status
		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}
		profile = s.buildProfile(ledger, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("player status changed", zap.String("wallet", address), zap.String("status", status))
	return profile, nil
}

func (s *Service) buildProfile(ledger *model.PlayerLedger, idleEarned float64) *model.Profile {
	return &model.Profile{
		PlayerLedger:   *ledger,
		PointsPerClick: s.rates.PointsPerClick(ledger.ClickLevel),
		CoinPerClick:   s.rates.CoinPerClick(ledger.ClickLevel),
		CoinPerHour:    s.rates.CoinPerHour(ledger.IdleLevel),
		ExchangeRate: model.ExchangeRate{
			Points:        s.cfg.ExchangePoints,
			Coin:          s.cfg.ExchangeCoin,
			PointsPerCoin: s.rates.PointsPerCoin(),
		},
		NextClickCost: s.rates.UpgradeCost(ledger.ClickLevel),
		NextIdleCost:  s.rates.UpgradeCost(ledger.IdleLevel),
		IdleEarned:    idleEarned,
	}
}
