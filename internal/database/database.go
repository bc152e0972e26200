package database

import (
	"database/sql"
	"fmt"
	"time"

	"tapcoin/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Database represents a connection to the SQLite database. All balance
// mutations go through Atomic so a crashed or failed operation is never
// observed half-applied.
type Database struct {
	db *sql.DB
}

// New creates a new Database instance and initializes the schema. Transactions
// take the write lock up front (_txlock=immediate) so concurrent read-modify-
// write cycles on the same wallet serialize instead of failing at commit.
func New(dbPath string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("error creating tables: %v", err)
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS players (
			wallet_address TEXT PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0,
			spendable_coin REAL NOT NULL DEFAULT 0,
			locked_coin REAL NOT NULL DEFAULT 0,
			click_level INTEGER NOT NULL DEFAULT 1,
			idle_level INTEGER NOT NULL DEFAULT 1,
			last_accrual_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS exchange_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet_address TEXT NOT NULL,
			points_spent INTEGER NOT NULL,
			coin_received REAL NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (wallet_address) REFERENCES players(wallet_address)
		)`,
		`CREATE TABLE IF NOT EXISTS upgrade_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet_address TEXT NOT NULL,
			upgrade_type TEXT NOT NULL,
			level_before INTEGER NOT NULL,
			level_after INTEGER NOT NULL,
			coin_cost REAL NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (wallet_address) REFERENCES players(wallet_address)
		)`,
		`CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id TEXT PRIMARY KEY,
			wallet_address TEXT NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			tx_hash TEXT,
			failure_reason TEXT,
			review_note TEXT,
			reviewed_by TEXT,
			requested_at DATETIME NOT NULL,
			reviewed_at DATETIME,
			completed_at DATETIME,
			FOREIGN KEY (wallet_address) REFERENCES players(wallet_address)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_wallet_status
			ON withdrawal_requests(wallet_address, status)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_status_requested
			ON withdrawal_requests(status, requested_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query: %v\nQuery: %s", err, query)
		}
	}

	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying database connection
func (d *Database) DB() *sql.DB {
	return d.db
}

// Atomic runs fn inside a single transaction. Any error aborts the whole unit
// with no persisted side effect.
func (d *Database) Atomic(fn func(tx *sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// GetOrCreateLedgerTx loads the ledger for a wallet, creating it on first
// contact with zeroed balances, level 1 tracks and the accrual watermark set
// to now (no retroactive idle credit for brand-new players).
func (d *Database) GetOrCreateLedgerTx(tx *sql.Tx, walletAddress string, now time.Time) (*model.PlayerLedger, error) {
	ledger, err := d.getLedgerTx(tx, walletAddress)
	if err == nil {
		return ledger, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO players (wallet_address, points, spendable_coin, locked_coin,
			click_level, idle_level, last_accrual_time, status, created_at, updated_at)
		VALUES (?, 0, 0, 0, 1, 1, ?, ?, ?, ?)`,
		walletAddress, now, model.PlayerStatusActive, now, now)
	if err != nil {
		return nil, err
	}

	return d.getLedgerTx(tx, walletAddress)
}

// GetLedgerTx loads an existing ledger; returns sql.ErrNoRows for an unknown wallet.
func (d *Database) GetLedgerTx(tx *sql.Tx, walletAddress string) (*model.PlayerLedger, error) {
	return d.getLedgerTx(tx, walletAddress)
}

func (d *Database) getLedgerTx(tx *sql.Tx, walletAddress string) (*model.PlayerLedger, error) {
	var ledger model.PlayerLedger
	err := tx.QueryRow(`
		SELECT wallet_address, points, spendable_coin, locked_coin, click_level,
			idle_level, last_accrual_time, status, created_at, updated_at
		FROM players WHERE wallet_address = ?`, walletAddress).Scan(
		&ledger.WalletAddress,
		&ledger.Points,
		&ledger.SpendableCoin,
		&ledger.LockedCoin,
		&ledger.ClickLevel,
		&ledger.IdleLevel,
		&ledger.LastAccrualTime,
		&ledger.Status,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// SaveLedgerTx persists the mutable ledger fields.
func (d *Database) SaveLedgerTx(tx *sql.Tx, ledger *model.PlayerLedger) error {
	res, err := tx.Exec(`
		UPDATE players
		SET points = ?, spendable_coin = ?, locked_coin = ?, click_level = ?,
			idle_level = ?, last_accrual_time = ?, status = ?, updated_at = ?
		WHERE wallet_address = ?`,
		ledger.Points,
		ledger.SpendableCoin,
		ledger.LockedCoin,
		ledger.ClickLevel,
		ledger.IdleLevel,
		ledger.LastAccrualTime,
		ledger.Status,
		time.Now(),
		ledger.WalletAddress)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertExchangeTx appends an exchange audit row.
func (d *Database) InsertExchangeTx(tx *sql.Tx, rec *model.ExchangeRecord) error {
	_, err := tx.Exec(`
		INSERT INTO exchange_history (wallet_address, points_spent, coin_received, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.WalletAddress, rec.PointsSpent, rec.CoinReceived, rec.CreatedAt)
	return err
}

// InsertUpgradeTx appends an upgrade audit row.
func (d *Database) InsertUpgradeTx(tx *sql.Tx, rec *model.UpgradeRecord) error {
	_, err := tx.Exec(`
		INSERT INTO upgrade_history (wallet_address, upgrade_type, level_before, level_after, coin_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.WalletAddress, rec.UpgradeType, rec.LevelBefore, rec.LevelAfter, rec.CoinCost, rec.CreatedAt)
	return err
}
