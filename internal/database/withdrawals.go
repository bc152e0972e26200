package database

import (
	"database/sql"
	"time"

	"tapcoin/internal/model"
)

// InsertWithdrawalTx stores a freshly created withdrawal request.
func (d *Database) InsertWithdrawalTx(tx *sql.Tx, req *model.WithdrawalRequest) error {
	_, err := tx.Exec(`
		INSERT INTO withdrawal_requests (id, wallet_address, amount, status, requested_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.WalletAddress, req.Amount, req.Status, req.RequestedAt)
	return err
}

// HasNonTerminalWithdrawalTx reports whether the wallet already has a request
// in pending or processing. Checked inside the same transaction that creates a
// new request so two concurrent requests cannot both lock coin.
func (d *Database) HasNonTerminalWithdrawalTx(tx *sql.Tx, walletAddress string) (bool, error) {
	var count int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM withdrawal_requests
		WHERE wallet_address = ? AND status IN (?, ?)`,
		walletAddress, model.WithdrawalStatusPending, model.WithdrawalStatusProcessing).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetWithdrawalTx loads a request by id; returns sql.ErrNoRows if unknown.
func (d *Database) GetWithdrawalTx(tx *sql.Tx, id string) (*model.WithdrawalRequest, error) {
	row := tx.QueryRow(withdrawalSelect+` WHERE id = ?`, id)
	return scanWithdrawal(row)
}

// GetWithdrawal loads a request by id outside a transaction.
func (d *Database) GetWithdrawal(id string) (*model.WithdrawalRequest, error) {
	row := d.db.QueryRow(withdrawalSelect+` WHERE id = ?`, id)
	return scanWithdrawal(row)
}

// UpdateWithdrawalTx persists the mutable request fields after a transition.
func (d *Database) UpdateWithdrawalTx(tx *sql.Tx, req *model.WithdrawalRequest) error {
	res, err := tx.Exec(`
		UPDATE withdrawal_requests
		SET status = ?, tx_hash = ?, failure_reason = ?, review_note = ?,
			reviewed_by = ?, reviewed_at = ?, completed_at = ?
		WHERE id = ?`,
		req.Status,
		req.TxHash,
		req.FailureReason,
		req.ReviewNote,
		req.ReviewedBy,
		req.ReviewedAt,
		req.CompletedAt,
		req.ID)
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

// ListWithdrawals returns one page of requests, newest first, optionally
// filtered by status, along with the total matching count.
func (d *Database) ListWithdrawals(status string, page, limit int) ([]model.WithdrawalRequest, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" && status != "all" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM withdrawal_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	rows, err := d.db.Query(withdrawalSelect+where+` ORDER BY requested_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.WithdrawalRequest, 0)
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// WithdrawalSummary aggregates count and total amount per status.
func (d *Database) WithdrawalSummary() (map[string]model.WithdrawalStatusSummary, error) {
	rows, err := d.db.Query(`
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM withdrawal_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make(map[string]model.WithdrawalStatusSummary)
	for rows.Next() {
		var status string
		var entry model.WithdrawalStatusSummary
		if err := rows.Scan(&status, &entry.Count, &entry.TotalAmount); err != nil {
			return nil, err
		}
		summary[status] = entry
	}
	return summary, rows.Err()
}

// ListProcessingOlderThan returns requests stuck in processing since before
// the cutoff. Used by the reconciliation sweep; these need manual review
// because the chain outcome is unknown.
func (d *Database) ListProcessingOlderThan(cutoff time.Time) ([]model.WithdrawalRequest, error) {
	rows, err := d.db.Query(
		withdrawalSelect+` WHERE status = ? AND reviewed_at IS NOT NULL AND reviewed_at < ?
		ORDER BY reviewed_at ASC`,
		model.WithdrawalStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *req)
	}
	return items, rows.Err()
}

const withdrawalSelect = `
	SELECT id, wallet_address, amount, status, tx_hash, failure_reason,
		review_note, reviewed_by, requested_at, reviewed_at, completed_at
	FROM withdrawal_requests`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWithdrawal(row rowScanner) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	var txHash, failureReason, reviewNote, reviewedBy sql.NullString
	var reviewedAt, completedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.WalletAddress,
		&req.Amount,
		&req.Status,
		&txHash,
		&failureReason,
		&reviewNote,
		&reviewedBy,
		&req.RequestedAt,
		&reviewedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if txHash.Valid {
		req.TxHash = &txHash.String
	}
	if failureReason.Valid {
		req.FailureReason = &failureReason.String
	}
	if reviewNote.Valid {
		req.ReviewNote = &reviewNote.String
	}
	if reviewedBy.Valid {
		req.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}
	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}

	return &req, nil
}
