package model

import "time"

// Withdrawal request statuses. pending and processing are the only
// non-terminal states; completed, failed and rejected are immutable.
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusRejected   = "rejected"
)

// WithdrawalTerminal reports whether a status admits no further transitions.
func WithdrawalTerminal(status string) bool {
	switch status {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusRejected:
		return true
	}
	return false
}

// WithdrawalRequest tracks one withdrawal through its lifecycle. The amount is
// escrowed in the wallet's LockedCoin while the request is non-terminal.
type WithdrawalRequest struct {
	ID            string     `json:"id"`
	WalletAddress string     `json:"wallet_address"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	TxHash        *string    `json:"tx_hash,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	ReviewNote    *string    `json:"review_note,omitempty"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// WithdrawalStatusSummary aggregates requests per status for the admin list.
type WithdrawalStatusSummary struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// WithdrawalList is one page of requests plus the per-status aggregate.
type WithdrawalList struct {
	Items   []WithdrawalRequest                `json:"items"`
	Page    int                                `json:"page"`
	Limit   int                                `json:"limit"`
	Total   int                                `json:"total"`
	Summary map[string]WithdrawalStatusSummary `json:"summary"`
}

// ReviewWithdrawalRequest is the admin review request body.
type ReviewWithdrawalRequest struct {
	Approve    bool   `json:"approve"`
	Note       string `json:"note"`
	ReviewerID string `json:"reviewer_id"`
}
