package economy

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"tapcoin/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WithdrawResult pairs the created request with the refreshed ledger view.
type WithdrawResult struct {
	Profile *model.Profile           `json:"profile"`
	Request *model.WithdrawalRequest `json:"request"`
}

// ReviewResult is the outcome of an admin review.
type ReviewResult struct {
	Request *model.WithdrawalRequest `json:"request"`
	Profile *model.Profile           `json:"profile"`
}

// RequestWithdraw escrows the amount from spendable into locked coin and
// creates a pending request. A wallet can hold at most one non-terminal
// request; the conflict check runs inside the same transaction that creates
// the new row so two concurrent requests cannot both lock coin.
func (s *Service) RequestWithdraw(walletAddress string, amount float64) (*WithdrawResult, error) {
	address, err := normalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, newError(KindInvalidInput, "amount must be > 0")
	}
	if amount < s.cfg.MinWithdraw {
		return nil, newError(KindAmountBelowMinimum, "minimum withdrawal is %g", s.cfg.MinWithdraw)
	}

	var result *WithdrawResult
	err = s.db.Atomic(func(tx *sql.Tx) error {
		ledger, err := s.db.GetOrCreateLedgerTx(tx, address, s.now())
		if err != nil {
			return err
		}
		if err := ensureActive(ledger); err != nil {
			return err
		}
		idleEarned := s.rates.Accrue(ledger, s.now())

		exists, err := s.db.HasNonTerminalWithdrawalTx(tx, address)
		if err != nil {
			return err
		}
		if exists {
			return newError(KindConflictingRequest, "a withdrawal is already in progress for this wallet")
		}

		if ledger.SpendableCoin < amount {
			return newError(KindInsufficientBalance, "insufficient coin: have %g, need %g", ledger.SpendableCoin, amount)
		}

		ledger.SpendableCoin -= amount
		ledger.LockedCoin += amount
		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}

		req := &model.WithdrawalRequest{
			ID:            uuid.NewString(),
			WalletAddress: address,
			Amount:        amount,
			Status:        model.WithdrawalStatusPending,
			RequestedAt:   s.now(),
		}
		if err := s.db.InsertWithdrawalTx(tx, req); err != nil {
			return err
		}

		result = &WithdrawResult{
			Profile: s.buildProfile(ledger, idleEarned),
			Request: req,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal requested",
		zap.String("wallet", address),
		zap.String("request_id", result.Request.ID),
		zap.Float64("amount", amount))
	return result, nil
}

// ListWithdrawRequests returns one page of requests plus per-status aggregates.
func (s *Service) ListWithdrawRequests(status string, page, limit int) (*model.WithdrawalList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	items, total, err := s.db.ListWithdrawals(status, page, limit)
	if err != nil {
		return nil, err
	}
	summary, err := s.db.WithdrawalSummary()
	if err != nil {
		return nil, err
	}

	return &model.WithdrawalList{
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		Summary: summary,
	}, nil
}

// ReviewWithdrawRequest applies the admin decision on a pending request.
//
// Rejection refunds the escrowed coin and terminates the request in a single
// transaction. Approval commits the processing state first, then performs the
// chain call with no transaction open, and reconciles the outcome in a second
// independent transaction. A crash between submit and reconcile leaves the
// request visibly stuck in processing with the coin still locked, which the
// stale sweep reports for manual reconciliation.
func (s *Service) ReviewWithdrawRequest(ctx context.Context, requestID string, approve bool, note, reviewerID string) (*ReviewResult, error) {
	if requestID == "" {
		return nil, newError(KindInvalidInput, "request id is required")
	}

	if !approve {
		return s.rejectWithdrawal(requestID, note, reviewerID)
	}

	if err := s.settler.Configured(); err != nil {
		return nil, newError(KindSettlementNotConfigured, "withdrawals are not configured: %v", err)
	}

	req, err := s.markProcessing(requestID, note, reviewerID)
	if err != nil {
		return nil, err
	}

	txHash, submitErr := s.settler.Submit(ctx, req.WalletAddress, req.Amount)
	if submitErr != nil {
		s.log.Warn("settlement failed",
			zap.String("request_id", req.ID),
			zap.String("wallet", req.WalletAddress),
			zap.Float64("amount", req.Amount),
			zap.Error(submitErr))
		if err := s.failWithdrawal(req, submitErr.Error()); err != nil {
			// The refund transaction itself failed; the request stays in
			// processing and the sweep will surface it.
			s.log.Error("failed to reconcile settlement failure",
				zap.String("request_id", req.ID), zap.Error(err))
			return nil, err
		}
		return nil, newError(KindSettlementFailure, "settlement failed: %v", submitErr)
	}

	result, err := s.completeWithdrawal(req, txHash)
	if err != nil {
		s.log.Error("failed to reconcile settlement success",
			zap.String("request_id", req.ID),
			zap.String("tx_hash", txHash),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("withdrawal settled",
		zap.String("request_id", req.ID),
		zap.String("wallet", req.WalletAddress),
		zap.Float64("amount", req.Amount),
		zap.String("tx_hash", txHash))
	return result, nil
}

func (s *Service) rejectWithdrawal(requestID, note, reviewerID string) (*ReviewResult, error) {
	var result *ReviewResult
	err := s.db.Atomic(func(tx *sql.Tx) error {
		req, err := s.db.GetWithdrawalTx(tx, requestID)
		if err == sql.ErrNoRows {
			return newError(KindNotFound, "unknown withdrawal request: %s", requestID)
		}
		if err != nil {
			return err
		}
		if req.Status != model.WithdrawalStatusPending {
			return newError(KindRequestAlreadyProcessed, "request is %s, only pending requests can be rejected", req.Status)
		}

		ledger, err := s.db.GetLedgerTx(tx, req.WalletAddress)
		if err == sql.ErrNoRows {
			return newError(KindNotFound, "unknown wallet: %s", req.WalletAddress)
		}
		if err != nil {
			return err
		}

		ledger.SpendableCoin += req.Amount
		ledger.LockedCoin = math.Max(0, ledger.LockedCoin-req.Amount)
		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}

		now := s.now()
		req.Status = model.WithdrawalStatusRejected
		req.ReviewNote = optional(note)
		req.ReviewedBy = optional(reviewerID)
		req.ReviewedAt = &now
		req.CompletedAt = &now
		if err := s.db.UpdateWithdrawalTx(tx, req); err != nil {
			return err
		}

		result = &ReviewResult{Request: req, Profile: s.buildProfile(ledger, 0)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// markProcessing commits the pending -> processing transition. The escrow is
// verified here so the later chain call always has the coin backing it.
func (s *Service) markProcessing(requestID, note, reviewerID string) (*model.WithdrawalRequest, error) {
	var req *model.WithdrawalRequest
	err := s.db.Atomic(func(tx *sql.Tx) error {
		var err error
		req, err = s.db.GetWithdrawalTx(tx, requestID)
		if err == sql.ErrNoRows {
			return newError(KindNotFound, "unknown withdrawal request: %s", requestID)
		}
		if err != nil {
			return err
		}
		if req.Status != model.WithdrawalStatusPending {
			return newError(KindRequestAlreadyProcessed, "request is %s, only pending requests can be approved", req.Status)
		}

		ledger, err := s.db.GetLedgerTx(tx, req.WalletAddress)
		if err == sql.ErrNoRows {
			return newError(KindNotFound, "unknown wallet: %s", req.WalletAddress)
		}
		if err != nil {
			return err
		}
		if ledger.LockedCoin < req.Amount {
			return fmt.Errorf("locked coin %g below request amount %g for wallet %s", ledger.LockedCoin, req.Amount, req.WalletAddress)
		}

		now := s.now()
		req.Status = model.WithdrawalStatusProcessing
		req.ReviewNote = optional(note)
		req.ReviewedBy = optional(reviewerID)
		req.ReviewedAt = &now
		return s.db.UpdateWithdrawalTx(tx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// completeWithdrawal burns the escrowed coin and records the tx hash.
func (s *Service) completeWithdrawal(req *model.WithdrawalRequest, txHash string) (*ReviewResult, error) {
	var result *ReviewResult
	err := s.db.Atomic(func(tx *sql.Tx) error {
		current, err := s.db.GetWithdrawalTx(tx, req.ID)
		if err != nil {
			return err
		}
		ledger, err := s.db.GetLedgerTx(tx, req.WalletAddress)
		if err != nil {
			return err
		}

		ledger.LockedCoin = math.Max(0, ledger.LockedCoin-req.Amount)
		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}

		now := s.now()
		current.Status = model.WithdrawalStatusCompleted
		current.TxHash = &txHash
		current.CompletedAt = &now
		if err := s.db.UpdateWithdrawalTx(tx, current); err != nil {
			return err
		}

		result = &ReviewResult{Request: current, Profile: s.buildProfile(ledger, 0)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// failWithdrawal refunds the escrow and records the failure reason.
func (s *Service) failWithdrawal(req *model.WithdrawalRequest, reason string) error {
	return s.db.Atomic(func(tx *sql.Tx) error {
		current, err := s.db.GetWithdrawalTx(tx, req.ID)
		if err != nil {
			return err
		}
		ledger, err := s.db.GetLedgerTx(tx, req.WalletAddress)
		if err != nil {
			return err
		}

		ledger.SpendableCoin += req.Amount
		ledger.LockedCoin = math.Max(0, ledger.LockedCoin-req.Amount)
		if err := s.db.SaveLedgerTx(tx, ledger); err != nil {
			return err
		}

		now := s.now()
		current.Status = model.WithdrawalStatusFailed
		current.FailureReason = optional(reason)
		current.CompletedAt = &now
		return s.db.UpdateWithdrawalTx(tx, current)
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
