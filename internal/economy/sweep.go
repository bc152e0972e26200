package economy

import (
	"context"
	"time"

	"tapcoin/internal/model"

	"go.uber.org/zap"
)

// StaleProcessing lists requests that have sat in processing longer than the
// given age. Their coin is locked and the chain outcome is unknown (a crash
// between submit and reconcile), so they are surfaced for manual
// reconciliation rather than refunded automatically.
func (s *Service) StaleProcessing(age time.Duration) ([]model.WithdrawalRequest, error) {
	return s.db.ListProcessingOlderThan(s.now().Add(-age))
}

// RunSweep periodically reports stale processing requests until the context
// is cancelled.
func (s *Service) RunSweep(ctx context.Context, interval, age time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stale, err := s.StaleProcessing(age)
			if err != nil {
				s.log.Error("stale withdrawal sweep failed", zap.Error(err))
				continue
			}
			for _, req := range stale {
				s.log.Warn("withdrawal stuck in processing, needs manual reconciliation",
					zap.String("request_id", req.ID),
					zap.String("wallet", req.WalletAddress),
					zap.Float64("amount", req.Amount),
					zap.Timep("reviewed_at", req.ReviewedAt))
			}
		}
	}
}
