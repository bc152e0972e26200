package economy

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"tapcoin/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestWithdraw(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	result, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	assert.Equal(t, model.WithdrawalStatusPending, result.Request.Status)
	assert.Equal(t, float64(60), result.Request.Amount)
	assert.NotEmpty(t, result.Request.ID)
	assert.Equal(t, float64(40), result.Profile.SpendableCoin)
	assert.Equal(t, float64(60), result.Profile.LockedCoin)
}

func TestRequestWithdrawValidation(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	_, err := svc.RequestWithdraw(testWallet, 0)
	requireKind(t, err, KindInvalidInput)

	_, err = svc.RequestWithdraw(testWallet, -10)
	requireKind(t, err, KindInvalidInput)

	// Under the configured floor of 50
	_, err = svc.RequestWithdraw(testWallet, 49.99)
	requireKind(t, err, KindAmountBelowMinimum)

	_, err = svc.RequestWithdraw(testWallet, 500)
	requireKind(t, err, KindInsufficientBalance)
}

func TestRequestWithdrawConflict(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	_, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	// Only enough balance for one: the second must fail and no extra coin
	// may be locked
	_, err = svc.RequestWithdraw(testWallet, 60)
	requireKind(t, err, KindConflictingRequest)

	profile, err := svc.GetProfile(testWallet)
	require.NoError(t, err)
	assert.Equal(t, float64(40), profile.SpendableCoin)
	assert.Equal(t, float64(60), profile.LockedCoin)
}

func TestRejectWithdrawRefundsEscrow(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	created, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	result, err := svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, false, "suspicious pattern", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, model.WithdrawalStatusRejected, result.Request.Status)
	require.NotNil(t, result.Request.ReviewNote)
	assert.Equal(t, "suspicious pattern", *result.Request.ReviewNote)
	require.NotNil(t, result.Request.ReviewedBy)
	assert.Equal(t, "admin-1", *result.Request.ReviewedBy)
	assert.NotNil(t, result.Request.CompletedAt)

	assert.Equal(t, float64(100), result.Profile.SpendableCoin)
	assert.Zero(t, result.Profile.LockedCoin)
}

func TestApproveWithdrawSettles(t *testing.T) {
	svc, settler := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	created, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	result, err := svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, true, "", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 1, settler.calls)
	assert.Equal(t, model.WithdrawalStatusCompleted, result.Request.Status)
	require.NotNil(t, result.Request.TxHash)
	assert.Equal(t, "0xabc123", *result.Request.TxHash)
	assert.NotNil(t, result.Request.CompletedAt)

	// Completion burns the escrow, it is never refunded
	assert.Equal(t, float64(40), result.Profile.SpendableCoin)
	assert.Zero(t, result.Profile.LockedCoin)
}

func TestApproveWithdrawSettlementFailureRefunds(t *testing.T) {
	svc, settler := newTestService(t)
	settler.err = errSettlement
	fundCoins(t, svc, testWallet, 100)

	created, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	_, err = svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, true, "", "admin-1")
	requireKind(t, err, KindSettlementFailure)

	req, err := svc.db.GetWithdrawal(created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusFailed, req.Status)
	require.NotNil(t, req.FailureReason)
	assert.Contains(t, *req.FailureReason, "rpc timeout")
	assert.Nil(t, req.TxHash)

	profile, err := svc.GetProfile(testWallet)
	require.NoError(t, err)
	assert.Equal(t, float64(100), profile.SpendableCoin)
	assert.Zero(t, profile.LockedCoin)
}

func TestReviewIdempotence(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	created, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	_, err = svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, true, "", "admin-1")
	require.NoError(t, err)

	// Approving again must fail without touching the ledger
	_, err = svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, true, "", "admin-1")
	requireKind(t, err, KindRequestAlreadyProcessed)

	// Rejecting a completed request is likewise refused
	_, err = svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, false, "", "admin-1")
	requireKind(t, err, KindRequestAlreadyProcessed)

	profile, err := svc.GetProfile(testWallet)
	require.NoError(t, err)
	assert.Equal(t, float64(40), profile.SpendableCoin)
	assert.Zero(t, profile.LockedCoin)
}

func TestReviewUnknownRequest(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ReviewWithdrawRequest(context.Background(), "no-such-id", true, "", "admin-1")
	requireKind(t, err, KindNotFound)

	_, err = svc.ReviewWithdrawRequest(context.Background(), "", true, "", "admin-1")
	requireKind(t, err, KindInvalidInput)
}

func TestApproveRequiresConfiguredSettlement(t *testing.T) {
	svc, settler := newTestService(t)
	settler.configured = errSettlement
	fundCoins(t, svc, testWallet, 100)

	created, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	_, err = svc.ReviewWithdrawRequest(context.Background(), created.Request.ID, true, "", "admin-1")
	requireKind(t, err, KindSettlementNotConfigured)

	// The request is untouched and can still be reviewed later
	req, err := svc.db.GetWithdrawal(created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, req.Status)
}

func TestEscrowInvariant(t *testing.T) {
	svc, settler := newTestService(t)
	fundCoins(t, svc, testWallet, 200)
	fundCoins(t, svc, otherTestWallet, 100)

	first, err := svc.RequestWithdraw(testWallet, 80)
	require.NoError(t, err)
	_, err = svc.RequestWithdraw(otherTestWallet, 50)
	require.NoError(t, err)

	assertEscrowInvariant(t, svc, testWallet)
	assertEscrowInvariant(t, svc, otherTestWallet)

	_, err = svc.ReviewWithdrawRequest(context.Background(), first.Request.ID, false, "", "admin-1")
	require.NoError(t, err)
	assertEscrowInvariant(t, svc, testWallet)

	second, err := svc.RequestWithdraw(testWallet, 120)
	require.NoError(t, err)
	assertEscrowInvariant(t, svc, testWallet)

	settler.err = errSettlement
	_, err = svc.ReviewWithdrawRequest(context.Background(), second.Request.ID, true, "", "admin-1")
	requireKind(t, err, KindSettlementFailure)
	assertEscrowInvariant(t, svc, testWallet)
	assertEscrowInvariant(t, svc, otherTestWallet)
}

func TestListWithdrawRequests(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)
	fundCoins(t, svc, otherTestWallet, 100)

	first, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)
	_, err = svc.RequestWithdraw(otherTestWallet, 50)
	require.NoError(t, err)
	_, err = svc.ReviewWithdrawRequest(context.Background(), first.Request.ID, false, "", "admin-1")
	require.NoError(t, err)

	all, err := svc.ListWithdrawRequests("all", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, 1, all.Summary[model.WithdrawalStatusPending].Count)
	assert.Equal(t, float64(50), all.Summary[model.WithdrawalStatusPending].TotalAmount)
	assert.Equal(t, 1, all.Summary[model.WithdrawalStatusRejected].Count)

	pending, err := svc.ListWithdrawRequests(model.WithdrawalStatusPending, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Total)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, otherTestWallet, pending.Items[0].WalletAddress)

	// Paging is clamped to sane values
	clamped, err := svc.ListWithdrawRequests("", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, 20, clamped.Limit)
}

func TestStaleProcessingSweep(t *testing.T) {
	svc, _ := newTestService(t)
	fundCoins(t, svc, testWallet, 100)

	created, err := svc.RequestWithdraw(testWallet, 60)
	require.NoError(t, err)

	// Simulate a crash between submit and reconcile by leaving the request
	// in processing with an old review timestamp
	req, err := svc.markProcessing(created.Request.ID, "", "admin-1")
	require.NoError(t, err)

	err = svc.db.Atomic(func(tx *sql.Tx) error {
		old := time.Now().Add(-2 * time.Hour)
		current, err := svc.db.GetWithdrawalTx(tx, req.ID)
		if err != nil {
			return err
		}
		current.ReviewedAt = &old
		return svc.db.UpdateWithdrawalTx(tx, current)
	})
	require.NoError(t, err)

	stale, err := svc.StaleProcessing(30 * time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, req.ID, stale[0].ID)

	// Fresh processing requests are not reported
	stale, err = svc.StaleProcessing(3 * time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

// assertEscrowInvariant checks that locked coin equals the sum of the
// wallet's non-terminal request amounts.
func assertEscrowInvariant(t *testing.T, svc *Service, wallet string) {
	t.Helper()

	profile, err := svc.GetProfile(wallet)
	require.NoError(t, err)

	list, err := svc.ListWithdrawRequests("all", 1, 100)
	require.NoError(t, err)

	var locked float64
	for _, req := range list.Items {
		if req.WalletAddress == wallet && !model.WithdrawalTerminal(req.Status) {
			locked += req.Amount
		}
	}
	assert.Equal(t, locked, profile.LockedCoin, "escrow invariant violated for %s", wallet)
}
