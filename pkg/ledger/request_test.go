package ledger

import (
	"context"
	"testing"

	"github.com/bricspay/transfer-core/pkg/anchor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_CreatesPendingWithoutMovingFunds(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	ctx := context.Background()

	alice := h.register(t, "alice", "India", "INR")  // requester
	bob := h.register(t, "bob", "China", "CNY")      // payer

	res, err := h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID,
		PayerID:     bob.ID,
		Amount:      200, // payer currency
		Description: "lunch",
		Basis:       BasisLocal,
		Rates:       testRates,
	})
	require.NoError(t, err)

	assert.InDelta(t, 200.0, res.PayerAmount, 1e-9)
	assert.InDelta(t, 50.0, res.ReferenceAmount, 1e-9)
	assert.InDelta(t, 100.0, res.RequesterAmount, 1e-9)

	for _, u := range []*User{alice, bob} {
		bal, _, err := h.engine.Balance(ctx, u.ID)
		require.NoError(t, err)
		assert.InDelta(t, 1000.0, bal, 1e-9)
	}

	tx, err := h.engine.Transaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, TypeRequest, tx.Type)
	assert.Equal(t, bob.ID, tx.SenderID)
	assert.Equal(t, alice.ID, tx.ReceiverID)

	// The payer sees the request, the requester does not.
	pending, err := h.engine.PendingRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	pending, err = h.engine.PendingRequests(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Only the payer was notified.
	count, err := h.dispatcher.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = h.dispatcher.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRequest_BasisConversions(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	ctx := context.Background()

	alice := h.register(t, "alice", "India", "INR")
	bob := h.register(t, "bob", "China", "CNY")

	// 25 reference units: payer owes 100 CNY, requester receives 50 INR.
	res, err := h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID, PayerID: bob.ID, Amount: 25,
		Basis: BasisReference, Rates: testRates,
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.PayerAmount, 1e-9)
	assert.InDelta(t, 50.0, res.RequesterAmount, 1e-9)

	// 50 in the requester's INR: same amounts from the other direction.
	res, err = h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID, PayerID: bob.ID, Amount: 50,
		Basis: BasisRequester, Rates: testRates,
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.PayerAmount, 1e-9)
	assert.InDelta(t, 25.0, res.ReferenceAmount, 1e-9)
	assert.InDelta(t, 50.0, res.RequesterAmount, 1e-9)
}

func TestRespond_ApproveMovesFunds(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	ctx := context.Background()

	alice := h.register(t, "alice", "India", "INR")
	bob := h.register(t, "bob", "China", "CNY")

	req, err := h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID, PayerID: bob.ID, Amount: 200,
		Basis: BasisLocal, Rates: testRates,
	})
	require.NoError(t, err)

	res, err := h.engine.Respond(ctx, req.TransactionID, ActionApprove, testRates)
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, res.Action)
	require.NotNil(t, res.Transfer)
	assert.InDelta(t, 200.0, res.Transfer.AmountSent, 1e-9)
	assert.InDelta(t, 100.0, res.Transfer.AmountReceived, 1e-9)

	bobBal, _, err := h.engine.Balance(ctx, bob.ID)
	require.NoError(t, err)
	assert.InDelta(t, 800.0, bobBal, 1e-9)

	aliceBal, _, err := h.engine.Balance(ctx, alice.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1100.0, aliceBal, 1e-9)

	tx, err := h.engine.Transaction(ctx, req.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, tx.Status)

	// Approval is terminal.
	_, err = h.engine.Respond(ctx, req.TransactionID, ActionApprove, testRates)
	require.ErrorIs(t, err, ErrRequestNotPending)
}

func TestRespond_RejectMovesNothing(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	ctx := context.Background()

	alice := h.register(t, "alice", "India", "INR")
	bob := h.register(t, "bob", "China", "CNY")

	req, err := h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID, PayerID: bob.ID, Amount: 200,
		Basis: BasisLocal, Rates: testRates,
	})
	require.NoError(t, err)

	res, err := h.engine.Respond(ctx, req.TransactionID, ActionReject, testRates)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.Nil(t, res.Transfer)

	for _, u := range []*User{alice, bob} {
		bal, _, err := h.engine.Balance(ctx, u.ID)
		require.NoError(t, err)
		assert.InDelta(t, 1000.0, bal, 1e-9)
	}

	tx, err := h.engine.Transaction(ctx, req.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, tx.Status)

	_, err = h.engine.Respond(ctx, req.TransactionID, ActionReject, testRates)
	require.ErrorIs(t, err, ErrRequestNotPending)
}

func TestRespond_UnknownRequest(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	_, err := h.engine.Respond(context.Background(), "missing", ActionApprove, testRates)
	require.ErrorIs(t, err, ErrRequestNotPending)
}

func TestRespond_InvalidAction(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	ctx := context.Background()

	alice := h.register(t, "alice", "India", "INR")
	bob := h.register(t, "bob", "China", "CNY")

	req, err := h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID, PayerID: bob.ID, Amount: 10,
		Basis: BasisLocal, Rates: testRates,
	})
	require.NoError(t, err)

	_, err = h.engine.Respond(ctx, req.TransactionID, "maybe", testRates)
	require.ErrorIs(t, err, ErrInvalidAction)

	// Still pending after the bad action.
	tx, err := h.engine.Transaction(ctx, req.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
}

func TestRespond_ApproveInsufficientBalanceKeepsRequestPending(t *testing.T) {
	h := newHarness(t, anchor.NewLocalClient())
	ctx := context.Background()

	alice := h.register(t, "alice", "India", "INR")
	bob := h.register(t, "bob", "China", "CNY")

	req, err := h.engine.Request(ctx, RequestInput{
		RequesterID: alice.ID, PayerID: bob.ID, Amount: 1500,
		Basis: BasisLocal, Rates: testRates,
	})
	require.NoError(t, err)

	_, err = h.engine.Respond(ctx, req.TransactionID, ActionApprove, testRates)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	tx, err := h.engine.Transaction(ctx, req.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)

	bobBal, _, err := h.engine.Balance(ctx, bob.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, bobBal, 1e-9)
}
