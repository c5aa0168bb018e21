// Package ledger implements the transfer engine: multi-currency
// conversion through the BRICS reference unit, atomic balance mutation
// over the local store, best-effort integrity anchoring and
// preference-gated notifications.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/bricspay/transfer-core/pkg/anchor"
	"github.com/bricspay/transfer-core/pkg/digest"
	"github.com/bricspay/transfer-core/pkg/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// referenceUnit is the display name of the common pivot currency.
const referenceUnit = "BRICS"

// anchorTimeout bounds every anchor attempt. A timeout is an anchor
// failure, never a transfer failure.
const anchorTimeout = 5 * time.Second

// Notifier is what the engine needs from the notification dispatcher.
type Notifier interface {
	ShouldNotify(ctx context.Context, userID string, category notify.Category) bool
	Create(ctx context.Context, userID, title, message, transactionID string) error
}

type Engine struct {
	store           *Store
	anchor          anchor.Client
	notifier        Notifier
	startingBalance float64
	logger          *zap.Logger
}

func NewEngine(store *Store, anchorClient anchor.Client, notifier Notifier, startingBalance float64, logger *zap.Logger) *Engine {
	return &Engine{
		store:           store,
		anchor:          anchorClient,
		notifier:        notifier,
		startingBalance: startingBalance,
		logger:          logger,
	}
}

type TransferInput struct {
	SenderID    string
	ReceiverID  string
	Amount      float64
	Description string
	// Basis is BasisLocal (sender currency) or BasisReference.
	Basis AmountBasis
	Rates RateTable
}

type TransferResult struct {
	TransactionID    string  `json:"transaction_id"`
	SenderCurrency   string  `json:"sender_currency"`
	ReceiverCurrency string  `json:"receiver_currency"`
	AmountSent       float64 `json:"amount_sent"`
	AmountReceived   float64 `json:"amount_received"`
	ReferenceAmount  float64 `json:"reference_amount"`
	Anchored         bool    `json:"anchored"`
	Message          string  `json:"message"`
}

// Transfer moves value between two users, converting through the
// reference unit. The balance mutation and transaction insert commit as
// one atomic unit before anchoring is attempted; anchor failure degrades
// the message, never the outcome.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	sender, err := e.store.User(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}
	receiver, err := e.store.User(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	senderRate, ok := in.Rates.Rate(sender.Currency)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrRateMissing, sender.Currency)
	}
	receiverRate, ok := in.Rates.Rate(receiver.Currency)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrRateMissing, receiver.Currency)
	}

	conv := convert(in.Amount, in.Basis, senderRate, receiverRate)

	balance, err := e.store.Balance(ctx, sender.ID, sender.Currency)
	if err != nil {
		return nil, err
	}
	if balance < conv.senderAmount {
		return nil, ErrInsufficientBalance
	}

	t := &Transaction{
		ID:               uuid.New().String(),
		SenderID:         sender.ID,
		ReceiverID:       receiver.ID,
		SenderCurrency:   sender.Currency,
		ReceiverCurrency: receiver.Currency,
		AmountSent:       conv.senderAmount,
		AmountReceived:   conv.receiverAmount,
		Status:           StatusCompleted,
		Type:             TypeTransfer,
		Description:      in.Description,
		AnchorStatus:     AnchorPending,
	}

	payload := digest.Record{
		"transaction_id":         t.ID,
		"sender_id":              t.SenderID,
		"receiver_id":            t.ReceiverID,
		"sender_currency":        t.SenderCurrency,
		"receiver_currency":      t.ReceiverCurrency,
		"amount_sent":            t.AmountSent,
		"amount_received":        t.AmountReceived,
		"reference_amount":       conv.referenceAmount,
		"exchange_rate_sender":   senderRate,
		"exchange_rate_receiver": receiverRate,
		"timestamp":              time.Now().UTC().Format(time.RFC3339Nano),
		"type":                   TypeTransfer,
		"description":            in.Description,
	}
	t.Digest = digest.Sum(payload)

	// Phase 1, authoritative: the local commit.
	if err := e.store.ApplyTransfer(ctx, t); err != nil {
		return nil, err
	}

	// Phase 2, advisory: anchoring.
	anchored, anchorMsg := e.recordAnchor(ctx, t.ID, payload)

	e.notifyTransfer(ctx, sender, receiver, t, conv)

	res := &TransferResult{
		TransactionID:    t.ID,
		SenderCurrency:   t.SenderCurrency,
		ReceiverCurrency: t.ReceiverCurrency,
		AmountSent:       conv.senderAmount,
		AmountReceived:   conv.receiverAmount,
		ReferenceAmount:  conv.referenceAmount,
		Anchored:         anchored,
	}
	if anchored {
		res.Message = fmt.Sprintf("Successfully transferred %.2f %s (%.2f %s) to %.2f %s. Anchor confirmation: successful.",
			conv.senderAmount, t.SenderCurrency, conv.referenceAmount, referenceUnit,
			conv.receiverAmount, t.ReceiverCurrency)
	} else {
		res.Message = fmt.Sprintf("Transfer completed in local ledger. %.2f %s (%.2f %s) to %.2f %s. Note: %s",
			conv.senderAmount, t.SenderCurrency, conv.referenceAmount, referenceUnit,
			conv.receiverAmount, t.ReceiverCurrency, anchorMsg)
	}
	return res, nil
}

// recordAnchor submits the payload with a bounded timeout and flips the
// transaction's anchor status when a real anchor acknowledged it. The
// local-only tier reports a soft success but confirms nothing.
func (e *Engine) recordAnchor(ctx context.Context, transactionID string, payload digest.Record) (bool, string) {
	actx, cancel := context.WithTimeout(ctx, anchorTimeout)
	defer cancel()

	ok, msg := e.anchor.Record(actx, payload)
	if !ok || e.anchor.Tier() == anchor.TierLocal {
		return false, msg
	}

	if err := e.store.SetAnchorStatus(ctx, transactionID, AnchorConfirmed); err != nil {
		e.logger.Warn("failed to persist anchor confirmation",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}
	return true, msg
}

func (e *Engine) notifyTransfer(ctx context.Context, sender, receiver *User, t *Transaction, conv conversion) {
	if e.notifier == nil {
		return
	}

	if e.notifier.ShouldNotify(ctx, receiver.ID, notify.CategoryReceivePayment) {
		msg := fmt.Sprintf("You received %.2f %s (%.2f %s) from %s.",
			conv.receiverAmount, t.ReceiverCurrency, conv.referenceAmount, referenceUnit, sender.Username)
		if t.Description != "" {
			msg += fmt.Sprintf(" Message: '%s'", t.Description)
		}
		if err := e.notifier.Create(ctx, receiver.ID, "Payment Received", msg, t.ID); err != nil {
			e.logger.Warn("failed to notify receiver", zap.Error(err))
		}
	}

	if e.notifier.ShouldNotify(ctx, sender.ID, notify.CategorySendPayment) {
		msg := fmt.Sprintf("You sent %.2f %s (%.2f %s) to %s.",
			conv.senderAmount, t.SenderCurrency, conv.referenceAmount, referenceUnit, receiver.Username)
		if err := e.notifier.Create(ctx, sender.ID, "Payment Sent", msg, t.ID); err != nil {
			e.logger.Warn("failed to notify sender", zap.Error(err))
		}
	}
}

// Register creates a user and their account with the engine's starting
// balance.
func (e *Engine) Register(ctx context.Context, username, passwordHash, country, currency string) (*User, error) {
	if _, ok := regionByCurrency[currency]; !ok {
		return nil, fmt.Errorf("unsupported currency %s", currency)
	}
	return e.store.CreateUser(ctx, username, passwordHash, country, currency, e.startingBalance)
}

// UserByName resolves a user for authentication; the service layer owns
// password verification and token issuance.
func (e *Engine) UserByName(ctx context.Context, username string) (*User, error) {
	return e.store.UserByName(ctx, username)
}

func (e *Engine) User(ctx context.Context, userID string) (*User, error) {
	return e.store.User(ctx, userID)
}

func (e *Engine) Users(ctx context.Context) ([]User, error) {
	return e.store.Users(ctx)
}

// Balance returns the user's balance in their home currency.
func (e *Engine) Balance(ctx context.Context, userID string) (float64, string, error) {
	u, err := e.store.User(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	balance, err := e.store.Balance(ctx, u.ID, u.Currency)
	if err != nil {
		return 0, "", err
	}
	return balance, u.Currency, nil
}

func (e *Engine) History(ctx context.Context, userID string) ([]Transaction, error) {
	return e.store.History(ctx, userID)
}

func (e *Engine) Transaction(ctx context.Context, id string) (*Transaction, error) {
	return e.store.Transaction(ctx, id)
}

// VerifyTransaction compares the locally stored digest with the anchored
// record. The outcome is advisory and reported as a (ok, message) pair.
func (e *Engine) VerifyTransaction(ctx context.Context, id string) (bool, string) {
	t, err := e.store.Transaction(ctx, id)
	if err != nil {
		return false, "transaction not found in local ledger"
	}
	if t.Digest == "" {
		return false, "transaction has no anchor record"
	}

	actx, cancel := context.WithTimeout(ctx, anchorTimeout)
	defer cancel()

	ok, record, msg := e.anchor.Verify(actx, id)
	if !ok {
		return false, fmt.Sprintf("verification failed: %s", msg)
	}

	if hash, _ := record["hash"].(string); hash == t.Digest {
		return true, "transaction verified on anchor ledger, integrity confirmed"
	}
	return false, "verification failed: data mismatch between local and anchored records"
}
