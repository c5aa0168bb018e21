package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/bricspay/transfer-core/pkg/digest"
	"github.com/bricspay/transfer-core/pkg/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type RequestInput struct {
	RequesterID string
	PayerID     string
	Amount      float64
	Description string
	// Basis may be BasisLocal (payer currency), BasisReference or
	// BasisRequester.
	Basis AmountBasis
	Rates RateTable
}

type RequestResult struct {
	TransactionID     string  `json:"transaction_id"`
	PayerCurrency     string  `json:"payer_currency"`
	RequesterCurrency string  `json:"requester_currency"`
	PayerAmount       float64 `json:"payer_amount"`
	RequesterAmount   float64 `json:"requester_amount"`
	ReferenceAmount   float64 `json:"reference_amount"`
	Anchored          bool    `json:"anchored"`
	Message           string  `json:"message"`
}

// Request records a pending money request: sender=payer,
// receiver=requester, no funds move until approval. The request record is
// anchored like a transfer and the payer is notified.
func (e *Engine) Request(ctx context.Context, in RequestInput) (*RequestResult, error) {
	requester, err := e.store.User(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}
	payer, err := e.store.User(ctx, in.PayerID)
	if err != nil {
		return nil, err
	}

	payerRate, ok := in.Rates.Rate(payer.Currency)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrRateMissing, payer.Currency)
	}
	requesterRate, ok := in.Rates.Rate(requester.Currency)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrRateMissing, requester.Currency)
	}

	var payerAmount, referenceAmount, requesterAmount float64
	switch in.Basis {
	case BasisReference:
		referenceAmount = in.Amount
		payerAmount = referenceAmount * payerRate
		requesterAmount = referenceAmount * requesterRate
	case BasisRequester:
		requesterAmount = in.Amount
		referenceAmount = requesterAmount / requesterRate
		payerAmount = referenceAmount * payerRate
	default:
		payerAmount = in.Amount
		referenceAmount = payerAmount / payerRate
		requesterAmount = referenceAmount * requesterRate
	}

	t := &Transaction{
		ID:               uuid.New().String(),
		SenderID:         payer.ID,
		ReceiverID:       requester.ID,
		SenderCurrency:   payer.Currency,
		ReceiverCurrency: requester.Currency,
		AmountSent:       payerAmount,
		AmountReceived:   requesterAmount,
		Status:           StatusPending,
		Type:             TypeRequest,
		Description:      in.Description,
		AnchorStatus:     AnchorPending,
	}

	payload := digest.Record{
		"transaction_id":               t.ID,
		"requester_id":                 requester.ID,
		"payer_id":                     payer.ID,
		"requester_currency":           requester.Currency,
		"payer_currency":               payer.Currency,
		"amount":                       payerAmount,
		"amount_in_requester_currency": requesterAmount,
		"reference_amount":             referenceAmount,
		"exchange_rate_payer":          payerRate,
		"exchange_rate_requester":      requesterRate,
		"timestamp":                    time.Now().UTC().Format(time.RFC3339Nano),
		"type":                         TypeRequest,
		"status":                       StatusPending,
		"description":                  in.Description,
	}
	t.Digest = digest.Sum(payload)

	if err := e.store.InsertRequest(ctx, t); err != nil {
		return nil, err
	}

	anchored, anchorMsg := e.recordAnchor(ctx, t.ID, payload)

	if e.notifier != nil && e.notifier.ShouldNotify(ctx, payer.ID, notify.CategoryIncomingRequest) {
		msg := fmt.Sprintf("%s requested %.2f %s (%.2f %s) from you.",
			requester.Username, payerAmount, payer.Currency, referenceAmount, referenceUnit)
		if in.Description != "" {
			msg += fmt.Sprintf(" Reason: '%s'", in.Description)
		}
		if err := e.notifier.Create(ctx, payer.ID, "Money Request", msg, t.ID); err != nil {
			e.logger.Warn("failed to notify payer", zap.Error(err))
		}
	}

	res := &RequestResult{
		TransactionID:     t.ID,
		PayerCurrency:     payer.Currency,
		RequesterCurrency: requester.Currency,
		PayerAmount:       payerAmount,
		RequesterAmount:   requesterAmount,
		ReferenceAmount:   referenceAmount,
		Anchored:          anchored,
	}
	detail := fmt.Sprintf("%.2f %s (%.2f %s), equivalent to %.2f %s",
		payerAmount, payer.Currency, referenceAmount, referenceUnit, requesterAmount, requester.Currency)
	if anchored {
		res.Message = fmt.Sprintf("Money request for %s sent. Request ID: %s. Anchor confirmation: successful.", detail, t.ID)
	} else {
		res.Message = fmt.Sprintf("Money request for %s sent. Request ID: %s. Note: %s", detail, t.ID, anchorMsg)
	}
	return res, nil
}

type RespondResult struct {
	TransactionID string          `json:"transaction_id"`
	Action        string          `json:"action"`
	Message       string          `json:"message"`
	Transfer      *TransferResult `json:"transfer,omitempty"`
}

// Respond settles a pending request. Approval runs a nested transfer of
// the stored payer-currency amount; if that transfer fails the request
// stays pending and the failure is surfaced. Rejection moves no funds.
// Either outcome is terminal and anchors a status-update record.
func (e *Engine) Respond(ctx context.Context, transactionID, action string, rates RateTable) (*RespondResult, error) {
	req, err := e.store.PendingRequest(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionApprove:
		desc := fmt.Sprintf("Payment for request: %s", req.Description)
		transfer, err := e.Transfer(ctx, TransferInput{
			SenderID:    req.SenderID,
			ReceiverID:  req.ReceiverID,
			Amount:      req.AmountSent,
			Description: desc,
			Basis:       BasisLocal,
			Rates:       rates,
		})
		if err != nil {
			return nil, err
		}

		if err := e.store.SetStatus(ctx, transactionID, StatusCompleted); err != nil {
			return nil, err
		}
		e.anchorStatusUpdate(ctx, transactionID, StatusCompleted, "request_approved")

		if e.notifier != nil && e.notifier.ShouldNotify(ctx, req.ReceiverID, notify.CategoryRequestResponse) {
			payer, perr := e.store.User(ctx, req.SenderID)
			if perr == nil {
				msg := fmt.Sprintf("%s approved your request for %.2f %s.",
					payer.Username, req.AmountReceived, req.ReceiverCurrency)
				if err := e.notifier.Create(ctx, req.ReceiverID, "Request Approved", msg, transactionID); err != nil {
					e.logger.Warn("failed to notify requester", zap.Error(err))
				}
			}
		}

		return &RespondResult{
			TransactionID: transactionID,
			Action:        action,
			Message:       "Request approved and payment sent.",
			Transfer:      transfer,
		}, nil

	case ActionReject:
		if err := e.store.SetStatus(ctx, transactionID, StatusRejected); err != nil {
			return nil, err
		}
		e.anchorStatusUpdate(ctx, transactionID, StatusRejected, "request_rejected")

		return &RespondResult{
			TransactionID: transactionID,
			Action:        action,
			Message:       "Request rejected.",
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
}

// anchorStatusUpdate records a request's terminal state transition on the
// anchor ledger. This is advisory only: the funds-moving record, if any,
// was anchored by the nested transfer.
func (e *Engine) anchorStatusUpdate(ctx context.Context, transactionID, status, action string) {
	payload := digest.Record{
		"transaction_id": transactionID,
		"status":         status,
		"updated_at":     time.Now().UTC().Format(time.RFC3339Nano),
		"action":         action,
	}
	e.recordAnchor(ctx, transactionID, payload)
}

// PendingRequests lists requests awaiting the payer's response.
func (e *Engine) PendingRequests(ctx context.Context, payerID string) ([]Transaction, error) {
	return e.store.PendingRequests(ctx, payerID)
}
