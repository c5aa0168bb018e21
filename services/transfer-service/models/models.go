package models

import "github.com/bricspay/transfer-core/pkg/ledger"

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Currency  string `json:"currency"`
}

// TransferRequest moves funds from the authenticated user. The receiver
// may be addressed by id or by username. Rates override the configured
// table when present.
type TransferRequest struct {
	ReceiverID       string             `json:"receiver_id,omitempty"`
	ReceiverUsername string             `json:"receiver_username,omitempty"`
	Amount           float64            `json:"amount"`
	Description      string             `json:"description,omitempty"`
	Basis            ledger.AmountBasis `json:"basis,omitempty"`
	Rates            ledger.RateTable   `json:"rates,omitempty"`
}

// MoneyRequest asks another user (the payer) for funds.
type MoneyRequest struct {
	PayerID       string             `json:"payer_id,omitempty"`
	PayerUsername string             `json:"payer_username,omitempty"`
	Amount        float64            `json:"amount"`
	Description   string             `json:"description,omitempty"`
	Basis         ledger.AmountBasis `json:"basis,omitempty"`
	Rates         ledger.RateTable   `json:"rates,omitempty"`
}

type RespondRequest struct {
	Action string           `json:"action"`
	Rates  ledger.RateTable `json:"rates,omitempty"`
}

type BalanceResponse struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}
