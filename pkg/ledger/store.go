package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"

	TypeTransfer = "transfer"
	TypeRequest  = "request"

	AnchorPending   = "pending"
	AnchorConfirmed = "confirmed"
)

type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Country      string    `json:"country"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

type Account struct {
	ID        string    `json:"account_id"`
	UserID    string    `json:"user_id"`
	Currency  string    `json:"currency"`
	Balance   float64   `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Transaction struct {
	ID               string    `json:"transaction_id"`
	SenderID         string    `json:"sender_id"`
	ReceiverID       string    `json:"receiver_id"`
	SenderCurrency   string    `json:"sender_currency"`
	ReceiverCurrency string    `json:"receiver_currency"`
	AmountSent       float64   `json:"amount_sent"`
	AmountReceived   float64   `json:"amount_received"`
	Status           string    `json:"status"`
	Type             string    `json:"type"`
	Description      string    `json:"description,omitempty"`
	Digest           string    `json:"digest,omitempty"`
	AnchorStatus     string    `json:"anchor_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store gives typed access to users, accounts and transactions over the
// local SQL ledger.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser registers a user and opens their account with the starting
// balance. One account per (user, currency) pair.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, country, currency string, startingBalance float64) (*User, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = $1`, username).Scan(&exists)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	u := &User{
		ID:       uuid.New().String(),
		Username: username,
		Country:  country,
		Currency: currency,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (user_id, username, password_hash, country, currency) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, username, passwordHash, country, currency); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (account_id, user_id, currency, balance) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), u.ID, currency, startingBalance); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}
	return u, nil
}

func (s *Store) User(ctx context.Context, userID string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, password_hash, country, currency, created_at FROM users WHERE user_id = $1`, userID))
}

func (s *Store) UserByName(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, password_hash, country, currency, created_at FROM users WHERE username = $1`, username))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Country, &u.Currency, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// Users lists all registered users, for recipient selection.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, password_hash, country, currency, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Country, &u.Currency, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Balance(ctx context.Context, userID, currency string) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE user_id = $1 AND currency = $2`, userID, currency).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load balance: %w", err)
	}
	return balance, nil
}

// ApplyTransfer performs the atomic unit of a transfer: debit the sender,
// credit the receiver and insert the transaction row, all or nothing.
// The debit is a conditional update, so check-and-update on one account is
// a single statement and concurrent transfers cannot lose an update.
func (s *Store) ApplyTransfer(ctx context.Context, t *Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = $2 AND currency = $3 AND balance >= $1`,
		t.AmountSent, t.SenderID, t.SenderCurrency)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to debit sender: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return ErrInsufficientBalance
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = $2 AND currency = $3`,
		t.AmountReceived, t.ReceiverID, t.ReceiverCurrency)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to credit receiver: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("receiver account %s/%s: %w", t.ReceiverID, t.ReceiverCurrency, ErrUserNotFound)
	}

	if err := insertTransaction(ctx, tx, t); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// InsertRequest records a pending money request. No balances move.
func (s *Store) InsertRequest(ctx context.Context, t *Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit request: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
			(transaction_id, sender_id, receiver_id, sender_currency, receiver_currency,
			 amount_sent, amount_received, status, type, description, digest, anchor_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.SenderID, t.ReceiverID, t.SenderCurrency, t.ReceiverCurrency,
		t.AmountSent, t.AmountReceived, t.Status, t.Type, t.Description, t.Digest, t.AnchorStatus)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) Transaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, selectTransaction+` WHERE transaction_id = $1`, id)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return t, nil
}

// PendingRequest loads a transaction only if it is a request still
// awaiting a response.
func (s *Store) PendingRequest(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		selectTransaction+` WHERE transaction_id = $1 AND type = $2 AND status = $3`,
		id, TypeRequest, StatusPending)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	return t, nil
}

func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE transaction_id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (s *Store) SetAnchorStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET anchor_status = $1, updated_at = CURRENT_TIMESTAMP WHERE transaction_id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update anchor status: %w", err)
	}
	return nil
}

// History returns a user's transactions newest-first: completed ones plus
// any transfer regardless of status.
func (s *Store) History(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE (sender_id = $1 OR receiver_id = $1)
			AND (status = $2 OR type = $3)
			ORDER BY created_at DESC`,
		userID, StatusCompleted, TypeTransfer)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return collectTransactions(rows)
}

// PendingRequests returns requests awaiting the given payer's response.
func (s *Store) PendingRequests(ctx context.Context, payerID string) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE sender_id = $1 AND type = $2 AND status = $3 ORDER BY created_at DESC`,
		payerID, TypeRequest, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending requests: %w", err)
	}
	return collectTransactions(rows)
}

const selectTransaction = `SELECT transaction_id, sender_id, receiver_id, sender_currency,
	receiver_currency, amount_sent, amount_received, status, type, description,
	digest, anchor_status, created_at, updated_at FROM transactions`

func scanTransaction(scan func(...interface{}) error) (*Transaction, error) {
	var t Transaction
	var desc, dig sql.NullString
	err := scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.SenderCurrency, &t.ReceiverCurrency,
		&t.AmountSent, &t.AmountReceived, &t.Status, &t.Type, &desc, &dig,
		&t.AnchorStatus, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.Digest = dig.String
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
