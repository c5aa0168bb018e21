// Package notify persists and delivers per-user notices, gated by
// per-user preference flags. The dispatcher is category-agnostic: callers
// decide the category and check ShouldNotify before creating.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Category string

const (
	CategoryReceivePayment  Category = "receive_payment"
	CategorySendPayment     Category = "send_payment"
	CategoryIncomingRequest Category = "request"
	CategoryRequestResponse Category = "request_response"
)

type Notification struct {
	ID            string    `json:"notification_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Read          bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

// Preferences holds one user's notification flags. Defaults are all
// categories on, in-app push on, email off.
type Preferences struct {
	UserID          string `json:"user_id"`
	ReceivePayment  bool   `json:"receive_payment_notify"`
	SendPayment     bool   `json:"send_payment_notify"`
	IncomingRequest bool   `json:"request_notify"`
	RequestResponse bool   `json:"request_response_notify"`
	PushEnabled     bool   `json:"push_enabled"`
	EmailEnabled    bool   `json:"email_enabled"`
	Email           string `json:"email,omitempty"`
}

type Dispatcher struct {
	db     *sql.DB
	hub    *Hub
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. hub may be nil when live push is not
// wired (tests, CLI tooling).
func NewDispatcher(db *sql.DB, hub *Hub, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{db: db, hub: hub, logger: logger}
}

// Create persists a notification and pushes it to any live sockets the
// user has attached.
func (d *Dispatcher) Create(ctx context.Context, userID, title, message, transactionID string) error {
	n := Notification{
		ID:            uuid.New().String(),
		UserID:        userID,
		Title:         title,
		Message:       message,
		TransactionID: transactionID,
		CreatedAt:     time.Now(),
	}

	var txID interface{}
	if transactionID != "" {
		txID = transactionID
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (notification_id, user_id, title, message, transaction_id, is_read)
		 VALUES ($1, $2, $3, $4, $5, 0)`,
		n.ID, n.UserID, n.Title, n.Message, txID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if d.hub != nil {
		d.hub.Send(userID, n)
	}
	return nil
}

// List returns the user's notifications newest-first. With includeRead
// false only unread ones are returned.
func (d *Dispatcher) List(ctx context.Context, userID string, includeRead bool) ([]Notification, error) {
	query := `SELECT notification_id, user_id, title, message, transaction_id, is_read, created_at
		FROM notifications WHERE user_id = $1`
	if !includeRead {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var txID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &txID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.TransactionID = txID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips the read flag. Idempotent: re-marking a read notification
// is a no-op success.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE notification_id = $1`, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// ShouldNotify reports whether the user wants in-app notices for the
// category. A preference record is created with defaults on first access;
// if preferences cannot be loaded at all the answer is true, so a missing
// record never silently suppresses a notification.
func (d *Dispatcher) ShouldNotify(ctx context.Context, userID string, category Category) bool {
	prefs, err := d.Preferences(ctx, userID)
	if err != nil {
		d.logger.Warn("failed to load notification preferences, defaulting to notify",
			zap.String("user_id", userID), zap.Error(err))
		return true
	}

	if !prefs.PushEnabled {
		return false
	}

	switch category {
	case CategoryReceivePayment:
		return prefs.ReceivePayment
	case CategorySendPayment:
		return prefs.SendPayment
	case CategoryIncomingRequest:
		return prefs.IncomingRequest
	case CategoryRequestResponse:
		return prefs.RequestResponse
	}
	return true
}

// Preferences loads the user's flags, creating the default row on first
// access.
func (d *Dispatcher) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	p, err := d.loadPreferences(ctx, userID)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id) VALUES ($1)`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create default preferences: %w", err)
	}

	return d.loadPreferences(ctx, userID)
}

// UpdatePreferences overwrites the user's flags, creating the row first if
// it does not exist yet.
func (d *Dispatcher) UpdatePreferences(ctx context.Context, p *Preferences) error {
	if _, err := d.Preferences(ctx, p.UserID); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx,
		`UPDATE notification_preferences SET
			receive_payment_notify = $1,
			send_payment_notify = $2,
			request_notify = $3,
			request_response_notify = $4,
			push_enabled = $5,
			email_enabled = $6,
			email = $7
		 WHERE user_id = $8`,
		boolToInt(p.ReceivePayment), boolToInt(p.SendPayment),
		boolToInt(p.IncomingRequest), boolToInt(p.RequestResponse),
		boolToInt(p.PushEnabled), boolToInt(p.EmailEnabled),
		p.Email, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

func (d *Dispatcher) loadPreferences(ctx context.Context, userID string) (*Preferences, error) {
	var p Preferences
	var email sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT user_id, receive_payment_notify, send_payment_notify, request_notify,
			request_response_notify, push_enabled, email_enabled, email
		 FROM notification_preferences WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.ReceivePayment, &p.SendPayment, &p.IncomingRequest,
			&p.RequestResponse, &p.PushEnabled, &p.EmailEnabled, &email)
	if err != nil {
		return nil, err
	}
	p.Email = email.String
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
