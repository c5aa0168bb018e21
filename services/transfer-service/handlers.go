package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bricspay/transfer-core/pkg/common"
	"github.com/bricspay/transfer-core/pkg/common/api"
	"github.com/bricspay/transfer-core/pkg/ledger"
	"github.com/bricspay/transfer-core/pkg/notify"
	"github.com/bricspay/transfer-core/services/transfer-service/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// writeEngineError maps the engine's sentinel errors onto HTTP statuses.
// Preconditions are 400, missing entities 404, conflicts 409, everything
// else is a 500 with the detail kept out of the response body.
func (s *Service) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrRateMissing),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidAction):
		api.WriteError(w, http.StatusBadRequest, "precondition_failed", err.Error())
	case errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		api.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrUsernameTaken),
		errors.Is(err, ledger.ErrRequestNotPending):
		api.WriteError(w, http.StatusConflict, "conflict", err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (s *Service) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Username and password are required")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to hash password")
		return
	}

	user, err := s.engine.Register(r.Context(), req.Username, string(hashed), req.Country, req.Currency)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	api.WriteResult(w, http.StatusCreated, api.Result{
		Success: true,
		Message: "Account created",
		Data:    user,
	})
}

func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := s.engine.UserByName(r.Context(), req.Username)
	if err != nil {
		api.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		api.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    "transfer-service",
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token")
		return
	}

	api.WriteJSON(w, http.StatusOK, models.TokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt.Unix(),
		UserID:    user.ID,
		Username:  user.Username,
		Currency:  user.Currency,
	})
}

// resolveUser accepts either an explicit user id or a username.
func (s *Service) resolveUser(r *http.Request, id, username string) (*ledger.User, error) {
	if id != "" {
		return s.engine.User(r.Context(), id)
	}
	return s.engine.UserByName(r.Context(), username)
}

func (s *Service) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Amount must be positive")
		return
	}

	receiver, err := s.resolveUser(r, req.ReceiverID, req.ReceiverUsername)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	res, err := s.engine.Transfer(r.Context(), ledger.TransferInput{
		SenderID:    common.UserID(r.Context()),
		ReceiverID:  receiver.ID,
		Amount:      req.Amount,
		Description: req.Description,
		Basis:       req.Basis,
		Rates:       req.Rates,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	api.WriteResult(w, http.StatusOK, api.Result{Success: true, Message: res.Message, Data: res})
}

func (s *Service) RequestHandler(w http.ResponseWriter, r *http.Request) {
	var req models.MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Amount must be positive")
		return
	}

	payer, err := s.resolveUser(r, req.PayerID, req.PayerUsername)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	res, err := s.engine.Request(r.Context(), ledger.RequestInput{
		RequesterID: common.UserID(r.Context()),
		PayerID:     payer.ID,
		Amount:      req.Amount,
		Description: req.Description,
		Basis:       req.Basis,
		Rates:       req.Rates,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	api.WriteResult(w, http.StatusOK, api.Result{Success: true, Message: res.Message, Data: res})
}

func (s *Service) RespondHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	res, err := s.engine.Respond(r.Context(), id, req.Action, req.Rates)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	api.WriteResult(w, http.StatusOK, api.Result{Success: true, Message: res.Message, Data: res})
}

func (s *Service) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	balance, currency, err := s.engine.Balance(r.Context(), common.UserID(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, models.BalanceResponse{Balance: balance, Currency: currency})
}

// UsersHandler lists registered users for recipient selection.
func (s *Service) UsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.Users(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if users == nil {
		users = []ledger.User{}
	}
	api.WriteJSON(w, http.StatusOK, users)
}

func (s *Service) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.History(r.Context(), common.UserID(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if history == nil {
		history = []ledger.Transaction{}
	}
	api.WriteJSON(w, http.StatusOK, history)
}

func (s *Service) TransactionHandler(w http.ResponseWriter, r *http.Request) {
	tx, err := s.engine.Transaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, tx)
}

func (s *Service) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	ok, msg := s.engine.VerifyTransaction(r.Context(), mux.Vars(r)["id"])
	api.WriteResult(w, http.StatusOK, api.Result{Success: ok, Message: msg})
}

func (s *Service) PendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.PendingRequests(r.Context(), common.UserID(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if pending == nil {
		pending = []ledger.Transaction{}
	}
	api.WriteJSON(w, http.StatusOK, pending)
}

func (s *Service) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	includeRead := r.URL.Query().Get("include_read") == "true"
	list, err := s.dispatcher.List(r.Context(), common.UserID(r.Context()), includeRead)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []notify.Notification{}
	}
	api.WriteJSON(w, http.StatusOK, list)
}

func (s *Service) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeEngineError(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, api.Result{Success: true, Message: "Notification marked as read"})
}

func (s *Service) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.dispatcher.UnreadCount(r.Context(), common.UserID(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (s *Service) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.dispatcher.Preferences(r.Context(), common.UserID(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, prefs)
}

func (s *Service) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	var prefs notify.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	prefs.UserID = common.UserID(r.Context())

	if err := s.dispatcher.UpdatePreferences(r.Context(), &prefs); err != nil {
		s.writeEngineError(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, api.Result{Success: true, Message: "Preferences updated"})
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"anchor_tier": string(s.anchorTier),
	})
}
