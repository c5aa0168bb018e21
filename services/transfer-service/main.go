package main

import (
	"net/http"
	"time"

	"github.com/bricspay/transfer-core/pkg/anchor"
	"github.com/bricspay/transfer-core/pkg/common"
	"github.com/bricspay/transfer-core/pkg/common/db"
	"github.com/bricspay/transfer-core/pkg/common/migrations"
	"github.com/bricspay/transfer-core/pkg/ledger"
	"github.com/bricspay/transfer-core/pkg/notify"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Service struct {
	engine     *ledger.Engine
	dispatcher *notify.Dispatcher
	hub        *notify.Hub
	cfg        *common.Config
	anchorTier anchor.Tier
	logger     *zap.Logger
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := common.LoadConfig()

	database, err := db.Connect(cfg.DB)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.RunMigrations(database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	anchorClient := anchor.Resolve(cfg, logger)

	hub := notify.NewHub(logger)
	go hub.Heartbeat(30 * time.Second)

	dispatcher := notify.NewDispatcher(database, hub, logger)
	store := ledger.NewStore(database)
	engine := ledger.NewEngine(store, anchorClient, dispatcher, cfg.StartingBalance, logger)

	svc := &Service{
		engine:     engine,
		dispatcher: dispatcher,
		hub:        hub,
		cfg:        cfg,
		anchorTier: anchorClient.Tier(),
		logger:     logger,
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", svc.HealthHandler).Methods("GET")
	r.HandleFunc("/auth/register", svc.RegisterHandler).Methods("POST")
	r.HandleFunc("/auth/login", svc.LoginHandler).Methods("POST")
	r.HandleFunc("/ws", svc.WSHandler).Methods("GET")

	protected := r.NewRoute().Subrouter()
	protected.Use(func(next http.Handler) http.Handler {
		return common.AuthMiddleware(cfg.JWTSecret, next)
	})
	protected.HandleFunc("/transfers", svc.TransferHandler).Methods("POST")
	protected.HandleFunc("/requests", svc.RequestHandler).Methods("POST")
	protected.HandleFunc("/requests/pending", svc.PendingRequestsHandler).Methods("GET")
	protected.HandleFunc("/requests/{id}/respond", svc.RespondHandler).Methods("POST")
	protected.HandleFunc("/balance", svc.BalanceHandler).Methods("GET")
	protected.HandleFunc("/users", svc.UsersHandler).Methods("GET")
	protected.HandleFunc("/transactions", svc.HistoryHandler).Methods("GET")
	protected.HandleFunc("/transactions/{id}", svc.TransactionHandler).Methods("GET")
	protected.HandleFunc("/transactions/{id}/verify", svc.VerifyHandler).Methods("GET")
	protected.HandleFunc("/notifications", svc.NotificationsHandler).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", svc.UnreadCountHandler).Methods("GET")
	protected.HandleFunc("/notifications/{id}/read", svc.MarkReadHandler).Methods("POST")
	protected.HandleFunc("/notification-preferences", svc.PreferencesHandler).Methods("GET")
	protected.HandleFunc("/notification-preferences", svc.UpdatePreferencesHandler).Methods("PUT")

	logger.Info("transfer service listening",
		zap.String("port", cfg.Port),
		zap.String("anchor_tier", string(svc.anchorTier)))
	logger.Fatal("server exited", zap.Error(http.ListenAndServe(":"+cfg.Port, r)))
}
