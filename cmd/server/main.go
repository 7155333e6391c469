package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arvand/installment-engine/internal/config"
	"github.com/arvand/installment-engine/internal/engine"
	"github.com/arvand/installment-engine/internal/handler"
	"github.com/arvand/installment-engine/internal/ledger"
	"github.com/arvand/installment-engine/internal/repository"
	"github.com/arvand/installment-engine/pkg/response"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := initDB(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	store := repository.NewStore(db)
	clock := engine.SystemClock{}
	policy := engine.Policy{
		GraceDays:         cfg.Business.GraceDays,
		DoubtfulAfterDays: cfg.Business.DoubtfulAfterDays,
	}

	statusEngine := engine.New(store, clock, policy, redisClient, logger)
	ledgerService := ledger.NewService(store, clock, cfg, redisClient, logger)

	ledgerHandler := handler.NewLedgerHandler(ledgerService, statusEngine)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	router := setupRoutes(ledgerHandler, healthHandler, logger)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(ledgerHandler *handler.LedgerHandler, healthHandler *handler.HealthHandler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans", ledgerHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}/schedule", ledgerHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/outstanding", ledgerHandler.GetOutstanding).Methods("GET")
	api.HandleFunc("/loans/{loanId}/settlement", ledgerHandler.Settle).Methods("POST")

	api.HandleFunc("/installments/{installmentId}/payments", ledgerHandler.ReceivePayment).Methods("POST")
	api.HandleFunc("/installments/{installmentId}/legal", ledgerHandler.MarkLegal).Methods("POST")

	api.HandleFunc("/cashboxes", ledgerHandler.CreateCashBox).Methods("POST")
	api.HandleFunc("/cashboxes/{cashBoxId}", ledgerHandler.GetCashBox).Methods("GET")
	api.HandleFunc("/cashboxes/{cashBoxId}/transactions", ledgerHandler.GetCashBoxTransactions).Methods("GET")

	api.HandleFunc("/transactions", ledgerHandler.CreateTransaction).Methods("POST")
	api.HandleFunc("/expenses", ledgerHandler.CreateExpense).Methods("POST")
	api.HandleFunc("/expense-categories", ledgerHandler.CreateExpenseCategory).Methods("POST")

	api.HandleFunc("/status-runs", ledgerHandler.RunStatusPass).Methods("POST")

	return router
}
