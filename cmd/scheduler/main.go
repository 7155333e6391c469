package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arvand/installment-engine/internal/calendar"
	"github.com/arvand/installment-engine/internal/config"
	"github.com/arvand/installment-engine/internal/engine"
	"github.com/arvand/installment-engine/internal/repository"
)

func main() {
	once := flag.Bool("once", false, "run a single recomputation pass and exit")
	asOf := flag.String("as-of", "", "evaluation date for a single pass, e.g. 1395/01/23")
	flag.Parse()

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

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	policy := engine.Policy{
		GraceDays:         cfg.Business.GraceDays,
		DoubtfulAfterDays: cfg.Business.DoubtfulAfterDays,
	}
	statusEngine := engine.New(repository.NewStore(db), engine.SystemClock{}, policy, redisClient, logger)

	if *once {
		runOnce(statusEngine, logger, *asOf)
		return
	}

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("Invalid scheduler timezone", zap.Error(err))
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))
	_, err = c.AddFunc(cfg.Scheduler.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		updated, err := statusEngine.Run(ctx, calendar.Date{})
		if err != nil {
			logger.Error("Daily status run failed", zap.Error(err))
			return
		}
		logger.Info("Daily status run finished", zap.Int("rows_updated", updated))
	})
	if err != nil {
		logger.Fatal("Failed to schedule status run", zap.Error(err))
	}

	c.Start()
	logger.Info("Scheduler started", zap.String("spec", cfg.Scheduler.Spec), zap.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	logger.Info("Scheduler stopped")
}

// runOnce executes a single pass, used for backfills and operator reruns.
func runOnce(statusEngine *engine.Engine, logger *zap.Logger, asOf string) {
	var date calendar.Date
	if asOf != "" {
		parsed, err := calendar.Parse(asOf)
		if err != nil {
			logger.Error("Invalid -as-of date", zap.String("as_of", asOf), zap.Error(err))
			os.Exit(1)
		}
		date = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	updated, err := statusEngine.Run(ctx, date)
	if err != nil {
		logger.Error("Status run failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Status run finished", zap.Int("rows_updated", updated))
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
