package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketledger/marketledger/internal/api"
	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/service"
	"github.com/marketledger/marketledger/internal/infrastructure/db/mongo"
	"github.com/marketledger/marketledger/internal/infrastructure/db/redis"
	"github.com/marketledger/marketledger/internal/infrastructure/queue"
	"github.com/marketledger/marketledger/internal/ledger"
	"github.com/marketledger/marketledger/internal/pkg/config"
	"github.com/marketledger/marketledger/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Durable stores ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		_ = rdb.Close()
	}()

	snapshots := mongo.NewSnapshotRepository(db)
	accounts := mongo.NewAccountRepository(db)
	if err := snapshots.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure snapshot indexes")
	}
	if err := accounts.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure account indexes")
	}

	// --- Notification fan-out ---
	auditSubscriber := queue.SubscriberFunc(func(_ context.Context, note domain.Notification) error {
		log.Debug().
			Int64("seq", note.Seq).
			Str("kind", string(note.Kind)).
			Int64("product_id", note.ProductID).
			Msg("notification delivered")
		return nil
	})
	dispatcher := queue.NewDispatcher(cfg.Policy.NotifyWorkers, log, auditSubscriber)
	dispatcher.Start(ctx)

	// --- Ledger boot ---
	led := ledger.New(log,
		ledger.WithJournal(snapshots),
		ledger.WithCommitHook(dispatcher.EnqueueBatch),
	)
	snap, err := snapshots.LoadSnapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ledger snapshot")
	}
	if err := led.Restore(snap); err != nil {
		log.Fatal().Err(err).Msg("failed to restore ledger snapshot")
	}
	log.Info().
		Int("products", len(snap.Products)).
		Int("grants", len(snap.Grants)).
		Msg("ledger restored")

	// --- Services ---
	accountService := service.NewAccountService(accounts, cfg.JWTSecret, 24*time.Hour)
	roleService := service.NewRoleService(led, log)
	catalogService := service.NewCatalogService(led, redis.NewReplayChecker(rdb), log)
	shippingService := service.NewShippingService(led, service.ArbitrationPolicy{
		RejectionIsDurable: cfg.Policy.RejectionDurable,
	}, log)

	e := api.NewRouter(api.Deps{
		Accounts:  accountService,
		Roles:     roleService,
		Catalog:   catalogService,
		Shipping:  shippingService,
		Outbox:    led,
		Checker:   led,
		Mongo:     db,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
		Logger:    log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("market ledger api listening")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
