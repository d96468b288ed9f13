package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deckbinder/deckbinder/internal/broadcast"
	"github.com/deckbinder/deckbinder/internal/config"
	"github.com/deckbinder/deckbinder/internal/database"
	"github.com/deckbinder/deckbinder/internal/database/repositories"
	"github.com/deckbinder/deckbinder/internal/logger"
	"github.com/deckbinder/deckbinder/internal/server"
	"github.com/deckbinder/deckbinder/internal/trade"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler("Deckbinder")
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting Deckbinder trade service",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := config.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	customHandler.SetLevel(cfg.Log.Level)
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		cancel()
		slog.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(-1)
	}
	if err := db.InitializeSchema(ctx); err != nil {
		cancel()
		slog.Error("Failed to initialize schema", slog.Any("error", err))
		os.Exit(-1)
	}
	cancel()
	slog.Info("Database ready",
		slog.String("type", "db"),
		slog.Duration("duration", time.Since(dbStartTime)))

	bunDB := db.BunDB()
	sessionRepo := repositories.NewSessionRepository(bunDB)
	inventoryRepo := repositories.NewInventoryRepository(bunDB)
	wishRepo := repositories.NewWishRepository(bunDB)
	cardRepo := repositories.NewCardRepository(bunDB)
	userRepo := repositories.NewUserRepository(bunDB)
	historyRepo := repositories.NewHistoryRepository(bunDB)
	notificationRepo := repositories.NewNotificationRepository(bunDB)

	var broadcaster broadcast.Broadcaster = broadcast.Noop{}
	var redisBroadcaster *broadcast.RedisBroadcaster
	if cfg.Redis.Addr != "" {
		redisBroadcaster, err = broadcast.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", slog.Any("error", err))
			os.Exit(-1)
		}
		broadcaster = redisBroadcaster
		slog.Info("Redis broadcaster connected", slog.String("addr", cfg.Redis.Addr))
	} else {
		slog.Warn("No redis address configured, session events will not be broadcast")
	}

	tradeService := trade.NewService(
		sessionRepo,
		inventoryRepo,
		wishRepo,
		cardRepo,
		userRepo,
		historyRepo,
		notificationRepo,
		broadcaster,
		cfg.Trade,
	)

	srv := server.New(cfg.Web, db, tradeService, userRepo, notificationRepo)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return srv.Listen()
	})

	group.Go(func() error {
		err := tradeService.RunExpirySweeper(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", slog.Any("error", err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("Service exited with error", slog.Any("error", err))
	}

	if redisBroadcaster != nil {
		if err := redisBroadcaster.Close(); err != nil {
			slog.Error("Failed to close redis connection", slog.Any("error", err))
		}
	}
	db.Close()

	slog.Info("Shutdown complete")
}
