// Command hostwise-devapi runs a local stand-in for the HostWise chat API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/assistant"
	"github.com/hostwise/assistant/internal/auth"
	"github.com/hostwise/assistant/internal/config"
	"github.com/hostwise/assistant/internal/devserver"
	"github.com/hostwise/assistant/internal/log"
	"github.com/hostwise/assistant/internal/policy"
	"github.com/hostwise/assistant/internal/repository"
)

func main() {
	devUser := flag.String("user", "host-dev", "User id to print a bearer token for")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting dev api",
		zap.Int("port", cfg.Dev.Port),
		zap.String("database", cfg.Dev.DatabaseURL),
		zap.Int("monthly_limit", cfg.Dev.MonthlyLimit))

	db, err := repository.NewSQLiteStore(cfg.Dev.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	tokens := auth.NewJWTManager(cfg.Dev.JWTSecret, 24*time.Hour)
	token, err := tokens.GenerateToken(*devUser)
	if err != nil {
		logger.Fatal("failed to mint dev token", zap.Error(err))
	}
	logger.Info("dev bearer token", zap.String("user_id", *devUser), zap.String("token", token))

	h := devserver.NewHandler(db, policyEngine, tokens, assistant.NewCannedResponder(), devserver.Options{
		MonthlyLimit: cfg.Dev.MonthlyLimit,
		CheckoutURL:  cfg.Dev.CheckoutURL,
	}, logger)
	server := devserver.NewEcho(h)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Dev.Port)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("dev api started", zap.Int("port", cfg.Dev.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down dev api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown server gracefully", zap.Error(err))
	}

	logger.Info("dev api stopped")
}
