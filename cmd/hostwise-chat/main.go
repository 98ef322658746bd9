// Command hostwise-chat is a terminal client for the HostWise assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/adapter/api"
	"github.com/hostwise/assistant/internal/auth"
	"github.com/hostwise/assistant/internal/config"
	"github.com/hostwise/assistant/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	apiURL := flag.String("api-url", cfg.APIURL, "HostWise API base URL")
	token := flag.String("token", cfg.APIToken, "Bearer token")
	devUser := flag.String("dev-user", "", "Mint a dev server token for this user id (uses dev.jwt_secret)")
	flag.Parse()

	logger, err := log.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	bearer := *token
	if *devUser != "" {
		bearer, err = auth.NewJWTManager(cfg.Dev.JWTSecret, 24*time.Hour).GenerateToken(*devUser)
		if err != nil {
			logger.Fatal("failed to mint dev token", zap.Error(err))
		}
	}

	client := api.NewClient(*apiURL, auth.StaticToken(bearer), cfg.RequestTimeout)

	navigator := purchaseNavigator(os.Stdout)
	r := newREPL(client, navigator, os.Stdin, os.Stdout, cfg.Location(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.run(ctx); err != nil {
		logger.Error("chat session ended with error", zap.Error(err))
		os.Exit(1)
	}
}
