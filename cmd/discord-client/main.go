package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/api"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/client"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/logger"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/tokenstore"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// the terminal belongs to the UI, so logs always go to a file
	logCfg := cfg.Logging
	if logCfg.File == "" {
		logCfg.File = filepath.Join(filepath.Dir(cfg.Client.TokenPath), "client.log")
	}
	out, closeLog, err := logger.Open(&logCfg)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.New(logCfg.Level, logCfg.Format, out)

	store, closeStore, err := tokenstore.Open(&cfg.Client, log)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer closeStore()

	log.Info().
		Str("gateway", cfg.Client.GatewayURL).
		Str("token_store", cfg.Client.TokenStore).
		Msg("Starting Discord bot client")

	gateway := api.NewClient(cfg.Client.GatewayURL, store, cfg.Discord.Timeout)
	orch := client.New(gateway, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, orch, log)
}
