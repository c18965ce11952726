// Command bot plays one seat of a Vegas game against a relay server. Its
// session is checkpointed so a restarted bot rejoins the same seat.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"vegas-server/internal/client"
	"vegas-server/internal/config"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "bot:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadBot(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store client.SessionStore = client.NewMemoryStore(cfg.SessionTTL)
	if cfg.RedisURL != "" {
		redisStore, err := client.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL, logger)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		store = redisStore
	}

	recovery := client.NewRecovery(store, cfg.PlayerName, logger)
	if cfg.Timeout > 0 {
		recovery.Timeout = cfg.Timeout
	}

	bot := client.NewBot(cfg.ServerURL, client.BotOptions{
		Name:   cfg.PlayerName,
		RoomID: cfg.RoomID,
		Token:  cfg.Token,
		OnRoom: func(roomID, _ string) {
			fmt.Fprintf(os.Stderr, "room code: %s\n", roomID)
		},
	}, recovery, logger)
	return bot.Run(ctx)
}
