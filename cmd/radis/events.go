package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/radiology-api/internal/notify"
	"github.com/jwalitptl/radiology-api/pkg/messaging/redis"
)

func eventsCmd(configPath *string) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow import events published on Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEvents(ctx, cmd, *configPath, channel)
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel to follow (default: redis.channel)")
	return cmd
}

func runEvents(ctx context.Context, cmd *cobra.Command, configPath, channel string) error {
	cfg, l, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is not configured")
	}
	if channel == "" {
		channel = cfg.Redis.Channel
	}

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     1,
	}, l)
	if err != nil {
		return err
	}
	defer broker.Close()

	messages, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	l.Info().Str("channel", channel).Msg("following import events")

	enc := json.NewEncoder(cmd.OutOrStdout())
	for data := range messages {
		ev, err := notify.DecodeEvent(data)
		if err != nil {
			l.Warn().Err(err).Msg("skipping message")
			continue
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}
