package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-scheduler/pkg/messaging/redis"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect relayed appointment events",
	}

	var patterns []string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events as the worker publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			broker, err := redis.NewRedisBroker(ctx, redis.Config{
				URL:          cfg.Redis.URL,
				MaxRetries:   cfg.Redis.MaxRetries,
				RetryBackoff: cfg.Redis.RetryBackoff,
			}, log.Logger)
			if err != nil {
				return err
			}
			defer broker.Close()

			messages, err := broker.Subscribe(ctx, patterns...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for msg := range messages {
				fmt.Fprintf(out, "%s %s\n", msg.Channel, msg.Payload)
			}
			return nil
		},
	}
	tailCmd.Flags().StringSliceVar(&patterns, "pattern", []string{"appointment.*"}, "channel patterns to subscribe to")

	cmd.AddCommand(tailCmd)
	return cmd
}
