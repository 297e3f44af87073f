package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkernan/questboard/internal/db"
	"github.com/mkernan/questboard/internal/notify"
	"github.com/mkernan/questboard/internal/server"
	"github.com/mkernan/questboard/internal/sweep"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Questboard API server",
		Long:  "Launches the JSON API, the deadline sweep and the notification sinks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dispatcher, err := notify.FromConfig(cfg.Notify, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Sweep.Schedule != "" {
		sweeper, err := sweep.New(gormDB, dispatcher, cfg.Sweep.Schedule, log)
		if err != nil {
			return err
		}
		sweeper.Start(ctx)
		log.WithField("schedule", cfg.Sweep.Schedule).Info("deadline sweep scheduled")
	}

	return server.Start(ctx, server.StartOpts{
		DB:         gormDB,
		Port:       port,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		Dispatcher: dispatcher,
		Log:        log,
	})
}
