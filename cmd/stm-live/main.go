package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	stmlive "github.com/mtlrider/stm-live"
	"github.com/mtlrider/stm-live/config"
	"github.com/mtlrider/stm-live/directions"
	"github.com/mtlrider/stm-live/metrics"
	"github.com/mtlrider/stm-live/poll"
	"github.com/mtlrider/stm-live/stm"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := stmlive.NewLogger(cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting stm-live",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("vehicleFeedFormat", cfg.STM.VehicleFeedFormat),
	)

	collector := metrics.NewCollector()
	timeout := time.Duration(cfg.Poll.TimeoutSeconds) * time.Second

	tokens := stm.NewTokenSource(cfg.STM, timeout, log, collector)
	authority := stm.NewClient(cfg.STM, tokens, timeout, log, collector)
	routes := directions.NewClient(cfg.Directions, timeout, log, collector)

	interval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second
	sessions := poll.NewRegistry(authority, routes, interval, log, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := stmlive.NewServer(cfg, log, collector, routes, sessions)
	if err := server.Run(ctx); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
