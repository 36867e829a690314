package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/caesar-terminal/synthbook/internal/bootstrap"
	"github.com/caesar-terminal/synthbook/internal/config"
	"github.com/caesar-terminal/synthbook/internal/rpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "", "config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := bootstrap.SetupLogging(cfg.Log, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire adapters")
	}
	defer rt.Close()
	rt.Start(ctx)

	srv, err := rpc.New(cfg.RPC.SocketPath, rt.Service)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rpc server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	log.Info().Str("env", cfg.Env).Str("socket", srv.Addr()).Msg("synthrpc ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("synthrpc shutting down")
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		srv.Shutdown(stopCtx)
		stop()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("rpc server error")
			rt.Close()
			os.Exit(1)
		}
	}

	log.Info().Msg("synthrpc stopped")
}
