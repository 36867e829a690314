package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/caesar-terminal/synthbook/internal/api"
	"github.com/caesar-terminal/synthbook/internal/bootstrap"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.Start(ctx)

			srvCfg := api.DefaultServerConfig()
			srvCfg.Addr = cfg.HTTP.Addr
			if cfg.HTTP.ReadTimeout > 0 {
				srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
			}
			if cfg.HTTP.WriteTimeout > 0 {
				srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
			}
			if cfg.HTTP.RequestTimeout > 0 {
				srvCfg.RequestTimeout = cfg.HTTP.RequestTimeout
			}

			log.Info().Str("env", cfg.Env).Str("addr", srvCfg.Addr).Msg("synthbook starting")

			srv := api.NewServer(srvCfg, rt.Service, rt.Registry, rt.Metrics)
			if err := srv.ListenAndServe(ctx); err != nil {
				return err
			}
			log.Info().Msg("synthbook stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
