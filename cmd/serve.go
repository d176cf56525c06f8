package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srvHandler := server.New(env.Searcher, env.Enricher, env.Pipe, env.Search, env.Enrich)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srvHandler.Router(),
		}

		// Periodic sweep keeps expired cache entries from accumulating
		// between opportunistic evictions.
		sweepEvery := time.Duration(cfg.Cache.SweepIntervalMins) * time.Minute
		go func() {
			ticker := time.NewTicker(sweepEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n, err := env.Search.Sweep(ctx); err != nil {
						zap.L().Warn("search cache sweep failed", zap.Error(err))
					} else if n > 0 {
						zap.L().Info("search cache sweep", zap.Int("removed", n))
					}
					if n, err := env.Enrich.Sweep(ctx); err != nil {
						zap.L().Warn("enrichment cache sweep failed", zap.Error(err))
					} else if n > 0 {
						zap.L().Info("enrichment cache sweep", zap.Int("removed", n))
					}
				}
			}
		}()

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
