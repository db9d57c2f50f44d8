package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"research-rag/internal/web"
)

func serveCMD() *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := mustApp(ctx)
			defer func() {
				if err := a.Close(); err != nil {
					log.Error().Err(err).Msg("Close resources failed")
				}
			}()
			if addr != "" {
				a.Config.HTTP.Addr = addr
			}

			server := &http.Server{
				Addr:              a.Config.HTTP.Addr,
				Handler:           web.NewRouter(a),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				log.Info().Str("addr", server.Addr).Str("library", a.Config.Library.Name).Msg("Server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Server failed")
				}
			}()

			<-ctx.Done()
			log.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server shutdown failed")
			}
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return serve
}
