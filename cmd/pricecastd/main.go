// Command pricecastd serves forecasts for the price histories in a data
// directory at GET /predictions/:coin.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/FlavioCFOliveira/pricecast/internal/config"
	"github.com/FlavioCFOliveira/pricecast/internal/logger"
	"github.com/FlavioCFOliveira/pricecast/internal/server"
	"github.com/FlavioCFOliveira/pricecast/internal/storage"
)

func main() {
	fs := pflag.NewFlagSet("pricecastd", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfgPath, _ := fs.GetString("config")
	cfg, err := config.Load(cfgPath, fs)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pricecastd: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init("pricecastd", cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	profile, err := cfg.Profile()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid forecast profile")
	}

	var archive server.Archive
	if cfg.Storage.Driver != "" {
		st, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open archive")
		}
		defer st.Close()
		archive = st
	}

	srv := server.New(server.Options{
		DataDir:  cfg.Server.DataDir,
		CacheDir: cfg.Output.CacheDir,
		Profile:  profile,
		Seed:     cfg.Seed,
	}, archive, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("profile", profile.Name).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
			return
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
