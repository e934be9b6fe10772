package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
	"rfpquote/internal/httpapi"
	"rfpquote/internal/pricing"
	"rfpquote/internal/refresh"
	"rfpquote/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := config.SetupLogger(cfg)

	must(os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755))
	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	holder := catalog.NewHolder(nil)
	sync := catalog.NewSyncService(db, holder, cfg)
	must(bootstrap(sync, cfg, logger))

	calc, err := pricing.NewCalculatorFromConfig(cfg)
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	refresher := refresh.NewService(sync, cfg)
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("refresh stopped")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.NewServer(cfg, db, sync, calc, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Dur("refresh", refresher.Interval()).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	must(srv.Shutdown(shutdownCtx))
}

// bootstrap publishes the stored reference snapshot, importing DATA_DIR when
// storage is still empty.
func bootstrap(sync *catalog.SyncService, cfg config.Config, logger zerolog.Logger) error {
	changed, err := sync.Reload()
	if err == nil {
		logger.Info().Bool("changed", changed).Msg("reference loaded from storage")
		return nil
	}
	if !errors.Is(err, catalog.ErrNoStoredReference) {
		return err
	}
	ref, err := sync.ImportDir(cfg.DataDir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", cfg.DataDir).Msg("no reference data; catalog endpoints will return 503")
		return nil
	}
	logger.Info().Int("products", ref.Index().Len()).Msg("reference imported from data dir")
	return nil
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
