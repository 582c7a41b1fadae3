package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/api"
	"github.com/ajitpratap0/openclaw-ladder/internal/ingest"
	"github.com/ajitpratap0/openclaw-ladder/internal/watcher"
)

func serveCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		Long: `Loads the entry store into memory and serves it over HTTP. With --watch (or
watch.enabled) the content directory is ingested at startup and again whenever
a content file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			c, st, err := loadCorpus(ctx, logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = st.Close() }()

			idx, err := openIndex(logger)
			if err != nil {
				return fmt.Errorf("serve: opening search index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			// Durable store first so the corpus never holds an entry SQLite refused.
			pipeline := newPipeline(logger, st, c)

			srv := api.NewServer(c, pipeline, idx, logger, api.Options{
				AuthToken:   cfg.API.AuthToken,
				SearchLimit: cfg.Search.DefaultLimit,
				Fuzzy:       cfg.Search.Fuzzy,
			})

			if watch || cfg.Watch.Enabled {
				w, watchErr := startWatcher(ctx, pipeline, srv, logger)
				if watchErr != nil {
					return fmt.Errorf("serve: %w", watchErr)
				}
				if w != nil {
					defer w.Stop()
				}
			}

			if err := srv.Refresh(ctx); err != nil {
				return fmt.Errorf("serve: building search index: %w", err)
			}

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set OPENCLAW_LADDER_API_AUTH_TOKEN or api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr, "entries", c.Len())
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "ingest content.dir now and on every change")
	return cmd
}

// startWatcher ingests the content directory once and then re-ingests changed
// files. A missing content directory is logged and skipped.
func startWatcher(ctx context.Context, pipeline *ingest.Pipeline, srv *api.Server, logger *slog.Logger) (*watcher.Watcher, error) {
	dir := cfg.Content.Dir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Warn("watch: content dir not found, not watching", "dir", dir)
		return nil, nil
	}

	reingest := func(paths []string) {
		report, err := pipeline.Run(ctx, paths)
		if err != nil {
			logger.Error("watch: ingest failed", "error", err)
			return
		}
		logger.Info("watch: ingest finished", "run_id", report.RunID, "files", len(paths),
			"admitted", len(report.Admitted), "problems", len(report.Problems))
		if len(report.Admitted) == 0 {
			return
		}
		if err := srv.Refresh(ctx); err != nil {
			logger.Error("watch: refreshing search index", "error", err)
		}
	}

	reingest([]string{dir})

	w := watcher.New([]string{dir}, newLoader(logger).Accepts,
		time.Duration(cfg.Watch.DebounceMS)*time.Millisecond, reingest, logger)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting watcher: %w", err)
	}
	return w, nil
}
