package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/docuchat/docqa/config"
	"github.com/docuchat/docqa/enrich"
	"github.com/docuchat/docqa/llm"
	"github.com/docuchat/docqa/qa"
	"github.com/docuchat/docqa/server"
	"github.com/docuchat/docqa/source/chunker"
	"github.com/docuchat/docqa/store"
	"github.com/docuchat/docqa/watcher"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		watchDir   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document Q&A HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, watchDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Directory of documents to watch and ingest")

	return cmd
}

func runServe(configPath, watchDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if watchDir != "" {
		cfg.Watch.Dir = watchDir
		if err := cfg.Watch.Validate(); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	logger := slog.Default()

	metrics := enrich.NewMetrics()
	enricher, err := enrich.NewEnricher(cfg.Enrich, enrich.NewCache(), enrich.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create enricher: %w", err)
	}

	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}
	st := store.New(enricher, ch, logger)

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	engine := qa.NewEngine(st, client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{
		server.WithMetricsHandler(metrics.Handler()),
		server.WithIngestTimeout(cfg.Server.IngestTimeout),
		server.WithAskTimeout(cfg.Server.AskTimeout),
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(appName))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Close()
		opts = append(opts, server.WithPublisher(server.NewPublisher(nc, cfg.NATS.SubjectPrefix, logger)))
		logger.Info("Publishing ingest events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	srv := server.New(st, engine, opts...)

	if cfg.Watch.Dir != "" {
		w, err := watcher.New(cfg.Watch, logger)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer w.Stop()

		ing := watcher.NewIngester(st, logger)
		if err := ing.SeedDirectory(ctx, w, cfg.Watch.Dir); err != nil {
			return fmt.Errorf("seed documents: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		go ing.Run(ctx, w.Events())
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
