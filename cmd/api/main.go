package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/txledger/internal/api/handlers"
	"github.com/dvloznov/txledger/internal/api/middleware"
	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/config"
	"github.com/dvloznov/txledger/internal/export"
	"github.com/dvloznov/txledger/internal/idregistry"
	"github.com/dvloznov/txledger/internal/jobs/inmemory"
	"github.com/dvloznov/txledger/internal/logger"
	"github.com/dvloznov/txledger/internal/service"
	"github.com/dvloznov/txledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.HTTP.Port, "HTTP server port")
	level := flag.String("log-level", cfg.Logging.Level, "log level (debug|info|warn|error)")
	flag.Parse()

	log, err := logger.NewWithLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	// Core components
	ids := idregistry.New(cfg.Store.IDStart)
	st := store.New(store.Options{LockTimeout: cfg.Store.LockTimeout}, log)
	svc := service.New(ids, st, log).WithMaxPageSize(cfg.HTTP.MaxPageSize)

	// Background exports read the store in-process
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.QueueOptions{
		BufferSize:   cfg.Export.QueueSize,
		Workers:      cfg.Export.Workers,
		MaxRetries:   cfg.Export.MaxRetries,
		RetryBackoff: cfg.Export.RetryBackoff,
	}, jobStore, log)

	openSink := func(ctx context.Context, dest string) (export.Sink, error) {
		return export.Open(ctx, dest, export.OpenOptions{CreateTable: true})
	}
	exportOpts := export.DefaultOptions()
	exportOpts.PageSize = cfg.HTTP.MaxPageSize
	exportHandler := export.JobHandler(export.ServiceLister{Pager: svc}, openSink, exportOpts, log)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if err := queue.Start(workerCtx, exportHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start export workers")
	}

	transactionsHandler := handlers.NewTransactionsHandler(svc, cfg.HTTP.DefaultPageSize, log)
	exportsHandler := handlers.NewExportsHandler(queue, jobStore, log)

	// Create router
	mux := http.NewServeMux()
	transactionsHandler.Register(mux)
	exportsHandler.Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			handlers.Health(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, apperr.Argument.Code(), "Method not allowed")
		}
	})

	// Apply middleware
	handler := middleware.Chain(log, mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", *port).
			Dur("lock_timeout", cfg.Store.LockTimeout).
			Int64("id_start", cfg.Store.IDStart).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Let running exports finish within the same deadline
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Export workers did not stop in time")
		stopWorkers()
	}

	log.Info().Int("records", st.Len()).Msg("Server exited")
}
