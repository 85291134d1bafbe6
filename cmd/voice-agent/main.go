// main package for the voice-agent service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/voice-agent/internal/api"
	"github.com/book-expert/voice-agent/internal/config"
	"github.com/book-expert/voice-agent/internal/core"
	"github.com/book-expert/voice-agent/internal/engine"
	"github.com/book-expert/voice-agent/internal/model/kokoro"
	"github.com/book-expert/voice-agent/internal/model/zonos"
	"github.com/book-expert/voice-agent/internal/objectstore"
	"github.com/book-expert/voice-agent/internal/voicestore"
	"github.com/book-expert/voice-agent/internal/worker"
)

const (
	httpReadHeaderTimeout = 10 * time.Second
	httpShutdownTimeout   = 15 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "voice-agent.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// buildEngines constructs one engine per enabled backend, all sharing the
// same voice store.
func buildEngines(
	cfg *config.Config,
	store *voicestore.Store,
	log *logger.Logger,
) map[core.ModelType]core.Engine {
	engines := make(map[core.ModelType]core.Engine)

	if cfg.Kokoro.Enabled {
		client := kokoro.New(
			cfg.Kokoro.URL, time.Duration(cfg.Kokoro.TimeoutSeconds)*time.Second,
		)
		engines[core.ModelKokoro] = engine.NewKokoro(client, store, engine.KokoroOptions{
			LangCode:     cfg.Kokoro.LangCode,
			SplitPattern: cfg.Kokoro.SplitPattern,
		}, cfg.Paths.TempDir, log)
	}

	if cfg.Zonos.Enabled {
		client := zonos.New(
			cfg.Zonos.URL, time.Duration(cfg.Zonos.TimeoutSeconds)*time.Second,
		)
		engines[core.ModelZonos] = engine.NewZonos(client, store, engine.ZonosOptions{
			Language: cfg.Zonos.Language,
		}, cfg.Paths.TempDir, log)
	}

	return engines
}

// defaultModel picks the model requests fall back to when they omit the
// selector. Kokoro wins when both backends are enabled.
func defaultModel(engines map[core.ModelType]core.Engine) core.ModelType {
	if _, ok := engines[core.ModelKokoro]; ok {
		return core.ModelKokoro
	}

	return core.ModelZonos
}

// startWorker connects to NATS and runs the job worker until the context
// is cancelled.
func startWorker(
	ctx context.Context,
	cfg *config.Config,
	engines map[core.ModelType]core.Engine,
	log *logger.Logger,
) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.JobsSubject,
		store,
		engines,
		defaultModel(engines),
		cfg.Paths.TempDir,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS worker: %w", err)
	}

	log.System("Listening for jobs on subject: %s", cfg.NATS.JobsSubject)

	runErr := natsWorker.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker stopped: %w", runErr)
	}

	return nil
}

// startHTTPServer serves the API until the context is cancelled, then
// shuts down gracefully.
func startHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	engines map[core.ModelType]core.Engine,
	log *logger.Logger,
) error {
	handler := api.NewHandler(engines, defaultModel(engines), cfg.Paths.TempDir, log)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: httpReadHeaderTimeout,
	}

	serveErrChan := make(chan error, 1)

	go func() {
		log.System("HTTP API listening on port %s", cfg.Server.Port)
		serveErrChan <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErrChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown failed: %w", shutdownErr)
	}

	if err := <-serveErrChan; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	dirsErr := cfg.EnsureDirectories()
	if dirsErr != nil {
		return fmt.Errorf("failed to prepare directories: %w", dirsErr)
	}

	store, err := voicestore.New(cfg.Paths.VoicesDir, log)
	if err != nil {
		return fmt.Errorf("failed to open voice store: %w", err)
	}

	engines := buildEngines(cfg, store, log)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return startHTTPServer(groupCtx, cfg, engines, log)
	})

	if cfg.NATS.Enabled {
		group.Go(func() error {
			return startWorker(groupCtx, cfg, engines, log)
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		return waitErr
	}

	log.System("voice-agent shut down cleanly")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
