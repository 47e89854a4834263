// Package main provides the mnemonic worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/mnemonic/internal/config"
	"github.com/thebtf/mnemonic/internal/domain"
	"github.com/thebtf/mnemonic/internal/watcher"
	"github.com/thebtf/mnemonic/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Worker port (default: from settings)")
	settingsPath := flag.String("config", "", "Settings file path (default: ~/.mnemonic/settings.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}

	path := *settingsPath
	if path == "" {
		path = config.SettingsPath()
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *port != 0 {
		cfg.WorkerPort = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down worker")
		cancel()
	}()

	service := domain.NewService()
	if !service.Initialize(cfg.Categories) {
		log.Fatal().Msg("Failed to initialize memory engine")
	}
	defer service.Shutdown()

	startSettingsWatcher(path, service)

	server := worker.NewServer(service, cfg.WorkerPort)
	log.Info().Int("port", cfg.WorkerPort).Str("version", Version).Msg("Starting mnemonic worker")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}

// startSettingsWatcher reloads the error categories when the settings file
// changes. The categorizer replaces its pattern set atomically, so in-flight
// lookups are unaffected.
func startSettingsWatcher(path string, service *domain.Service) {
	w, err := watcher.New(path, func() {
		cfg, err := config.LoadFrom(path)
		if err != nil {
			log.Warn().Err(err).Msg("Settings changed but failed to load, keeping previous categories")
			return
		}
		service.Engine().Initialize(cfg.Categories)
		log.Info().Int("categories", len(cfg.Categories)).Msg("Reloaded error categories")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
		return
	}
	log.Info().Str("path", path).Msg("Settings file watcher started")
}
