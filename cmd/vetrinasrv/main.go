package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/eventbus"
	"github.com/vetrina/vetrina/internal/common/logtrace"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/server"
)

const shutdownTimeout = 10 * time.Second

type cmdoptions struct {
	configFile  *string
	applySchema *bool
}

func main() {
	opt := parseFlags()

	if err := config.LoadConfig(*opt.configFile); err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config file %s: %v\n", *opt.configFile, err)
		os.Exit(1)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel, cfg.PrettyLog)
	slog := log.With().Str("state", "init").Logger()
	slog.Info().Str("config_file", *opt.configFile).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Init(ctx, db.OptionsFromConfig(cfg.DB)); err != nil {
		slog.Error().Err(err).Msg("unable to connect to database")
		os.Exit(1)
	}
	defer db.Shutdown()
	if *opt.applySchema {
		if err := db.ApplySchema(ctx); err != nil {
			slog.Error().Err(err).Msg("unable to apply schema")
			os.Exit(1)
		}
		slog.Info().Msg("schema applied")
	}

	bus := eventbus.New()
	defer bus.Shutdown()
	s, err := server.CreateNewServer(bus)
	if err != nil {
		slog.Error().Err(err).Msg("unable to create server")
		os.Exit(1)
	}
	s.MountHandlers()

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// websocket channels are hijacked and not tracked by Shutdown; closing the bus ends them
		bus.Shutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.ServerPort).Msg("vetrina server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the config file")
	opt.applySchema = flag.Bool("apply-schema", true, "Create missing tables on startup")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
