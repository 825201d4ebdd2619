package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"partyline/internal/config"
	"partyline/internal/engine"
	"partyline/internal/games/angryvirus"
	"partyline/internal/games/emperor"
	"partyline/internal/games/fructose"
	"partyline/internal/games/ghostdice"
	"partyline/internal/games/neondraft"
	"partyline/internal/games/protocol"
	"partyline/internal/handlers"
	"partyline/internal/store"
)

func main() {
	// Load server configuration
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg)
	log.Info().
		Str("host", cfg.Server.Host).
		Str("port", cfg.Server.Port).
		Int("maxPlayersPerRoom", cfg.Server.MaxPlayersPerRoom).
		Msg("configuration loaded")

	// Wire the room engine and register every game
	e := engine.New(store.NewMemoryStore(), engine.NewBus(), log)
	e.SetCodeAttempts(cfg.Server.RoomCodeAttempts)
	e.SetMaxPlayers(cfg.Server.MaxPlayersPerRoom)
	e.Register(angryvirus.Rules{})
	e.Register(emperor.Rules{})
	e.Register(fructose.Rules{})
	e.Register(ghostdice.Rules{})
	e.Register(neondraft.Rules{})
	e.Register(protocol.Rules{})
	log.Info().Strs("games", e.Games()).Msg("game catalog registered")

	h := handlers.New(e, cfg, log)
	router := handlers.SetupRouter(h, cfg, nil)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout, // 0 for SSE support
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server gracefully stopped")
}

// newLogger builds the process logger from config: json for shipping to
// an aggregator, console for local development.
func newLogger(cfg *config.ServerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Server.LogFormat == "json" {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return log.Level(level).With().Timestamp().Logger()
}
