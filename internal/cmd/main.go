package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cardsync/internal/chat"
	"github.com/mcdev12/cardsync/internal/gateway"
	"github.com/mcdev12/cardsync/internal/room"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Chat history is best-effort: without a database the session still runs,
	// it just neither persists nor replays chat.
	var store room.MessageStore
	pool, err := pgxpool.New(ctx, config.databaseDSN())
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		log.Warn().Err(err).Msg("chat history store unavailable, continuing without persistence")
	} else {
		defer pool.Close()
		store = chat.NewRepository(pool)
		log.Info().Str("database", config.Database.Name).Msg("connected to chat history store")
	}

	roomCfg := room.DefaultConfig()
	roomCfg.WinThreshold = config.Game.WinThreshold
	roomCfg.CountdownStart = config.Game.CountdownStart
	roomCfg.CountdownInterval = time.Duration(config.Game.CountdownIntervalSeconds) * time.Second
	roomCfg.HistoryLimit = config.Game.HistoryLimit

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	gameRoom := room.New(roomCfg, connectionManager, store, clockwork.NewRealClock())
	wsHandler := gateway.NewWebSocketHandler(connectionManager, gameRoom)

	server := newServer(config, roomCfg, wsHandler)

	log.Info().
		Str("port", config.Server.Port).
		Int("win_threshold", roomCfg.WinThreshold).
		Int("countdown_start", roomCfg.CountdownStart).
		Msg("starting card game server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return connectionManager.Start(ctx)
	})
	g.Go(func() error {
		return gameRoom.Run(ctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
