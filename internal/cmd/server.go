package main

import (
	"fmt"
	"net/http"

	"github.com/mcdev12/cardsync/internal/gateway"
	"github.com/mcdev12/cardsync/internal/room"
	"github.com/rs/cors"
)

func newServer(config *Config, roomCfg room.Config, wsHandler *gateway.WebSocketHandler) *http.Server {
	mux := http.NewServeMux()

	wsHandler.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Clients read the win threshold and countdown here instead of
	// hardcoding them.
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"winThreshold":%d,"countdownStart":%d}`,
			roomCfg.WinThreshold, roomCfg.CountdownStart)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    ":" + config.Server.Port,
		Handler: c.Handler(mux),
	}
}
