package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/quizcoletivo/go/internal/quiz/changefeed"
)

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: config.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Register services
	services.Game.RegisterRoutes(mux)
	services.Gateway.RegisterRoutes(mux)

	// Add health check endpoint
	setupHealthCheck(mux, services)

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              ":" + config.Server.Port,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type healthStatus struct {
	Healthy  bool   `json:"healthy"`
	Database string `json:"database"`
	NATS     string `json:"nats"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"clients"`
}

func checkHealth(ctx context.Context, services *Services) healthStatus {
	status := healthStatus{
		Healthy:  true,
		Database: "ok",
		NATS:     services.NATS.Status().String(),
		Sessions: services.Sessions.Len(),
		Clients:  services.Gateway.GetStats().TotalConnections,
	}
	if err := services.Pool.Ping(ctx); err != nil {
		status.Healthy = false
		status.Database = err.Error()
	}
	if services.NATS.Status() != nats.CONNECTED {
		status.Healthy = false
	}
	return status
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := checkHealth(ctx, services)

		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	if services.Relay != nil {
		mux.Handle("GET /health/relay", changefeed.NewHealthChecker(services.Relay, services.Changes, services.NATS, time.Minute))
	}
}
