package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ggiovanne/coup/internal/config"
	"github.com/ggiovanne/coup/internal/database"
	"github.com/ggiovanne/coup/internal/game"
	"github.com/ggiovanne/coup/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Server struct {
	cfg      config.Config
	db       database.Service
	registry *prometheus.Registry
	hub      *game.Hub
	manager  *game.Manager
	sockets  *game.SocketHandler
}

// New assembles the room manager and its transport. db may be nil, in which
// case game history is disabled.
func New(cfg config.Config, db database.Service) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mt := metrics.New(registry)
	hub := game.NewHub(mt)

	opts := []game.Option{game.WithMetrics(mt)}
	if db != nil {
		opts = append(opts, game.WithHistory(db))
	}
	manager := game.NewManager(game.Config{
		ResponseWindow:    cfg.ResponseWindow,
		StartCountdown:    cfg.StartCountdown,
		MaxPlayersPerRoom: cfg.MaxPlayersPerRoom,
	}, hub, opts...)

	return &Server{
		cfg:      cfg,
		db:       db,
		registry: registry,
		hub:      hub,
		manager:  manager,
		sockets:  game.NewSocketHandler(manager, hub, cfg.MessageRate, cfg.MessageBurst, cfg.OriginAllowed),
	}
}

// HTTP returns the listener configuration for the server.
func (s *Server) HTTP() *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
	}
}

// Close stops every room and releases the database.
func (s *Server) Close() {
	s.manager.Shutdown()
	if s.db != nil {
		s.db.Close()
	}
}
