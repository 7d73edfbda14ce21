package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HelloWorldHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms", s.ListRoomsHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/games/recent", s.RecentGamesHandler).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws", s.sockets.HandleWebSocket)

	return r
}

// CORS middleware. Shares the origin policy with the websocket upgrader.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := s.cfg.OriginAllowed(origin)
		switch {
		case s.cfg.AllowsAnyOrigin():
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed && origin != "":
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Upgrades carry their own origin check
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status": "up",
		"rooms":  len(s.manager.ListRooms()),
	}
	status := http.StatusOK
	if s.db != nil {
		dbStats := s.db.Health(r.Context())
		health["database"] = dbStats
		if dbStats["status"] != "up" {
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, health)
}

func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	respond(w, http.StatusOK, startTime, s.manager.ListRooms())
}

func (s *Server) RecentGamesHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	if s.db == nil {
		respond(w, http.StatusServiceUnavailable, startTime, "game history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond(w, http.StatusBadRequest, startTime, "limit must be a positive integer")
			return
		}
		limit = n
	}

	games, err := s.db.RecentGames(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("[RecentGamesHandler] Failed to load games")
		respond(w, http.StatusInternalServerError, startTime, "could not load games")
		return
	}
	respond(w, http.StatusOK, startTime, games)
}

// respond wraps data in internal.Response with request timings.
func respond(w http.ResponseWriter, status int, startTime int64, data any) {
	endTime := time.Now().UnixMilli()
	writeJSON(w, status, internal.Response{
		StatusCode:    status,
		RespStartTime: startTime,
		RespEndTime:   endTime,
		NetRespTime:   endTime - startTime,
		Data:          data,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("[writeJSON] Error encoding response")
	}
}
