package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/ggiovanne/coup/internal/database/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Service is the game history store.
type Service interface {
	// Health returns a map of health status information.
	Health(ctx context.Context) map[string]string

	RecordGame(ctx context.Context, rec internal.GameRecord) error
	RecentGames(ctx context.Context, limit int) ([]internal.GameRecord, error)

	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New migrates the database at connString and opens a pool on it.
func New(ctx context.Context, connString string) (Service, error) {
	if err := migrations.Migrate(connString); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &service{pool: pool}, nil
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		log.Warn().Err(err).Msg("[Health] Database unreachable")
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["total_connections"] = fmt.Sprint(poolStats.TotalConns())
	stats["idle_connections"] = fmt.Sprint(poolStats.IdleConns())
	stats["acquired_connections"] = fmt.Sprint(poolStats.AcquiredConns())
	return stats
}

func (s *service) RecordGame(ctx context.Context, rec internal.GameRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO games (room_name, winner_id, winner_name, player_names, eliminated_names, turns, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RoomName, rec.WinnerID, rec.WinnerName,
		nonNil(rec.PlayerNames), nonNil(rec.EliminatedNames),
		rec.Turns, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

// RecentGames lists finished games, newest first. limit is clamped to
// [1, 100] and defaults to 20.
func (s *service) RecentGames(ctx context.Context, limit int) ([]internal.GameRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	limit = min(limit, maxRecentLimit)

	rows, err := s.pool.Query(ctx, `
		SELECT id, room_name, winner_id, winner_name, player_names, eliminated_names, turns, started_at, finished_at
		FROM games
		ORDER BY finished_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	games := make([]internal.GameRecord, 0, limit)
	for rows.Next() {
		var rec internal.GameRecord
		if err := rows.Scan(
			&rec.ID, &rec.RoomName, &rec.WinnerID, &rec.WinnerName,
			&rec.PlayerNames, &rec.EliminatedNames, &rec.Turns,
			&rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

func (s *service) Close() {
	log.Info().Msg("[Close] Disconnecting from database")
	s.pool.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
