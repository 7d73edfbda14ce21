package game

import (
	"context"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

const recordTimeout = 5 * time.Second

// checkVictoryLocked finishes the game once at most one player is still
// playing. The turn counter and the table are frozen from then on.
func (m *Manager) checkVictoryLocked(room *internal.Room) bool {
	if room.Phase != internal.PhasePlaying {
		return room.Phase == internal.PhaseFinished
	}
	playing := room.PlayingPlayers()
	if len(playing) > 1 {
		return false
	}

	m.clearPendingLocked(room)
	room.Phase = internal.PhaseFinished

	if len(playing) == 0 {
		log.Info().Str("room", room.Name).Msg("[checkVictory] Game ended with nobody left")
		m.notifyLocked(room, "The game ends with no winner")
		return true
	}

	winner := playing[0]
	room.WinnerID = winner.Id
	m.metrics.GamesFinished.Inc()
	log.Info().
		Str("room", room.Name).
		Str("player", winner.Id).
		Int("turns", room.Turns).
		Msg("[checkVictory] Game won")
	m.notifyLocked(room, "%s wins the game!", winner.Username)
	m.recordGameLocked(room, winner)
	return true
}

// recordGameLocked hands the result to the history store without holding
// up the room. Failures are only logged.
func (m *Manager) recordGameLocked(room *internal.Room, winner *internal.Player) {
	if m.history == nil {
		return
	}

	rec := internal.GameRecord{
		RoomName:        room.Name,
		WinnerID:        winner.Id,
		WinnerName:      winner.Username,
		PlayerNames:     make([]string, 0, len(room.Players)+len(room.Eliminated)),
		EliminatedNames: make([]string, 0, len(room.Eliminated)),
		Turns:           room.Turns,
		StartedAt:       room.StartedAt,
		FinishedAt:      m.now(),
	}
	for _, p := range room.Members() {
		if p.Status != internal.StatusWaiting {
			rec.PlayerNames = append(rec.PlayerNames, p.Username)
		}
	}
	for _, p := range room.Eliminated {
		rec.EliminatedNames = append(rec.EliminatedNames, p.Username)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.history.RecordGame(ctx, rec); err != nil {
			log.Error().Err(err).Str("room", rec.RoomName).Msg("[recordGame] Failed to store game result")
		}
	}()
}
