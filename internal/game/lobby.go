package game

import (
	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// GAME FLOW - LOBBY & INITIALIZATION
// =============================================================================

// StartGame deals a new game. Only the host can start, from the lobby, with
// enough seated players. With a start countdown configured the room goes
// through the starting phase first.
func (m *Manager) StartGame(roomName, playerID string) error {
	return m.withRoom(roomName, playerID, "start_game", func(room *internal.Room, p *internal.Player) error {
		if room.HostID != p.Id {
			return ErrNotHost
		}
		if room.Phase != internal.PhaseLobby {
			return ErrGameInProgress
		}
		if len(room.Players) < m.cfg.MinPlayersToStart {
			return ErrTooFewPlayers
		}

		if m.cfg.StartCountdown > 0 {
			room.Phase = internal.PhaseStarting
			m.armTimerLocked(room, internal.TimerCountdown, m.cfg.StartCountdown, func() {
				m.finishCountdownLocked(room)
			})
			log.Info().
				Str("room", room.Name).
				Dur("countdown", m.cfg.StartCountdown).
				Msg("[StartGame] Countdown started")
			m.notifyLocked(room, "The game starts in %s", m.cfg.StartCountdown)
		} else {
			m.beginGameLocked(room)
		}

		m.broadcastStateLocked(room)
		return nil
	})
}

func (m *Manager) finishCountdownLocked(room *internal.Room) {
	if room.Phase != internal.PhaseStarting {
		return
	}
	if len(room.Players) < m.cfg.MinPlayersToStart {
		room.Phase = internal.PhaseLobby
		m.notifyLocked(room, "Not enough players to start")
	} else {
		m.beginGameLocked(room)
	}
	m.broadcastStateLocked(room)
}

// beginGameLocked builds the deck, deals every seated player in and picks a
// random opening player.
func (m *Manager) beginGameLocked(room *internal.Room) {
	m.disarmTimerLocked(room)

	room.Deck = internal.NewDeck(len(room.Players), room.Rand)
	room.Discards = nil
	room.Pending = nil
	room.WinnerID = ""
	room.Turns = 0
	for _, p := range room.Players {
		p.Status = internal.StatusPlaying
		p.Coins = internal.StartingCoins
		p.Revealed = make([]internal.Role, 0)
		p.Hand = room.Deck.Draw(internal.HandSize)
	}
	room.SetTurn(room.Rand.Intn(len(room.Players)))
	room.Phase = internal.PhasePlaying
	room.StartedAt = m.now()

	first := room.CurrentPlayer()
	log.Info().
		Str("room", room.Name).
		Int("players", len(room.Players)).
		Int("deck", room.Deck.Len()).
		Str("first", first.Id).
		Msg("[beginGame] Game started")
	m.notifyLocked(room, "The game begins, %s plays first", first.Username)
}

// ReopenRoom brings a finished room back to the lobby with everyone seated
// again. Reopening a lobby is a no-op.
func (m *Manager) ReopenRoom(roomName, playerID string) error {
	return m.withRoom(roomName, playerID, "reopen_room", func(room *internal.Room, p *internal.Player) error {
		switch room.Phase {
		case internal.PhaseLobby:
			return nil
		case internal.PhaseStarting, internal.PhasePlaying:
			return ErrGameInProgress
		}

		m.disarmTimerLocked(room)
		room.ResetToLobby()
		log.Info().Str("room", room.Name).Str("player", p.Id).Msg("[ReopenRoom] Room back in lobby")
		m.notifyLocked(room, "%s reopened the room", p.Username)
		m.broadcastStateLocked(room)
		return nil
	})
}
