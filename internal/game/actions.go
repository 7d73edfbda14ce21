package game

import (
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// TURN ACTIONS
// =============================================================================

func knownAction(action internal.ActionType) bool {
	switch action {
	case internal.ActionIncome, internal.ActionForeignAid, internal.ActionTax,
		internal.ActionCoup, internal.ActionSteal, internal.ActionAssassinate,
		internal.ActionExchange:
		return true
	}
	return false
}

// validateTurnLocked checks everything a turn owner's move needs before any
// state is touched.
func (m *Manager) validateTurnLocked(room *internal.Room, actor *internal.Player, action internal.ActionType, targetID string) error {
	if !knownAction(action) {
		return ErrUnknownAction
	}
	if room.Phase != internal.PhasePlaying {
		return ErrGameNotStarted
	}
	if room.Pending != nil {
		return ErrActionPending
	}
	if current := room.CurrentPlayer(); current == nil || current.Id != actor.Id {
		return ErrNotYourTurn
	}
	if actor.Coins >= internal.ForcedCoupThreshold && action != internal.ActionCoup {
		return ErrMustCoup
	}
	if actor.Coins < action.Cost() {
		return ErrInsufficientCoins
	}
	if action.Targeted() {
		target := room.GetPlayer(targetID)
		if target == nil || target.Id == actor.Id || !target.IsPlaying() {
			return ErrInvalidTarget
		}
	}
	return nil
}

// Declare opens the response window for a negotiable or targeted action.
// Instant actions are handed to PerformSimpleAction.
func (m *Manager) Declare(roomName, playerID string, action internal.ActionType, targetID string) error {
	if action.Instant() {
		return m.PerformSimpleAction(roomName, playerID, action, targetID)
	}

	return m.withRoom(roomName, playerID, "declare_action", func(room *internal.Room, actor *internal.Player) error {
		if err := m.validateTurnLocked(room, actor, action, targetID); err != nil {
			return err
		}
		if !action.Targeted() {
			targetID = ""
		}
		contest, ok := internal.NewContest(action, actor.Id, targetID, time.Time{})
		if !ok {
			return ErrUnknownAction
		}

		// Assassination is paid up front and never refunded.
		actor.Coins -= action.Cost()
		m.metrics.ActionsDeclared.WithLabelValues(string(action)).Inc()

		log.Info().
			Str("room", room.Name).
			Str("player", actor.Id).
			Str("action", string(action)).
			Str("target", targetID).
			Msg("[Declare] Action declared")
		m.notifyLocked(room, "%s", declarationText(room, actor, action, targetID))

		if len(room.Responders(actor.Id)) == 0 {
			m.commitLocked(room, contest)
		} else {
			m.openContestLocked(room, contest)
		}
		m.broadcastStateLocked(room)
		return nil
	})
}

// PerformSimpleAction applies income or coup at once.
func (m *Manager) PerformSimpleAction(roomName, playerID string, action internal.ActionType, targetID string) error {
	return m.withRoom(roomName, playerID, "perform_action", func(room *internal.Room, actor *internal.Player) error {
		if knownAction(action) && !action.Instant() {
			return ErrNotInstant
		}
		if err := m.validateTurnLocked(room, actor, action, targetID); err != nil {
			return err
		}

		m.metrics.ActionsDeclared.WithLabelValues(string(action)).Inc()
		log.Info().
			Str("room", room.Name).
			Str("player", actor.Id).
			Str("action", string(action)).
			Str("target", targetID).
			Msg("[PerformSimpleAction] Applied")

		switch action {
		case internal.ActionIncome:
			actor.Coins += internal.IncomeAmount
			m.notifyLocked(room, "%s takes income", actor.Username)
			m.endTurnLocked(room)

		case internal.ActionCoup:
			actor.Coins -= internal.CoupCost
			target := room.GetPlayer(targetID)
			m.notifyLocked(room, "%s launches a coup against %s", actor.Username, target.Username)
			m.routeLossLocked(room, target, internal.LossCause{
				Reason:   internal.LossCoup,
				Action:   internal.ActionCoup,
				SourceID: actor.Id,
			}, nil)
		}

		m.broadcastStateLocked(room)
		return nil
	})
}

// openContestLocked installs the contest and arms its response window.
// Caller must hold room.Mu.
func (m *Manager) openContestLocked(room *internal.Room, contest internal.Contest) {
	m.setPendingLocked(room, contest)
	deadline := m.armTimerLocked(room, internal.TimerResponse, m.cfg.ResponseWindow, func() {
		m.expireContestLocked(room, contest)
	})
	contest.SetDeadline(deadline)
}

// expireContestLocked applies the "nobody objected" outcome.
func (m *Manager) expireContestLocked(room *internal.Room, contest internal.Contest) {
	if room.Pending != internal.PendingAction(contest) {
		return
	}
	if b, ok := contest.(internal.Blockable); ok && b.Blocked() != nil {
		return
	}

	m.notifyLocked(room, "Nobody contested the %s", actionLabel(contest.Type()))
	m.commitLocked(room, contest)
	m.broadcastStateLocked(room)
}

// expireBlockLocked lets an unanswered block stand.
func (m *Manager) expireBlockLocked(room *internal.Room, b internal.Blockable) {
	if room.Pending != internal.PendingAction(b) || b.Blocked() == nil {
		return
	}

	m.notifyLocked(room, "The block by %s stands", nameOf(room, b.Blocked().BlockerID))
	m.endTurnLocked(room)
	m.broadcastStateLocked(room)
}

func declarationText(room *internal.Room, actor *internal.Player, action internal.ActionType, targetID string) string {
	if targetID != "" {
		return actor.Username + " declares " + actionLabel(action) + " against " + nameOf(room, targetID)
	}
	return actor.Username + " declares " + actionLabel(action)
}

func actionLabel(action internal.ActionType) string {
	switch action {
	case internal.ActionForeignAid:
		return "foreign aid"
	case internal.ActionExchangeChoice:
		return "exchange choice"
	case internal.ActionLossChoice:
		return "card loss"
	}
	return string(action)
}
