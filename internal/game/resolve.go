package game

import (
	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// RESOLUTION
// =============================================================================
// Helpers in this file expect the caller to hold room.Mu.

func (m *Manager) setPendingLocked(room *internal.Room, pending internal.PendingAction) {
	if room.Pending != nil {
		log.Error().
			Str("room", room.Name).
			Str("old", string(room.Pending.Type())).
			Str("new", string(pending.Type())).
			Msg("[setPending] Replacing an action that was never cleared")
	}
	m.disarmTimerLocked(room)
	room.Pending = pending
}

// clearPendingLocked drops the pending action together with its timer.
func (m *Manager) clearPendingLocked(room *internal.Room) {
	m.disarmTimerLocked(room)
	room.Pending = nil
}

// endTurnLocked closes whatever is pending and passes the turn.
func (m *Manager) endTurnLocked(room *internal.Room) {
	m.clearPendingLocked(room)
	if room.Phase != internal.PhasePlaying {
		return
	}
	room.AdvanceTurn()
	if current := room.CurrentPlayer(); current != nil {
		log.Debug().Str("room", room.Name).Str("player", current.Id).Int("turn", room.Turns).Msg("[endTurn] Turn passed")
	}
}

// commitLocked applies the uncontested outcome of an action.
func (m *Manager) commitLocked(room *internal.Room, contest internal.Contest) {
	m.clearPendingLocked(room)
	actor := room.GetPlayer(contest.ActorID())
	if actor == nil {
		m.endTurnLocked(room)
		return
	}
	m.continueLocked(room, m.proceedLocked(room, contest, actor))
}

// proceedLocked applies the immediate effect of an action that goes
// through. Effects that need another player's input come back as a follow-up.
func (m *Manager) proceedLocked(room *internal.Room, contest internal.Contest, actor *internal.Player) *internal.FollowUp {
	switch c := contest.(type) {
	case *internal.ForeignAidAction:
		actor.Coins += internal.ForeignAidAmount
		m.notifyLocked(room, "%s collects foreign aid", actor.Username)
	case *internal.TaxAction:
		actor.Coins += internal.TaxAmount
		m.notifyLocked(room, "%s collects tax", actor.Username)
	case *internal.StealAction:
		m.stealLocked(room, actor, c.Target)
	case *internal.ExchangeAction:
		return &internal.FollowUp{Action: internal.ActionExchange, ActorID: actor.Id}
	case *internal.AssassinateAction:
		return &internal.FollowUp{Action: internal.ActionAssassinate, ActorID: actor.Id, TargetID: c.Target}
	}
	return nil
}

func (m *Manager) stealLocked(room *internal.Room, actor *internal.Player, targetID string) {
	target := room.GetPlayer(targetID)
	if target == nil {
		return
	}
	amount := min(internal.StealAmount, target.Coins)
	target.Coins -= amount
	actor.Coins += amount
	m.notifyLocked(room, "%s steals %d coins from %s", actor.Username, amount, target.Username)
}

// continueLocked runs what is left of a turn: the follow-up if there is one
// and its subject is still in the game, otherwise the turn ends.
func (m *Manager) continueLocked(room *internal.Room, then *internal.FollowUp) {
	if room.Phase != internal.PhasePlaying {
		return
	}
	if then == nil {
		m.endTurnLocked(room)
		return
	}

	switch then.Action {
	case internal.ActionAssassinate:
		target := room.GetPlayer(then.TargetID)
		if target == nil || !target.IsPlaying() {
			m.endTurnLocked(room)
			return
		}
		m.notifyLocked(room, "The assassination of %s goes through", target.Username)
		m.routeLossLocked(room, target, internal.LossCause{
			Reason:   internal.LossAssassination,
			Action:   internal.ActionAssassinate,
			SourceID: then.ActorID,
		}, nil)

	case internal.ActionExchange:
		actor := room.GetPlayer(then.ActorID)
		if actor == nil || !actor.IsPlaying() {
			m.endTurnLocked(room)
			return
		}
		m.openExchangeChoiceLocked(room, actor)

	default:
		m.endTurnLocked(room)
	}
}

// proveLocked checks whether the accused holds one of roles. A proven card
// goes back into the deck, the deck is reshuffled and a replacement drawn.
func (m *Manager) proveLocked(room *internal.Room, accused *internal.Player, roles ...internal.Role) bool {
	role, ok := accused.HasRole(roles...)
	if !ok {
		return false
	}
	accused.TakeRole(role)
	room.Deck.ReturnAndReshuffle(role)
	accused.Hand = append(accused.Hand, room.Deck.Draw(1)...)
	return true
}

// routeLossLocked makes p give up a card. With a single card the loss is
// immediate and the turn continues; otherwise a loss choice is opened and
// the follow-up waits for it.
func (m *Manager) routeLossLocked(room *internal.Room, p *internal.Player, cause internal.LossCause, then *internal.FollowUp) {
	if len(p.Hand) > 1 {
		m.clearPendingLocked(room)
		m.setPendingLocked(room, &internal.LossChoice{Player: p.Id, Cause: cause, Then: then})
		m.notifyLocked(room, "%s must choose a card to lose", p.Username)
		return
	}

	m.clearPendingLocked(room)
	if len(p.Hand) == 1 {
		m.discardLocked(room, p, p.Hand[0])
	}
	m.continueLocked(room, then)
}

// discardLocked reveals role and eliminates the player if it was their last card.
func (m *Manager) discardLocked(room *internal.Room, p *internal.Player, role internal.Role) {
	p.Reveal(role)
	m.notifyLocked(room, "%s loses their %s", p.Username, role)
	if len(p.Hand) == 0 {
		m.eliminateLocked(room, p)
	}
}

// eliminateLocked marks the player out and removes them from the table in
// one step, repairing the turn cursor, then checks for a winner.
func (m *Manager) eliminateLocked(room *internal.Room, p *internal.Player) {
	idx := room.IndexOf(p.Id)
	if idx < 0 {
		return
	}
	p.Status = internal.StatusOut
	room.RemovePlayerAt(idx)
	room.Eliminated = append(room.Eliminated, p)

	log.Info().Str("room", room.Name).Str("player", p.Id).Msg("[eliminate] Player is out")
	m.notifyLocked(room, "%s is out of the game", p.Username)
	m.checkVictoryLocked(room)
}

func (m *Manager) openExchangeChoiceLocked(room *internal.Room, actor *internal.Player) {
	drawn := room.Deck.Draw(internal.ExchangeDrawCount)
	m.clearPendingLocked(room)
	m.setPendingLocked(room, internal.NewExchangeChoice(actor, drawn))
	m.notifyLocked(room, "%s draws %d cards to exchange", actor.Username, len(drawn))
}

// ChooseLossCard settles a loss choice with the role the player gives up.
func (m *Manager) ChooseLossCard(roomName, playerID string, role internal.Role) error {
	return m.withRoom(roomName, playerID, "choose_loss_card", func(room *internal.Room, p *internal.Player) error {
		if room.Phase != internal.PhasePlaying {
			return ErrGameNotStarted
		}
		choice, ok := room.Pending.(*internal.LossChoice)
		if !ok {
			return ErrNoPendingAction
		}
		if choice.Player != p.Id {
			return ErrNotAuthorized
		}
		if _, held := p.HasRole(role); !held {
			return ErrInvalidRole
		}

		m.clearPendingLocked(room)
		m.discardLocked(room, p, role)
		m.continueLocked(room, choice.Then)
		m.broadcastStateLocked(room)
		return nil
	})
}

// ChooseExchangeReturn finishes an exchange. roles are the cards going back
// to the deck; their count must equal the number drawn, so the player keeps
// as many cards as they held.
func (m *Manager) ChooseExchangeReturn(roomName, playerID string, roles []internal.Role) error {
	return m.withRoom(roomName, playerID, "choose_exchange_return", func(room *internal.Room, p *internal.Player) error {
		if room.Phase != internal.PhasePlaying {
			return ErrGameNotStarted
		}
		choice, ok := room.Pending.(*internal.ExchangeChoice)
		if !ok {
			return ErrNoPendingAction
		}
		if choice.Actor != p.Id {
			return ErrNotAuthorized
		}
		if len(roles) != len(choice.Drawn) {
			return ErrInvalidExchange
		}
		kept, ok := withoutRoles(choice.Pool(), roles)
		if !ok {
			return ErrInvalidExchange
		}

		// The drawn cards leave the pending action and land in hand or deck
		// within the same step.
		room.Pending = nil
		p.Hand = kept
		room.Deck.ReturnAndReshuffle(roles...)

		m.notifyLocked(room, "%s completes the exchange", p.Username)
		m.endTurnLocked(room)
		m.broadcastStateLocked(room)
		return nil
	})
}

// withoutRoles removes one occurrence of every role in remove from pool.
func withoutRoles(pool, remove []internal.Role) ([]internal.Role, bool) {
	rest := append([]internal.Role{}, pool...)
	for _, r := range remove {
		idx := -1
		for i, candidate := range rest {
			if candidate == r {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		rest = append(rest[:idx], rest[idx+1:]...)
	}
	return rest, true
}
