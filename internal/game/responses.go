package game

import (
	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// RESPONSES TO A PENDING ACTION
// =============================================================================

// currentContest returns the pending action if it is still in its response window.
func currentContest(room *internal.Room) (internal.Contest, error) {
	if room.Phase != internal.PhasePlaying {
		return nil, ErrGameNotStarted
	}
	contest, ok := room.Pending.(internal.Contest)
	if !ok {
		return nil, ErrNoPendingAction
	}
	return contest, nil
}

// Permit records a non-objection. The action commits early once every
// eligible responder has permitted; for targeted actions that is the target.
// Permitting twice is a no-op.
func (m *Manager) Permit(roomName, playerID string) error {
	return m.withRoom(roomName, playerID, "permit_action", func(room *internal.Room, p *internal.Player) error {
		contest, err := currentContest(room)
		if err != nil {
			return err
		}
		if p.Id == contest.ActorID() || !p.IsPlaying() {
			return ErrNotAuthorized
		}
		if b, ok := contest.(internal.Blockable); ok && b.Blocked() != nil {
			return ErrActionBlocked
		}

		switch c := contest.(type) {
		case internal.TargetedContest:
			if c.TargetID() != p.Id {
				return ErrNotAuthorized
			}
			m.notifyLocked(room, "%s allows the %s", p.Username, actionLabel(c.Type()))
			m.commitLocked(room, c)

		case internal.OpenContest:
			if !c.Permit(p.Id) {
				return nil
			}
			if !m.everyonePermittedLocked(room, c) {
				break
			}
			m.notifyLocked(room, "Everyone allows the %s", actionLabel(c.Type()))
			m.commitLocked(room, c)

		default:
			return ErrNoPendingAction
		}

		m.broadcastStateLocked(room)
		return nil
	})
}

func (m *Manager) everyonePermittedLocked(room *internal.Room, c internal.OpenContest) bool {
	for _, responder := range room.Responders(c.ActorID()) {
		if !c.HasPermitted(responder.Id) {
			return false
		}
	}
	return true
}

// Block records a counter-claim. Foreign aid can be blocked by anyone
// claiming duke; steal and assassinate only by their target. Only a steal
// block may leave the role empty, as a generic claim proven on challenge
// with captain or ambassador.
func (m *Manager) Block(roomName, playerID string, role internal.Role) error {
	return m.withRoom(roomName, playerID, "block_action", func(room *internal.Room, p *internal.Player) error {
		contest, err := currentContest(room)
		if err != nil {
			return err
		}
		b, ok := contest.(internal.Blockable)
		if !ok {
			return ErrNotBlockable
		}
		if b.Blocked() != nil {
			return ErrAlreadyBlocked
		}
		if p.Id == b.ActorID() || !p.IsPlaying() {
			return ErrNotAuthorized
		}
		if t, ok := contest.(internal.TargetedContest); ok && t.TargetID() != p.Id {
			return ErrNotAuthorized
		}
		claimed, err := blockRole(b, role)
		if err != nil {
			return err
		}

		b.SetBlock(internal.BlockClaim{BlockerID: p.Id, Role: claimed})
		deadline := m.armTimerLocked(room, internal.TimerBlock, m.cfg.ResponseWindow, func() {
			m.expireBlockLocked(room, b)
		})
		b.SetDeadline(deadline)

		log.Info().
			Str("room", room.Name).
			Str("player", p.Id).
			Str("role", string(claimed)).
			Msgf("[Block] %s blocked", b.Type())
		if claimed == "" {
			m.notifyLocked(room, "%s blocks the %s", p.Username, actionLabel(b.Type()))
		} else {
			m.notifyLocked(room, "%s blocks the %s claiming %s", p.Username, actionLabel(b.Type()), claimed)
		}
		m.broadcastStateLocked(room)
		return nil
	})
}

func blockRole(b internal.Blockable, role internal.Role) (internal.Role, error) {
	allowed := b.BlockRoles()
	if role == "" {
		if b.Type() == internal.ActionSteal {
			return "", nil
		}
		return "", ErrInvalidRole
	}
	for _, r := range allowed {
		if r == role {
			return role, nil
		}
	}
	return "", ErrInvalidRole
}

// ChallengeAction disputes the role the actor claimed.
func (m *Manager) ChallengeAction(roomName, playerID string) error {
	return m.withRoom(roomName, playerID, "challenge_action", func(room *internal.Room, challenger *internal.Player) error {
		contest, err := currentContest(room)
		if err != nil {
			return err
		}
		if contest.Claim() == "" {
			return ErrNotChallengeable
		}
		if b, ok := contest.(internal.Blockable); ok && b.Blocked() != nil {
			return ErrActionBlocked
		}
		if challenger.Id == contest.ActorID() || !challenger.IsPlaying() {
			return ErrNotAuthorized
		}

		actor := room.GetPlayer(contest.ActorID())
		m.clearPendingLocked(room)
		m.notifyLocked(room, "%s challenges %s's %s", challenger.Username, actor.Username, contest.Claim())

		if m.proveLocked(room, actor, contest.Claim()) {
			m.metrics.Challenges.WithLabelValues("action", "proven").Inc()
			m.notifyLocked(room, "%s shows a %s and swaps it for a new card", actor.Username, contest.Claim())
			then := m.proceedLocked(room, contest, actor)
			m.routeLossLocked(room, challenger, internal.LossCause{
				Reason:   internal.LossWrongChallenge,
				Action:   contest.Type(),
				SourceID: actor.Id,
			}, then)
		} else {
			m.metrics.Challenges.WithLabelValues("action", "bluff").Inc()
			m.notifyLocked(room, "%s was bluffing, the %s fails", actor.Username, actionLabel(contest.Type()))
			m.routeLossLocked(room, actor, internal.LossCause{
				Reason:   internal.LossCaughtBluffing,
				Action:   contest.Type(),
				SourceID: challenger.Id,
			}, nil)
		}

		m.broadcastStateLocked(room)
		return nil
	})
}

// ChallengeBlock lets the actor dispute the blocker's claim.
func (m *Manager) ChallengeBlock(roomName, playerID string) error {
	return m.withRoom(roomName, playerID, "challenge_block", func(room *internal.Room, actor *internal.Player) error {
		contest, err := currentContest(room)
		if err != nil {
			return err
		}
		b, ok := contest.(internal.Blockable)
		if !ok || b.Blocked() == nil {
			return ErrNotBlocked
		}
		if actor.Id != b.ActorID() {
			return ErrNotAuthorized
		}

		claim := *b.Blocked()
		blocker := room.GetPlayer(claim.BlockerID)
		roles := []internal.Role{claim.Role}
		if claim.Role == "" {
			roles = b.BlockRoles()
		}

		m.clearPendingLocked(room)
		m.notifyLocked(room, "%s challenges the block by %s", actor.Username, blocker.Username)

		if m.proveLocked(room, blocker, roles...) {
			m.metrics.Challenges.WithLabelValues("block", "proven").Inc()
			m.notifyLocked(room, "%s proves the block, the %s fails", blocker.Username, actionLabel(b.Type()))
			m.routeLossLocked(room, actor, internal.LossCause{
				Reason:   internal.LossWrongChallenge,
				Action:   b.Type(),
				SourceID: blocker.Id,
			}, nil)
		} else {
			m.metrics.Challenges.WithLabelValues("block", "bluff").Inc()
			m.notifyLocked(room, "%s was bluffing, the %s goes through", blocker.Username, actionLabel(b.Type()))
			then := m.proceedLocked(room, b, actor)
			m.routeLossLocked(room, blocker, internal.LossCause{
				Reason:   internal.LossCaughtBluffing,
				Action:   b.Type(),
				SourceID: actor.Id,
			}, then)
		}

		m.broadcastStateLocked(room)
		return nil
	})
}

// Cancel withdraws the actor's own action, typically to accept a block.
// Coins already paid stay spent.
func (m *Manager) Cancel(roomName, playerID string) error {
	return m.withRoom(roomName, playerID, "cancel_action", func(room *internal.Room, p *internal.Player) error {
		if room.Phase != internal.PhasePlaying || room.Pending == nil {
			return ErrNoPendingAction
		}
		contest, ok := room.Pending.(internal.Contest)
		if !ok {
			return ErrNotCancellable
		}
		if p.Id != contest.ActorID() {
			return ErrNotAuthorized
		}

		m.notifyLocked(room, "%s cancels the %s", p.Username, actionLabel(contest.Type()))
		m.endTurnLocked(room)
		m.broadcastStateLocked(room)
		return nil
	})
}
