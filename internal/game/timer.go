package game

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

// armTimerLocked replaces the room's timer with a new single-shot one and
// returns its deadline. onExpire runs with the room lock held, and only if
// this timer is still the room's timer when it fires.
// Caller must hold room.Mu.
func (m *Manager) armTimerLocked(room *internal.Room, kind internal.TimerKind, duration time.Duration, onExpire func()) time.Time {
	m.disarmTimerLocked(room)

	ctx, cancel := context.WithTimeout(room.Context, duration)
	room.Timer = &internal.GameTimer{
		Kind:      kind,
		StartTime: m.now(),
		Duration:  duration,
		Context:   ctx,
		Cancel:    cancel,
	}
	log.Debug().
		Str("room", room.Name).
		Str("kind", string(kind)).
		Dur("duration", duration).
		Msg("[armTimer] Timer armed")

	go m.awaitTimer(room, ctx, kind, onExpire)
	return room.Timer.ExpiresAt()
}

func (m *Manager) awaitTimer(room *internal.Room, ctx context.Context, kind internal.TimerKind, onExpire func()) {
	<-ctx.Done()
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// Cancelled before expiry
		return
	}

	room.Mu.Lock()
	before := room.Phase
	fired := m.fireLocked(room, ctx, kind, onExpire)
	phaseChanged := room.Phase != before
	room.Mu.Unlock()

	if fired && phaseChanged {
		m.publishRoomList()
	}
}

// fireLocked runs onExpire if ctx still belongs to the room's live timer.
// Caller must hold room.Mu.
func (m *Manager) fireLocked(room *internal.Room, ctx context.Context, kind internal.TimerKind, onExpire func()) bool {
	active := !room.Closed && room.Timer != nil && room.Timer.Context == ctx
	m.metrics.TimerExpirations.WithLabelValues(string(kind), strconv.FormatBool(!active)).Inc()
	if !active {
		log.Debug().Str("room", room.Name).Str("kind", string(kind)).Msg("[awaitTimer] Stale timer ignored")
		return false
	}

	room.Timer.Cancel()
	room.Timer = nil
	log.Info().Str("room", room.Name).Str("kind", string(kind)).Msg("[awaitTimer] Timer expired")
	onExpire()
	return true
}

// disarmTimerLocked stops the room timer, if any.
// Caller must hold room.Mu.
func (m *Manager) disarmTimerLocked(room *internal.Room) {
	if room.Timer == nil {
		return
	}
	if room.Timer.Cancel != nil {
		room.Timer.Cancel()
	}
	log.Debug().Str("room", room.Name).Str("kind", string(room.Timer.Kind)).Msg("[disarmTimer] Timer cancelled")
	room.Timer = nil
}
