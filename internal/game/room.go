package game

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ggiovanne/coup/internal"
	"github.com/ggiovanne/coup/internal/utils"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// ROOM MANAGEMENT
// =============================================================================

const (
	defaultUsername = "Player"
	roomNameLength  = 6
)

func (m *Manager) newRoom(name, passwordHash string, host *internal.Player) *internal.Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &internal.Room{
		Name:         name,
		PasswordHash: passwordHash,
		HostID:       host.Id,
		Players:      []*internal.Player{host},
		Eliminated:   make([]*internal.Player, 0),
		Phase:        internal.PhaseLobby,
		CreatedAt:    m.now(),
		Rand:         m.newRand(),
		Context:      ctx,
		Cancel:       cancel,
	}
}

// CreateRoom opens a new lobby with the caller as host. An empty name gets a
// generated one.
func (m *Manager) CreateRoom(playerID, username, roomName, password string) (string, error) {
	const intent = "create_room"
	roomName = utils.CleanName(roomName, utils.GenerateID(roomNameLength))

	if m.RoomOf(playerID) != "" {
		return "", m.reject(intent, roomName, playerID, ErrAlreadyInRoom)
	}

	hash := ""
	if password != "" {
		var err error
		if hash, err = m.hasher.Hash(password); err != nil {
			return "", fmt.Errorf("hash room password: %w", err)
		}
	}

	host := internal.NewPlayer(playerID, utils.CleanName(username, defaultUsername))

	m.mu.Lock()
	if _, ok := m.members[playerID]; ok {
		m.mu.Unlock()
		return "", m.reject(intent, roomName, playerID, ErrAlreadyInRoom)
	}
	if _, exists := m.rooms[roomName]; exists {
		m.mu.Unlock()
		return "", m.reject(intent, roomName, playerID, ErrRoomExists)
	}
	room := m.newRoom(roomName, hash, host)
	m.rooms[roomName] = room
	m.members[playerID] = roomName
	m.mu.Unlock()

	m.metrics.RoomsActive.Inc()
	log.Info().
		Str("room", roomName).
		Str("player", playerID).
		Bool("password", hash != "").
		Msg("[CreateRoom] Room created")

	room.Mu.Lock()
	m.publisher.Publish(playerID, internal.Message[internal.RoomJoinedData]{
		Type: internal.MsgRoomJoined,
		Data: internal.RoomJoinedData{RoomName: roomName, PlayerID: playerID, IsHost: true},
	})
	m.broadcastStateLocked(room)
	room.Mu.Unlock()

	m.publishRoomList()
	return roomName, nil
}

// JoinRoom seats the caller in an existing room. Players joining a running
// game sit as waiting and are dealt in on the next one.
func (m *Manager) JoinRoom(playerID, username, roomName, password string) error {
	const intent = "join_room"

	if m.RoomOf(playerID) != "" {
		return m.reject(intent, roomName, playerID, ErrAlreadyInRoom)
	}
	room, err := m.lookup(roomName)
	if err != nil {
		return m.reject(intent, roomName, playerID, err)
	}

	// The hash check is slow on purpose, keep it off the room lock.
	room.Mu.RLock()
	hash := room.PasswordHash
	room.Mu.RUnlock()
	if hash != "" {
		ok, err := m.hasher.Compare(hash, password)
		if err != nil {
			return fmt.Errorf("compare room password: %w", err)
		}
		if !ok {
			return m.reject(intent, roomName, playerID, ErrWrongPassword)
		}
	}

	room.Mu.Lock()
	if room.Closed {
		room.Mu.Unlock()
		return m.reject(intent, roomName, playerID, ErrRoomNotFound)
	}
	if room.MemberCount() >= m.cfg.MaxPlayersPerRoom {
		room.Mu.Unlock()
		return m.reject(intent, roomName, playerID, ErrRoomFull)
	}

	player := internal.NewPlayer(playerID, utils.CleanName(username, defaultUsername))
	room.Players = append(room.Players, player)
	m.setMembership(playerID, roomName)

	log.Info().
		Str("room", roomName).
		Str("player", playerID).
		Int("members", room.MemberCount()).
		Msg("[JoinRoom] Player joined")

	m.publisher.Publish(playerID, internal.Message[internal.RoomJoinedData]{
		Type: internal.MsgRoomJoined,
		Data: internal.RoomJoinedData{RoomName: roomName, PlayerID: playerID},
	})
	m.notifyLocked(room, "%s joined the room", player.Username)
	m.broadcastStateLocked(room)
	room.Mu.Unlock()

	m.publishRoomList()
	return nil
}

// ListRooms summarises every open room, sorted by name.
func (m *Manager) ListRooms() []internal.RoomSummary {
	m.mu.RLock()
	rooms := make([]*internal.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	summaries := make([]internal.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.Mu.RLock()
		if !room.Closed {
			summaries = append(summaries, room.Summary())
		}
		room.Mu.RUnlock()
	}
	slices.SortFunc(summaries, func(a, b internal.RoomSummary) int {
		return strings.Compare(a.Name, b.Name)
	})
	return summaries
}

// LeaveRoom takes the caller out of their room.
func (m *Manager) LeaveRoom(playerID string) error {
	roomName := m.RoomOf(playerID)
	if roomName == "" {
		return m.reject("leave_room", roomName, playerID, ErrNotInRoom)
	}
	if err := m.removeMember(roomName, playerID); err != nil {
		return m.reject("leave_room", roomName, playerID, err)
	}

	m.publisher.Publish(playerID, internal.Message[internal.NotifyData]{
		Type: internal.MsgRoomLeft,
		Data: internal.NotifyData{Message: "You left " + roomName},
	})
	return nil
}

// RemovePlayerOnDisconnect is LeaveRoom for a connection that is gone.
func (m *Manager) RemovePlayerOnDisconnect(playerID string) {
	roomName := m.RoomOf(playerID)
	if roomName == "" {
		return
	}
	if err := m.removeMember(roomName, playerID); err != nil {
		log.Warn().Err(err).Str("room", roomName).Str("player", playerID).Msg("[RemovePlayerOnDisconnect] Cleanup failed")
		return
	}
	log.Info().Str("room", roomName).Str("player", playerID).Msg("[RemovePlayerOnDisconnect] Player removed")
}

func (m *Manager) removeMember(roomName, playerID string) error {
	room, err := m.lookup(roomName)
	if err != nil {
		m.clearMembership(playerID)
		return err
	}

	room.Mu.Lock()
	p := room.GetMember(playerID)
	if p == nil || room.Closed {
		room.Mu.Unlock()
		m.clearMembership(playerID)
		return ErrNotInRoom
	}
	empty := m.removeMemberLocked(room, p)
	if empty {
		m.closeRoomLocked(room)
	}
	room.Mu.Unlock()

	m.clearMembership(playerID)
	if empty {
		m.deleteRoom(room)
	}
	m.publishRoomList()
	return nil
}

// removeMemberLocked takes p off the table and repairs whatever the game
// needed them for. It reports whether the room is now empty.
func (m *Manager) removeMemberLocked(room *internal.Room, p *internal.Player) bool {
	switch room.Phase {
	case internal.PhasePlaying:
		m.leaveRunningGameLocked(room, p)
	case internal.PhaseStarting:
		room.RemovePlayerAt(room.IndexOf(p.Id))
		if len(room.Players) < m.cfg.MinPlayersToStart {
			m.disarmTimerLocked(room)
			room.Phase = internal.PhaseLobby
			m.notifyLocked(room, "Not enough players left, the countdown was cancelled")
		}
	default:
		if room.RemovePlayerAt(room.IndexOf(p.Id)) == nil {
			room.RemoveEliminated(p.Id)
		}
	}

	if room.MemberCount() == 0 {
		log.Info().Str("room", room.Name).Msg("[removeMember] Room is empty")
		return true
	}

	if room.HostID == p.Id {
		room.HostID = room.Members()[0].Id
		m.notifyLocked(room, "%s is now the host", nameOf(room, room.HostID))
	}
	m.notifyLocked(room, "%s left the room", p.Username)
	m.broadcastStateLocked(room)
	return false
}

// leaveRunningGameLocked removes p mid-game. Their cards leave play, an
// action that involved them ends the turn, and an open consent set stops
// waiting for them. A loss the leaver owed is moot, so whatever it was
// holding up resumes; a loss owed to the leaver's action is still taken.
func (m *Manager) leaveRunningGameLocked(room *internal.Room, p *internal.Player) {
	idx := room.IndexOf(p.Id)
	wasOwner := idx >= 0 && idx == room.TurnIndex && p.IsPlaying()

	room.Deck.ReturnAndReshuffle(p.Hand...)
	room.Discards = append(room.Discards, p.Revealed...)
	p.Hand = nil
	p.Revealed = make([]internal.Role, 0)

	var resume *internal.FollowUp
	involved := room.Pending != nil && room.Pending.Involves(p.Id)
	switch pending := room.Pending.(type) {
	case *internal.LossChoice:
		if !involved {
			break
		}
		if pending.Player != p.Id {
			pending.Then = nil
			involved = false
			break
		}
		resume = pending.Then
		m.clearPendingLocked(room)
	case *internal.ExchangeChoice:
		if involved {
			room.Deck.ReturnAndReshuffle(pending.Drawn...)
			pending.Drawn = nil
			m.clearPendingLocked(room)
		}
	case internal.OpenContest:
		if involved {
			m.clearPendingLocked(room)
		} else {
			pending.Forget(p.Id)
		}
	default:
		if involved {
			m.clearPendingLocked(room)
		}
	}

	p.Status = internal.StatusOut
	if idx >= 0 {
		room.RemovePlayerAt(idx)
	} else {
		room.RemoveEliminated(p.Id)
	}

	if m.checkVictoryLocked(room) {
		return
	}

	// A pending choice that did not involve the leaver still resolves, and
	// the vacated turn passes once it does.
	if involved || (wasOwner && room.Pending == nil) {
		m.continueLocked(room, resume)
		return
	}
	if open, ok := room.Pending.(internal.OpenContest); ok && m.everyonePermittedLocked(room, open) {
		if b, blockable := open.(internal.Blockable); !blockable || b.Blocked() == nil {
			m.notifyLocked(room, "Everyone left allows the %s", actionLabel(open.Type()))
			m.commitLocked(room, open)
		}
	}
}

// closeRoomLocked stops the room for good. Any timer still in flight sees
// Closed and backs off.
func (m *Manager) closeRoomLocked(room *internal.Room) {
	if room.Closed {
		return
	}
	room.Closed = true
	m.disarmTimerLocked(room)
	if room.Cancel != nil {
		room.Cancel()
	}
}

func (m *Manager) deleteRoom(room *internal.Room) {
	m.mu.Lock()
	current, ok := m.rooms[room.Name]
	if ok && current == room {
		delete(m.rooms, room.Name)
	}
	m.mu.Unlock()

	if ok && current == room {
		m.metrics.RoomsActive.Dec()
		log.Info().Str("room", room.Name).Msg("[deleteRoom] Room removed from registry")
	}
}
