package game

import (
	"fmt"

	"github.com/ggiovanne/coup/internal"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// ROOM BROADCASTS
// =============================================================================
// Everything here runs under the room lock so observers see transitions in
// exactly the order they were applied. Publishers only enqueue.

// broadcastStateLocked sends every member their own redacted snapshot.
func (m *Manager) broadcastStateLocked(room *internal.Room) {
	members := room.Members()
	for _, member := range members {
		m.publisher.Publish(member.Id, internal.Message[internal.RoomSnapshot]{
			Type: internal.MsgGameStateUpdate,
			Data: room.SnapshotFor(member.Id),
		})
	}
	log.Debug().
		Str("room", room.Name).
		Int("members", len(members)).
		Str("phase", string(room.Phase)).
		Msg("[Broadcast] State sent")
}

// notifyLocked sends a human readable line to every member.
func (m *Manager) notifyLocked(room *internal.Room, format string, args ...any) {
	msg := internal.Message[internal.NotifyData]{
		Type: internal.MsgNotify,
		Data: internal.NotifyData{Message: fmt.Sprintf(format, args...)},
	}
	for _, member := range room.Members() {
		m.publisher.Publish(member.Id, msg)
	}
}

func (m *Manager) publishRoomList() {
	m.publisher.PublishAll(internal.Message[[]internal.RoomSummary]{
		Type: internal.MsgRoomsUpdate,
		Data: m.ListRooms(),
	})
}

// nameOf renders a player for notification text.
func nameOf(room *internal.Room, playerID string) string {
	if p := room.GetMember(playerID); p != nil {
		return p.Username
	}
	return "someone"
}
