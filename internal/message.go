package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Outbound message types.
const (
	MsgConnected       = "connected"
	MsgRoomsUpdate     = "rooms_update"
	MsgRoomJoined      = "room_joined"
	MsgRoomLeft        = "room_left"
	MsgGameStateUpdate = "game_state_update"
	MsgNotify          = "notify"
	MsgError           = "error"
)

// Inbound message types.
const (
	MsgCreateRoom           = "create_room"
	MsgJoinRoom             = "join_room"
	MsgLeaveRoom            = "leave_room"
	MsgListRooms            = "list_rooms"
	MsgStartGame            = "start_game"
	MsgReopenRoom           = "reopen_room"
	MsgDeclareAction        = "declare_action"
	MsgPerformAction        = "perform_action"
	MsgPermitAction         = "permit_action"
	MsgBlockAction          = "block_action"
	MsgChallengeAction      = "challenge_action"
	MsgChallengeBlock       = "challenge_block"
	MsgCancelAction         = "cancel_action"
	MsgChooseLossCard       = "choose_loss_card"
	MsgChooseExchangeReturn = "choose_exchange_return"
)

type RoomRequestData struct {
	RoomName string `json:"room_name"`
	Password string `json:"password,omitempty"`
	Username string `json:"username"`
}

type ActionData struct {
	Action   ActionType `json:"action"`
	TargetID string     `json:"target_id,omitempty"`
}

type BlockData struct {
	Role Role `json:"role"`
}

type LossCardData struct {
	Role Role `json:"role"`
}

type ExchangeReturnData struct {
	Roles []Role `json:"roles"`
}

type ConnectedData struct {
	PlayerID string `json:"player_id"`
}

type RoomJoinedData struct {
	RoomName string `json:"room_name"`
	PlayerID string `json:"player_id"`
	IsHost   bool   `json:"is_host"`
}

type NotifyData struct {
	Message string `json:"message"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// RoomSnapshot is the state of a room as one particular member sees it.
type RoomSnapshot struct {
	RoomName        string           `json:"room_name"`
	ViewerID        string           `json:"viewer_id"`
	HostID          string           `json:"host_id"`
	Phase           GamePhase        `json:"phase"`
	GameStarted     bool             `json:"game_started"`
	Players         []PlayerSnapshot `json:"players"`
	Eliminated      []PlayerSnapshot `json:"eliminated"`
	TurnIndex       int              `json:"turn_index"`
	CurrentPlayerID string           `json:"current_player_id,omitempty"`
	Pending         *PendingSnapshot `json:"pending,omitempty"`
	WinnerID        string           `json:"winner_id,omitempty"`
	DeckSize        int              `json:"deck_size"`
	Discards        []Role           `json:"discards,omitempty"`
	CountdownEndsAt int64            `json:"countdown_ends_at_ms,omitempty"`
}

// SnapshotFor renders the room for viewerID. Only the viewer's own hand and,
// during an exchange, their own pool are included.
func (r *Room) SnapshotFor(viewerID string) RoomSnapshot {
	snap := RoomSnapshot{
		RoomName:    r.Name,
		ViewerID:    viewerID,
		HostID:      r.HostID,
		Phase:       r.Phase,
		GameStarted: r.Phase == PhasePlaying,
		Players:     make([]PlayerSnapshot, 0, len(r.Players)),
		Eliminated:  make([]PlayerSnapshot, 0, len(r.Eliminated)),
		TurnIndex:   r.TurnIndex,
		WinnerID:    r.WinnerID,
		Discards:    append([]Role(nil), r.Discards...),
	}

	for _, p := range r.Players {
		snap.Players = append(snap.Players, p.SnapshotFor(viewerID, r.HostID))
	}
	for _, p := range r.Eliminated {
		snap.Eliminated = append(snap.Eliminated, p.SnapshotFor(viewerID, r.HostID))
	}
	if current := r.CurrentPlayer(); current != nil {
		snap.CurrentPlayerID = current.Id
	}
	if r.Pending != nil {
		pending := r.Pending.Describe(viewerID)
		snap.Pending = &pending
	}
	if r.Deck != nil {
		snap.DeckSize = r.Deck.Len()
	}
	if r.Phase == PhaseStarting && r.Timer != nil && r.Timer.Kind == TimerCountdown {
		snap.CountdownEndsAt = r.Timer.ExpiresAt().UnixMilli()
	}
	return snap
}
