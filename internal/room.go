package internal

import "time"

// Methods (Room Struct)
// All of them expect the caller to hold Room.Mu.

func (r *Room) GetPlayer(id string) *Player {
	if i := r.IndexOf(id); i >= 0 {
		return r.Players[i]
	}
	return nil
}

// GetMember looks a player up among seated and eliminated players.
func (r *Room) GetMember(id string) *Player {
	if p := r.GetPlayer(id); p != nil {
		return p
	}
	for _, p := range r.Eliminated {
		if p.Id == id {
			return p
		}
	}
	return nil
}

func (r *Room) IndexOf(id string) int {
	for i, p := range r.Players {
		if p.Id == id {
			return i
		}
	}
	return -1
}

func (r *Room) GetPlayerByIndex(index int) *Player {
	if index < 0 || index >= len(r.Players) {
		return nil
	}
	return r.Players[index]
}

// CurrentPlayer is the turn owner, or nil outside a running game.
func (r *Room) CurrentPlayer() *Player {
	if r.Phase != PhasePlaying {
		return nil
	}
	return r.GetPlayerByIndex(r.TurnIndex)
}

func (r *Room) PlayingPlayers() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsPlaying() {
			out = append(out, p)
		}
	}
	return out
}

// Responders are the playing players other than the actor.
func (r *Room) Responders(actorID string) []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsPlaying() && p.Id != actorID {
			out = append(out, p)
		}
	}
	return out
}

// Members is everyone who receives room broadcasts.
func (r *Room) Members() []*Player {
	out := make([]*Player, 0, len(r.Players)+len(r.Eliminated))
	out = append(out, r.Players...)
	return append(out, r.Eliminated...)
}

func (r *Room) MemberCount() int {
	return len(r.Players) + len(r.Eliminated)
}

// AdvanceTurn moves the cursor to the next playing player. The skip loop is
// bounded by the player count so a room with nobody playing cannot spin.
func (r *Room) AdvanceTurn() {
	n := len(r.Players)
	if n == 0 {
		r.TurnIndex = 0
		r.turnVacant = false
		return
	}

	if r.turnVacant {
		// The previous owner was removed; the cursor already sits on the successor.
		r.turnVacant = false
	} else {
		r.TurnIndex = (r.TurnIndex + 1) % n
	}

	for guard := 0; guard < n && !r.Players[r.TurnIndex].IsPlaying(); guard++ {
		r.TurnIndex = (r.TurnIndex + 1) % n
	}
	r.Turns++
}

// RemovePlayerAt splices a player out and repairs the turn cursor in the same step.
func (r *Room) RemovePlayerAt(index int) *Player {
	if index < 0 || index >= len(r.Players) {
		return nil
	}

	removed := r.Players[index]
	r.Players = append(r.Players[:index:index], r.Players[index+1:]...)

	if r.TurnIndex == index {
		r.turnVacant = true
	}
	if r.TurnIndex > index {
		r.TurnIndex--
	}
	if r.TurnIndex >= len(r.Players) {
		r.TurnIndex = 0
	}
	return removed
}

// RemoveEliminated drops a spectator seat and reports whether it existed.
func (r *Room) RemoveEliminated(id string) bool {
	for i, p := range r.Eliminated {
		if p.Id == id {
			r.Eliminated = append(r.Eliminated[:i:i], r.Eliminated[i+1:]...)
			return true
		}
	}
	return false
}

// SetTurn places the cursor on index, e.g. for the opening player.
func (r *Room) SetTurn(index int) {
	r.TurnIndex = index
	r.turnVacant = false
}

// TurnVacant reports whether the last turn owner left the table mid-turn.
func (r *Room) TurnVacant() bool {
	return r.turnVacant
}

// TokenCount counts every role token of the running game.
func (r *Room) TokenCount() int {
	total := 0
	if r.Deck != nil {
		total += r.Deck.Len()
	}
	total += len(r.Discards)
	for _, p := range r.Members() {
		total += len(p.Hand) + len(p.Revealed)
	}
	if choice, ok := r.Pending.(*ExchangeChoice); ok {
		total += len(choice.Drawn)
	}
	return total
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		Name:        r.Name,
		HasPassword: r.PasswordHash != "",
		PlayerCount: r.MemberCount(),
		Phase:       r.Phase,
	}
}

// ResetToLobby returns every member to a waiting seat for a fresh game.
func (r *Room) ResetToLobby() {
	r.Players = append(r.Players, r.Eliminated...)
	r.Eliminated = make([]*Player, 0)
	for _, p := range r.Players {
		p.ResetForLobby()
	}
	r.Phase = PhaseLobby
	r.Deck = nil
	r.Discards = nil
	r.Pending = nil
	r.WinnerID = ""
	r.TurnIndex = 0
	r.Turns = 0
	r.turnVacant = false
	r.StartedAt = time.Time{}
}
