package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(ids ...string) *Room {
	r := &Room{Name: "table", HostID: ids[0], Phase: PhasePlaying}
	for _, id := range ids {
		p := NewPlayer(id, "name-"+id)
		p.Status = StatusPlaying
		r.Players = append(r.Players, p)
	}
	return r
}

func TestAdvanceTurnSkipsWaitingPlayers(t *testing.T) {
	r := newTestRoom("a", "b", "c", "d")
	r.Players[1].Status = StatusWaiting

	r.AdvanceTurn()
	assert.Equal(t, "c", r.CurrentPlayer().Id)
	r.AdvanceTurn()
	r.AdvanceTurn()
	assert.Equal(t, "a", r.CurrentPlayer().Id, "wraps around past the waiting seat")
	assert.Equal(t, 3, r.Turns)
}

func TestRemovePlayerAtRepairsCursor(t *testing.T) {
	tests := []struct {
		name       string
		turn       int
		remove     int
		wantTurn   int
		wantVacant bool
		wantNext   string
	}{
		{name: "before the owner", turn: 2, remove: 0, wantTurn: 1, wantNext: "d"},
		{name: "after the owner", turn: 1, remove: 3, wantTurn: 1, wantNext: "c"},
		{name: "the owner", turn: 1, remove: 1, wantTurn: 1, wantVacant: true, wantNext: "c"},
		{name: "the last seat while owning", turn: 3, remove: 3, wantTurn: 0, wantVacant: true, wantNext: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRoom("a", "b", "c", "d")
			r.SetTurn(tt.turn)

			removed := r.RemovePlayerAt(tt.remove)
			require.NotNil(t, removed)
			assert.Len(t, r.Players, 3)
			assert.Equal(t, tt.wantTurn, r.TurnIndex)
			assert.Equal(t, tt.wantVacant, r.TurnVacant())

			r.AdvanceTurn()
			assert.Equal(t, tt.wantNext, r.CurrentPlayer().Id)
			assert.False(t, r.TurnVacant())
		})
	}

	r := newTestRoom("a")
	assert.Nil(t, r.RemovePlayerAt(4))
	assert.Nil(t, r.RemovePlayerAt(-1))
}

func TestTokenCountCoversEveryPile(t *testing.T) {
	r := newTestRoom("a", "b")
	r.Deck = &Deck{cards: []Role{RoleDuke, RoleDuke, RoleCaptain}}
	r.Players[0].Hand = []Role{RoleContessa}
	r.Players[0].Revealed = []Role{RoleAssassin}
	out := NewPlayer("c", "name-c")
	out.Revealed = []Role{RoleAmbassador, RoleDuke}
	r.Eliminated = []*Player{out}
	r.Discards = []Role{RoleCaptain}
	r.Pending = NewExchangeChoice(r.Players[1], []Role{RoleDuke, RoleContessa})

	assert.Equal(t, 3+1+1+2+1+2, r.TokenCount())
}

func TestResetToLobbySeatsEveryoneAgain(t *testing.T) {
	r := newTestRoom("a", "b")
	r.Players[0].Coins = 9
	r.Players[0].Hand = []Role{RoleDuke}
	out := NewPlayer("c", "name-c")
	out.Status = StatusOut
	out.Revealed = []Role{RoleDuke, RoleDuke}
	r.Eliminated = []*Player{out}
	r.Discards = []Role{RoleCaptain}
	r.WinnerID = "a"
	r.Turns = 12

	r.ResetToLobby()

	assert.Equal(t, PhaseLobby, r.Phase)
	require.Len(t, r.Players, 3)
	assert.Empty(t, r.Eliminated)
	assert.Nil(t, r.Discards)
	assert.Empty(t, r.WinnerID)
	assert.Zero(t, r.Turns)
	for _, p := range r.Players {
		assert.Equal(t, StatusWaiting, p.Status, p.Id)
		assert.Zero(t, p.Coins, p.Id)
		assert.Empty(t, p.Hand, p.Id)
		assert.Empty(t, p.Revealed, p.Id)
	}
	assert.Nil(t, r.CurrentPlayer())
}
