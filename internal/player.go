package internal

import "time"

type Player struct {
	Id       string       `json:"id"`
	Username string       `json:"username"`
	Coins    int          `json:"coins"`
	Hand     []Role       `json:"-"`
	Revealed []Role       `json:"revealed"`
	Status   PlayerStatus `json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
}

type PlayerSnapshot struct {
	ID       string       `json:"id"`
	Username string       `json:"username"`
	Coins    int          `json:"coins"`
	HandSize int          `json:"hand_size"`
	Hand     []Role       `json:"hand,omitempty"` // Only filled in for the viewer
	Revealed []Role       `json:"revealed"`
	Status   PlayerStatus `json:"status"`
	IsHost   bool         `json:"is_host"`
}

func NewPlayer(id, username string) *Player {
	return &Player{
		Id:       id,
		Username: username,
		Status:   StatusWaiting,
		Revealed: make([]Role, 0),
		JoinedAt: time.Now(),
	}
}

func (p *Player) IsPlaying() bool {
	return p.Status == StatusPlaying
}

func (p *Player) HasRole(roles ...Role) (Role, bool) {
	for _, held := range p.Hand {
		for _, r := range roles {
			if held == r {
				return held, true
			}
		}
	}
	return "", false
}

// TakeRole removes one copy of role from the hand.
func (p *Player) TakeRole(role Role) bool {
	for i, held := range p.Hand {
		if held == role {
			p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// Reveal moves one held role face up. It reports false if the role is not held.
func (p *Player) Reveal(role Role) bool {
	if !p.TakeRole(role) {
		return false
	}
	p.Revealed = append(p.Revealed, role)
	return true
}

// ResetForLobby clears per-game state.
func (p *Player) ResetForLobby() {
	p.Coins = 0
	p.Hand = nil
	p.Revealed = make([]Role, 0)
	p.Status = StatusWaiting
}

// SnapshotFor renders the player as seen by viewerID. Hand contents are only
// included when the viewer owns the hand.
func (p *Player) SnapshotFor(viewerID, hostID string) PlayerSnapshot {
	snap := PlayerSnapshot{
		ID:       p.Id,
		Username: p.Username,
		Coins:    p.Coins,
		HandSize: len(p.Hand),
		Revealed: append([]Role{}, p.Revealed...),
		Status:   p.Status,
		IsHost:   p.Id == hostID,
	}
	if viewerID == p.Id && len(p.Hand) > 0 {
		snap.Hand = append([]Role{}, p.Hand...)
	}
	return snap
}
