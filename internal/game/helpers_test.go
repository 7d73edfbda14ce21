package game

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ggiovanne/coup/internal"
	"github.com/ggiovanne/coup/internal/metrics"
	"github.com/ggiovanne/coup/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testRoom = "table"

// recorder is a Publisher that keeps everything it is given.
type recorder struct {
	mu   sync.Mutex
	sent map[string][]any
	all  []any
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]any)}
}

func (r *recorder) Publish(playerID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[playerID] = append(r.sent[playerID], msg)
}

func (r *recorder) PublishAll(msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, msg)
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.all)
	for _, msgs := range r.sent {
		n += len(msgs)
	}
	return n
}

func (r *recorder) count(playerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent[playerID])
}

// lastSnapshot is the most recent state update sent to playerID.
func (r *recorder) lastSnapshot(playerID string) (internal.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.sent[playerID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msg, ok := msgs[i].(internal.Message[internal.RoomSnapshot]); ok {
			return msg.Data, true
		}
	}
	return internal.RoomSnapshot{}, false
}

// lastRoomList is the most recent room list sent to every connection.
func (r *recorder) lastRoomList() ([]internal.RoomSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.all) - 1; i >= 0; i-- {
		if msg, ok := r.all[i].(internal.Message[[]internal.RoomSummary]); ok {
			return msg.Data, true
		}
	}
	return nil, false
}

// listedPhase is the phase of testRoom in the last published room list.
func (r *recorder) listedPhase() internal.GamePhase {
	rooms, _ := r.lastRoomList()
	for _, summary := range rooms {
		if summary.Name == testRoom {
			return summary.Phase
		}
	}
	return ""
}

func (r *recorder) notifications(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, msg := range r.sent[playerID] {
		if n, ok := msg.(internal.Message[internal.NotifyData]); ok {
			out = append(out, n.Data.Message)
		}
	}
	return out
}

// historyStub collects recorded games on a channel.
type historyStub struct {
	games chan internal.GameRecord
}

func (h *historyStub) RecordGame(_ context.Context, rec internal.GameRecord) error {
	h.games <- rec
	return nil
}

func fastHasher() *utils.Argon2idHasher {
	return utils.NewArgon2idHasher(1, 8*1024, 16, 16, 1)
}

func newTestManager(t *testing.T, cfg Config, opts ...Option) (*Manager, *recorder, *metrics.Metrics) {
	t.Helper()
	rec := newRecorder()
	mt := metrics.New(prometheus.NewRegistry())
	base := []Option{
		WithMetrics(mt),
		WithHasher(fastHasher()),
		WithSeed(func() int64 { return 42 }),
	}
	m := NewManager(cfg, rec, append(base, opts...)...)
	t.Cleanup(m.Shutdown)
	return m, rec, mt
}

func playerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i+1)
	}
	return ids
}

// seatPlayers creates testRoom hosted by ids[0] and seats the rest.
func seatPlayers(t *testing.T, m *Manager, ids ...string) *internal.Room {
	t.Helper()
	_, err := m.CreateRoom(ids[0], "name-"+ids[0], testRoom, "")
	require.NoError(t, err)
	for _, id := range ids[1:] {
		require.NoError(t, m.JoinRoom(id, "name-"+id, testRoom, ""))
	}
	room, err := m.lookup(testRoom)
	require.NoError(t, err)
	return room
}

// startGame deals n players in and hands the first turn to p1. Every player
// gets a duke and a contessa unless the test rigs something else.
func startGame(t *testing.T, m *Manager, n int) (*internal.Room, []string) {
	t.Helper()
	ids := playerIDs(n)
	room := seatPlayers(t, m, ids...)
	require.NoError(t, m.StartGame(testRoom, ids[0]))

	withLock(room, func() {
		room.SetTurn(0)
		for _, p := range room.Players {
			rigHand(room, p, internal.RoleDuke, internal.RoleContessa)
		}
	})
	return room, ids
}

// rigHand swaps the player's hand for roles through the deck, so the
// game's token count is unchanged. A role the pile has run out of comes
// from replenishment.
func rigHand(room *internal.Room, p *internal.Player, roles ...internal.Role) {
	room.Deck.ReturnAndReshuffle(p.Hand...)
	p.Hand = nil
	for _, want := range roles {
		var skipped []internal.Role
		for {
			card := room.Deck.Draw(1)[0]
			if card == want {
				p.Hand = append(p.Hand, card)
				break
			}
			skipped = append(skipped, card)
		}
		room.Deck.ReturnAndReshuffle(skipped...)
	}
}

// requireConserved checks that every token the game created is somewhere.
func requireConserved(t *testing.T, room *internal.Room) {
	t.Helper()
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	require.Equal(t, room.Deck.Created(), room.TokenCount(), "tokens created vs accounted for")
}

func withLock(room *internal.Room, fn func()) {
	room.Mu.Lock()
	defer room.Mu.Unlock()
	fn()
}

func setHand(room *internal.Room, id string, hand ...internal.Role) {
	withLock(room, func() {
		rigHand(room, room.GetMember(id), hand...)
	})
}

func setCoins(room *internal.Room, id string, coins int) {
	withLock(room, func() {
		room.GetMember(id).Coins = coins
	})
}

func coinsOf(room *internal.Room, id string) int {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return room.GetMember(id).Coins
}

func handOf(room *internal.Room, id string) []internal.Role {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return append([]internal.Role(nil), room.GetMember(id).Hand...)
}

func currentID(room *internal.Room) string {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	if p := room.CurrentPlayer(); p != nil {
		return p.Id
	}
	return ""
}

func pendingOf(room *internal.Room) internal.PendingAction {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return room.Pending
}

func tokens(room *internal.Room) int {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return room.TokenCount()
}

func phaseOf(room *internal.Room) internal.GamePhase {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return room.Phase
}
