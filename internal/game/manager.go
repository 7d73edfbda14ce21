package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/ggiovanne/coup/internal/metrics"
	"github.com/ggiovanne/coup/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Publisher delivers outbound messages. Implementations must not block and
// must not call back into the Manager, since they run under the room lock.
type Publisher interface {
	Publish(playerID string, msg any)
	PublishAll(msg any)
}

// GameRecorder stores finished games.
type GameRecorder interface {
	RecordGame(ctx context.Context, rec internal.GameRecord) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

type Config struct {
	ResponseWindow    time.Duration
	StartCountdown    time.Duration
	MaxPlayersPerRoom int
	MinPlayersToStart int
}

func DefaultConfig() Config {
	return Config{
		ResponseWindow:    internal.ResponseWindow,
		MaxPlayersPerRoom: internal.MaxPlayersPerRoom,
		MinPlayersToStart: internal.MinPlayersToStart,
	}
}

// Manager owns every room of the process. The registry lock only guards the
// room and membership maps; game state lives behind each Room.Mu.
type Manager struct {
	cfg       Config
	publisher Publisher
	history   GameRecorder
	hasher    PasswordHasher
	metrics   *metrics.Metrics
	seed      func() int64
	now       func() time.Time

	mu      sync.RWMutex
	rooms   map[string]*internal.Room
	members map[string]string
}

type Option func(*Manager)

func WithHistory(h GameRecorder) Option {
	return func(m *Manager) { m.history = h }
}

func WithHasher(h PasswordHasher) Option {
	return func(m *Manager) { m.hasher = h }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithSeed fixes the seed source for room shuffles and the opening player.
func WithSeed(seed func() int64) Option {
	return func(m *Manager) { m.seed = seed }
}

func NewManager(cfg Config, publisher Publisher, opts ...Option) *Manager {
	defaults := DefaultConfig()
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = defaults.ResponseWindow
	}
	if cfg.MaxPlayersPerRoom <= 0 {
		cfg.MaxPlayersPerRoom = defaults.MaxPlayersPerRoom
	}
	if cfg.MinPlayersToStart <= 0 {
		cfg.MinPlayersToStart = defaults.MinPlayersToStart
	}

	m := &Manager{
		cfg:       cfg,
		publisher: publisher,
		seed:      func() int64 { return time.Now().UnixNano() },
		now:       time.Now,
		rooms:     make(map[string]*internal.Room),
		members:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hasher == nil {
		m.hasher = utils.NewDefaultHasher()
	}
	if m.metrics == nil {
		m.metrics = metrics.New(prometheus.NewRegistry())
	}
	return m
}

// RoomOf returns the name of the room the player sits in, or "".
func (m *Manager) RoomOf(playerID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members[playerID]
}

func (m *Manager) lookup(roomName string) (*internal.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomName]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (m *Manager) setMembership(playerID, roomName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[playerID] = roomName
}

func (m *Manager) clearMembership(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, playerID)
}

func (m *Manager) newRand() *rand.Rand {
	return rand.New(rand.NewSource(m.seed()))
}

// withRoom is the single entry point for intents that act on a room. It
// takes the room lock for the whole transition and reports rejections to
// the caller only. fn must not mutate anything before it has validated.
// A phase change is announced in the room list once the lock is released.
func (m *Manager) withRoom(roomName, playerID, intent string, fn func(*internal.Room, *internal.Player) error) error {
	if roomName == "" {
		roomName = m.RoomOf(playerID)
	}
	room, err := m.lookup(roomName)
	if err != nil {
		return m.reject(intent, roomName, playerID, err)
	}

	room.Mu.Lock()
	before := room.Phase
	err = m.applyLocked(room, playerID, fn)
	phaseChanged := room.Phase != before
	room.Mu.Unlock()

	if err != nil {
		return m.reject(intent, roomName, playerID, err)
	}
	if phaseChanged {
		m.publishRoomList()
	}
	return nil
}

func (m *Manager) applyLocked(room *internal.Room, playerID string, fn func(*internal.Room, *internal.Player) error) error {
	if room.Closed {
		return ErrRoomNotFound
	}
	player := room.GetMember(playerID)
	if player == nil {
		return ErrNotInRoom
	}
	return fn(room, player)
}

func (m *Manager) reject(intent, roomName, playerID string, err error) error {
	m.metrics.IntentsRejected.WithLabelValues(intent).Inc()
	log.Debug().
		Str("room", roomName).
		Str("player", playerID).
		Err(err).
		Msgf("[%s] rejected", intent)
	return err
}

// Snapshot renders a room for one viewer.
func (m *Manager) Snapshot(roomName, viewerID string) (internal.RoomSnapshot, error) {
	room, err := m.lookup(roomName)
	if err != nil {
		return internal.RoomSnapshot{}, err
	}
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return room.SnapshotFor(viewerID), nil
}

// Shutdown stops every room timer. Rooms stay readable but accept no more intents.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	rooms := make([]*internal.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	for _, room := range rooms {
		room.Mu.Lock()
		m.closeRoomLocked(room)
		room.Mu.Unlock()
	}
	log.Info().Int("rooms", len(rooms)).Msg("[Shutdown] All rooms closed")
}
