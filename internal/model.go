package internal

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	ResponseWindow      = 15 * time.Second
	MaxPlayersPerRoom   = 10
	MinPlayersToStart   = 2
	StartingCoins       = 2
	HandSize            = 2
	IncomeAmount        = 1
	ForeignAidAmount    = 2
	TaxAmount           = 3
	StealAmount         = 2
	ExchangeDrawCount   = 2
	CoupCost            = 7
	AssassinateCost     = 3
	ForcedCoupThreshold = 10
	ReplenishPadding    = 5
)

type GamePhase string

const (
	PhaseLobby    GamePhase = "lobby"
	PhaseStarting GamePhase = "starting"
	PhasePlaying  GamePhase = "playing"
	PhaseFinished GamePhase = "finished"
)

type PlayerStatus string

const (
	StatusWaiting PlayerStatus = "waiting"
	StatusPlaying PlayerStatus = "playing"
	StatusOut     PlayerStatus = "out"
)

type Role string

const (
	RoleDuke       Role = "duke"
	RoleAssassin   Role = "assassin"
	RoleCaptain    Role = "captain"
	RoleAmbassador Role = "ambassador"
	RoleContessa   Role = "contessa"
)

// Roles is the fixed role set in deck order. Replenishment cycles through it.
var Roles = []Role{RoleDuke, RoleAssassin, RoleCaptain, RoleAmbassador, RoleContessa}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type ActionType string

const (
	ActionIncome         ActionType = "income"
	ActionForeignAid     ActionType = "foreign_aid"
	ActionTax            ActionType = "tax"
	ActionCoup           ActionType = "coup"
	ActionSteal          ActionType = "steal"
	ActionAssassinate    ActionType = "assassinate"
	ActionExchange       ActionType = "exchange"
	ActionExchangeChoice ActionType = "exchange_choice"
	ActionLossChoice     ActionType = "loss_choice"
)

// Instant reports whether the action is applied without a response window.
func (a ActionType) Instant() bool {
	return a == ActionIncome || a == ActionCoup
}

// Cost is what the actor pays up front when declaring the action.
func (a ActionType) Cost() int {
	switch a {
	case ActionCoup:
		return CoupCost
	case ActionAssassinate:
		return AssassinateCost
	}
	return 0
}

// Targeted reports whether the action needs a target player.
func (a ActionType) Targeted() bool {
	return a == ActionCoup || a == ActionSteal || a == ActionAssassinate
}

type TimerKind string

const (
	TimerResponse  TimerKind = "response"
	TimerBlock     TimerKind = "block"
	TimerCountdown TimerKind = "countdown"
)

type GameTimer struct {
	Kind      TimerKind     `json:"kind"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Context   context.Context
	Cancel    context.CancelFunc
}

// ExpiresAt is the wall-clock deadline of the timer.
func (t *GameTimer) ExpiresAt() time.Time {
	return t.StartTime.Add(t.Duration)
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}

type Room struct {
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	HostID       string `json:"host_id"`

	// Seating. Players keeps join order and drives the turn cursor;
	// Eliminated keeps knocked out players so they can keep watching.
	Players    []*Player `json:"players"`
	Eliminated []*Player `json:"eliminated"`

	// Game State
	Phase      GamePhase     `json:"phase"`
	Deck       *Deck         `json:"-"`
	Discards   []Role        `json:"discards"`
	TurnIndex  int           `json:"turn_index"`
	Pending    PendingAction `json:"-"`
	WinnerID   string        `json:"winner_id,omitempty"`
	Turns      int           `json:"turns"`
	StartedAt  time.Time     `json:"started_at"`
	CreatedAt  time.Time     `json:"created_at"`
	Rand       *rand.Rand    `json:"-"`
	Closed     bool          `json:"-"`
	turnVacant bool

	// Timer
	Timer *GameTimer `json:"-"`

	// Concurrency control
	Mu sync.RWMutex `json:"-"`

	// Context for cleanup
	Context context.Context    `json:"-"`
	Cancel  context.CancelFunc `json:"-"`
}

// GameRecord is the summary of a finished game handed to the history store.
type GameRecord struct {
	ID              int64     `json:"id"`
	RoomName        string    `json:"room_name"`
	WinnerID        string    `json:"winner_id"`
	WinnerName      string    `json:"winner_name"`
	PlayerNames     []string  `json:"player_names"`
	EliminatedNames []string  `json:"eliminated_names"`
	Turns           int       `json:"turns"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

type RoomSummary struct {
	Name        string    `json:"name"`
	HasPassword bool      `json:"has_password"`
	PlayerCount int       `json:"player_count"`
	Phase       GamePhase `json:"phase"`
}
