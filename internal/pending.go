package internal

import "time"

// PendingAction is the single in-flight action of a room. Each variant only
// carries the fields that make sense for it.
type PendingAction interface {
	Type() ActionType
	// ActorID is the player the action belongs to. For a loss choice this is
	// the player who has to discard.
	ActorID() string
	// Involves reports whether the player is actor, target, blocker or loser.
	Involves(playerID string) bool
	Describe(viewerID string) PendingSnapshot
}

// Contest is an action sitting in its response window.
type Contest interface {
	PendingAction
	Deadline() time.Time
	SetDeadline(time.Time)
	// Claim is the role the actor implicitly claims, empty when none.
	Claim() Role
}

// OpenContest can be permitted by every playing non-actor.
type OpenContest interface {
	Contest
	Permit(playerID string) bool
	HasPermitted(playerID string) bool
	PermittedBy() []string
	Forget(playerID string)
}

// TargetedContest can only be answered by its target.
type TargetedContest interface {
	Contest
	TargetID() string
}

type Blockable interface {
	Contest
	Blocked() *BlockClaim
	SetBlock(BlockClaim)
	BlockRoles() []Role
}

type BlockClaim struct {
	BlockerID string `json:"blocker_id"`
	Role      Role   `json:"claimed_role,omitempty"` // empty for a generic steal block
}

type LossReason string

const (
	LossCoup           LossReason = "coup"
	LossAssassination  LossReason = "assassination"
	LossWrongChallenge LossReason = "wrong_challenge"
	LossCaughtBluffing LossReason = "caught_bluffing"
)

// LossCause attributes a forced discard to what triggered it.
type LossCause struct {
	Reason   LossReason `json:"reason"`
	Action   ActionType `json:"action"`
	SourceID string     `json:"source_id"`
}

// FollowUp is the part of an action that still has to happen once a loss
// choice is settled, e.g. an assassination whose block was disproven.
type FollowUp struct {
	Action   ActionType `json:"action"`
	ActorID  string     `json:"actor_id"`
	TargetID string     `json:"target_id,omitempty"`
}

type PendingSnapshot struct {
	Type        ActionType  `json:"type"`
	ActorID     string      `json:"actor_id"`
	TargetID    string      `json:"target_id,omitempty"`
	ClaimedRole Role        `json:"claimed_role,omitempty"`
	Block       *BlockClaim `json:"block,omitempty"`
	Permitted   []string    `json:"permitted,omitempty"`
	ExpiresAt   int64       `json:"expires_at_ms,omitempty"`
	Pool        []Role      `json:"pool,omitempty"` // Only for the exchanging player
	PoolSize    int         `json:"pool_size,omitempty"`
	ReturnCount int         `json:"return_count,omitempty"`
	Cause       *LossCause  `json:"cause,omitempty"`
	FollowUp    *FollowUp   `json:"follow_up,omitempty"`
}

// =============================================================================
// SHARED PARTS
// =============================================================================

type window struct {
	Actor     string
	ExpiresAt time.Time
}

func (w *window) ActorID() string         { return w.Actor }
func (w *window) Deadline() time.Time     { return w.ExpiresAt }
func (w *window) SetDeadline(t time.Time) { w.ExpiresAt = t }

func (w *window) describe(t ActionType) PendingSnapshot {
	snap := PendingSnapshot{Type: t, ActorID: w.Actor}
	if !w.ExpiresAt.IsZero() {
		snap.ExpiresAt = w.ExpiresAt.UnixMilli()
	}
	return snap
}

type consentSet struct {
	Permits []string
}

func (c *consentSet) Permit(playerID string) bool {
	if c.HasPermitted(playerID) {
		return false
	}
	c.Permits = append(c.Permits, playerID)
	return true
}

func (c *consentSet) HasPermitted(playerID string) bool {
	for _, id := range c.Permits {
		if id == playerID {
			return true
		}
	}
	return false
}

func (c *consentSet) PermittedBy() []string {
	return append([]string{}, c.Permits...)
}

func (c *consentSet) Forget(playerID string) {
	for i, id := range c.Permits {
		if id == playerID {
			c.Permits = append(c.Permits[:i:i], c.Permits[i+1:]...)
			return
		}
	}
}

type blockSlot struct {
	Block *BlockClaim
}

func (b *blockSlot) Blocked() *BlockClaim { return b.Block }

func (b *blockSlot) SetBlock(claim BlockClaim) {
	b.Block = &claim
}

func (b *blockSlot) involves(playerID string) bool {
	return b.Block != nil && b.Block.BlockerID == playerID
}

func (b *blockSlot) describe(snap *PendingSnapshot) {
	if b.Block != nil {
		claim := *b.Block
		snap.Block = &claim
	}
}

// =============================================================================
// VARIANTS
// =============================================================================

type ForeignAidAction struct {
	window
	consentSet
	blockSlot
}

func (a *ForeignAidAction) Type() ActionType   { return ActionForeignAid }
func (a *ForeignAidAction) Claim() Role        { return "" }
func (a *ForeignAidAction) BlockRoles() []Role { return []Role{RoleDuke} }
func (a *ForeignAidAction) Involves(id string) bool {
	return a.Actor == id || a.blockSlot.involves(id)
}
func (a *ForeignAidAction) Describe(string) PendingSnapshot {
	snap := a.window.describe(ActionForeignAid)
	snap.Permitted = a.PermittedBy()
	a.blockSlot.describe(&snap)
	return snap
}

type TaxAction struct {
	window
	consentSet
}

func (a *TaxAction) Type() ActionType        { return ActionTax }
func (a *TaxAction) Claim() Role             { return RoleDuke }
func (a *TaxAction) Involves(id string) bool { return a.Actor == id }
func (a *TaxAction) Describe(string) PendingSnapshot {
	snap := a.window.describe(ActionTax)
	snap.ClaimedRole = RoleDuke
	snap.Permitted = a.PermittedBy()
	return snap
}

type ExchangeAction struct {
	window
	consentSet
}

func (a *ExchangeAction) Type() ActionType        { return ActionExchange }
func (a *ExchangeAction) Claim() Role             { return RoleAmbassador }
func (a *ExchangeAction) Involves(id string) bool { return a.Actor == id }
func (a *ExchangeAction) Describe(string) PendingSnapshot {
	snap := a.window.describe(ActionExchange)
	snap.ClaimedRole = RoleAmbassador
	snap.Permitted = a.PermittedBy()
	return snap
}

type StealAction struct {
	window
	blockSlot
	Target string
}

func (a *StealAction) Type() ActionType   { return ActionSteal }
func (a *StealAction) Claim() Role        { return RoleCaptain }
func (a *StealAction) TargetID() string   { return a.Target }
func (a *StealAction) BlockRoles() []Role { return []Role{RoleCaptain, RoleAmbassador} }
func (a *StealAction) Involves(id string) bool {
	return a.Actor == id || a.Target == id || a.blockSlot.involves(id)
}
func (a *StealAction) Describe(string) PendingSnapshot {
	snap := a.window.describe(ActionSteal)
	snap.TargetID = a.Target
	snap.ClaimedRole = RoleCaptain
	a.blockSlot.describe(&snap)
	return snap
}

type AssassinateAction struct {
	window
	blockSlot
	Target string
}

func (a *AssassinateAction) Type() ActionType   { return ActionAssassinate }
func (a *AssassinateAction) Claim() Role        { return RoleAssassin }
func (a *AssassinateAction) TargetID() string   { return a.Target }
func (a *AssassinateAction) BlockRoles() []Role { return []Role{RoleContessa} }
func (a *AssassinateAction) Involves(id string) bool {
	return a.Actor == id || a.Target == id || a.blockSlot.involves(id)
}
func (a *AssassinateAction) Describe(string) PendingSnapshot {
	snap := a.window.describe(ActionAssassinate)
	snap.TargetID = a.Target
	snap.ClaimedRole = RoleAssassin
	a.blockSlot.describe(&snap)
	return snap
}

// ExchangeChoice holds the cards drawn for an exchange until the actor
// decides which ones go back. The actor's hand stays in the hand meanwhile.
type ExchangeChoice struct {
	Actor  string
	Drawn  []Role
	player *Player
}

func NewExchangeChoice(actor *Player, drawn []Role) *ExchangeChoice {
	return &ExchangeChoice{Actor: actor.Id, Drawn: drawn, player: actor}
}

func (c *ExchangeChoice) Type() ActionType        { return ActionExchangeChoice }
func (c *ExchangeChoice) ActorID() string         { return c.Actor }
func (c *ExchangeChoice) Involves(id string) bool { return c.Actor == id }

// Pool is the current hand followed by the drawn cards.
func (c *ExchangeChoice) Pool() []Role {
	var hand []Role
	if c.player != nil {
		hand = c.player.Hand
	}
	pool := make([]Role, 0, len(hand)+len(c.Drawn))
	pool = append(pool, hand...)
	return append(pool, c.Drawn...)
}

func (c *ExchangeChoice) Describe(viewerID string) PendingSnapshot {
	pool := c.Pool()
	snap := PendingSnapshot{
		Type:        ActionExchangeChoice,
		ActorID:     c.Actor,
		PoolSize:    len(pool),
		ReturnCount: len(c.Drawn),
	}
	if viewerID == c.Actor {
		snap.Pool = pool
	}
	return snap
}

type LossChoice struct {
	Player string
	Cause  LossCause
	Then   *FollowUp
}

func (c *LossChoice) Type() ActionType { return ActionLossChoice }
func (c *LossChoice) ActorID() string  { return c.Player }

// Involves covers the loser and the player whose action resumes afterwards.
func (c *LossChoice) Involves(id string) bool {
	return c.Player == id || (c.Then != nil && c.Then.ActorID == id)
}
func (c *LossChoice) Describe(string) PendingSnapshot {
	cause := c.Cause
	snap := PendingSnapshot{Type: ActionLossChoice, ActorID: c.Player, Cause: &cause}
	if c.Then != nil {
		then := *c.Then
		snap.FollowUp = &then
		snap.TargetID = then.TargetID
	}
	return snap
}

// NewContest opens the response window variant for a declared action.
func NewContest(action ActionType, actorID, targetID string, deadline time.Time) (Contest, bool) {
	w := window{Actor: actorID, ExpiresAt: deadline}
	switch action {
	case ActionForeignAid:
		return &ForeignAidAction{window: w}, true
	case ActionTax:
		return &TaxAction{window: w}, true
	case ActionExchange:
		return &ExchangeAction{window: w}, true
	case ActionSteal:
		return &StealAction{window: w, Target: targetID}, true
	case ActionAssassinate:
		return &AssassinateAction{window: w, Target: targetID}, true
	}
	return nil, false
}
