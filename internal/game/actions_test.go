package game

import (
	"sync"
	"testing"
	"time"

	"github.com/ggiovanne/coup/internal"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnanimousPermitCommitsTax(t *testing.T) {
	m, rec, _ := newTestManager(t, DefaultConfig())
	room, ids := startGame(t, m, 4)
	before := tokens(room)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionTax, ""))
	require.NoError(t, m.Permit(testRoom, "p2"))
	require.NoError(t, m.Permit(testRoom, "p3"))

	tax, ok := pendingOf(room).(*internal.TaxAction)
	require.True(t, ok, "tax waits for the last responder")
	assert.ElementsMatch(t, []string{"p2", "p3"}, tax.PermittedBy())

	// A second permit is accepted silently.
	sent := rec.count("p2")
	require.NoError(t, m.Permit(testRoom, "p2"))
	assert.Equal(t, sent, rec.count("p2"))

	require.NoError(t, m.Permit(testRoom, "p4"))

	assert.Equal(t, internal.StartingCoins+internal.TaxAmount, coinsOf(room, "p1"))
	assert.Nil(t, pendingOf(room))
	assert.Equal(t, "p2", currentID(room))
	for _, id := range ids {
		assert.Len(t, handOf(room, id), 2, id)
	}
	assert.Equal(t, before, tokens(room))
}

func TestChallengedBluffRoutesActorToLossChoice(t *testing.T) {
	m, _, mt := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setHand(room, "p1", internal.RoleCaptain, internal.RoleContessa)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionTax, ""))
	require.NoError(t, m.ChallengeAction(testRoom, "p2"))

	loss, ok := pendingOf(room).(*internal.LossChoice)
	require.True(t, ok)
	assert.Equal(t, "p1", loss.ActorID())
	assert.Equal(t, internal.LossCaughtBluffing, loss.Cause.Reason)
	assert.Equal(t, internal.StartingCoins, coinsOf(room, "p1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Challenges.WithLabelValues("action", "bluff")))

	// Only the loser can choose, and only a card they hold.
	assert.ErrorIs(t, m.ChooseLossCard(testRoom, "p2", internal.RoleDuke), ErrNotAuthorized)
	assert.ErrorIs(t, m.ChooseLossCard(testRoom, "p1", internal.RoleDuke), ErrInvalidRole)

	require.NoError(t, m.ChooseLossCard(testRoom, "p1", internal.RoleContessa))
	assert.Equal(t, []internal.Role{internal.RoleCaptain}, handOf(room, "p1"))
	assert.Nil(t, pendingOf(room))
	assert.Equal(t, "p2", currentID(room))
}

func TestChallengedBluffWithOneCardEliminates(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setHand(room, "p1", internal.RoleCaptain)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionTax, ""))
	require.NoError(t, m.ChallengeAction(testRoom, "p3"))

	room.Mu.RLock()
	defer room.Mu.RUnlock()
	assert.Nil(t, room.Pending)
	assert.Equal(t, -1, room.IndexOf("p1"))
	require.Len(t, room.Eliminated, 1)
	assert.Equal(t, internal.StatusOut, room.Eliminated[0].Status)
	assert.Equal(t, []internal.Role{internal.RoleCaptain}, room.Eliminated[0].Revealed)
	assert.Equal(t, "p2", room.CurrentPlayer().Id)
	assert.Equal(t, internal.PhasePlaying, room.Phase)
}

func TestUnaffordableActionIsRejectedWithoutSideEffects(t *testing.T) {
	m, rec, mt := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setCoins(room, "p1", internal.AssassinateCost-1)
	sent := rec.total()

	err := m.Declare(testRoom, "p1", internal.ActionAssassinate, "p2")
	assert.ErrorIs(t, err, ErrInsufficientCoins)

	assert.Equal(t, sent, rec.total(), "nothing is broadcast")
	assert.Equal(t, internal.AssassinateCost-1, coinsOf(room, "p1"))
	assert.Nil(t, pendingOf(room))
	assert.Equal(t, "p1", currentID(room))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.IntentsRejected.WithLabelValues("declare_action")))
}

func TestForeignAidCommitsWhenWindowExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponseWindow = 50 * time.Millisecond
	m, _, mt := newTestManager(t, cfg)
	room, _ := startGame(t, m, 3)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionForeignAid, ""))
	fa, ok := pendingOf(room).(*internal.ForeignAidAction)
	require.True(t, ok)
	assert.False(t, fa.Deadline().IsZero())

	assert.Eventually(t, func() bool { return pendingOf(room) == nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, internal.StartingCoins+internal.ForeignAidAmount, coinsOf(room, "p1"))
	assert.Equal(t, "p2", currentID(room))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.TimerExpirations.WithLabelValues("response", "false")))
}

func TestFailedBlockStillAssassinates(t *testing.T) {
	m, _, mt := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setCoins(room, "p1", internal.AssassinateCost)
	setHand(room, "p1", internal.RoleAssassin, internal.RoleDuke)
	setHand(room, "p2", internal.RoleDuke, internal.RoleCaptain)
	before := tokens(room)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionAssassinate, "p2"))
	assert.Zero(t, coinsOf(room, "p1"), "the cost is paid on declaration")

	require.NoError(t, m.Block(testRoom, "p2", internal.RoleContessa))
	require.NoError(t, m.ChallengeBlock(testRoom, "p1"))

	loss, ok := pendingOf(room).(*internal.LossChoice)
	require.True(t, ok)
	assert.Equal(t, "p2", loss.Player)
	require.NotNil(t, loss.Then)
	assert.Equal(t, internal.ActionAssassinate, loss.Then.Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Challenges.WithLabelValues("block", "bluff")))

	require.NoError(t, m.ChooseLossCard(testRoom, "p2", internal.RoleDuke))

	room.Mu.RLock()
	assert.Equal(t, -1, room.IndexOf("p2"), "the assassination takes the last card")
	assert.Equal(t, []internal.Role{internal.RoleDuke, internal.RoleCaptain}, room.GetMember("p2").Revealed)
	assert.Equal(t, internal.PhasePlaying, room.Phase)
	assert.Nil(t, room.Pending)
	assert.Equal(t, "p3", room.CurrentPlayer().Id)
	room.Mu.RUnlock()

	assert.Zero(t, coinsOf(room, "p1"))
	assert.Equal(t, before, tokens(room))
	requireConserved(t, room)
}

func TestProvenChallengeSwapsCardAndPunishesChallenger(t *testing.T) {
	m, _, mt := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	before := tokens(room)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionTax, ""))
	require.NoError(t, m.ChallengeAction(testRoom, "p2"))

	assert.Equal(t, internal.StartingCoins+internal.TaxAmount, coinsOf(room, "p1"))
	assert.Len(t, handOf(room, "p1"), 2, "the proven card is replaced")
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Challenges.WithLabelValues("action", "proven")))

	loss, ok := pendingOf(room).(*internal.LossChoice)
	require.True(t, ok)
	assert.Equal(t, "p2", loss.Player)
	assert.Equal(t, internal.LossWrongChallenge, loss.Cause.Reason)
	assert.Nil(t, loss.Then)

	require.NoError(t, m.ChooseLossCard(testRoom, "p2", internal.RoleContessa))
	assert.Equal(t, "p2", currentID(room))
	assert.Equal(t, before, tokens(room))
	requireConserved(t, room)
}

func TestTokensConservedWhenTheDeckRunsDry(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 2)
	requireConserved(t, room)
	setHand(room, "p1", internal.RoleAmbassador, internal.RoleDuke)

	var synthesized int
	withLock(room, func() {
		room.Discards = append(room.Discards, room.Deck.Draw(room.Deck.Len())...)
		synthesized = room.Deck.Synthesized()
	})
	requireConserved(t, room)

	// The proven ambassador is swapped through a single-card pile, then the
	// exchange draws from an empty one.
	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionExchange, ""))
	require.NoError(t, m.ChallengeAction(testRoom, "p2"))
	requireConserved(t, room)
	require.NoError(t, m.ChooseLossCard(testRoom, "p2", internal.RoleDuke))

	choice, ok := pendingOf(room).(*internal.ExchangeChoice)
	require.True(t, ok)
	room.Mu.RLock()
	drawn := append([]internal.Role(nil), choice.Drawn...)
	assert.Equal(t, synthesized+internal.ExchangeDrawCount+internal.ReplenishPadding, room.Deck.Synthesized())
	room.Mu.RUnlock()
	requireConserved(t, room)

	require.NoError(t, m.ChooseExchangeReturn(testRoom, "p1", drawn))
	requireConserved(t, room)
}

func TestProvenExchangeContinuesIntoExchangeChoice(t *testing.T) {
	m, rec, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setHand(room, "p1", internal.RoleAmbassador, internal.RoleDuke)
	before := tokens(room)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionExchange, ""))
	require.NoError(t, m.ChallengeAction(testRoom, "p3"))
	require.NoError(t, m.ChooseLossCard(testRoom, "p3", internal.RoleDuke))

	choice, ok := pendingOf(room).(*internal.ExchangeChoice)
	require.True(t, ok)
	require.Len(t, choice.Drawn, internal.ExchangeDrawCount)
	assert.Equal(t, before, tokens(room), "drawn cards are still counted")

	mine, ok := rec.lastSnapshot("p1")
	require.True(t, ok)
	require.NotNil(t, mine.Pending)
	assert.Len(t, mine.Pending.Pool, 4)
	theirs, ok := rec.lastSnapshot("p2")
	require.True(t, ok)
	require.NotNil(t, theirs.Pending)
	assert.Empty(t, theirs.Pending.Pool)
	assert.Equal(t, 4, theirs.Pending.PoolSize)

	room.Mu.RLock()
	drawn := append([]internal.Role(nil), choice.Drawn...)
	room.Mu.RUnlock()

	assert.ErrorIs(t, m.ChooseExchangeReturn(testRoom, "p1", drawn[:1]), ErrInvalidExchange)
	assert.ErrorIs(t, m.ChooseExchangeReturn(testRoom, "p2", drawn), ErrNotAuthorized)

	require.NoError(t, m.ChooseExchangeReturn(testRoom, "p1", drawn))
	assert.Len(t, handOf(room, "p1"), 2)
	assert.Nil(t, pendingOf(room))
	assert.Equal(t, "p2", currentID(room))
	assert.Equal(t, before, tokens(room))
}

func TestExchangeReturnMustComeFromPool(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 2)
	setHand(room, "p1", internal.RoleAmbassador, internal.RoleAmbassador)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionExchange, ""))
	require.NoError(t, m.Permit(testRoom, "p2"))

	var drawn []internal.Role
	withLock(room, func() {
		choice := room.Pending.(*internal.ExchangeChoice)
		choice.Drawn = []internal.Role{internal.RoleDuke, internal.RoleDuke}
		drawn = choice.Drawn
	})
	require.Len(t, drawn, 2)

	err := m.ChooseExchangeReturn(testRoom, "p1", []internal.Role{internal.RoleCaptain, internal.RoleDuke})
	assert.ErrorIs(t, err, ErrInvalidExchange)

	// Keeping both dukes is allowed: the ambassadors go back.
	require.NoError(t, m.ChooseExchangeReturn(testRoom, "p1", []internal.Role{internal.RoleAmbassador, internal.RoleAmbassador}))
	assert.ElementsMatch(t, []internal.Role{internal.RoleDuke, internal.RoleDuke}, handOf(room, "p1"))
}

func TestStealTransfersAtMostWhatTheTargetHas(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setCoins(room, "p2", 1)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionSteal, "p2"))
	assert.ErrorIs(t, m.Permit(testRoom, "p3"), ErrNotAuthorized, "only the target answers a steal")
	require.NoError(t, m.Permit(testRoom, "p2"))

	assert.Equal(t, internal.StartingCoins+1, coinsOf(room, "p1"))
	assert.Zero(t, coinsOf(room, "p2"))
	assert.Equal(t, "p2", currentID(room))
}

func TestGenericStealBlockProvenWithAmbassador(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setHand(room, "p2", internal.RoleAmbassador, internal.RoleDuke)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionSteal, "p2"))
	assert.ErrorIs(t, m.Block(testRoom, "p3", ""), ErrNotAuthorized)
	require.NoError(t, m.Block(testRoom, "p2", ""))

	steal := pendingOf(room).(*internal.StealAction)
	require.NotNil(t, steal.Blocked())
	assert.Empty(t, steal.Blocked().Role)

	require.NoError(t, m.ChallengeBlock(testRoom, "p1"))

	loss, ok := pendingOf(room).(*internal.LossChoice)
	require.True(t, ok)
	assert.Equal(t, "p1", loss.Player)
	assert.Equal(t, internal.StartingCoins, coinsOf(room, "p1"))
	assert.Equal(t, internal.StartingCoins, coinsOf(room, "p2"))
}

func TestBlockStandsWhenWindowExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponseWindow = 50 * time.Millisecond
	m, _, mt := newTestManager(t, cfg)
	room, _ := startGame(t, m, 3)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionForeignAid, ""))
	require.NoError(t, m.Block(testRoom, "p3", internal.RoleDuke))

	assert.Eventually(t, func() bool { return pendingOf(room) == nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, internal.StartingCoins, coinsOf(room, "p1"))
	assert.Equal(t, "p2", currentID(room))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.TimerExpirations.WithLabelValues("block", "false")))
	assert.Zero(t, testutil.ToFloat64(mt.TimerExpirations.WithLabelValues("response", "false")))
}

func TestBlockRules(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionForeignAid, ""))
	assert.ErrorIs(t, m.Block(testRoom, "p1", ""), ErrNotAuthorized)
	assert.ErrorIs(t, m.Block(testRoom, "p2", internal.RoleCaptain), ErrInvalidRole)
	assert.ErrorIs(t, m.Block(testRoom, "p2", ""), ErrInvalidRole, "foreign aid blocks must claim duke")
	require.NoError(t, m.Block(testRoom, "p2", internal.RoleDuke))

	fa := pendingOf(room).(*internal.ForeignAidAction)
	assert.Equal(t, internal.BlockClaim{BlockerID: "p2", Role: internal.RoleDuke}, *fa.Blocked())

	assert.ErrorIs(t, m.Block(testRoom, "p3", internal.RoleDuke), ErrAlreadyBlocked)
	assert.ErrorIs(t, m.Permit(testRoom, "p3"), ErrActionBlocked)
	assert.ErrorIs(t, m.ChallengeAction(testRoom, "p3"), ErrNotChallengeable)
	assert.ErrorIs(t, m.ChallengeBlock(testRoom, "p3"), ErrNotAuthorized)

	assert.ErrorIs(t, m.Cancel(testRoom, "p2"), ErrNotAuthorized)
	require.NoError(t, m.Cancel(testRoom, "p1"))
	assert.Nil(t, pendingOf(room))
	assert.Equal(t, internal.StartingCoins, coinsOf(room, "p1"))
	assert.Equal(t, "p2", currentID(room))
}

func TestTaxCannotBeBlockedAndBlockedActionsCannotBeChallenged(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionTax, ""))
	assert.ErrorIs(t, m.Block(testRoom, "p2", internal.RoleDuke), ErrNotBlockable)
	require.NoError(t, m.Cancel(testRoom, "p1"))

	setCoins(room, "p2", internal.AssassinateCost)
	require.NoError(t, m.Declare(testRoom, "p2", internal.ActionAssassinate, "p3"))
	assert.ErrorIs(t, m.Block(testRoom, "p3", internal.RoleDuke), ErrInvalidRole)
	require.NoError(t, m.Block(testRoom, "p3", internal.RoleContessa))
	assert.ErrorIs(t, m.ChallengeAction(testRoom, "p1"), ErrActionBlocked)

	// The target really holds a contessa.
	require.NoError(t, m.ChallengeBlock(testRoom, "p2"))
	loss, ok := pendingOf(room).(*internal.LossChoice)
	require.True(t, ok)
	assert.Equal(t, "p2", loss.Player)
	assert.Nil(t, loss.Then)
	assert.Zero(t, coinsOf(room, "p2"), "assassination cost is never refunded")
}

func TestMustCoupAtTenCoins(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 3)
	setCoins(room, "p1", internal.ForcedCoupThreshold)

	assert.ErrorIs(t, m.Declare(testRoom, "p1", internal.ActionTax, ""), ErrMustCoup)
	assert.ErrorIs(t, m.PerformSimpleAction(testRoom, "p1", internal.ActionIncome, ""), ErrMustCoup)

	require.NoError(t, m.PerformSimpleAction(testRoom, "p1", internal.ActionCoup, "p2"))
	assert.Equal(t, internal.ForcedCoupThreshold-internal.CoupCost, coinsOf(room, "p1"))

	loss, ok := pendingOf(room).(*internal.LossChoice)
	require.True(t, ok)
	assert.Equal(t, "p2", loss.Player)
	assert.Equal(t, internal.LossCoup, loss.Cause.Reason)
}

func TestDeclareDelegatesInstantActions(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, _ := startGame(t, m, 2)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionIncome, ""))
	assert.Equal(t, internal.StartingCoins+internal.IncomeAmount, coinsOf(room, "p1"))
	assert.Equal(t, "p2", currentID(room))
}

func TestTurnValidation(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	seatPlayers(t, m, "p1", "p2", "p3")

	assert.ErrorIs(t, m.Declare(testRoom, "p1", internal.ActionTax, ""), ErrGameNotStarted)
	require.NoError(t, m.StartGame(testRoom, "p1"))

	room, err := m.lookup(testRoom)
	require.NoError(t, err)
	withLock(room, func() { room.SetTurn(0) })

	tests := []struct {
		name   string
		player string
		action internal.ActionType
		target string
		want   error
	}{
		{"not your turn", "p2", internal.ActionTax, "", ErrNotYourTurn},
		{"unknown action", "p1", "bribe", "", ErrUnknownAction},
		{"steal yourself", "p1", internal.ActionSteal, "p1", ErrInvalidTarget},
		{"steal nobody", "p1", internal.ActionSteal, "ghost", ErrInvalidTarget},
		{"outsider", "p9", internal.ActionTax, "", ErrNotInRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Declare(testRoom, tt.player, tt.action, tt.target), tt.want)
		})
	}

	assert.ErrorIs(t, m.PerformSimpleAction(testRoom, "p1", internal.ActionTax, ""), ErrNotInstant)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionTax, ""))
	assert.ErrorIs(t, m.Declare(testRoom, "p1", internal.ActionForeignAid, ""), ErrActionPending)
	assert.ErrorIs(t, m.ChooseLossCard(testRoom, "p1", internal.RoleDuke), ErrNoPendingAction)
	assert.ErrorIs(t, m.ChooseExchangeReturn(testRoom, "p1", nil), ErrNoPendingAction)
	assert.ErrorIs(t, m.Permit(testRoom, "p1"), ErrNotAuthorized)
}

func TestConcurrentPermitsCommitOnce(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	room, ids := startGame(t, m, 6)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionForeignAid, ""))

	var wg sync.WaitGroup
	for _, id := range ids[1:] {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = m.Permit(testRoom, id)
		}(id)
	}
	wg.Wait()

	room.Mu.RLock()
	defer room.Mu.RUnlock()
	assert.Nil(t, room.Pending)
	assert.Equal(t, internal.StartingCoins+internal.ForeignAidAmount, room.GetPlayer("p1").Coins)
	assert.Equal(t, 1, room.Turns)
	assert.Equal(t, "p2", room.CurrentPlayer().Id)
}

func TestCommittedActionIgnoresItsOldTimer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResponseWindow = 30 * time.Millisecond
	m, _, _ := newTestManager(t, cfg)
	room, _ := startGame(t, m, 2)

	require.NoError(t, m.Declare(testRoom, "p1", internal.ActionForeignAid, ""))
	require.NoError(t, m.Permit(testRoom, "p2"))
	assert.Equal(t, internal.StartingCoins+internal.ForeignAidAmount, coinsOf(room, "p1"))

	time.Sleep(4 * cfg.ResponseWindow)
	assert.Equal(t, internal.StartingCoins+internal.ForeignAidAmount, coinsOf(room, "p1"))
	assert.Equal(t, "p2", currentID(room))
}
