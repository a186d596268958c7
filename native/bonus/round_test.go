package bonus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bonuschain/core/events"
)

// tickUntilReset ticks until the round resets and returns the number of
// ticks taken.
func (h *harness) tickUntilReset(limit int) int {
	h.t.Helper()
	for i := 1; i <= limit; i++ {
		if h.tick().Reset {
			return i
		}
	}
	h.t.Fatalf("round did not reset within %d ticks", limit)
	return 0
}

func TestSingleSlotRoundSettles(t *testing.T) {
	h := newHarness(t)
	h.start()
	ray := acct("ray")
	h.fund(ray, 1000)
	h.create(ray)

	for i := 0; i < 4; i++ {
		report := h.tick()
		require.False(t, report.Reset)
		require.Equal(t, RoundStatusRunning, report.Status)
	}
	require.Equal(t, uint32(10), h.round().Timeout)

	report := h.tick()
	require.True(t, report.Reset)
	require.Equal(t, uint64(1), report.Released)
	require.True(t, report.JackpotPaid)

	// Average prize 10 plus the 5 jackpot.
	require.Equal(t, int64(915), h.balance(ray))
	require.Equal(t, int64(15), h.player(ray).TotalPrize.Int64())

	r := h.round()
	require.Equal(t, RoundStatusRunning, r.Status)
	require.Equal(t, uint64(2), r.RoundCount)
	require.Equal(t, uint64(1), r.RoundStartPosition)
	require.Equal(t, h.params.Expiration, r.Timeout)
	require.Zero(t, r.ActiveCount)
	require.Zero(t, r.LatestCount)
	require.Zero(t, r.AveragePrize.Sign())
	for _, role := range []PoolRole{PoolCustody, PoolReserve, PoolPool, PoolLastPlayer} {
		require.Zero(t, h.pool(role), role)
	}
	require.Equal(t, int64(5), h.pool(PoolTeam))
	require.Equal(t, int64(5), h.pool(PoolOperator))

	require.Len(t, h.events.OfType(events.TypeBonusRoundSettling), 1)
	require.Len(t, h.events.OfType(events.TypeBonusRoundReset), 1)
	require.Len(t, h.events.OfType(events.TypeBonusJackpotPaid), 1)
}

func TestPrizesPaidPerLatestEntry(t *testing.T) {
	h := newHarness(t)
	h.start()
	alice := acct("alice")
	h.fund(alice, 1000)
	h.create(alice)
	h.create(alice)

	h.tickUntilReset(10)
	// Two entries of 10 each and a jackpot of 10.
	require.Equal(t, int64(830), h.balance(alice))
	player := h.player(alice)
	require.Equal(t, int64(30), player.TotalPrize.Int64())
	require.Zero(t, player.TotalBonus.Sign())
	require.Len(t, h.events.OfType(events.TypeBonusPrizeReleased), 2)

	// The first slot kept its bonus past the reset and now pays it single.
	require.Equal(t, int64(35), h.slot(0).Value.Int64())
	pending, err := h.engine.IsPending(h.slot(0).ID)
	require.NoError(t, err)
	require.False(t, pending)
	require.NoError(t, h.engine.OpenByIndex(alice, 0))
	require.Equal(t, int64(865), h.balance(alice))
	require.Equal(t, SlotStatusOpened, h.slot(0).Status)

	r := h.round()
	require.Zero(t, r.ActiveCount)
	require.Zero(t, r.LatestCount)
	opened := h.events.OfType(events.TypeBonusSlotOpened)
	require.Equal(t, "false", opened[len(opened)-1].Attr("doubled"))
}

func TestTwoRoundGame(t *testing.T) {
	h := newHarness(t)
	h.start()
	ray, alice := acct("ray"), acct("alice")
	bob, dave, eve, ferdie := acct("bob"), acct("dave"), acct("eve"), acct("ferdie")
	for _, who := range [][20]byte{ray, alice, bob, dave, eve, ferdie} {
		h.fund(who, 100_000)
	}

	h.create(ray)
	require.Equal(t, int64(99_900), h.balance(ray))
	require.Zero(t, h.slot(0).BonusCursor)
	require.Zero(t, h.round().DrainCursor)

	h.tick()
	require.Equal(t, uint32(40), h.round().Timeout)
	require.Equal(t, uint64(1), h.round().DrainCursor)

	h.create(alice)
	r := h.round()
	require.Equal(t, uint64(2), r.AllSlotsCount)
	require.Equal(t, uint64(2), r.ActiveCount)
	require.Equal(t, uint32(50), r.Timeout)
	require.Zero(t, h.slot(1).BonusCursor)

	h.tick()
	require.Equal(t, uint32(40), h.round().Timeout)
	require.Equal(t, uint64(1), h.slot(1).BonusCursor)
	require.Equal(t, int64(35), h.slot(0).Value.Int64())

	require.NoError(t, h.engine.Open(ray, h.slot(0).ID))
	require.Equal(t, uint32(50), h.round().Timeout)
	require.Equal(t, int64(99_900+35*2), h.balance(ray))
	require.Equal(t, int64(20), h.pool(PoolPool))
	require.Zero(t, h.round().AveragePrize.Sign())

	for i := 0; i < 4; i++ {
		h.tick()
	}
	require.Equal(t, uint32(10), h.round().Timeout)

	require.True(t, h.tick().Reset)
	require.Zero(t, h.pool(PoolPool))
	require.Zero(t, h.round().AveragePrize.Sign())
	// Ray holds two latest entries and the jackpot, Alice one entry.
	require.Equal(t, int64(99_900+70+20/3*2+5*2), h.balance(ray))
	require.Equal(t, int64(99_992), h.balance(ray))
	require.Equal(t, int64(99_900+20/3), h.balance(alice))

	r = h.round()
	require.Equal(t, RoundStatusRunning, r.Status)
	require.Equal(t, uint32(50), r.Timeout)
	require.Equal(t, uint64(2), r.RoundStartPosition)
	require.Zero(t, r.ActiveCount)

	for _, who := range [][20]byte{bob, dave, eve, ferdie} {
		h.create(who)
	}
	r = h.round()
	require.Equal(t, uint32(50), r.Timeout)
	require.Equal(t, uint64(6), r.AllSlotsCount)
	require.Equal(t, uint64(4), r.ActiveCount)

	h.tick()
	require.Equal(t, uint32(40), h.round().Timeout)

	// Alice's slot is stale: it received nothing this round and opening it
	// is not an operation.
	require.Zero(t, h.slot(1).Value.Sign())
	require.NoError(t, h.engine.OpenByIndex(alice, 0))
	require.Equal(t, int64(99_906), h.balance(alice))
	require.Equal(t, uint32(40), h.round().Timeout)
	require.Equal(t, uint64(4), h.round().ActiveCount)

	second := h.slot(2)
	require.Equal(t, int64(35+35/2+35/3), second.Value.Int64())
	_, err := h.engine.Upgrade(ray, second.ID)
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = h.engine.Upgrade(bob, second.ID)
	require.ErrorIs(t, err, ErrInsufficientValue)

	require.Equal(t, int64(35/2+35/3), h.slot(3).Value.Int64())
	require.Equal(t, int64(35/3), h.slot(4).Value.Int64())
	require.Zero(t, h.slot(5).Value.Sign())

	for i := 0; i < 3; i++ {
		h.tick()
	}
	require.Equal(t, uint32(10), h.round().Timeout)
	require.Equal(t, int64(99_900), h.balance(ferdie))
}

func TestOpenWhileSettlingPaysSingle(t *testing.T) {
	h := newHarness(t)
	h.start()
	require.NoError(t, h.engine.SetOpsBudget(h.params.Accounts.Admin, h.params.MinOpsBudget))
	ray, alice := acct("ray"), acct("alice")
	h.fund(ray, 1000)
	h.fund(alice, 1000)
	h.create(ray)
	h.create(alice)

	var report TickReport
	for i := 0; i < 5; i++ {
		report = h.tick()
	}
	require.Equal(t, RoundStatusSettling, report.Status)
	require.Equal(t, uint64(1), report.Released)
	require.Equal(t, int64(10), h.round().AveragePrize.Int64())

	_, err := h.engine.Create(ray, nil)
	require.ErrorIs(t, err, ErrStatusNotReady)

	require.NoError(t, h.engine.OpenByIndex(ray, 0))
	require.Equal(t, int64(900+10+35), h.balance(ray))
	r := h.round()
	require.Equal(t, uint64(2), r.ActiveCount)
	require.Equal(t, uint64(2), r.LatestCount)
	require.Equal(t, int64(70), h.pool(PoolReserve))

	h.tickUntilReset(5)
	require.Equal(t, int64(945), h.balance(ray))
	// Alice's entry is the newest, so she also takes the jackpot.
	require.Equal(t, int64(920), h.balance(alice))
}

func TestFailedPayoutStillSettles(t *testing.T) {
	h := newHarness(t)
	h.start()
	ray, alice := acct("ray"), acct("alice")
	h.fund(ray, 1000)
	h.fund(alice, 1000)
	h.create(ray)
	h.create(alice)
	h.tick()
	require.Equal(t, int64(35), h.slot(0).Value.Int64())

	h.ledger.reject[ray] = true
	require.NoError(t, h.engine.OpenByIndex(ray, 0))

	slot := h.slot(0)
	require.Equal(t, SlotStatusOpened, slot.Status)
	require.Zero(t, slot.Value.Sign())
	require.Equal(t, int64(900), h.balance(ray))
	require.Zero(t, h.player(ray).TotalBonus.Sign())
	require.Equal(t, int64(70), h.pool(PoolReserve))
	require.Equal(t, uint64(1), h.round().ActiveCount)

	failed := h.events.OfType(events.TypeBonusPayoutFailed)
	require.Len(t, failed, 1)
	require.Equal(t, "bonus", failed[0].Attr("kind"))
	require.Equal(t, "70", failed[0].Attr("amount"))
}

func TestTickIgnoredWhenNotRunning(t *testing.T) {
	h := newHarness(t)
	report := h.tick()
	require.Equal(t, RoundStatusNone, report.Status)
	require.Zero(t, report.Used)

	h.start()
	ray := acct("ray")
	h.fund(ray, 1000)
	h.create(ray)
	admin := h.params.Accounts.Admin

	require.NoError(t, h.engine.SetStatus(admin, RoundStatusPaused))
	for i := 0; i < 10; i++ {
		report = h.tick()
		require.Equal(t, RoundStatusPaused, report.Status)
		require.Zero(t, report.Used)
	}
	r := h.round()
	require.Equal(t, uint32(50), r.Timeout)
	require.Zero(t, r.DrainCursor)

	require.NoError(t, h.engine.SetStatus(admin, RoundStatusStopped))
	report = h.tick()
	require.Equal(t, RoundStatusStopped, report.Status)
	require.Zero(t, report.Used)
	require.Equal(t, uint32(50), h.round().Timeout)
}

func TestEmptyRoundResets(t *testing.T) {
	h := newHarness(t)
	h.start()

	ticks := h.tickUntilReset(10)
	require.Equal(t, 5, ticks)
	require.Equal(t, uint64(2), h.round().RoundCount)
	require.Empty(t, h.events.OfType(events.TypeBonusJackpotPaid))

	h.tickUntilReset(10)
	r := h.round()
	require.Equal(t, uint64(3), r.RoundCount)
	require.Zero(t, r.RoundStartPosition)
	require.Zero(t, r.AllSlotsCount)
	require.Equal(t, RoundStatusRunning, r.Status)
}

func TestLatestQueueKeepsNewest(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.MaxLatest = 3 })
	h.start()
	owners := [][20]byte{acct("a"), acct("b"), acct("c"), acct("d"), acct("e")}
	for _, who := range owners {
		h.fund(who, 1000)
		h.create(who)
	}
	entries, err := h.engine.LatestEntries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		require.Equal(t, owners[i+2], entry.Owner)
		require.Equal(t, uint64(i+2), entry.CreatePosition)
	}

	h.tickUntilReset(10)
	// Pool 50 over three entries; e also takes the 25 jackpot.
	require.Equal(t, int64(900), h.balance(owners[0]))
	require.Equal(t, int64(900+16), h.balance(owners[2]))
	require.Equal(t, int64(900+16+25), h.balance(owners[4]))

	entries, err = h.engine.LatestEntries()
	require.NoError(t, err)
	require.Empty(t, entries)
}
