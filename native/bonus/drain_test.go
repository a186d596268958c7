package bonus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"bonuschain/core/events"
)

func TestSecondSlotBonusReachesFirst(t *testing.T) {
	h := newHarness(t)
	h.start()
	alice, bob := acct("alice"), acct("bob")
	h.fund(alice, 1000)
	h.fund(bob, 1000)

	h.create(alice)
	second := h.create(bob)
	require.Equal(t, int64(35), second.BonusPerSlot.Int64())

	report := h.tick()
	require.Equal(t, uint64(1), report.Propagated)
	require.Equal(t, int64(35), h.slot(0).Value.Int64())
	require.Zero(t, h.slot(1).Value.Sign())
	require.Equal(t, uint64(1), h.slot(1).BonusCursor)
	require.Equal(t, uint64(2), h.round().DrainCursor)
	// advance + propagate + advance
	require.Equal(t, uint64(4), report.Used)
}

func TestDeferredOpenSettlesOnMatchingPropagation(t *testing.T) {
	h := newHarness(t)
	h.start()
	alice, bob, carol := acct("alice"), acct("bob"), acct("carol")
	for _, who := range [][20]byte{alice, bob, carol} {
		h.fund(who, 1000)
	}

	first := h.create(alice)
	h.create(bob)
	require.NoError(t, h.engine.Open(alice, first.ID))

	slot := h.slot(0)
	require.Equal(t, SlotStatusOpening, slot.Status)
	require.Equal(t, uint64(2), slot.OpenPosition)
	positions, err := h.engine.OpeningPositions()
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, positions)
	require.Len(t, h.events.OfType(events.TypeBonusSlotOpening), 1)
	require.Equal(t, uint64(1), h.round().ActiveCount)

	third := h.create(carol)
	require.Equal(t, int64(35), third.BonusPerSlot.Int64())

	report := h.tick()
	require.Equal(t, uint64(3), report.Propagated)
	slot = h.slot(0)
	require.Equal(t, SlotStatusOpened, slot.Status)
	require.Zero(t, slot.Value.Sign())
	// Bob's 35 and Carol's 35, doubled.
	require.Equal(t, int64(1000-100+140), h.balance(alice))
	require.Equal(t, int64(35), h.slot(1).Value.Int64())
	require.Equal(t, int64(35*3-70), h.pool(PoolReserve))

	positions, err = h.engine.OpeningPositions()
	require.NoError(t, err)
	require.Empty(t, positions)
	require.Zero(t, h.round().OpeningCount)
}

func TestNoSettlementBeforeSweepReachesOpenPosition(t *testing.T) {
	h := newHarness(t)
	h.start()
	alice, bob := acct("alice"), acct("bob")
	h.fund(alice, 1000)
	h.fund(bob, 1000)

	first := h.create(alice)
	h.create(bob)
	h.create(bob)
	require.NoError(t, h.engine.SetOpsBudget(h.params.Accounts.Admin, h.params.MinOpsBudget))
	require.NoError(t, h.engine.Open(alice, first.ID))

	for i := 0; i < 3; i++ {
		h.tick()
		r := h.round()
		slot := h.slot(0)
		if r.DrainCursor < slot.OpenPosition {
			require.Equal(t, SlotStatusOpening, slot.Status, "tick %d", i)
		}
	}
	for i := 0; i < 5 && h.slot(0).Status != SlotStatusOpened; i++ {
		h.tick()
	}
	require.Equal(t, SlotStatusOpened, h.slot(0).Status)
	// 35 from the second slot and 35/2 from the third, doubled.
	require.Equal(t, int64(1000-100+(35+17)*2), h.balance(alice))
}

func TestRegistrySettlesNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.start()
	owners := [][20]byte{acct("a"), acct("b"), acct("c"), acct("d")}
	ids := make([][32]byte, len(owners))
	for i, who := range owners {
		h.fund(who, 1000)
		ids[i] = h.create(who).ID
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, h.engine.Open(owners[i], ids[i]))
	}
	positions, err := h.engine.OpeningPositions()
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2}, positions)

	report := h.tick()
	require.Equal(t, uint64(3), report.Settled)

	opened := h.events.OfType(events.TypeBonusSlotOpened)
	require.Len(t, opened, 3)
	require.Equal(t, fmt.Sprintf("%x", ids[2]), opened[0].Attr("id"))
	require.Equal(t, fmt.Sprintf("%x", ids[1]), opened[1].Attr("id"))
	require.Equal(t, fmt.Sprintf("%x", ids[0]), opened[2].Attr("id"))
	for i := 0; i < 3; i++ {
		require.Equal(t, SlotStatusOpened, h.slot(uint64(i)).Status)
	}
	require.Equal(t, SlotStatusActive, h.slot(3).Status)
}

func TestRemoveOpeningSwapsWithLast(t *testing.T) {
	h := newHarness(t)
	r := &Round{}
	for _, pos := range []uint64{10, 11, 12, 13} {
		require.NoError(t, h.engine.pushOpening(r, pos))
	}
	require.NoError(t, h.engine.removeOpening(r, 11))
	require.Equal(t, uint64(3), r.OpeningCount)

	var got []uint64
	for i := uint64(0); i < r.OpeningCount; i++ {
		pos, err := h.engine.openingAt(i)
		require.NoError(t, err)
		got = append(got, pos)
	}
	require.Equal(t, []uint64{10, 13, 12}, got)

	index, ok, err := h.engine.openingIndex(13)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), index)
	_, ok, err = h.engine.openingIndex(11)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, h.engine.removeOpening(r, 12))
	require.NoError(t, h.engine.removeOpening(r, 10))
	require.NoError(t, h.engine.removeOpening(r, 13))
	require.Zero(t, r.OpeningCount)
	require.Error(t, h.engine.removeOpening(r, 13))
}

func TestTickBudgetAndCursorInvariants(t *testing.T) {
	h := newHarness(t)
	h.start()
	admin := h.params.Accounts.Admin
	require.NoError(t, h.engine.SetOpsBudget(admin, h.params.MinOpsBudget))

	const players = 25
	owners := make([][20]byte, players)
	for i := range owners {
		owners[i] = acct(fmt.Sprintf("player-%d", i))
		h.fund(owners[i], 10_000)
		h.create(owners[i])
	}
	// Open a few so both the immediate path and the registry are exercised.
	for _, i := range []int{0, 3, 7} {
		require.NoError(t, h.engine.OpenByIndex(owners[i], 0))
	}

	lastDrain := h.round().DrainCursor
	cursors := make(map[uint64]uint64)
	reset := false
	for tick := 0; tick < 2000 && !reset; tick++ {
		report := h.tick()
		require.LessOrEqual(t, report.Used, uint64(h.params.MinOpsBudget))
		reset = report.Reset

		r := h.round()
		require.GreaterOrEqual(t, r.DrainCursor, lastDrain)
		require.LessOrEqual(t, r.DrainCursor, r.AllSlotsCount)
		require.LessOrEqual(t, r.RoundStartPosition, r.DrainCursor)
		require.LessOrEqual(t, r.ReleasedCount, r.LatestCount)
		lastDrain = r.DrainCursor

		for pos := uint64(0); pos < r.AllSlotsCount; pos++ {
			slot := h.slot(pos)
			require.LessOrEqual(t, slot.BonusCursor, slot.CreatePosition)
			require.GreaterOrEqual(t, slot.BonusCursor, cursors[pos])
			cursors[pos] = slot.BonusCursor
			if slot.Status == SlotStatusOpened && pos != 0 && pos != 3 && pos != 7 {
				t.Fatalf("slot %d settled without being opened", pos)
			}
		}
	}
	require.True(t, reset, "round never reset")

	r := h.round()
	require.Equal(t, r.AllSlotsCount, r.RoundStartPosition)
	require.Equal(t, r.AllSlotsCount, r.DrainCursor)
	require.Zero(t, r.ActiveCount)
	require.Zero(t, r.OpeningCount)
	require.Zero(t, r.LatestCount)
	require.Equal(t, RoundStatusRunning, r.Status)
	for _, pos := range []uint64{0, 3, 7} {
		require.Equal(t, SlotStatusOpened, h.slot(pos).Status)
	}
}
