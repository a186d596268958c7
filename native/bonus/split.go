package bonus

import (
	"fmt"
	"math/big"

	"bonuschain/core/events"
)

var hundred = big.NewInt(100)

// Split is the division of one unit price across the slot bonus, the
// internal pools and the invitor.
type Split struct {
	Unit         *big.Int
	DboxTotal    *big.Int
	BonusPerSlot *big.Int
	Reserve      *big.Int
	Pool         *big.Int
	LastPlayer   *big.Int
	Team         *big.Int
	Operator     *big.Int
	// Commission is zero when the slot has no invitor.
	Commission *big.Int
}

// ComputeSplit divides price for a slot created while activeCount other
// slots are active. With no active slots the bonus seeds nothing.
func ComputeSplit(price *big.Int, activeCount uint64, ratios Ratios, hasInvitor bool) Split {
	unit := new(big.Int).Quo(newBigInt(price), hundred)
	share := func(ratio uint32) *big.Int {
		return new(big.Int).Mul(unit, new(big.Int).SetUint64(uint64(ratio)))
	}
	split := Split{
		Unit:         unit,
		DboxTotal:    share(ratios.Dbox),
		BonusPerSlot: big.NewInt(0),
		Reserve:      share(ratios.Reserve),
		Pool:         share(ratios.Pool),
		LastPlayer:   share(ratios.LastPlayer),
		Team:         share(ratios.Team),
		Operator:     share(ratios.Operator),
		Commission:   big.NewInt(0),
	}
	if activeCount > 0 {
		split.BonusPerSlot = new(big.Int).Quo(split.DboxTotal, new(big.Int).SetUint64(activeCount))
	}
	if hasInvitor {
		split.Commission = share(ratios.Invitor)
	}
	return split
}

// Total is the amount the split allocates. It never exceeds the price.
func (s Split) Total() *big.Int {
	total := new(big.Int)
	for _, part := range []*big.Int{s.DboxTotal, s.Reserve, s.Pool, s.LastPlayer, s.Team, s.Operator, s.Commission} {
		if part != nil {
			total.Add(total, part)
		}
	}
	return total
}

func (s Split) poolCredits() []struct {
	role   PoolRole
	amount *big.Int
} {
	return []struct {
		role   PoolRole
		amount *big.Int
	}{
		{PoolReserve, s.Reserve},
		{PoolPool, s.Pool},
		{PoolLastPlayer, s.LastPlayer},
		{PoolTeam, s.Team},
		{PoolOperator, s.Operator},
	}
}

// applySplit credits the internal pools and pays the invitor's commission
// out of custody. Custody funding was checked by the caller.
func (e *Engine) applySplit(split Split, invitee [20]byte, invitor *[20]byte) error {
	for _, credit := range split.poolCredits() {
		if err := e.creditPool(credit.role, credit.amount); err != nil {
			return err
		}
	}
	if invitor == nil || split.Commission.Sign() == 0 {
		return nil
	}
	if err := e.currency.Transfer(e.params.Accounts.Custody, *invitor, split.Commission); err != nil {
		return fmt.Errorf("%w: commission: %v", ErrInsufficientFunds, err)
	}
	if err := e.addPlayerTotal(*invitor, split.Commission, commissionTotal); err != nil {
		return err
	}
	e.emit(events.BonusCommissionPaid{Invitor: *invitor, Invitee: invitee, Amount: newBigInt(split.Commission)})
	return nil
}
