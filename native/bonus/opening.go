package bonus

import (
	"fmt"
	"log/slog"
	"math/big"

	"bonuschain/core/events"
	"bonuschain/crypto"
)

// pendingState reports whether slot may still receive bonus and whether its
// settlement is doubled. Stale slots have nothing pending and are never
// doubled; settling rounds pay single value.
func (e *Engine) pendingState(r *Round, slot *Slot) (hasPending, double bool) {
	if r.stale(slot) {
		return false, false
	}
	double = r.Status == RoundStatusRunning
	if r.DrainCursor >= r.AllSlotsCount {
		return false, double
	}
	return true, double
}

// Opening registry: a dense array plus a position -> index+1 map.

func (e *Engine) openingAt(index uint64) (uint64, error) {
	var pos uint64
	ok, err := e.state.KVGet(openingKey(index), &pos)
	if err != nil {
		return 0, fmt.Errorf("bonus: load opening entry: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("bonus: opening entry %d missing", index)
	}
	return pos, nil
}

func (e *Engine) openingIndex(pos uint64) (uint64, bool, error) {
	var marker uint64
	ok, err := e.state.KVGet(openingPosKey(pos), &marker)
	if err != nil {
		return 0, false, fmt.Errorf("bonus: load opening index: %w", err)
	}
	if !ok || marker == 0 {
		return 0, false, nil
	}
	return marker - 1, true, nil
}

func (e *Engine) pushOpening(r *Round, pos uint64) error {
	index := r.OpeningCount
	if err := e.state.KVPut(openingKey(index), pos); err != nil {
		return fmt.Errorf("bonus: store opening entry: %w", err)
	}
	if err := e.state.KVPut(openingPosKey(pos), index+1); err != nil {
		return fmt.Errorf("bonus: store opening index: %w", err)
	}
	r.OpeningCount++
	return nil
}

// removeOpening swaps the entry with the last one and pops it.
func (e *Engine) removeOpening(r *Round, pos uint64) error {
	index, ok, err := e.openingIndex(pos)
	if err != nil {
		return err
	}
	if !ok || r.OpeningCount == 0 {
		return fmt.Errorf("bonus: slot %d is not in the opening registry", pos)
	}
	last := r.OpeningCount - 1
	if index != last {
		moved, err := e.openingAt(last)
		if err != nil {
			return err
		}
		if err := e.state.KVPut(openingKey(index), moved); err != nil {
			return fmt.Errorf("bonus: store opening entry: %w", err)
		}
		if err := e.state.KVPut(openingPosKey(moved), index+1); err != nil {
			return fmt.Errorf("bonus: store opening index: %w", err)
		}
	}
	if err := e.state.KVDelete(openingKey(last)); err != nil {
		return fmt.Errorf("bonus: delete opening entry: %w", err)
	}
	if err := e.state.KVDelete(openingPosKey(pos)); err != nil {
		return fmt.Errorf("bonus: delete opening index: %w", err)
	}
	r.OpeningCount = last
	return nil
}

// processOpening settles registry entries newest first. It returns true once
// the registry is empty.
func (e *Engine) processOpening(r *Round, b *budget, stats *drainStats) (bool, error) {
	for r.OpeningCount > 0 {
		if !b.spend(costSettle) {
			return false, nil
		}
		pos, err := e.openingAt(r.OpeningCount - 1)
		if err != nil {
			return false, err
		}
		slot, err := e.getSlot(pos)
		if err != nil {
			return false, err
		}
		if err := e.settle(r, slot, true, true, "registry"); err != nil {
			return false, err
		}
		if err := e.putSlot(slot); err != nil {
			return false, err
		}
		stats.settled++
	}
	return true, nil
}

// settle pays out the slot's value and marks it opened. The payout is best
// effort: a rejected transfer is logged and reported, and bookkeeping still
// advances. The caller persists the slot.
func (e *Engine) settle(r *Round, slot *Slot, double, remove bool, path string) error {
	amount := newBigInt(slot.Value)
	if double {
		amount.Add(amount, slot.Value)
	}
	if amount.Sign() > 0 && e.payout("bonus", slot.Owner, amount) {
		if err := e.addPlayerTotal(slot.Owner, amount, bonusTotal); err != nil {
			return err
		}
		if double {
			if err := e.debitPool(PoolReserve, slot.Value); err != nil {
				return err
			}
		}
	}
	if remove {
		if err := e.removeOpening(r, slot.CreatePosition); err != nil {
			return err
		}
	}
	slot.Value = big.NewInt(0)
	slot.Status = SlotStatusOpened
	e.emit(events.BonusSlotOpened{ID: slot.ID, Owner: slot.Owner, Amount: amount, Doubled: double, Path: path})
	return nil
}

// payout transfers amount from custody to the recipient and reports whether
// the ledger accepted it.
func (e *Engine) payout(kind string, to [20]byte, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	err := e.currency.Transfer(e.params.Accounts.Custody, to, amount)
	if err == nil {
		return true
	}
	e.logger.Warn("bonus payout failed",
		slog.String("kind", kind),
		slog.String("to", crypto.FormatAccount(to)),
		slog.String("amount", amount.String()),
		slog.Any("error", err))
	e.emit(events.BonusPayoutFailed{Kind: kind, To: to, Amount: newBigInt(amount), Reason: err.Error()})
	return false
}
