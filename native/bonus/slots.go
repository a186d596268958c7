package bonus

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bonuschain/core/events"
)

// slotID derives a replica-independent identifier for a new slot.
func slotID(owner [20]byte, nonce, position, round uint64) [32]byte {
	var buf [20 + 8*3]byte
	copy(buf[:20], owner[:])
	binary.BigEndian.PutUint64(buf[20:28], nonce)
	binary.BigEndian.PutUint64(buf[28:36], position)
	binary.BigEndian.PutUint64(buf[36:44], round)
	return [32]byte(ethcrypto.Keccak256Hash(buf[:]))
}

// Create buys a slot for caller at the round's unit price. A non-nil invitor
// must be an active player and caller must not already be one.
func (e *Engine) Create(caller [20]byte, invitor *[20]byte) (*Slot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	r, err := e.requireRound()
	if err != nil {
		return nil, err
	}
	if r.Status != RoundStatusRunning {
		return nil, ErrStatusNotReady
	}
	if e.params.Accounts.IsSystem(caller) {
		return nil, ErrSystemAccount
	}
	if err := e.checkInvite(invitor, caller); err != nil {
		return nil, err
	}
	slot, ownedCount, err := e.prepareSlot(r, caller, invitor)
	if err != nil {
		return nil, err
	}
	split := ComputeSplit(r.UnitPrice, r.ActiveCount, e.params.Ratios, invitor != nil)
	if err := e.checkFunding(caller, r.UnitPrice, split.Commission); err != nil {
		return nil, err
	}
	if err := e.commitSlot(r, slot, ownedCount, split, true); err != nil {
		return nil, err
	}
	if err := e.saveRound(r); err != nil {
		return nil, err
	}
	return slot.Clone(), nil
}

// Upgrade spends unit price out of an active slot's value to buy a new slot
// for the same owner. Stale slots qualify as long as they carry the value.
func (e *Engine) Upgrade(caller [20]byte, id [32]byte) (*Slot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	r, err := e.requireRound()
	if err != nil {
		return nil, err
	}
	if r.Status != RoundStatusRunning {
		return nil, ErrStatusNotReady
	}
	old, err := e.ownedActiveSlot(caller, id)
	if err != nil {
		return nil, err
	}
	if old.Value.Cmp(r.UnitPrice) < 0 {
		return nil, ErrInsufficientValue
	}
	slot, ownedCount, err := e.prepareSlot(r, caller, nil)
	if err != nil {
		return nil, err
	}
	split := ComputeSplit(r.UnitPrice, r.ActiveCount, e.params.Ratios, false)
	if err := e.commitSlot(r, slot, ownedCount, split, false); err != nil {
		return nil, err
	}
	old.Value.Sub(old.Value, r.UnitPrice)
	if err := e.putSlot(old); err != nil {
		return nil, err
	}
	if err := e.saveRound(r); err != nil {
		return nil, err
	}
	e.emit(events.BonusSlotUpgraded{ID: old.ID, NewID: slot.ID, Owner: caller, Cost: newBigInt(r.UnitPrice)})
	return slot.Clone(), nil
}

// UpgradeByIndex upgrades the caller's index-th slot.
func (e *Engine) UpgradeByIndex(caller [20]byte, index uint64) (*Slot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	id, err := e.ownedSlotID(caller, index)
	if err != nil {
		return nil, err
	}
	return e.Upgrade(caller, id)
}

// Open requests settlement of an active slot. The slot is paid at once when
// no bonus can still reach it; otherwise it waits in the opening registry.
// Opening during a running round pays double and counts as an operation.
func (e *Engine) Open(caller [20]byte, id [32]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	r, err := e.requireRound()
	if err != nil {
		return err
	}
	switch r.Status {
	case RoundStatusRunning, RoundStatusSettling, RoundStatusPaused:
	default:
		return ErrStatusNotReady
	}
	slot, err := e.ownedActiveSlot(caller, id)
	if err != nil {
		return err
	}
	slot.OpenPosition = r.AllSlotsCount
	slot.Status = SlotStatusOpening
	hasPending, double := e.pendingState(r, slot)
	if double && r.ActiveCount == 0 {
		return fmt.Errorf("%w: active slot count", ErrCounterOverflow)
	}

	if hasPending {
		if err := e.pushOpening(r, slot.CreatePosition); err != nil {
			return err
		}
		e.emit(events.BonusSlotOpening{ID: slot.ID, Owner: slot.Owner, OpenPosition: slot.OpenPosition})
	} else if err := e.settle(r, slot, double, false, "immediate"); err != nil {
		return err
	}
	if err := e.putSlot(slot); err != nil {
		return err
	}
	if double {
		r.ActiveCount--
		if err := e.recordOperation(r, caller, slot); err != nil {
			return err
		}
	}
	return e.saveRound(r)
}

// OpenByIndex opens the caller's index-th slot.
func (e *Engine) OpenByIndex(caller [20]byte, index uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	id, err := e.ownedSlotID(caller, index)
	if err != nil {
		return err
	}
	return e.Open(caller, id)
}

func (e *Engine) ownedActiveSlot(caller [20]byte, id [32]byte) (*Slot, error) {
	slot, err := e.getSlotByID(id)
	if err != nil {
		return nil, err
	}
	if slot.Owner != caller {
		return nil, ErrNotOwner
	}
	if slot.Status != SlotStatusActive {
		return nil, ErrSlotNotActive
	}
	return slot, nil
}

// prepareSlot runs every insertion check and builds the slot without writing
// anything.
func (e *Engine) prepareSlot(r *Round, owner [20]byte, invitor *[20]byte) (*Slot, uint64, error) {
	ownedCount, err := e.ownedCount(owner)
	if err != nil {
		return nil, 0, err
	}
	if ownedCount == math.MaxUint64 {
		return nil, 0, fmt.Errorf("%w: owned slots", ErrCounterOverflow)
	}
	if r.AllSlotsCount == math.MaxUint64 {
		return nil, 0, fmt.Errorf("%w: total slots", ErrCounterOverflow)
	}
	if r.ActiveCount == math.MaxUint64 {
		return nil, 0, fmt.Errorf("%w: active slots", ErrCounterOverflow)
	}
	if r.ActiveCount+1 > r.MaxActiveCount {
		return nil, 0, ErrMaxActiveExceeded
	}
	id := slotID(owner, r.Nonce, r.AllSlotsCount, r.RoundCount)
	if _, exists, err := e.slotPosition(id); err != nil {
		return nil, 0, err
	} else if exists {
		return nil, 0, ErrSlotExists
	}
	slot := &Slot{
		ID:             id,
		Owner:          owner,
		CreatePosition: r.AllSlotsCount,
		Status:         SlotStatusActive,
		Value:          big.NewInt(0),
		BonusPerSlot:   big.NewInt(0),
		BonusCursor:    r.RoundStartPosition,
		Round:          r.RoundCount,
	}
	if invitor != nil {
		inv := *invitor
		slot.Invitor = &inv
	}
	return slot, ownedCount, nil
}

// checkFunding verifies the buyer can pay and custody can cover the
// commission once the price has arrived.
func (e *Engine) checkFunding(owner [20]byte, price, commission *big.Int) error {
	balance, err := e.currency.BalanceOf(owner)
	if err != nil {
		return fmt.Errorf("bonus: owner balance: %w", err)
	}
	if balance.Cmp(price) < 0 {
		return ErrInsufficientFunds
	}
	if commission == nil || commission.Sign() == 0 {
		return nil
	}
	custody, err := e.currency.BalanceOf(e.params.Accounts.Custody)
	if err != nil {
		return fmt.Errorf("bonus: custody balance: %w", err)
	}
	if new(big.Int).Add(custody, price).Cmp(commission) < 0 {
		return fmt.Errorf("%w: custody cannot cover commission", ErrInsufficientFunds)
	}
	return nil
}

// commitSlot performs every write of a slot purchase. All checks have passed.
func (e *Engine) commitSlot(r *Round, slot *Slot, ownedCount uint64, split Split, fund bool) error {
	if fund {
		if err := e.currency.Transfer(slot.Owner, e.params.Accounts.Custody, r.UnitPrice); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}
	slot.BonusPerSlot = newBigInt(split.BonusPerSlot)
	if err := e.applySplit(split, slot.Owner, slot.Invitor); err != nil {
		return err
	}
	if err := e.insertSlot(r, slot, ownedCount); err != nil {
		return err
	}
	if err := e.recordOperation(r, slot.Owner, slot); err != nil {
		return err
	}
	if err := e.registerPlayer(r, slot.Owner); err != nil {
		return err
	}
	r.Nonce++
	e.emit(events.BonusSlotCreated{
		ID:           slot.ID,
		Owner:        slot.Owner,
		Position:     slot.CreatePosition,
		Round:        slot.Round,
		BonusPerSlot: newBigInt(slot.BonusPerSlot),
		Invitor:      slot.Invitor,
		Funded:       fund,
	})
	return nil
}
