package bonus

import "math/big"

// Round returns a snapshot of the round state.
func (e *Engine) Round() (*Round, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.requireRound()
}

// Slot returns the slot created at position.
func (e *Engine) Slot(position uint64) (*Slot, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.getSlot(position)
}

// SlotByID returns the slot with the given id.
func (e *Engine) SlotByID(id [32]byte) (*Slot, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.getSlotByID(id)
}

// SlotOfOwner returns the owner's index-th slot.
func (e *Engine) SlotOfOwner(owner [20]byte, index uint64) (*Slot, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	id, err := e.ownedSlotID(owner, index)
	if err != nil {
		return nil, err
	}
	return e.getSlotByID(id)
}

// OwnedSlotCount returns how many slots owner has bought.
func (e *Engine) OwnedSlotCount(owner [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.ownedCount(owner)
}

// Player returns the statistics of addr.
func (e *Engine) Player(addr [20]byte) (*Player, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	player, ok, err := e.getPlayer(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return player, nil
}

// PoolBalance returns the internal ledger balance of role.
func (e *Engine) PoolBalance(role PoolRole) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.poolBalance(role)
}

// LatestEntries returns the latest queue, oldest first.
func (e *Engine) LatestEntries() ([]LatestEntry, error) {
	r, err := e.Round()
	if err != nil {
		return nil, err
	}
	out := make([]LatestEntry, 0, r.LatestCount)
	for i := r.LatestWriteIndex - r.LatestCount; i < r.LatestWriteIndex; i++ {
		entry, err := e.latestAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// OpeningPositions returns the create positions waiting in the opening
// registry in registry order.
func (e *Engine) OpeningPositions() ([]uint64, error) {
	r, err := e.Round()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, r.OpeningCount)
	for i := uint64(0); i < r.OpeningCount; i++ {
		pos, err := e.openingAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// IsPending reports whether the slot could still receive bonus if it were
// opened now.
func (e *Engine) IsPending(id [32]byte) (bool, error) {
	r, err := e.Round()
	if err != nil {
		return false, err
	}
	slot, err := e.getSlotByID(id)
	if err != nil {
		return false, err
	}
	hasPending, _ := e.pendingState(r, slot)
	return hasPending, nil
}
