package bonus

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

var roundKeyBytes = []byte("bonus/round")

const (
	slotKeyFormat        = "bonus/slot/%d"
	slotIDKeyFormat      = "bonus/slot-id/%x"
	ownedKeyFormat       = "bonus/owned/%x/%d"
	ownedCountKeyFormat  = "bonus/owned-count/%x"
	ownedIndexKeyFormat  = "bonus/owned-index/%x"
	openingKeyFormat     = "bonus/opening/%d"
	openingPosKeyFormat  = "bonus/opening-pos/%d"
	latestKeyFormat      = "bonus/latest/%d"
	playerKeyFormat      = "bonus/player/%x"
	poolBalanceKeyFormat = "bonus/pool/%s"
)

func slotKey(pos uint64) []byte { return []byte(fmt.Sprintf(slotKeyFormat, pos)) }

func slotIDKey(id [32]byte) []byte { return []byte(fmt.Sprintf(slotIDKeyFormat, id[:])) }

func ownedKey(owner [20]byte, index uint64) []byte {
	return []byte(fmt.Sprintf(ownedKeyFormat, owner[:], index))
}

func ownedCountKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf(ownedCountKeyFormat, owner[:]))
}

func ownedIndexKey(id [32]byte) []byte { return []byte(fmt.Sprintf(ownedIndexKeyFormat, id[:])) }

func openingKey(index uint64) []byte { return []byte(fmt.Sprintf(openingKeyFormat, index)) }

func openingPosKey(pos uint64) []byte { return []byte(fmt.Sprintf(openingPosKeyFormat, pos)) }

func latestKey(slot uint64) []byte { return []byte(fmt.Sprintf(latestKeyFormat, slot)) }

func playerKey(addr [20]byte) []byte { return []byte(fmt.Sprintf(playerKeyFormat, addr[:])) }

func poolBalanceKey(role PoolRole) []byte {
	return []byte(fmt.Sprintf(poolBalanceKeyFormat, role))
}

func (e *Engine) loadRound() (*Round, bool, error) {
	var r Round
	ok, err := e.state.KVGet(roundKeyBytes, &r)
	if err != nil {
		return nil, false, fmt.Errorf("bonus: load round: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	r.ensureDefaults()
	return &r, true, nil
}

// requireRound loads the round or fails with ErrNotInitialized.
func (e *Engine) requireRound() (*Round, error) {
	r, ok, err := e.loadRound()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return r, nil
}

func (e *Engine) saveRound(r *Round) error {
	if err := e.state.KVPut(roundKeyBytes, r); err != nil {
		return fmt.Errorf("bonus: save round: %w", err)
	}
	return nil
}

func (e *Engine) getSlot(pos uint64) (*Slot, error) {
	var slot Slot
	ok, err := e.state.KVGet(slotKey(pos), &slot)
	if err != nil {
		return nil, fmt.Errorf("bonus: load slot %d: %w", pos, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: position %d", ErrSlotNotFound, pos)
	}
	slot.ensureDefaults()
	return &slot, nil
}

func (e *Engine) putSlot(slot *Slot) error {
	if err := e.state.KVPut(slotKey(slot.CreatePosition), slot); err != nil {
		return fmt.Errorf("bonus: store slot %d: %w", slot.CreatePosition, err)
	}
	return nil
}

func (e *Engine) slotPosition(id [32]byte) (uint64, bool, error) {
	var pos uint64
	ok, err := e.state.KVGet(slotIDKey(id), &pos)
	if err != nil {
		return 0, false, fmt.Errorf("bonus: load slot index %s: %w", hex.EncodeToString(id[:]), err)
	}
	return pos, ok, nil
}

func (e *Engine) getSlotByID(id [32]byte) (*Slot, error) {
	pos, ok, err := e.slotPosition(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrSlotNotFound, hex.EncodeToString(id[:]))
	}
	return e.getSlot(pos)
}

func (e *Engine) ownedCount(owner [20]byte) (uint64, error) {
	var count uint64
	if _, err := e.state.KVGet(ownedCountKey(owner), &count); err != nil {
		return 0, fmt.Errorf("bonus: load owned count: %w", err)
	}
	return count, nil
}

func (e *Engine) ownedSlotID(owner [20]byte, index uint64) ([32]byte, error) {
	var id [32]byte
	ok, err := e.state.KVGet(ownedKey(owner, index), &id)
	if err != nil {
		return id, fmt.Errorf("bonus: load owned slot: %w", err)
	}
	if !ok {
		return id, fmt.Errorf("%w: owner index %d", ErrSlotNotFound, index)
	}
	return id, nil
}

// insertSlot appends the slot to the global and owner indexes. The caller
// has already checked the counters.
func (e *Engine) insertSlot(r *Round, slot *Slot, ownedCount uint64) error {
	if err := e.putSlot(slot); err != nil {
		return err
	}
	if err := e.state.KVPut(slotIDKey(slot.ID), slot.CreatePosition); err != nil {
		return fmt.Errorf("bonus: index slot id: %w", err)
	}
	if err := e.state.KVPut(ownedKey(slot.Owner, ownedCount), slot.ID); err != nil {
		return fmt.Errorf("bonus: index owned slot: %w", err)
	}
	if err := e.state.KVPut(ownedIndexKey(slot.ID), ownedCount); err != nil {
		return fmt.Errorf("bonus: index owned position: %w", err)
	}
	if err := e.state.KVPut(ownedCountKey(slot.Owner), ownedCount+1); err != nil {
		return fmt.Errorf("bonus: store owned count: %w", err)
	}
	r.AllSlotsCount++
	r.ActiveCount++
	return nil
}

func (e *Engine) getPlayer(addr [20]byte) (*Player, bool, error) {
	var player Player
	ok, err := e.state.KVGet(playerKey(addr), &player)
	if err != nil {
		return nil, false, fmt.Errorf("bonus: load player: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	player.ensureDefaults()
	return &player, true, nil
}

func (e *Engine) putPlayer(addr [20]byte, player *Player) error {
	if err := e.state.KVPut(playerKey(addr), player); err != nil {
		return fmt.Errorf("bonus: store player: %w", err)
	}
	return nil
}

func (e *Engine) poolBalance(role PoolRole) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := e.state.KVGet(poolBalanceKey(role), amount)
	if err != nil {
		return nil, fmt.Errorf("bonus: load %s balance: %w", role, err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (e *Engine) setPoolBalance(role PoolRole, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		amount = big.NewInt(0)
	}
	if err := e.state.KVPut(poolBalanceKey(role), amount); err != nil {
		return fmt.Errorf("bonus: store %s balance: %w", role, err)
	}
	return nil
}

func (e *Engine) creditPool(role PoolRole, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := e.poolBalance(role)
	if err != nil {
		return err
	}
	return e.setPoolBalance(role, balance.Add(balance, amount))
}

// debitPool subtracts amount, saturating at zero.
func (e *Engine) debitPool(role PoolRole, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := e.poolBalance(role)
	if err != nil {
		return err
	}
	balance.Sub(balance, amount)
	if balance.Sign() < 0 {
		balance.SetInt64(0)
	}
	return e.setPoolBalance(role, balance)
}

func (e *Engine) latestAt(index uint64) (LatestEntry, error) {
	var entry LatestEntry
	ok, err := e.state.KVGet(latestKey(index%e.params.MaxLatest), &entry)
	if err != nil {
		return entry, fmt.Errorf("bonus: load latest entry: %w", err)
	}
	if !ok {
		return entry, fmt.Errorf("bonus: latest entry %d missing", index)
	}
	return entry, nil
}

// pushLatest appends to the circular queue, evicting the oldest entry once
// MaxLatest entries are held.
func (e *Engine) pushLatest(r *Round, entry LatestEntry) error {
	if err := e.state.KVPut(latestKey(r.LatestWriteIndex%e.params.MaxLatest), &entry); err != nil {
		return fmt.Errorf("bonus: store latest entry: %w", err)
	}
	if r.LatestCount < e.params.MaxLatest {
		r.LatestCount++
	}
	r.LatestWriteIndex++
	return nil
}

func (e *Engine) clearLatest(r *Round) error {
	for i := uint64(1); i <= r.LatestCount; i++ {
		if err := e.state.KVDelete(latestKey((r.LatestWriteIndex - i) % e.params.MaxLatest)); err != nil {
			return fmt.Errorf("bonus: clear latest entry: %w", err)
		}
	}
	r.LatestWriteIndex = 0
	r.LatestCount = 0
	r.ReleasedCount = 0
	return nil
}
