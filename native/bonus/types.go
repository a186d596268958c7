package bonus

import (
	"math/big"
	"strings"
)

// SlotStatus tracks a slot's settlement progress. It only moves forward.
type SlotStatus uint8

const (
	SlotStatusNone SlotStatus = iota
	SlotStatusActive
	SlotStatusOpening
	SlotStatusOpened
)

func (s SlotStatus) String() string {
	switch s {
	case SlotStatusActive:
		return "active"
	case SlotStatusOpening:
		return "opening"
	case SlotStatusOpened:
		return "opened"
	default:
		return "none"
	}
}

// Slot is a purchased ticket. Slots are addressed by their create position and
// are never deleted.
type Slot struct {
	ID             [32]byte
	Owner          [20]byte
	CreatePosition uint64
	Status         SlotStatus
	Value          *big.Int
	Invitor        *[20]byte `rlp:"nil"`
	OpenPosition   uint64
	BonusPerSlot   *big.Int
	// BonusCursor is the oldest target that has not yet received this
	// slot's BonusPerSlot. Bounded by CreatePosition.
	BonusCursor uint64
	Round       uint64
}

// Clone returns a deep copy of the slot.
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Value = newBigInt(s.Value)
	clone.BonusPerSlot = newBigInt(s.BonusPerSlot)
	if s.Invitor != nil {
		invitor := *s.Invitor
		clone.Invitor = &invitor
	}
	return &clone
}

func (s *Slot) ensureDefaults() {
	if s.Value == nil {
		s.Value = big.NewInt(0)
	}
	if s.BonusPerSlot == nil {
		s.BonusPerSlot = big.NewInt(0)
	}
}

// RoundStatus is the lifecycle state of the game.
type RoundStatus uint8

const (
	RoundStatusNone RoundStatus = iota
	RoundStatusInited
	RoundStatusRunning
	RoundStatusSettling
	RoundStatusPaused
	RoundStatusStopped
)

func (s RoundStatus) String() string {
	switch s {
	case RoundStatusInited:
		return "inited"
	case RoundStatusRunning:
		return "running"
	case RoundStatusSettling:
		return "settling"
	case RoundStatusPaused:
		return "paused"
	case RoundStatusStopped:
		return "stopped"
	default:
		return "none"
	}
}

// ParseRoundStatus converts the textual status accepted by the admin API.
func ParseRoundStatus(value string) (RoundStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return RoundStatusNone, true
	case "inited":
		return RoundStatusInited, true
	case "running":
		return RoundStatusRunning, true
	case "settling":
		return RoundStatusSettling, true
	case "paused":
		return RoundStatusPaused, true
	case "stopped":
		return RoundStatusStopped, true
	default:
		return RoundStatusNone, false
	}
}

// Round aggregates every global counter of the game. It is loaded once per
// call, threaded through each step and written back at the end.
type Round struct {
	Status               RoundStatus
	Timeout              uint32
	RoundCount           uint64
	RoundStartPosition   uint64
	DrainCursor          uint64
	ActiveCount          uint64
	MaxActiveCount       uint64
	PresetMaxActiveCount uint64
	AllSlotsCount        uint64
	UnitPrice            *big.Int
	AveragePrize         *big.Int
	OpsBudget            uint32
	Nonce                uint64
	PlayerCount          uint64
	OpeningCount         uint64
	LatestWriteIndex     uint64
	LatestCount          uint64
	ReleasedCount        uint64
	LastTick             uint64
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	clone.UnitPrice = newBigInt(r.UnitPrice)
	clone.AveragePrize = newBigInt(r.AveragePrize)
	return &clone
}

func (r *Round) ensureDefaults() {
	if r.UnitPrice == nil {
		r.UnitPrice = big.NewInt(0)
	}
	if r.AveragePrize == nil {
		r.AveragePrize = big.NewInt(0)
	}
}

func (r *Round) stale(slot *Slot) bool {
	return slot.CreatePosition < r.RoundStartPosition
}

// LatestEntry is one element of the latest-N prize queue.
type LatestEntry struct {
	Owner          [20]byte
	CreatePosition uint64
}

// PlayerStatus gates whether a player may invite others.
type PlayerStatus uint8

const (
	PlayerStatusNone PlayerStatus = iota
	PlayerStatusActive
	PlayerStatusForbidden
)

func (s PlayerStatus) String() string {
	switch s {
	case PlayerStatusActive:
		return "active"
	case PlayerStatusForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// ParsePlayerStatus accepts "active" or "forbidden".
func ParsePlayerStatus(value string) (PlayerStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "active":
		return PlayerStatusActive, true
	case "forbidden":
		return PlayerStatusForbidden, true
	default:
		return PlayerStatusNone, false
	}
}

// Player accumulates what an account has received from the game.
type Player struct {
	TotalBonus      *big.Int
	TotalPrize      *big.Int
	TotalCommission *big.Int
	Status          PlayerStatus
}

func newPlayer() *Player {
	return &Player{
		TotalBonus:      big.NewInt(0),
		TotalPrize:      big.NewInt(0),
		TotalCommission: big.NewInt(0),
		Status:          PlayerStatusActive,
	}
}

func (p *Player) ensureDefaults() {
	if p.TotalBonus == nil {
		p.TotalBonus = big.NewInt(0)
	}
	if p.TotalPrize == nil {
		p.TotalPrize = big.NewInt(0)
	}
	if p.TotalCommission == nil {
		p.TotalCommission = big.NewInt(0)
	}
}

// PoolRole names an entry of the internal system-account ledger.
type PoolRole string

const (
	PoolCustody    PoolRole = "custody"
	PoolReserve    PoolRole = "reserve"
	PoolPool       PoolRole = "pool"
	PoolLastPlayer PoolRole = "last_player"
	PoolTeam       PoolRole = "team"
	PoolOperator   PoolRole = "operator"
)

// PoolRoles lists every ledger role in a stable order.
func PoolRoles() []PoolRole {
	return []PoolRole{PoolCustody, PoolReserve, PoolPool, PoolLastPlayer, PoolTeam, PoolOperator}
}

// TickReport summarises the work done by one OnTick call.
type TickReport struct {
	Tick        uint64
	Budget      uint64
	Used        uint64
	Propagated  uint64
	Settled     uint64
	Released    uint64
	JackpotPaid bool
	Reset       bool
	Status      RoundStatus
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
