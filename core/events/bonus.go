package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"bonuschain/core/types"
	"bonuschain/crypto"
)

const (
	TypeBonusSlotCreated    = "bonus.slot.created"
	TypeBonusSlotUpgraded   = "bonus.slot.upgraded"
	TypeBonusSlotOpening    = "bonus.slot.opening"
	TypeBonusSlotOpened     = "bonus.slot.opened"
	TypeBonusCommissionPaid = "bonus.commission.paid"
	TypeBonusRoundInited    = "bonus.round.inited"
	TypeBonusRoundStatus    = "bonus.round.status"
	TypeBonusRoundSettling  = "bonus.round.settling"
	TypeBonusRoundReset     = "bonus.round.reset"
	TypeBonusPrizeReleased  = "bonus.prize.released"
	TypeBonusJackpotPaid    = "bonus.jackpot.paid"
	TypeBonusPayoutFailed   = "bonus.payout.failed"
	TypeBonusPlayerStatus   = "bonus.player.status"
)

// BonusSlotCreated is emitted when a slot is appended to the store.
type BonusSlotCreated struct {
	ID           [32]byte
	Owner        [20]byte
	Position     uint64
	Round        uint64
	BonusPerSlot *big.Int
	Invitor      *[20]byte
	Funded       bool
}

func (BonusSlotCreated) EventType() string { return TypeBonusSlotCreated }

func (e BonusSlotCreated) Event() *types.Event {
	attrs := map[string]string{
		"id":           hex.EncodeToString(e.ID[:]),
		"owner":        crypto.FormatAccount(e.Owner),
		"position":     strconv.FormatUint(e.Position, 10),
		"round":        strconv.FormatUint(e.Round, 10),
		"bonusPerSlot": formatAmount(e.BonusPerSlot),
		"funded":       strconv.FormatBool(e.Funded),
	}
	if e.Invitor != nil {
		attrs["invitor"] = crypto.FormatAccount(*e.Invitor)
	}
	return &types.Event{Type: TypeBonusSlotCreated, Attributes: attrs}
}

// BonusSlotUpgraded is emitted when a slot's value funds a new slot.
type BonusSlotUpgraded struct {
	ID    [32]byte
	NewID [32]byte
	Owner [20]byte
	Cost  *big.Int
}

func (BonusSlotUpgraded) EventType() string { return TypeBonusSlotUpgraded }

func (e BonusSlotUpgraded) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusSlotUpgraded,
		Attributes: map[string]string{
			"id":    hex.EncodeToString(e.ID[:]),
			"newId": hex.EncodeToString(e.NewID[:]),
			"owner": crypto.FormatAccount(e.Owner),
			"cost":  formatAmount(e.Cost),
		},
	}
}

// BonusSlotOpening is emitted when settlement is deferred until the sweep
// catches up.
type BonusSlotOpening struct {
	ID           [32]byte
	Owner        [20]byte
	OpenPosition uint64
}

func (BonusSlotOpening) EventType() string { return TypeBonusSlotOpening }

func (e BonusSlotOpening) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusSlotOpening,
		Attributes: map[string]string{
			"id":           hex.EncodeToString(e.ID[:]),
			"owner":        crypto.FormatAccount(e.Owner),
			"openPosition": strconv.FormatUint(e.OpenPosition, 10),
		},
	}
}

// BonusSlotOpened is emitted once a slot has been settled.
type BonusSlotOpened struct {
	ID      [32]byte
	Owner   [20]byte
	Amount  *big.Int
	Doubled bool
	// Path is "immediate", "sweep" or "registry".
	Path string
}

func (BonusSlotOpened) EventType() string { return TypeBonusSlotOpened }

func (e BonusSlotOpened) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusSlotOpened,
		Attributes: map[string]string{
			"id":      hex.EncodeToString(e.ID[:]),
			"owner":   crypto.FormatAccount(e.Owner),
			"amount":  formatAmount(e.Amount),
			"doubled": strconv.FormatBool(e.Doubled),
			"path":    e.Path,
		},
	}
}

// BonusCommissionPaid is emitted when an invitor receives their share.
type BonusCommissionPaid struct {
	Invitor [20]byte
	Invitee [20]byte
	Amount  *big.Int
}

func (BonusCommissionPaid) EventType() string { return TypeBonusCommissionPaid }

func (e BonusCommissionPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusCommissionPaid,
		Attributes: map[string]string{
			"invitor": crypto.FormatAccount(e.Invitor),
			"invitee": crypto.FormatAccount(e.Invitee),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// BonusRoundInited is emitted by the one-time initialisation.
type BonusRoundInited struct {
	Tick      uint64
	Admin     [20]byte
	UnitPrice *big.Int
}

func (BonusRoundInited) EventType() string { return TypeBonusRoundInited }

func (e BonusRoundInited) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusRoundInited,
		Attributes: map[string]string{
			"tick":      strconv.FormatUint(e.Tick, 10),
			"admin":     crypto.FormatAccount(e.Admin),
			"unitPrice": formatAmount(e.UnitPrice),
		},
	}
}

// BonusRoundStatus is emitted when an administrator changes the round status.
type BonusRoundStatus struct {
	Tick  uint64
	Admin [20]byte
	From  string
	To    string
}

func (BonusRoundStatus) EventType() string { return TypeBonusRoundStatus }

func (e BonusRoundStatus) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusRoundStatus,
		Attributes: map[string]string{
			"tick":  strconv.FormatUint(e.Tick, 10),
			"admin": crypto.FormatAccount(e.Admin),
			"from":  e.From,
			"to":    e.To,
		},
	}
}

// BonusRoundSettling is emitted when the countdown expires.
type BonusRoundSettling struct {
	Tick         uint64
	Round        uint64
	AveragePrize *big.Int
	LatestCount  uint64
}

func (BonusRoundSettling) EventType() string { return TypeBonusRoundSettling }

func (e BonusRoundSettling) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusRoundSettling,
		Attributes: map[string]string{
			"tick":         strconv.FormatUint(e.Tick, 10),
			"round":        strconv.FormatUint(e.Round, 10),
			"averagePrize": formatAmount(e.AveragePrize),
			"latestCount":  strconv.FormatUint(e.LatestCount, 10),
		},
	}
}

// BonusRoundReset is emitted when a new round starts running.
type BonusRoundReset struct {
	Tick          uint64
	Round         uint64
	StartPosition uint64
}

func (BonusRoundReset) EventType() string { return TypeBonusRoundReset }

func (e BonusRoundReset) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusRoundReset,
		Attributes: map[string]string{
			"tick":          strconv.FormatUint(e.Tick, 10),
			"round":         strconv.FormatUint(e.Round, 10),
			"startPosition": strconv.FormatUint(e.StartPosition, 10),
		},
	}
}

// BonusPrizeReleased records a single average-prize payment.
type BonusPrizeReleased struct {
	Round    uint64
	Owner    [20]byte
	Position uint64
	Amount   *big.Int
}

func (BonusPrizeReleased) EventType() string { return TypeBonusPrizeReleased }

func (e BonusPrizeReleased) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusPrizeReleased,
		Attributes: map[string]string{
			"round":    strconv.FormatUint(e.Round, 10),
			"owner":    crypto.FormatAccount(e.Owner),
			"position": strconv.FormatUint(e.Position, 10),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// BonusJackpotPaid records the last-player payment that closes a round.
type BonusJackpotPaid struct {
	Round  uint64
	Owner  [20]byte
	Amount *big.Int
}

func (BonusJackpotPaid) EventType() string { return TypeBonusJackpotPaid }

func (e BonusJackpotPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusJackpotPaid,
		Attributes: map[string]string{
			"round":  strconv.FormatUint(e.Round, 10),
			"owner":  crypto.FormatAccount(e.Owner),
			"amount": formatAmount(e.Amount),
		},
	}
}

// BonusPayoutFailed records a best-effort transfer the ledger rejected.
type BonusPayoutFailed struct {
	Kind   string
	To     [20]byte
	Amount *big.Int
	Reason string
}

func (BonusPayoutFailed) EventType() string { return TypeBonusPayoutFailed }

func (e BonusPayoutFailed) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusPayoutFailed,
		Attributes: map[string]string{
			"kind":   e.Kind,
			"to":     crypto.FormatAccount(e.To),
			"amount": formatAmount(e.Amount),
			"reason": e.Reason,
		},
	}
}

// BonusPlayerStatus is emitted when an administrator changes a player's status.
type BonusPlayerStatus struct {
	Player [20]byte
	Status string
}

func (BonusPlayerStatus) EventType() string { return TypeBonusPlayerStatus }

func (e BonusPlayerStatus) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusPlayerStatus,
		Attributes: map[string]string{
			"player": crypto.FormatAccount(e.Player),
			"status": e.Status,
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
