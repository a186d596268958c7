package bonus

import (
	"errors"
	"fmt"
	"math/big"

	"bonuschain/crypto"
)

// Ratios are the per-hundred shares of the unit price. Their sum must be 100.
type Ratios struct {
	Dbox       uint32
	Reserve    uint32
	Pool       uint32
	LastPlayer uint32
	Team       uint32
	Operator   uint32
	Invitor    uint32
}

// Sum returns the total of every ratio.
func (r Ratios) Sum() uint64 {
	return uint64(r.Dbox) + uint64(r.Reserve) + uint64(r.Pool) + uint64(r.LastPlayer) +
		uint64(r.Team) + uint64(r.Operator) + uint64(r.Invitor)
}

// Accounts are the system accounts known to the engine. Custody holds the
// real tokens; the remaining roles only exist in the internal ledger and are
// barred from playing.
type Accounts struct {
	Admin      [20]byte
	Custody    [20]byte
	Reserve    [20]byte
	Pool       [20]byte
	LastPlayer [20]byte
	Team       [20]byte
	Operator   [20]byte
}

func (a Accounts) list() [][20]byte {
	return [][20]byte{a.Admin, a.Custody, a.Reserve, a.Pool, a.LastPlayer, a.Team, a.Operator}
}

// IsSystem reports whether addr is one of the configured system accounts.
func (a Accounts) IsSystem(addr [20]byte) bool {
	for _, acct := range a.list() {
		if acct == addr {
			return true
		}
	}
	return false
}

// Params are deployment constants. They are validated once at construction.
type Params struct {
	Expiration    uint32
	TickDecrement uint32
	OperationBump uint32
	MaxLatest     uint64
	// Unit prices must satisfy MinUnitPrice < price <= MaxUnitPrice.
	MinUnitPrice     *big.Int
	MaxUnitPrice     *big.Int
	Ratios           Ratios
	DefaultOpsBudget uint32
	MinOpsBudget     uint32
	MaxOpsBudget     uint32
	DefaultMaxActive uint64
	// MaxPresetActive is an exclusive upper bound.
	MaxPresetActive uint64
	Accounts        Accounts
}

const (
	defaultExpiration       = 50
	defaultTickDecrement    = 10
	defaultOperationBump    = 30
	defaultMaxLatest        = 10
	defaultOpsBudget        = 100
	defaultMaxOpsBudget     = 10_000
	defaultMaxActive        = 1000
	defaultMaxPresetActive  = 1_000_000
	defaultMinUnitPriceUnit = 99
)

// DefaultParams returns the parameters used by the reference deployment.
func DefaultParams() Params {
	maxPrice := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	return Params{
		Expiration:    defaultExpiration,
		TickDecrement: defaultTickDecrement,
		OperationBump: defaultOperationBump,
		MaxLatest:     defaultMaxLatest,
		MinUnitPrice:  big.NewInt(defaultMinUnitPriceUnit),
		MaxUnitPrice:  maxPrice,
		Ratios: Ratios{
			Dbox:       35,
			Reserve:    35,
			Pool:       10,
			LastPlayer: 5,
			Team:       5,
			Operator:   5,
			Invitor:    5,
		},
		DefaultOpsBudget: defaultOpsBudget,
		MinOpsBudget:     maxStepCost,
		MaxOpsBudget:     defaultMaxOpsBudget,
		DefaultMaxActive: defaultMaxActive,
		MaxPresetActive:  defaultMaxPresetActive,
		Accounts: Accounts{
			Admin:      crypto.AccountFromSeed("bonus/admin"),
			Custody:    crypto.AccountFromSeed("bonus/custody"),
			Reserve:    crypto.AccountFromSeed("bonus/reserve"),
			Pool:       crypto.AccountFromSeed("bonus/pool"),
			LastPlayer: crypto.AccountFromSeed("bonus/last-player"),
			Team:       crypto.AccountFromSeed("bonus/team"),
			Operator:   crypto.AccountFromSeed("bonus/operator"),
		},
	}
}

// Validate checks the deployment invariants.
func (p Params) Validate() error {
	if sum := p.Ratios.Sum(); sum != 100 {
		return fmt.Errorf("bonus: ratios must sum to 100, got %d", sum)
	}
	if p.Expiration == 0 {
		return errors.New("bonus: expiration must be positive")
	}
	if p.TickDecrement == 0 {
		return errors.New("bonus: tick decrement must be positive")
	}
	if p.MaxLatest == 0 {
		return errors.New("bonus: max latest must be positive")
	}
	if p.MinUnitPrice == nil || p.MaxUnitPrice == nil {
		return errors.New("bonus: unit price bounds required")
	}
	if p.MinUnitPrice.Sign() < 0 || p.MinUnitPrice.Cmp(p.MaxUnitPrice) >= 0 {
		return errors.New("bonus: unit price bounds out of order")
	}
	if p.MinOpsBudget < maxStepCost {
		return fmt.Errorf("bonus: min ops budget must be at least %d", maxStepCost)
	}
	if p.DefaultOpsBudget < p.MinOpsBudget || p.DefaultOpsBudget > p.MaxOpsBudget {
		return errors.New("bonus: default ops budget out of range")
	}
	if p.DefaultMaxActive == 0 || p.DefaultMaxActive >= p.MaxPresetActive {
		return errors.New("bonus: default max active out of range")
	}
	var zero [20]byte
	seen := make(map[[20]byte]struct{}, 7)
	for _, acct := range p.Accounts.list() {
		if acct == zero {
			return errors.New("bonus: system accounts must be configured")
		}
		if _, dup := seen[acct]; dup {
			return fmt.Errorf("bonus: duplicate system account %s", crypto.FormatAccount(acct))
		}
		seen[acct] = struct{}{}
	}
	return nil
}
