package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bonuschain/core/state"
)

var (
	// ErrInsufficientFunds is returned when the sender cannot cover a transfer.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrInvalidAmount rejects nil and negative transfer amounts.
	ErrInvalidAmount = errors.New("bank: invalid amount")
)

// Ledger moves a single token between accounts held in the state manager.
type Ledger struct {
	manager *state.Manager
	symbol  string
}

// NewLedger binds a ledger to symbol. The token must already be registered.
func NewLedger(manager *state.Manager, symbol string) (*Ledger, error) {
	if manager == nil {
		return nil, fmt.Errorf("bank: state manager required")
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("bank: token symbol required")
	}
	if !manager.TokenExists(symbol) {
		return nil, fmt.Errorf("bank: token %s not registered", symbol)
	}
	return &Ledger{manager: manager, symbol: symbol}, nil
}

// Token returns the registered metadata of the ledger's token.
func (l *Ledger) Token() (*state.TokenMetadata, error) {
	meta, err := l.manager.Token(l.symbol)
	if err != nil {
		return nil, fmt.Errorf("bank: load token: %w", err)
	}
	if meta == nil {
		return nil, fmt.Errorf("bank: token %s not registered", l.symbol)
	}
	return meta, nil
}

// BalanceOf returns the account balance.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	balance, err := l.manager.Balance(addr[:], l.symbol)
	if err != nil {
		return nil, fmt.Errorf("bank: load balance: %w", err)
	}
	return balance, nil
}

// Credit mints amount into addr. Used for genesis allocations.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance, err := l.BalanceOf(addr)
	if err != nil {
		return err
	}
	return l.manager.SetBalance(addr[:], l.symbol, balance.Add(balance, amount))
}

// Transfer moves amount from one account to another. Zero transfers succeed
// without touching state.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	src, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, src, amount)
	}
	dst, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.manager.SetBalance(from[:], l.symbol, src.Sub(src, amount)); err != nil {
		return fmt.Errorf("bank: debit: %w", err)
	}
	if err := l.manager.SetBalance(to[:], l.symbol, dst.Add(dst, amount)); err != nil {
		return fmt.Errorf("bank: credit: %w", err)
	}
	return nil
}
