package config

import (
	"fmt"
	"math/big"
	"strings"

	"bonuschain/crypto"
	"bonuschain/native/bonus"
)

func (b *Bonus) applyDefaults() {
	def := bonus.DefaultParams()
	if strings.TrimSpace(b.MinUnitPrice) == "" {
		b.MinUnitPrice = def.MinUnitPrice.String()
	}
	if strings.TrimSpace(b.MaxUnitPrice) == "" {
		b.MaxUnitPrice = def.MaxUnitPrice.String()
	}
	if b.Expiration == 0 {
		b.Expiration = def.Expiration
	}
	if b.TickDecrement == 0 {
		b.TickDecrement = def.TickDecrement
	}
	if b.OperationBump == 0 {
		b.OperationBump = def.OperationBump
	}
	if b.MaxLatest == 0 {
		b.MaxLatest = def.MaxLatest
	}
	if b.DefaultOpsBudget == 0 {
		b.DefaultOpsBudget = def.DefaultOpsBudget
	}
	if b.MinOpsBudget == 0 {
		b.MinOpsBudget = def.MinOpsBudget
	}
	if b.MaxOpsBudget == 0 {
		b.MaxOpsBudget = def.MaxOpsBudget
	}
	if b.DefaultMaxActive == 0 {
		b.DefaultMaxActive = def.DefaultMaxActive
	}
	if b.MaxPresetActive == 0 {
		b.MaxPresetActive = def.MaxPresetActive
	}
	if b.Ratios == (Ratios{}) {
		b.Ratios = Ratios(def.Ratios)
	}
}

// Params converts the section into engine parameters.
func (b Bonus) Params() (bonus.Params, error) {
	params := bonus.DefaultParams()
	minPrice, err := parseUintAmount(b.MinUnitPrice)
	if err != nil {
		return params, fmt.Errorf("invalid bonus.MinUnitPrice: %w", err)
	}
	maxPrice, err := parseUintAmount(b.MaxUnitPrice)
	if err != nil {
		return params, fmt.Errorf("invalid bonus.MaxUnitPrice: %w", err)
	}
	params.MinUnitPrice = minPrice
	params.MaxUnitPrice = maxPrice
	params.Expiration = b.Expiration
	params.TickDecrement = b.TickDecrement
	params.OperationBump = b.OperationBump
	params.MaxLatest = b.MaxLatest
	params.DefaultOpsBudget = b.DefaultOpsBudget
	params.MinOpsBudget = b.MinOpsBudget
	params.MaxOpsBudget = b.MaxOpsBudget
	params.DefaultMaxActive = b.DefaultMaxActive
	params.MaxPresetActive = b.MaxPresetActive
	params.Ratios = bonus.Ratios(b.Ratios)

	accounts := []struct {
		name  string
		value string
		dst   *[20]byte
	}{
		{"Admin", b.Accounts.Admin, &params.Accounts.Admin},
		{"Custody", b.Accounts.Custody, &params.Accounts.Custody},
		{"Reserve", b.Accounts.Reserve, &params.Accounts.Reserve},
		{"Pool", b.Accounts.Pool, &params.Accounts.Pool},
		{"LastPlayer", b.Accounts.LastPlayer, &params.Accounts.LastPlayer},
		{"Team", b.Accounts.Team, &params.Accounts.Team},
		{"Operator", b.Accounts.Operator, &params.Accounts.Operator},
	}
	for _, acct := range accounts {
		if strings.TrimSpace(acct.value) == "" {
			continue
		}
		addr, err := crypto.ParseAccount(acct.value)
		if err != nil {
			return params, fmt.Errorf("invalid bonus.accounts.%s: %w", acct.name, err)
		}
		*acct.dst = addr
	}
	return params, nil
}

// InitialUnitPrice parses UnitPrice.
func (b Bonus) InitialUnitPrice() (*big.Int, error) {
	price, err := parseUintAmount(b.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid bonus.UnitPrice: %w", err)
	}
	return price, nil
}

// Allocation is a parsed genesis balance.
type Allocation struct {
	Account [20]byte
	Amount  *big.Int
}

// Allocations parses the genesis section.
func (c *Config) Allocations() ([]Allocation, error) {
	out := make([]Allocation, 0, len(c.Genesis))
	for i, entry := range c.Genesis {
		addr, err := crypto.ParseAccount(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid genesis[%d].Address: %w", i, err)
		}
		amount, err := parseUintAmount(entry.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid genesis[%d].Balance: %w", i, err)
		}
		out = append(out, Allocation{Account: addr, Amount: amount})
	}
	return out, nil
}

// parseUintAmount parses a non-negative base-10 integer, allowing "_"
// separators.
func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not an integer", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}
