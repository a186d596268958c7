package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bonuschain/crypto"
	"bonuschain/native/bonus"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bonusd", cfg.ServiceName)
	require.Equal(t, "BNX", cfg.TokenSymbol)
	require.True(t, cfg.Bonus.AutoInit)
	require.Equal(t, ":9102", cfg.API.ListenAddress)
	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
	require.NoError(t, ValidateConfig(reloaded))

	params, err := reloaded.Bonus.Params()
	require.NoError(t, err)
	require.Equal(t, bonus.DefaultParams(), params)
}

func TestLoadParsesBonusSection(t *testing.T) {
	admin := crypto.MustNewAddress(crypto.BonusPrefix, repeat(0x11)).String()
	player := crypto.MustNewAddress(crypto.BonusPrefix, repeat(0x22)).String()
	contents := `DataDir = "./data"
TickInterval = "250ms"
TokenSymbol = "pbx"

[bonus]
UnitPrice = "1_000"
AutoInit = true
MinUnitPrice = "500"
Expiration = 120
MaxLatest = 20

[bonus.ratios]
Dbox = 40
Reserve = 30
Pool = 10
LastPlayer = 5
Team = 5
Operator = 5
Invitor = 5

[bonus.accounts]
Admin = "` + admin + `"

[[genesis]]
Address = "` + player + `"
Balance = "1000000"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	period, err := cfg.TickPeriod()
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, period)

	params, err := cfg.Bonus.Params()
	require.NoError(t, err)
	require.Equal(t, uint32(120), params.Expiration)
	require.Equal(t, uint32(10), params.TickDecrement)
	require.Equal(t, uint64(20), params.MaxLatest)
	require.Equal(t, int64(500), params.MinUnitPrice.Int64())
	require.Equal(t, uint32(40), params.Ratios.Dbox)
	require.Equal(t, repeat20(0x11), params.Accounts.Admin)
	require.Equal(t, bonus.DefaultParams().Accounts.Custody, params.Accounts.Custody)

	price, err := cfg.Bonus.InitialUnitPrice()
	require.NoError(t, err)
	require.Equal(t, int64(1000), price.Int64())

	allocs, err := cfg.Allocations()
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.Equal(t, repeat20(0x22), allocs[0].Account)
	require.Equal(t, int64(1_000_000), allocs[0].Amount.Int64())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("DataDir = \"x\"\nBogus = 1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Bogus"))
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"data dir":       func(c *Config) { c.DataDir = " " },
		"tick interval":  func(c *Config) { c.TickInterval = "fast" },
		"tick too short": func(c *Config) { c.TickInterval = "1ms" },
		"ratios":         func(c *Config) { c.Bonus.Ratios.Team = 50 },
		"unit price":     func(c *Config) { c.Bonus.UnitPrice = "99" },
		"price format":   func(c *Config) { c.Bonus.UnitPrice = "1e3" },
		"auto start":     func(c *Config) { c.Bonus.AutoInit = false },
		"account":        func(c *Config) { c.Bonus.Accounts.Team = "nope" },
		"api burst":      func(c *Config) { c.API.Burst = -1 },
		"auth secret": func(c *Config) {
			c.API.Auth = APIAuth{Enabled: true, HMACSecret: "short"}
		},
		"auth skew": func(c *Config) {
			c.API.Auth = APIAuth{Enabled: true, HMACSecret: strings.Repeat("k", 32), ClockSkew: "soon"}
		},
		"genesis": func(c *Config) {
			c.Genesis = []GenesisAccount{{Address: crypto.FormatAccount(repeat20(1)), Balance: "-1"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, ValidateConfig(cfg))
		})
	}
	require.Error(t, ValidateConfig(nil))
}

func TestParseUintAmount(t *testing.T) {
	amount, err := parseUintAmount(" 1_000_000_000_000_000_000_000_000 ")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000000", amount.String())

	for _, bad := range []string{"", "abc", "-5", "1.5"} {
		_, err := parseUintAmount(bad)
		require.Error(t, err, bad)
	}
}

func repeat(b byte) []byte {
	out := make([]byte, crypto.AddressLength)
	for i := range out {
		out[i] = b
	}
	return out
}

func repeat20(b byte) [20]byte {
	var out [20]byte
	copy(out[:], repeat(b))
	return out
}

func TestAuthSectionAcceptsValidSecret(t *testing.T) {
	cfg := Default()
	cfg.API.Auth = APIAuth{Enabled: true, HMACSecret: strings.Repeat("k", 32), ClockSkew: "30s"}
	require.NoError(t, ValidateConfig(cfg))
	skew, err := cfg.API.Auth.Skew()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, skew)
}
