package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering accounts.
type AddressPrefix string

const (
	// BonusPrefix is the prefix for player and system accounts.
	BonusPrefix AddressPrefix = "bnx"
)

// AddressLength is the byte length of an account identifier.
const AddressLength = 20

// Address represents a 20-byte account with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress wraps the raw account bytes. The slice must be exactly 20 bytes.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(b))
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

// MustNewAddress is like NewAddress but panics on malformed input. Intended for
// constants and tests.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Array returns the address as a fixed-size array suitable for map keys.
func (a Address) Array() [AddressLength]byte {
	var out [AddressLength]byte
	copy(out[:], a.bytes)
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// DecodeAddress parses a bech32 encoded account.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// FormatAccount renders a raw account with the default prefix.
func FormatAccount(addr [AddressLength]byte) string {
	return MustNewAddress(BonusPrefix, addr[:]).String()
}

// AccountFromSeed derives a deterministic account from a human-readable seed.
// The node uses it for well-known system accounts in development configs.
func AccountFromSeed(seed string) [AddressLength]byte {
	var out [AddressLength]byte
	sum := crypto.Keccak256([]byte(seed))
	copy(out[:], sum[len(sum)-AddressLength:])
	return out
}

// ParseAccount decodes a bech32 account and requires the default prefix.
func ParseAccount(value string) ([AddressLength]byte, error) {
	addr, err := DecodeAddress(value)
	if err != nil {
		return [AddressLength]byte{}, err
	}
	if addr.Prefix() != BonusPrefix {
		return [AddressLength]byte{}, fmt.Errorf("unexpected prefix %q", addr.Prefix())
	}
	return addr.Array(), nil
}
