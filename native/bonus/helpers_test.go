package bonus

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"bonuschain/core/events"
	"bonuschain/crypto"
)

// memKV mirrors core/state.Manager semantics: values are RLP encoded so the
// engine never shares memory with stored records.
type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	return true, rlp.DecodeBytes(raw, out)
}

func (m *memKV) KVPut(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = raw
	return nil
}

func (m *memKV) KVDelete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

var errMockInsufficient = errors.New("mock: insufficient balance")

type mockCurrency struct {
	balances map[[20]byte]*big.Int
	reject   map[[20]byte]bool
}

func newMockCurrency() *mockCurrency {
	return &mockCurrency{
		balances: make(map[[20]byte]*big.Int),
		reject:   make(map[[20]byte]bool),
	}
}

func (m *mockCurrency) BalanceOf(addr [20]byte) (*big.Int, error) {
	if bal, ok := m.balances[addr]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockCurrency) Transfer(from, to [20]byte, amount *big.Int) error {
	if m.reject[to] {
		return errors.New("mock: recipient rejected")
	}
	bal, _ := m.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return errMockInsufficient
	}
	dst, _ := m.BalanceOf(to)
	m.balances[from] = bal.Sub(bal, amount)
	m.balances[to] = dst.Add(dst, amount)
	return nil
}

type harness struct {
	t      *testing.T
	engine *Engine
	kv     *memKV
	ledger *mockCurrency
	events *events.Buffer
	params Params
	ticks  uint64
}

func acct(name string) [20]byte { return crypto.AccountFromSeed("test/" + name) }

func newHarness(t *testing.T, mutate ...func(*Params)) *harness {
	t.Helper()
	params := DefaultParams()
	for _, fn := range mutate {
		fn(&params)
	}
	engine, err := NewEngine(params)
	require.NoError(t, err)
	h := &harness{
		t:      t,
		engine: engine,
		kv:     newMemKV(),
		ledger: newMockCurrency(),
		events: &events.Buffer{},
		params: params,
	}
	engine.SetState(h.kv)
	engine.SetCurrency(h.ledger)
	engine.SetEmitter(h.events)
	return h
}

// start initialises the round at price 100 and sets it running.
func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.engine.Init(h.params.Accounts.Admin, big.NewInt(100)))
	require.NoError(h.t, h.engine.SetStatus(h.params.Accounts.Admin, RoundStatusRunning))
}

func (h *harness) fund(addr [20]byte, amount int64) {
	h.ledger.balances[addr] = big.NewInt(amount)
}

func (h *harness) create(owner [20]byte) *Slot {
	h.t.Helper()
	slot, err := h.engine.Create(owner, nil)
	require.NoError(h.t, err)
	return slot
}

func (h *harness) tick() TickReport {
	h.t.Helper()
	h.ticks++
	report, err := h.engine.OnTick(h.ticks)
	require.NoError(h.t, err)
	require.LessOrEqual(h.t, report.Used, report.Budget)
	return report
}

func (h *harness) balance(addr [20]byte) int64 {
	bal, _ := h.ledger.BalanceOf(addr)
	return bal.Int64()
}

func (h *harness) slot(pos uint64) *Slot {
	h.t.Helper()
	slot, err := h.engine.Slot(pos)
	require.NoError(h.t, err)
	return slot
}

func (h *harness) round() *Round {
	h.t.Helper()
	r, err := h.engine.Round()
	require.NoError(h.t, err)
	return r
}

func (h *harness) pool(role PoolRole) int64 {
	h.t.Helper()
	bal, err := h.engine.PoolBalance(role)
	require.NoError(h.t, err)
	return bal.Int64()
}

func (h *harness) player(addr [20]byte) *Player {
	h.t.Helper()
	player, err := h.engine.Player(addr)
	require.NoError(h.t, err)
	return player
}
