package bonus

import (
	"log/slog"
	"math/big"

	"bonuschain/core/events"
)

// KVStore is the persistence backend. core/state.Manager satisfies it.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Currency moves real tokens. The engine only calls it; balances it holds are
// never used for slot bookkeeping.
type Currency interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// Engine runs the bonus pool game: slot purchases, the budgeted bonus sweep,
// deferred settlement and the round lifecycle.
//
// Engine is not safe for concurrent use. The host serialises calls and ticks.
type Engine struct {
	state    KVStore
	currency Currency
	emitter  events.Emitter
	logger   *slog.Logger
	params   Params
}

// NewEngine validates params and constructs an engine with default
// dependencies. State and currency must be configured before use.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.MinUnitPrice = newBigInt(params.MinUnitPrice)
	params.MaxUnitPrice = newBigInt(params.MaxUnitPrice)
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default().With("component", "bonus"),
		params:  params,
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state KVStore) { e.state = state }

// SetCurrency configures the token ledger used for transfers.
func (e *Engine) SetCurrency(currency Currency) { e.currency = currency }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With("component", "bonus")
}

// Params returns a copy of the deployment parameters.
func (e *Engine) Params() Params {
	out := e.params
	out.MinUnitPrice = newBigInt(e.params.MinUnitPrice)
	out.MaxUnitPrice = newBigInt(e.params.MaxUnitPrice)
	return out
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.currency == nil {
		return ErrNilCurrency
	}
	return nil
}

func (e *Engine) isAdmin(addr [20]byte) bool {
	return addr == e.params.Accounts.Admin
}
