package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bonuschain/core/events"
	"bonuschain/core/state"
	"bonuschain/core/types"
	"bonuschain/native/bank"
	"bonuschain/native/bonus"
	"bonuschain/observability/metrics"
	bonusotel "bonuschain/observability/otel"
	"bonuschain/storage"
	"bonuschain/storage/trie"
)

// headKey stores the last committed root and tick in the backing database.
var headKey = []byte("bonusd/head")

type head struct {
	Root []byte
	Tick uint64
}

// Token describes the currency the node moves for the engine.
type Token struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Allocation is a genesis balance.
type Allocation struct {
	Account [20]byte
	Amount  *big.Int
}

// Config wires a Node.
type Config struct {
	Token  Token
	Params bonus.Params
	Logger *slog.Logger
	// Tracer defaults to the global node tracer.
	Tracer trace.Tracer
	// Metrics defaults to the process-wide bonus collectors.
	Metrics *metrics.BonusMetrics
	// OnEvents receives the events of every committed call or tick.
	OnEvents func([]types.Event)
}

// Node owns the state trie and applies engine calls and ticks atomically: a
// failed call or tick leaves no trace, a successful one is committed.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	trie     *trie.Trie
	ledger   *bank.Ledger
	engine   *bonus.Engine
	buffer   *events.Buffer
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics.BonusMetrics
	onEvents func([]types.Event)
	tick     uint64
}

// New opens the state committed in db, or an empty state on first start.
func New(db storage.Database, cfg Config) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = bonusotel.Tracer()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Bonus()
	}

	current, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	stateTrie, err := trie.NewTrie(db, current.Root)
	if err != nil {
		return nil, fmt.Errorf("node: open state: %w", err)
	}
	manager := state.NewManager(stateTrie)
	if !manager.TokenExists(cfg.Token.Symbol) {
		if err := manager.RegisterToken(cfg.Token.Symbol, cfg.Token.Name, cfg.Token.Decimals); err != nil {
			return nil, fmt.Errorf("node: register token: %w", err)
		}
	}
	ledger, err := bank.NewLedger(manager, cfg.Token.Symbol)
	if err != nil {
		return nil, err
	}
	engine, err := bonus.NewEngine(cfg.Params)
	if err != nil {
		return nil, err
	}
	buffer := &events.Buffer{}
	engine.SetState(manager)
	engine.SetCurrency(ledger)
	engine.SetEmitter(buffer)
	engine.SetLogger(logger)

	n := &Node{
		db:       db,
		trie:     stateTrie,
		ledger:   ledger,
		engine:   engine,
		buffer:   buffer,
		logger:   logger.With("component", "node"),
		tracer:   tracer,
		metrics:  recorder,
		onEvents: cfg.OnEvents,
		tick:     current.Tick,
	}
	if err := n.commit(); err != nil {
		return nil, err
	}
	return n, nil
}

func loadHead(db storage.Database) (head, error) {
	var current head
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return current, nil
	}
	if err != nil {
		return current, fmt.Errorf("node: load head: %w", err)
	}
	if err := rlp.DecodeBytes(raw, &current); err != nil {
		return current, fmt.Errorf("node: decode head: %w", err)
	}
	return current, nil
}

// commit persists pending state and the head pointer. Callers hold mu.
func (n *Node) commit() error {
	root, err := n.trie.Commit(n.tick)
	if err != nil {
		return fmt.Errorf("node: commit state: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(&head{Root: root.Bytes(), Tick: n.tick})
	if err != nil {
		return fmt.Errorf("node: encode head: %w", err)
	}
	if err := n.db.Put(headKey, encoded); err != nil {
		return fmt.Errorf("node: store head: %w", err)
	}
	return nil
}

// finish commits on success and rolls back on failure. Callers hold mu.
func (n *Node) finish(call string, err error) ([]types.Event, error) {
	if err == nil {
		err = n.commit()
	}
	if err != nil {
		n.buffer.Reset()
		if rbErr := n.trie.Rollback(); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		n.metrics.IncCallRejected(call, bonus.KindOf(err).String())
		return nil, err
	}
	emitted := n.buffer.Drain()
	n.record(emitted)
	if n.onEvents != nil && len(emitted) > 0 {
		n.onEvents(emitted)
	}
	return emitted, nil
}

// record updates the engine metrics from committed events and the committed
// round. Callers hold mu.
func (n *Node) record(emitted []types.Event) {
	for i := range emitted {
		evt := &emitted[i]
		switch evt.Type {
		case events.TypeBonusSlotCreated:
			n.metrics.IncSlotCreated()
		case events.TypeBonusSlotUpgraded:
			n.metrics.IncSlotUpgraded()
		case events.TypeBonusSlotOpened:
			n.metrics.IncSlotOpened(evt.Attr("path"))
		case events.TypeBonusPayoutFailed:
			n.metrics.IncPayoutFailure(evt.Attr("kind"))
		case events.TypeBonusRoundReset:
			n.metrics.IncRoundReset()
		}
	}
	r, err := n.engine.Round()
	if err != nil {
		return
	}
	var backlog uint64
	if r.AllSlotsCount > r.DrainCursor {
		backlog = r.AllSlotsCount - r.DrainCursor
	}
	n.metrics.SetRoundGauges(uint8(r.Status), r.Timeout, r.ActiveCount, backlog, r.OpeningCount)
}

// Genesis credits the allocations. It is a no-op once the round exists, so
// restarting a configured node does not mint twice.
func (n *Node) Genesis(allocs []Allocation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.engine.Round(); err == nil {
		return nil
	} else if !errors.Is(err, bonus.ErrNotInitialized) {
		return err
	}
	var err error
	for _, alloc := range allocs {
		if err = n.ledger.Credit(alloc.Account, alloc.Amount); err != nil {
			break
		}
	}
	_, err = n.finish("genesis", err)
	return err
}

// Apply runs fn against the engine as one atomic call.
func (n *Node) Apply(ctx context.Context, call string, fn func(*bonus.Engine) error) ([]types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, span := n.tracer.Start(ctx, "bonus.call", trace.WithAttributes(attribute.String("call", call)))
	defer span.End()

	emitted, err := n.finish(call, fn(n.engine))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Debug("call rejected", slog.String("call", call), slog.Any("error", err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(emitted)))
	return emitted, nil
}

// Tick advances the engine by one tick and commits the result.
func (n *Node) Tick(ctx context.Context) (bonus.TickReport, []types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	started := time.Now()
	next := n.tick + 1
	_, span := n.tracer.Start(ctx, "bonus.tick", trace.WithAttributes(attribute.Int64("tick", int64(next))))
	defer span.End()

	report, err := n.engine.OnTick(next)
	if err == nil {
		n.tick = next
	}
	emitted, err := n.finish("tick", err)
	if err != nil {
		n.tick = next - 1
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Error("tick failed", slog.Uint64("tick", next), slog.Any("error", err))
		return report, nil, err
	}
	n.metrics.ObserveTick(report.Status.String(), report.Used)
	n.metrics.ObserveTickDuration(time.Since(started).Seconds())
	span.SetAttributes(
		attribute.String("status", report.Status.String()),
		attribute.Int64("used", int64(report.Used)),
		attribute.Bool("reset", report.Reset),
	)
	return report, emitted, nil
}

// View runs fn against the engine without committing. Anything fn writes is
// discarded.
func (n *Node) View(fn func(*bonus.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := fn(n.engine)
	n.buffer.Reset()
	if rbErr := n.trie.Rollback(); rbErr != nil && err == nil {
		err = rbErr
	}
	return err
}

// Balance returns an account's token balance.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.BalanceOf(addr)
}

// Token returns the metadata of the token the node moves.
func (n *Node) Token() (*state.TokenMetadata, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Token()
}

// Height returns the last committed tick.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tick
}

// Root returns the last committed state root.
func (n *Node) Root() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root()
}
