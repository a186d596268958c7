package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BonusMetrics exposes counters and gauges for the bonus pool engine. The node
// records them from committed calls and ticks only; rolled-back work shows up
// in bonus_calls_rejected_total alone.
type BonusMetrics struct {
	slotsCreated   prometheus.Counter
	slotsUpgraded  prometheus.Counter
	slotsOpened    *prometheus.CounterVec
	payoutFailures *prometheus.CounterVec
	tickUnits      prometheus.Histogram
	ticks          *prometheus.CounterVec
	roundResets    prometheus.Counter
	drainBacklog   prometheus.Gauge
	openingBacklog prometheus.Gauge
	activeSlots    prometheus.Gauge
	roundTimeout   prometheus.Gauge
	roundStatus    prometheus.Gauge
	callsRejected  *prometheus.CounterVec
	tickDuration   prometheus.Histogram
}

var (
	bonusOnce     sync.Once
	bonusRegistry *BonusMetrics
)

// Bonus returns the process-wide bonus metrics registered with the default
// Prometheus registerer.
func Bonus() *BonusMetrics {
	bonusOnce.Do(func() {
		m, err := NewBonus(prometheus.DefaultRegisterer)
		if err != nil {
			panic(err)
		}
		bonusRegistry = m
	})
	return bonusRegistry
}

// NewBonus creates the bonus collectors and registers them with reg.
func NewBonus(reg prometheus.Registerer) (*BonusMetrics, error) {
	m := &BonusMetrics{
		slotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bonus_slots_created_total",
			Help: "Number of slots appended to the store.",
		}),
		slotsUpgraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bonus_slots_upgraded_total",
			Help: "Number of slots funded from an existing slot's value.",
		}),
		slotsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bonus_slots_opened_total",
			Help: "Number of settled slots by settlement path.",
		}, []string{"path"}),
		payoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bonus_payout_failures_total",
			Help: "Best-effort transfers rejected by the ledger, by payout kind.",
		}, []string{"kind"}),
		tickUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bonus_tick_units",
			Help:    "Operation units consumed per tick.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bonus_ticks_total",
			Help: "Processed ticks by resulting round status.",
		}, []string{"status"}),
		roundResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bonus_round_resets_total",
			Help: "Number of completed rounds.",
		}),
		drainBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bonus_drain_backlog",
			Help: "Slots not yet fully propagated by the sweep.",
		}),
		openingBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bonus_opening_backlog",
			Help: "Slots waiting in the opening registry.",
		}),
		activeSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bonus_active_slots",
			Help: "Active slots in the current round.",
		}),
		roundTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bonus_round_timeout",
			Help: "Remaining countdown of the current round.",
		}),
		roundStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bonus_round_status",
			Help: "Numeric round status (1 inited, 2 running, 3 settling, 4 paused, 5 stopped).",
		}),
		callsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bonus_calls_rejected_total",
			Help: "Calls rolled back by the node, by call and error kind.",
		}, []string{"call", "kind"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bonus_tick_duration_seconds",
			Help:    "Wall time spent applying and committing a tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{
		m.slotsCreated,
		m.slotsUpgraded,
		m.slotsOpened,
		m.payoutFailures,
		m.tickUnits,
		m.ticks,
		m.roundResets,
		m.drainBacklog,
		m.openingBacklog,
		m.activeSlots,
		m.roundTimeout,
		m.roundStatus,
		m.callsRejected,
		m.tickDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register bonus collector: %w", err)
		}
	}
	return m, nil
}

func (m *BonusMetrics) IncSlotCreated() {
	if m == nil {
		return
	}
	m.slotsCreated.Inc()
}

func (m *BonusMetrics) IncSlotUpgraded() {
	if m == nil {
		return
	}
	m.slotsUpgraded.Inc()
}

// IncSlotOpened records a settlement. Path is one of "immediate", "sweep" or
// "registry".
func (m *BonusMetrics) IncSlotOpened(path string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unknown"
	}
	m.slotsOpened.WithLabelValues(path).Inc()
}

func (m *BonusMetrics) IncPayoutFailure(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.payoutFailures.WithLabelValues(kind).Inc()
}

func (m *BonusMetrics) ObserveTick(status string, units uint64) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.ticks.WithLabelValues(status).Inc()
	m.tickUnits.Observe(float64(units))
}

func (m *BonusMetrics) IncRoundReset() {
	if m == nil {
		return
	}
	m.roundResets.Inc()
}

// SetRoundGauges publishes the round snapshot taken after a call or tick.
func (m *BonusMetrics) SetRoundGauges(status uint8, timeout uint32, active, drainBacklog, openingBacklog uint64) {
	if m == nil {
		return
	}
	m.roundStatus.Set(float64(status))
	m.roundTimeout.Set(float64(timeout))
	m.activeSlots.Set(float64(active))
	m.drainBacklog.Set(float64(drainBacklog))
	m.openingBacklog.Set(float64(openingBacklog))
}

func (m *BonusMetrics) IncCallRejected(call, kind string) {
	if m == nil {
		return
	}
	m.callsRejected.WithLabelValues(call, kind).Inc()
}

func (m *BonusMetrics) ObserveTickDuration(seconds float64) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(seconds)
}
