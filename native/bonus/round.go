package bonus

import (
	"log/slog"

	"bonuschain/core/events"
)

// OnTick advances the game by one host tick. It is a no-op unless the round
// is running or settling, and never spends more than the round's budget.
func (e *Engine) OnTick(tick uint64) (TickReport, error) {
	report := TickReport{Tick: tick}
	if err := e.ready(); err != nil {
		return report, err
	}
	r, ok, err := e.loadRound()
	if err != nil {
		return report, err
	}
	if !ok {
		return report, nil
	}
	report.Status = r.Status
	if r.Status != RoundStatusRunning && r.Status != RoundStatusSettling {
		return report, nil
	}
	r.LastTick = tick
	b := newBudget(r.OpsBudget)
	report.Budget = b.limit

	if r.Status == RoundStatusRunning {
		r.Timeout = saturatingSub(r.Timeout, e.params.TickDecrement)
		if r.Timeout == 0 {
			if err := e.beginSettling(r); err != nil {
				return report, err
			}
		}
	}

	var drained drainStats
	done, err := e.drain(r, b, &drained)
	if err != nil {
		return report, err
	}
	report.Propagated = drained.propagated
	report.Settled = drained.settled

	if r.Status == RoundStatusSettling && done {
		var released releaseStats
		finished, err := e.releasePrizes(r, b, &released)
		if err != nil {
			return report, err
		}
		report.Released = released.released
		report.JackpotPaid = released.jackpotPaid
		if finished {
			if err := e.resetRound(r); err != nil {
				return report, err
			}
			report.Reset = true
		}
	}

	if err := e.saveRound(r); err != nil {
		return report, err
	}
	report.Used = b.used
	report.Status = r.Status
	return report, nil
}

func (e *Engine) beginSettling(r *Round) error {
	pool, err := e.poolBalance(PoolPool)
	if err != nil {
		return err
	}
	r.AveragePrize = averagePrize(pool, r.LatestCount)
	r.Status = RoundStatusSettling
	e.logger.Info("bonus round settling",
		slog.Uint64("round", r.RoundCount),
		slog.Uint64("tick", r.LastTick),
		slog.Uint64("latest", r.LatestCount),
		slog.String("averagePrize", r.AveragePrize.String()))
	e.emit(events.BonusRoundSettling{
		Tick:         r.LastTick,
		Round:        r.RoundCount,
		AveragePrize: newBigInt(r.AveragePrize),
		LatestCount:  r.LatestCount,
	})
	return nil
}

// resetRound starts the next round. The sweep and the opening registry are
// both drained when this runs.
func (e *Engine) resetRound(r *Round) error {
	r.RoundStartPosition = r.AllSlotsCount
	r.DrainCursor = r.AllSlotsCount
	r.ActiveCount = 0
	for _, role := range []PoolRole{PoolCustody, PoolReserve, PoolPool, PoolLastPlayer} {
		if err := e.setPoolBalance(role, nil); err != nil {
			return err
		}
	}
	if err := e.clearLatest(r); err != nil {
		return err
	}
	r.AveragePrize.SetInt64(0)
	r.MaxActiveCount = r.PresetMaxActiveCount
	r.Timeout = e.params.Expiration
	r.RoundCount++
	r.Status = RoundStatusRunning
	e.logger.Info("bonus round reset",
		slog.Uint64("round", r.RoundCount),
		slog.Uint64("tick", r.LastTick),
		slog.Uint64("startPosition", r.RoundStartPosition))
	e.emit(events.BonusRoundReset{Tick: r.LastTick, Round: r.RoundCount, StartPosition: r.RoundStartPosition})
	return nil
}

// recordOperation extends the countdown and pushes the slot onto the latest
// queue. Every create, upgrade and running-round open counts.
func (e *Engine) recordOperation(r *Round, owner [20]byte, slot *Slot) error {
	if err := e.pushLatest(r, LatestEntry{Owner: owner, CreatePosition: slot.CreatePosition}); err != nil {
		return err
	}
	timeout := uint64(r.Timeout) + uint64(e.params.OperationBump)
	if ceiling := uint64(e.params.Expiration); timeout > ceiling {
		timeout = ceiling
	}
	r.Timeout = uint32(timeout)
	return nil
}

// allowedTransition reports whether the administrator may move the round
// from one status to another. Settling is entered and left only by ticks.
func allowedTransition(from, to RoundStatus) bool {
	switch to {
	case RoundStatusRunning:
		return from == RoundStatusInited || from == RoundStatusPaused
	case RoundStatusPaused:
		return from == RoundStatusRunning
	case RoundStatusStopped:
		return from == RoundStatusInited || from == RoundStatusRunning ||
			from == RoundStatusSettling || from == RoundStatusPaused
	default:
		return false
	}
}

func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
