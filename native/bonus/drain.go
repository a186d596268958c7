package bonus

// Work units charged per step. A step only runs when the remaining budget
// covers its full cost, so a tick never exceeds its budget.
const (
	costAdvance   = 1
	costPropagate = 2
	costSettle    = 2
	costRelease   = 3
	costJackpot   = 5

	maxStepCost = costJackpot
)

type budget struct {
	limit uint64
	used  uint64
}

func newBudget(limit uint32) *budget { return &budget{limit: uint64(limit)} }

func (b *budget) remaining() uint64 { return b.limit - b.used }

func (b *budget) spend(cost uint64) bool {
	if b.remaining() < cost {
		return false
	}
	b.used += cost
	return true
}

// drainStats counts what a sweep did for the tick report.
type drainStats struct {
	propagated uint64
	settled    uint64
}

// drain advances the bonus sweep until the budget runs out. Once every slot
// is propagated it settles the opening registry. It reports done only when
// both are finished.
func (e *Engine) drain(r *Round, b *budget, stats *drainStats) (bool, error) {
	for {
		if r.DrainCursor >= r.AllSlotsCount {
			return e.processOpening(r, b, stats)
		}
		source, err := e.getSlot(r.DrainCursor)
		if err != nil {
			return false, err
		}
		advanced := false
		for {
			if source.BonusCursor >= source.CreatePosition {
				if !b.spend(costAdvance) {
					break
				}
				r.DrainCursor++
				advanced = true
				break
			}
			if !b.spend(costPropagate) {
				break
			}
			if err := e.propagate(r, source); err != nil {
				return false, err
			}
			source.BonusCursor++
			stats.propagated++
		}
		if err := e.putSlot(source); err != nil {
			return false, err
		}
		if !advanced {
			return false, nil
		}
	}
}

// propagate adds source's bonus to the target at its cursor. A target that
// was waiting on exactly this contribution is settled on the spot.
func (e *Engine) propagate(r *Round, source *Slot) error {
	target, err := e.getSlot(source.BonusCursor)
	if err != nil {
		return err
	}
	if target.Status != SlotStatusActive && target.Status != SlotStatusOpening {
		return nil
	}
	target.Value.Add(target.Value, source.BonusPerSlot)
	if target.Status == SlotStatusOpening && target.OpenPosition == source.CreatePosition {
		if err := e.settle(r, target, true, true, "sweep"); err != nil {
			return err
		}
	}
	return e.putSlot(target)
}
