package bonus

import (
	"math/big"

	"bonuschain/core/events"
)

type releaseStats struct {
	released    uint64
	jackpotPaid bool
}

// releasePrizes pays the average prize to each latest-queue entry, oldest
// first, then the last-player jackpot to the newest entry. It returns true
// once the jackpot step has run.
func (e *Engine) releasePrizes(r *Round, b *budget, stats *releaseStats) (bool, error) {
	for r.ReleasedCount < r.LatestCount {
		if !b.spend(costRelease) {
			return false, nil
		}
		index := r.LatestWriteIndex - (r.LatestCount - r.ReleasedCount)
		entry, err := e.latestAt(index)
		if err != nil {
			return false, err
		}
		if r.AveragePrize.Sign() > 0 && e.payout("prize", entry.Owner, r.AveragePrize) {
			if err := e.addPlayerTotal(entry.Owner, r.AveragePrize, prizeTotal); err != nil {
				return false, err
			}
			e.emit(events.BonusPrizeReleased{
				Round:    r.RoundCount,
				Owner:    entry.Owner,
				Position: entry.CreatePosition,
				Amount:   newBigInt(r.AveragePrize),
			})
		}
		r.ReleasedCount++
		stats.released++
	}
	if !b.spend(costJackpot) {
		return false, nil
	}
	if r.LatestCount == 0 {
		return true, nil
	}
	last, err := e.latestAt(r.LatestWriteIndex - 1)
	if err != nil {
		return false, err
	}
	jackpot, err := e.poolBalance(PoolLastPlayer)
	if err != nil {
		return false, err
	}
	if e.payout("jackpot", last.Owner, jackpot) {
		if err := e.addPlayerTotal(last.Owner, jackpot, prizeTotal); err != nil {
			return false, err
		}
		stats.jackpotPaid = true
		e.emit(events.BonusJackpotPaid{Round: r.RoundCount, Owner: last.Owner, Amount: newBigInt(jackpot)})
	}
	return true, nil
}

// averagePrize splits the prize pool evenly over the latest queue.
func averagePrize(pool *big.Int, latestCount uint64) *big.Int {
	if latestCount == 0 || pool == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(pool, new(big.Int).SetUint64(latestCount))
}
