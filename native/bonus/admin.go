package bonus

import (
	"fmt"
	"log/slog"
	"math/big"

	"bonuschain/core/events"
	"bonuschain/crypto"
)

// Init creates the round with the given unit price. It may run only once.
func (e *Engine) Init(caller [20]byte, unitPrice *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	if _, ok, err := e.loadRound(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if unitPrice == nil || unitPrice.Cmp(e.params.MinUnitPrice) <= 0 {
		return ErrUnitPriceTooLow
	}
	if unitPrice.Cmp(e.params.MaxUnitPrice) > 0 {
		return ErrUnitPriceTooHigh
	}
	for _, role := range PoolRoles() {
		if err := e.setPoolBalance(role, nil); err != nil {
			return err
		}
	}
	r := &Round{
		Status:               RoundStatusInited,
		Timeout:              e.params.Expiration,
		RoundCount:           1,
		MaxActiveCount:       e.params.DefaultMaxActive,
		PresetMaxActiveCount: e.params.DefaultMaxActive,
		UnitPrice:            newBigInt(unitPrice),
		AveragePrize:         big.NewInt(0),
		OpsBudget:            e.params.DefaultOpsBudget,
	}
	if err := e.saveRound(r); err != nil {
		return err
	}
	e.logger.Info("bonus round initialised",
		slog.String("admin", crypto.FormatAccount(caller)),
		slog.String("unitPrice", unitPrice.String()))
	e.emit(events.BonusRoundInited{Tick: r.LastTick, Admin: caller, UnitPrice: newBigInt(unitPrice)})
	return nil
}

// SetStatus moves the round to status. Inited and no-op targets are
// rejected and Stopped is terminal.
func (e *Engine) SetStatus(caller [20]byte, status RoundStatus) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	r, err := e.requireRound()
	if err != nil {
		return err
	}
	if status == RoundStatusNone || status == RoundStatusInited || status > RoundStatusStopped {
		return ErrInvalidStatus
	}
	if status == r.Status {
		return ErrStatusUnchanged
	}
	if !allowedTransition(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, r.Status, status)
	}
	from := r.Status
	r.Status = status
	if err := e.saveRound(r); err != nil {
		return err
	}
	e.logger.Info("bonus round status changed",
		slog.String("from", from.String()),
		slog.String("to", status.String()),
		slog.Uint64("round", r.RoundCount))
	e.emit(events.BonusRoundStatus{Tick: r.LastTick, Admin: caller, From: from.String(), To: status.String()})
	return nil
}

// SetOpsBudget changes the per-tick work budget.
func (e *Engine) SetOpsBudget(caller [20]byte, budget uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	r, err := e.requireRound()
	if err != nil {
		return err
	}
	if budget < e.params.MinOpsBudget || budget > e.params.MaxOpsBudget {
		return ErrInvalidBudget
	}
	if budget == r.OpsBudget {
		return ErrValueUnchanged
	}
	r.OpsBudget = budget
	return e.saveRound(r)
}

// PresetMaxActive sets the active-slot limit applied from the next round.
func (e *Engine) PresetMaxActive(caller [20]byte, count uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	r, err := e.requireRound()
	if err != nil {
		return err
	}
	if count == 0 || count >= e.params.MaxPresetActive {
		return ErrInvalidMaxActive
	}
	if count == r.PresetMaxActiveCount {
		return ErrValueUnchanged
	}
	r.PresetMaxActiveCount = count
	return e.saveRound(r)
}
