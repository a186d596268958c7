package bonus

import (
	"math/big"

	"bonuschain/core/events"
)

func bonusTotal(p *Player) *big.Int      { return p.TotalBonus }
func prizeTotal(p *Player) *big.Int      { return p.TotalPrize }
func commissionTotal(p *Player) *big.Int { return p.TotalCommission }

// addPlayerTotal adds amount to the accumulator picked by field. Accounts
// that never bought a slot get a record without being counted as players.
func (e *Engine) addPlayerTotal(addr [20]byte, amount *big.Int, field func(*Player) *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	player, ok, err := e.getPlayer(addr)
	if err != nil {
		return err
	}
	if !ok {
		player = newPlayer()
	}
	total := field(player)
	total.Add(total, amount)
	return e.putPlayer(addr, player)
}

// registerPlayer creates the player record on the first slot purchase.
func (e *Engine) registerPlayer(r *Round, addr [20]byte) error {
	_, ok, err := e.getPlayer(addr)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := e.putPlayer(addr, newPlayer()); err != nil {
		return err
	}
	r.PlayerCount++
	return nil
}

// checkInvite validates the referral before any write. An invitor must be an
// active player and the invitee must be new.
func (e *Engine) checkInvite(invitor *[20]byte, invitee [20]byte) error {
	if invitor == nil {
		return nil
	}
	player, ok, err := e.getPlayer(*invitor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvitorNotPlayer
	}
	if player.Status != PlayerStatusActive {
		return ErrInvitorInactive
	}
	_, exists, err := e.getPlayer(invitee)
	if err != nil {
		return err
	}
	if exists {
		return ErrInviteeExists
	}
	return nil
}

// SetPlayerStatus lets the administrator forbid or reinstate a player.
// Forbidden players keep their slots but can no longer invite.
func (e *Engine) SetPlayerStatus(caller, addr [20]byte, status PlayerStatus) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	if status != PlayerStatusActive && status != PlayerStatusForbidden {
		return ErrInvalidStatus
	}
	player, ok, err := e.getPlayer(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlayerNotFound
	}
	if player.Status == status {
		return ErrStatusUnchanged
	}
	player.Status = status
	if err := e.putPlayer(addr, player); err != nil {
		return err
	}
	e.emit(events.BonusPlayerStatus{Player: addr, Status: status.String()})
	return nil
}
