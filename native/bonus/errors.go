package bonus

import "errors"

var (
	ErrNilState           = errors.New("bonus: state not configured")
	ErrNilCurrency        = errors.New("bonus: currency not configured")
	ErrUnauthorized       = errors.New("bonus: caller not authorized")
	ErrNotInitialized     = errors.New("bonus: round not initialized")
	ErrAlreadyInitialized = errors.New("bonus: round already initialized")
	ErrInvalidStatus      = errors.New("bonus: invalid status transition")
	ErrStatusUnchanged    = errors.New("bonus: status unchanged")
	ErrStatusNotReady     = errors.New("bonus: round status does not allow this operation")
	ErrUnitPriceTooLow    = errors.New("bonus: unit price too low")
	ErrUnitPriceTooHigh   = errors.New("bonus: unit price too high")
	ErrSystemAccount      = errors.New("bonus: system accounts cannot play")
	ErrInvitorNotPlayer   = errors.New("bonus: invitor is not a player")
	ErrInvitorInactive    = errors.New("bonus: invitor is not active")
	ErrInviteeExists      = errors.New("bonus: invitee is already a player")
	ErrPlayerNotFound     = errors.New("bonus: player not found")
	ErrSlotNotFound       = errors.New("bonus: slot not found")
	ErrNotOwner           = errors.New("bonus: caller does not own slot")
	ErrSlotNotActive      = errors.New("bonus: slot is not active")
	ErrInsufficientValue  = errors.New("bonus: slot value below unit price")
	ErrInsufficientFunds  = errors.New("bonus: insufficient funds")
	ErrMaxActiveExceeded  = errors.New("bonus: max active slots exceeded")
	ErrCounterOverflow    = errors.New("bonus: counter overflow")
	ErrSlotExists         = errors.New("bonus: slot id already exists")
	ErrInvalidBudget      = errors.New("bonus: operations budget out of range")
	ErrInvalidMaxActive   = errors.New("bonus: max active count out of range")
	ErrValueUnchanged     = errors.New("bonus: value unchanged")
)

// ErrorKind groups engine errors by how a caller should react to them.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindAuthorization
	KindPrecondition
	KindResource
	KindConsistency
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindPrecondition:
		return "precondition"
	case KindResource:
		return "resource"
	case KindConsistency:
		return "consistency"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrUnauthorized, KindAuthorization},
	{ErrNotOwner, KindAuthorization},
	{ErrSystemAccount, KindAuthorization},
	{ErrNotInitialized, KindPrecondition},
	{ErrAlreadyInitialized, KindPrecondition},
	{ErrInvalidStatus, KindPrecondition},
	{ErrStatusUnchanged, KindPrecondition},
	{ErrStatusNotReady, KindPrecondition},
	{ErrUnitPriceTooLow, KindPrecondition},
	{ErrUnitPriceTooHigh, KindPrecondition},
	{ErrSlotNotFound, KindPrecondition},
	{ErrSlotNotActive, KindPrecondition},
	{ErrInsufficientValue, KindPrecondition},
	{ErrPlayerNotFound, KindPrecondition},
	{ErrInvalidBudget, KindPrecondition},
	{ErrInvalidMaxActive, KindPrecondition},
	{ErrValueUnchanged, KindPrecondition},
	{ErrInsufficientFunds, KindResource},
	{ErrMaxActiveExceeded, KindResource},
	{ErrCounterOverflow, KindResource},
	{ErrSlotExists, KindConsistency},
	{ErrInvitorNotPlayer, KindConsistency},
	{ErrInvitorInactive, KindConsistency},
	{ErrInviteeExists, KindConsistency},
	{ErrNilState, KindInternal},
	{ErrNilCurrency, KindInternal},
}

// KindOf classifies err. Storage and ledger failures that do not wrap one of
// the package sentinels are reported as KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}
