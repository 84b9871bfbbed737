package bank

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/access"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// EventName identifies the kind of Event.
type EventName string

// Names of the events produced by Bank.
const (
	EventDeposit          EventName = "Deposit"
	EventWithdraw         EventName = "Withdraw"
	EventTokenAdded       EventName = "TokenAdded"
	EventTokenRemoved     EventName = "TokenRemoved"
	EventBalanceRecovered EventName = "BalanceRecovered"
	EventEmergencySweep   EventName = "EmergencySweep"
	EventRoleGranted      EventName = "RoleGranted"
	EventRoleRevoked      EventName = "RoleRevoked"
)

// Event describes a committed operation. Events of failed operations are
// never produced. Fields not relevant to the event kind are zero.
type Event struct {
	ID   uuid.UUID
	Name EventName
	// Human-readable outcome.
	Status string

	// Identity invoking the operation.
	Caller util.Uint160
	// Account whose balance changed, sweep recipient or role holder.
	Account util.Uint160
	Asset   util.Uint160
	// Oracle bound to the asset, for token events only.
	Oracle util.Uint160
	Role   access.Role

	// Native amount moved or the new balance for BalanceRecovered.
	Amount *uint256.Int
	// Balance before BalanceRecovered.
	Previous *uint256.Int
	// Canonical equivalent of Amount at the moment of the operation.
	Value *uint256.Int
	// Total accounted value after the operation.
	TotalValue *uint256.Int
}

// Listener receives events of committed operations. Listener is called
// synchronously after the operation is finished and the guard is released,
// so it may call back into the Bank.
type Listener interface {
	Notify(Event)
}

// ListenerFunc is an adapter to use ordinary functions as Listener.
type ListenerFunc func(Event)

// Notify implements Listener.
func (f ListenerFunc) Notify(e Event) {
	f(e)
}
