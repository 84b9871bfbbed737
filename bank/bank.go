package bank

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/access"
	"github.com/nspcc-dev/multibank/convert"
	"github.com/nspcc-dev/multibank/guard"
	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/multibank/registry"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

// Params groups economic parameters of the Bank. They are fixed for the Bank
// lifetime.
type Params struct {
	// Maximum total accounted value in canonical units.
	BankCap *uint256.Int
	// Minimum deposit in canonical units, converted to the deposited asset
	// at the current price. Nil means no minimum.
	MinimumDeposit *uint256.Int
	// USD value limiting a single withdrawal, 18 fractional digits.
	WithdrawalCeiling *uint256.Int
	// Maximum age of a price quote. Zero means oracle.DefaultStaleness.
	PriceStaleness time.Duration
}

// Prm groups Bank construction parameters.
type Prm struct {
	// Writes committed operations into the log. Optional.
	Logger *zap.Logger

	// Identity granted all roles.
	Owner util.Uint160
	// Price feed of the base asset.
	BaseOracle util.Uint160

	Params Params

	// Price feeds referenced by asset bindings.
	Feeds oracle.FeedResolver
	// Asset transfers, including the base asset.
	Transfers TransferorProvider

	// Time source for quote freshness checks. Optional, defaults to the
	// system clock.
	Clock clock.Clock
	// Receives events of committed operations. Optional.
	Listener Listener
}

// Bank is a multi-asset custodial ledger. It accepts deposits and
// withdrawals of the base asset and registered secondary assets, keeps the
// total accounted value under the bank cap and limits every withdrawal by a
// USD ceiling.
//
// Every mutating method is all-or-nothing: if it returns an error or an
// asset transferor panics, all state changes are reverted and no event is
// produced. Mutating methods are protected by a reentrancy guard, so asset
// transferors calling back into the Bank get guard.ErrReentrancyDetected.
// Views called by a transferor see the operation in progress: the balance
// is already credited or debited and the total value updated.
//
// Bank is not safe for concurrent use. The guard rejects overlapping
// mutating calls, but views are not synchronized with them.
type Bank struct {
	log *zap.Logger

	params Params
	state  *State

	registry  *registry.Registry
	gate      *access.Gate
	guard     guard.Guard
	gateway   *oracle.Gateway
	converter *convert.Converter
	limiter   *Limiter

	transfers TransferorProvider
	listener  Listener
}

// New returns Bank with empty ledger and the base asset bound to
// Prm.BaseOracle.
func New(prm Prm) (*Bank, error) {
	switch {
	case prm.Feeds == nil:
		return nil, errors.New("missing price feeds")
	case prm.Transfers == nil:
		return nil, errors.New("missing asset transfers")
	case prm.Params.BankCap == nil:
		return nil, errors.New("missing bank cap")
	case prm.Params.WithdrawalCeiling == nil:
		return nil, errors.New("missing withdrawal ceiling")
	case prm.Owner.Equals(util.Uint160{}):
		return nil, fmt.Errorf("%w: zero owner", registry.ErrInvalidAddress)
	}

	reg, err := registry.New(prm.BaseOracle)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	params := prm.Params
	if params.MinimumDeposit == nil {
		params.MinimumDeposit = new(uint256.Int)
	}

	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gw := oracle.NewGateway(reg, prm.Feeds, prm.Clock, params.PriceStaleness)
	params.PriceStaleness = gw.Staleness()

	return &Bank{
		log:       log,
		params:    params,
		state:     NewState(params.BankCap),
		registry:  reg,
		gate:      access.New(prm.Owner),
		gateway:   gw,
		converter: convert.New(gw, reg),
		limiter:   NewLimiter(gw, reg, params.WithdrawalCeiling),
		transfers: prm.Transfers,
		listener:  prm.Listener,
	}, nil
}

// Deposit credits the caller with amount of the asset and pulls the asset
// into the bank custody.
//
// Produces Deposit event.
func (b *Bank) Deposit(caller, asset util.Uint160, amount *uint256.Int) error {
	return b.exec("deposit", func(st *State) ([]Event, error) {
		return b.deposit(st, caller, asset, amount)
	})
}

// Withdraw debits the caller by amount of the asset and sends it to the
// caller.
//
// Produces Withdraw event.
func (b *Bank) Withdraw(caller, asset util.Uint160, amount *uint256.Int) error {
	return b.exec("withdraw", func(st *State) ([]Event, error) {
		return b.withdraw(st, caller, asset, amount)
	})
}

// AdminAdjustBalance overwrites the account balance of the asset and
// re-accounts total value at the current price. It is an emergency override:
// no amount, limit or cap checks are made. Can be invoked only by Admin.
//
// Produces BalanceRecovered event.
func (b *Bank) AdminAdjustBalance(caller, account, asset util.Uint160, newBalance *uint256.Int) error {
	return b.exec("adminAdjustBalance", func(st *State) ([]Event, error) {
		return b.adjustBalance(st, caller, account, asset, newBalance)
	})
}

// EmergencySweep sends amount of the asset from the bank custody to the
// recipient bypassing ledger accounting. It is meant for recovery of funds
// that were never accounted (e.g. sent directly to the custody), so the asset
// is not required to be supported. Can be invoked only by Admin.
//
// Produces EmergencySweep event.
func (b *Bank) EmergencySweep(caller, asset, recipient util.Uint160, amount *uint256.Int) error {
	return b.exec("emergencySweep", func(_ *State) ([]Event, error) {
		return b.sweep(caller, asset, recipient, amount)
	})
}

// AddToken registers the asset with the price feed. Native precision is
// requested from the asset transferor. Can be invoked only by TokenManager.
//
// Produces TokenAdded event.
func (b *Bank) AddToken(caller, asset, oracleRef util.Uint160) error {
	return b.exec("addToken", func(_ *State) ([]Event, error) {
		return b.addToken(caller, asset, oracleRef)
	})
}

// RemoveToken unregisters the asset. Balances of the asset are kept, but
// can't be deposited to or withdrawn until the asset is added back. Can be
// invoked only by TokenManager.
//
// Produces TokenRemoved event.
func (b *Bank) RemoveToken(caller, asset util.Uint160) error {
	return b.exec("removeToken", func(_ *State) ([]Event, error) {
		return b.removeToken(caller, asset)
	})
}

// GrantRole gives the role to the account. Can be invoked only by Admin.
//
// Produces RoleGranted event if the role was not held before.
func (b *Bank) GrantRole(caller, account util.Uint160, role access.Role) error {
	return b.exec("grantRole", func(_ *State) ([]Event, error) {
		ok, err := b.gate.Grant(caller, account, role)
		if err != nil || !ok {
			return nil, err
		}

		return []Event{{
			Name:    EventRoleGranted,
			Status:  "grantRole: role has been granted",
			Caller:  caller,
			Account: account,
			Role:    role,
		}}, nil
	})
}

// RevokeRole takes the role away from the account. Can be invoked only by
// Admin. The last Admin can't be revoked.
//
// Produces RoleRevoked event if the role was held before.
func (b *Bank) RevokeRole(caller, account util.Uint160, role access.Role) error {
	return b.exec("revokeRole", func(_ *State) ([]Event, error) {
		ok, err := b.gate.Revoke(caller, account, role)
		if err != nil || !ok {
			return nil, err
		}

		return []Event{{
			Name:    EventRoleRevoked,
			Status:  "revokeRole: role has been revoked",
			Caller:  caller,
			Account: account,
			Role:    role,
		}}, nil
	})
}

// exec runs op under the reentrancy guard and publishes produced events
// after the guard is released.
func (b *Bank) exec(name string, op func(*State) ([]Event, error)) error {
	events, err := b.guarded(op)
	if err != nil {
		b.log.Debug("operation failed", zap.String("op", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}

	for i := range events {
		events[i].ID = uuid.New()
		b.logEvent(events[i])

		if b.listener != nil {
			b.listener.Notify(events[i])
		}
	}

	return nil
}

func (b *Bank) guarded(op func(*State) ([]Event, error)) ([]Event, error) {
	release, err := b.guard.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return op(b.state)
}

func (b *Bank) deposit(st *State, caller, asset util.Uint160, amount *uint256.Int) ([]Event, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	if !b.registry.IsSupported(asset) {
		return nil, fmt.Errorf("%w: %s", registry.ErrTokenNotSupported, asset.StringLE())
	}

	tr, err := b.transfers.Transferor(asset)
	if err != nil {
		return nil, fmt.Errorf("get transferor: %w", err)
	}

	value, err := b.converter.ToCanonical(amount, asset)
	if err != nil {
		return nil, err
	}

	minimum, err := b.converter.FromCanonical(b.params.MinimumDeposit, asset)
	if err != nil {
		return nil, err
	}

	if amount.Lt(minimum) {
		return nil, fmt.Errorf("%w: %s < %s", ErrMinimumDepositRequired, amount.ToBig(), minimum.ToBig())
	}

	total, overflow := new(uint256.Int).AddOverflow(st.totalValue, value)
	if overflow || total.Gt(st.bankCap) {
		return nil, fmt.Errorf("%w: %s + %s > %s", ErrExceedsBankCap, st.totalValue.ToBig(), value.ToBig(), st.bankCap.ToBig())
	}

	balance, overflow := new(uint256.Int).AddOverflow(st.Balance(caller, asset), amount)
	if overflow {
		return nil, fmt.Errorf("credit balance: %w", convert.ErrOverflow)
	}

	j := st.begin()
	j.setBalance(caller, asset, balance)
	j.setTotalValue(total)
	j.incDeposits()
	defer j.rollback()

	if err := tr.TransferIn(caller, amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	j.commit()

	return []Event{{
		Name:       EventDeposit,
		Status:     "deposit: funds have been transferred",
		Caller:     caller,
		Account:    caller,
		Asset:      asset,
		Amount:     amount.Clone(),
		Value:      value,
		TotalValue: total,
	}}, nil
}

func (b *Bank) withdraw(st *State, caller, asset util.Uint160, amount *uint256.Int) ([]Event, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	if !b.registry.IsSupported(asset) {
		return nil, fmt.Errorf("%w: %s", registry.ErrTokenNotSupported, asset.StringLE())
	}

	tr, err := b.transfers.Transferor(asset)
	if err != nil {
		return nil, fmt.Errorf("get transferor: %w", err)
	}

	limit, err := b.limiter.LimitFor(asset)
	if err != nil {
		return nil, err
	}

	if amount.Gt(limit) {
		return nil, fmt.Errorf("%w: %s > %s", ErrExceedsWithdrawLimit, amount.ToBig(), limit.ToBig())
	}

	balance := st.Balance(caller, asset)
	if amount.Gt(balance) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInsufficientBalance, amount.ToBig(), balance.ToBig())
	}

	value, err := b.converter.ToCanonical(amount, asset)
	if err != nil {
		return nil, err
	}

	total := b.subValue(st.totalValue, value)

	j := st.begin()
	j.setBalance(caller, asset, balance.Sub(balance, amount))
	j.setTotalValue(total)
	j.incWithdrawals()
	defer j.rollback()

	if err := tr.TransferOut(caller, amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	j.commit()

	return []Event{{
		Name:       EventWithdraw,
		Status:     "withdraw: funds have been transferred",
		Caller:     caller,
		Account:    caller,
		Asset:      asset,
		Amount:     amount.Clone(),
		Value:      value,
		TotalValue: total,
	}}, nil
}

func (b *Bank) adjustBalance(st *State, caller, account, asset util.Uint160, newBalance *uint256.Int) ([]Event, error) {
	if err := b.gate.Require(caller, access.Admin); err != nil {
		return nil, err
	}

	if !b.registry.IsSupported(asset) {
		return nil, fmt.Errorf("%w: %s", registry.ErrTokenNotSupported, asset.StringLE())
	}

	if newBalance == nil {
		newBalance = new(uint256.Int)
	}

	old := st.Balance(account, asset)

	oldValue, err := b.canonical(old, asset)
	if err != nil {
		return nil, err
	}

	newValue, err := b.canonical(newBalance, asset)
	if err != nil {
		return nil, err
	}

	total, overflow := new(uint256.Int).AddOverflow(b.subValue(st.totalValue, oldValue), newValue)
	if overflow {
		return nil, fmt.Errorf("account total value: %w", convert.ErrOverflow)
	}

	j := st.begin()
	j.setBalance(account, asset, newBalance)
	j.setTotalValue(total)
	j.commit()

	return []Event{{
		Name:       EventBalanceRecovered,
		Status:     "adminAdjustBalance: balance has been recovered",
		Caller:     caller,
		Account:    account,
		Asset:      asset,
		Amount:     newBalance.Clone(),
		Previous:   old,
		Value:      newValue,
		TotalValue: total,
	}}, nil
}

func (b *Bank) sweep(caller, asset, recipient util.Uint160, amount *uint256.Int) ([]Event, error) {
	if err := b.gate.Require(caller, access.Admin); err != nil {
		return nil, err
	}

	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	if recipient.Equals(util.Uint160{}) {
		return nil, fmt.Errorf("%w: zero recipient", registry.ErrInvalidAddress)
	}

	tr, err := b.transfers.Transferor(asset)
	if err != nil {
		return nil, fmt.Errorf("get transferor: %w", err)
	}

	if err := tr.TransferOut(recipient, amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	return []Event{{
		Name:    EventEmergencySweep,
		Status:  "emergencySweep: funds have been transferred",
		Caller:  caller,
		Account: recipient,
		Asset:   asset,
		Amount:  amount.Clone(),
	}}, nil
}

func (b *Bank) addToken(caller, asset, oracleRef util.Uint160) ([]Event, error) {
	if err := b.gate.Require(caller, access.TokenManager); err != nil {
		return nil, err
	}

	if err := b.registry.CheckAdd(asset, oracleRef); err != nil {
		return nil, err
	}

	tr, err := b.transfers.Transferor(asset)
	if err != nil {
		return nil, fmt.Errorf("get transferor: %w", err)
	}

	decimals, err := tr.Decimals()
	if err != nil {
		return nil, fmt.Errorf("get token decimals: %w", err)
	}

	a, err := b.registry.Add(asset, oracleRef, decimals)
	if err != nil {
		return nil, err
	}

	return []Event{{
		Name:   EventTokenAdded,
		Status: "addToken: token has been added",
		Caller: caller,
		Asset:  a.Hash,
		Oracle: a.Oracle,
	}}, nil
}

func (b *Bank) removeToken(caller, asset util.Uint160) ([]Event, error) {
	if err := b.gate.Require(caller, access.TokenManager); err != nil {
		return nil, err
	}

	a, err := b.registry.Get(asset)
	if err != nil {
		return nil, err
	}

	if _, err := b.registry.Remove(asset); err != nil {
		return nil, err
	}

	return []Event{{
		Name:   EventTokenRemoved,
		Status: "removeToken: token has been removed",
		Caller: caller,
		Asset:  asset,
		Oracle: a.Oracle,
	}}, nil
}

// canonical is ToCanonical which doesn't need quotes for zero amounts.
func (b *Bank) canonical(amount *uint256.Int, asset util.Uint160) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int), nil
	}

	return b.converter.ToCanonical(amount, asset)
}

// subValue returns total - v saturated at zero. Total value is a running sum
// of conversions at historical prices, so a withdrawal at a higher price may
// exceed it.
func (b *Bank) subValue(total, v *uint256.Int) *uint256.Int {
	res, underflow := new(uint256.Int).SubOverflow(total, v)
	if underflow {
		b.log.Warn("accounted value is less than the withdrawn equivalent, resetting to zero",
			zap.String("total", total.ToBig().String()),
			zap.String("value", v.ToBig().String()))
		return new(uint256.Int)
	}

	return res
}

func (b *Bank) logEvent(e Event) {
	fields := []zap.Field{
		zap.Stringer("id", e.ID),
		zap.String("event", string(e.Name)),
		zap.String("caller", address.Uint160ToString(e.Caller)),
	}

	if !e.Account.Equals(util.Uint160{}) {
		fields = append(fields, zap.String("account", address.Uint160ToString(e.Account)))
	}

	switch e.Name {
	case EventRoleGranted, EventRoleRevoked:
		fields = append(fields, zap.Stringer("role", e.Role))
	default:
		fields = append(fields, zap.Stringer("asset", e.Asset))
	}

	if e.Amount != nil {
		fields = append(fields, zap.String("amount", b.formatAmount(e.Amount, e.Asset)))
	}

	if e.Value != nil {
		fields = append(fields, zap.String("value", fixedn.ToString(e.Value.ToBig(), convert.CanonicalDecimals)))
	}

	b.log.Info(e.Status, fields...)
}

func (b *Bank) formatAmount(v *uint256.Int, asset util.Uint160) string {
	d, err := b.registry.Decimals(asset)
	if err != nil {
		return v.ToBig().String()
	}

	return fixedn.ToString(v.ToBig(), int(d))
}
