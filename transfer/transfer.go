/*
Package transfer moves bank assets with NEP-17 token transfers.

Base asset of the bank is the native GAS, secondary assets are NEP-17 tokens
identified by their contract hashes. Transfers are sent with the Actor and
awaited, a transfer is successful only if the transaction HALTs and the token
returns true. The Actor must be able to witness the bank custody account and
all custodial accounts deposits are made from.
*/
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/bank"
	"github.com/nspcc-dev/multibank/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"go.uber.org/zap"
)

// DefaultTimeout limits waiting for a single transfer transaction.
const DefaultTimeout = time.Minute

// ErrTransferRejected is returned when the transfer transaction is persisted
// but the token refused to move funds.
var ErrTransferRejected = errors.New("transfer rejected")

// Token is a NEP-17 token. It's implemented by nep17.Token.
type Token interface {
	Decimals() (int, error)
	Transfer(from, to util.Uint160, amount *big.Int, data any) (util.Uint256, uint32, error)
}

// Waiter awaits results of sent transactions.
type Waiter interface {
	Wait(ctx context.Context, h util.Uint256, vub uint32, err error) (*state.AppExecResult, error)
}

// Actor sends token transfers and awaits their results.
type Actor interface {
	nep17.Actor
	Waiter
}

// Transferor is bank.AssetTransferor of a single token.
type Transferor struct {
	log     *zap.Logger
	token   Token
	hash    util.Uint160
	waiter  Waiter
	custody util.Uint160
	timeout time.Duration
}

// Decimals implements bank.AssetTransferor.
func (t *Transferor) Decimals() (uint8, error) {
	d, err := t.token.Decimals()
	if err != nil {
		return 0, fmt.Errorf("invoke decimals of %s: %w", t.hash.StringLE(), err)
	}

	if d < 0 || d > 255 {
		return 0, fmt.Errorf("token %s reports invalid decimals %d", t.hash.StringLE(), d)
	}

	return uint8(d), nil
}

// TransferIn implements bank.AssetTransferor.
func (t *Transferor) TransferIn(from util.Uint160, amount *uint256.Int) error {
	return t.transfer(from, t.custody, amount)
}

// TransferOut implements bank.AssetTransferor.
func (t *Transferor) TransferOut(to util.Uint160, amount *uint256.Int) error {
	return t.transfer(t.custody, to, amount)
}

func (t *Transferor) transfer(from, to util.Uint160, amount *uint256.Int) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	h, vub, err := t.token.Transfer(from, to, amount.ToBig(), nil)
	res, err := t.waiter.Wait(ctx, h, vub, err)
	if err != nil {
		return fmt.Errorf("send transfer of %s: %w", t.hash.StringLE(), err)
	}

	if res.VMState != vmstate.Halt {
		return fmt.Errorf("%w: tx %s faulted: %s", ErrTransferRejected, h.StringLE(), res.FaultException)
	}

	if len(res.Stack) != 1 {
		return fmt.Errorf("%w: tx %s returned %d items", ErrTransferRejected, h.StringLE(), len(res.Stack))
	}

	ok, err := res.Stack[0].TryBool()
	if err != nil || !ok {
		return fmt.Errorf("%w: tx %s returned false", ErrTransferRejected, h.StringLE())
	}

	t.log.Debug("transfer persisted",
		zap.Stringer("tx", h),
		zap.Stringer("token", t.hash),
		zap.String("from", address.Uint160ToString(from)),
		zap.String("to", address.Uint160ToString(to)),
		zap.String("amount", amount.ToBig().String()))

	return nil
}

// Prm groups Provider parameters.
type Prm struct {
	// Writes persisted transfers. Optional.
	Logger *zap.Logger

	Actor Actor
	// Account holding the bank funds.
	Custody util.Uint160
	// Limits waiting for a transfer. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Provider is bank.TransferorProvider resolving registry.BaseAsset to GAS
// and other assets to NEP-17 tokens with the same hash.
type Provider struct {
	log     *zap.Logger
	waiter  Waiter
	custody util.Uint160
	timeout time.Duration
	token   func(util.Uint160) Token

	mtx   sync.Mutex
	cache map[util.Uint160]*Transferor
}

// NewProvider returns Provider sending transfers through prm.Actor.
func NewProvider(prm Prm) (*Provider, error) {
	if prm.Actor == nil {
		return nil, errors.New("missing actor")
	}

	return newProvider(prm, prm.Actor, func(h util.Uint160) Token {
		return nep17.New(prm.Actor, h)
	})
}

func newProvider(prm Prm, waiter Waiter, token func(util.Uint160) Token) (*Provider, error) {
	if prm.Custody.Equals(util.Uint160{}) {
		return nil, fmt.Errorf("%w: zero custody account", registry.ErrInvalidAddress)
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	if prm.Timeout <= 0 {
		prm.Timeout = DefaultTimeout
	}

	return &Provider{
		log:     prm.Logger,
		waiter:  waiter,
		custody: prm.Custody,
		timeout: prm.Timeout,
		token:   token,
		cache:   make(map[util.Uint160]*Transferor),
	}, nil
}

// Transferor implements bank.TransferorProvider.
func (p *Provider) Transferor(asset util.Uint160) (bank.AssetTransferor, error) {
	hash := asset
	if asset.Equals(registry.BaseAsset) {
		hash = gas.Hash
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if t, ok := p.cache[hash]; ok {
		return t, nil
	}

	t := &Transferor{
		log:     p.log,
		token:   p.token(hash),
		hash:    hash,
		waiter:  p.waiter,
		custody: p.custody,
		timeout: p.timeout,
	}
	p.cache[hash] = t

	return t, nil
}
