package mock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/bank"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

var (
	// ErrUnknownToken is returned by Tokens for unregistered assets.
	ErrUnknownToken = errors.New("unknown token")
	// ErrInsufficientFunds is returned when the sender of a transfer lacks
	// funds.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Direction of a Transfer relative to the bank custody.
type Direction uint8

// Transfer directions.
const (
	In Direction = iota
	Out
)

// Transfer is a completed token movement.
type Transfer struct {
	Direction Direction
	// Sender for In, recipient for Out.
	Account util.Uint160
	Amount  *uint256.Int
}

// Token is an in-memory asset implementing bank.AssetTransferor. It keeps
// holder balances and the bank custody balance.
type Token struct {
	decimals uint8

	mtx       sync.Mutex
	holders   map[util.Uint160]*uint256.Int
	custody   *uint256.Int
	transfers []Transfer
	failure   error
	hook      func(Transfer) error
}

// NewToken returns Token with the given native precision and no funds.
func NewToken(decimals uint8) *Token {
	return &Token{
		decimals: decimals,
		holders:  make(map[util.Uint160]*uint256.Int),
		custody:  new(uint256.Int),
	}
}

// Decimals implements bank.AssetTransferor.
func (t *Token) Decimals() (uint8, error) {
	return t.decimals, nil
}

// Mint credits the holder outside the bank.
func (t *Token) Mint(holder util.Uint160, amount *uint256.Int) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.holders[holder] = new(uint256.Int).Add(t.balance(holder), amount)
}

// MintCustody credits the bank custody directly, bypassing the ledger.
func (t *Token) MintCustody(amount *uint256.Int) {
	t.mtx.Lock()
	t.custody.Add(t.custody, amount)
	t.mtx.Unlock()
}

// BalanceOf returns the holder balance outside the bank.
func (t *Token) BalanceOf(holder util.Uint160) *uint256.Int {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return t.balance(holder)
}

// Custody returns the amount held by the bank.
func (t *Token) Custody() *uint256.Int {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return t.custody.Clone()
}

// Transfers returns completed transfers in order.
func (t *Token) Transfers() []Transfer {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	res := make([]Transfer, len(t.transfers))
	copy(res, t.transfers)

	return res
}

// SetFailure makes all the following transfers fail with err. Nil err
// restores normal operation.
func (t *Token) SetFailure(err error) {
	t.mtx.Lock()
	t.failure = err
	t.mtx.Unlock()
}

// SetHook installs a callback invoked during every transfer before funds are
// moved. The hook may call back into the bank. An error returned by the hook
// fails the transfer.
func (t *Token) SetHook(hook func(Transfer) error) {
	t.mtx.Lock()
	t.hook = hook
	t.mtx.Unlock()
}

// TransferIn implements bank.AssetTransferor.
func (t *Token) TransferIn(from util.Uint160, amount *uint256.Int) error {
	return t.transfer(Transfer{Direction: In, Account: from, Amount: amount.Clone()})
}

// TransferOut implements bank.AssetTransferor.
func (t *Token) TransferOut(to util.Uint160, amount *uint256.Int) error {
	return t.transfer(Transfer{Direction: Out, Account: to, Amount: amount.Clone()})
}

func (t *Token) transfer(tr Transfer) error {
	t.mtx.Lock()
	failure, hook := t.failure, t.hook
	t.mtx.Unlock()

	if failure != nil {
		return failure
	}

	// called unlocked, hooks may inspect the token
	if hook != nil {
		if err := hook(tr); err != nil {
			return err
		}
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()

	switch tr.Direction {
	case In:
		bal := t.balance(tr.Account)
		if bal.Lt(tr.Amount) {
			return fmt.Errorf("%w: holder has %s, needs %s", ErrInsufficientFunds, bal.ToBig(), tr.Amount.ToBig())
		}

		t.holders[tr.Account] = bal.Sub(bal, tr.Amount)
		t.custody.Add(t.custody, tr.Amount)
	default:
		if t.custody.Lt(tr.Amount) {
			return fmt.Errorf("%w: custody has %s, needs %s", ErrInsufficientFunds, t.custody.ToBig(), tr.Amount.ToBig())
		}

		t.custody.Sub(t.custody, tr.Amount)
		t.holders[tr.Account] = new(uint256.Int).Add(t.balance(tr.Account), tr.Amount)
	}

	t.transfers = append(t.transfers, tr)

	return nil
}

func (t *Token) balance(holder util.Uint160) *uint256.Int {
	if b, ok := t.holders[holder]; ok {
		return b.Clone()
	}

	return new(uint256.Int)
}

// Tokens is a set of tokens implementing bank.TransferorProvider.
type Tokens struct {
	mtx    sync.RWMutex
	tokens map[util.Uint160]*Token
}

// NewTokens returns empty Tokens.
func NewTokens() *Tokens {
	return &Tokens{tokens: make(map[util.Uint160]*Token)}
}

// Add registers the token under the asset identifier.
func (t *Tokens) Add(asset util.Uint160, token *Token) {
	t.mtx.Lock()
	t.tokens[asset] = token
	t.mtx.Unlock()
}

// Token returns the registered token or nil.
func (t *Tokens) Token(asset util.Uint160) *Token {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	return t.tokens[asset]
}

// Transferor implements bank.TransferorProvider.
func (t *Tokens) Transferor(asset util.Uint160) (bank.AssetTransferor, error) {
	tok := t.Token(asset)
	if tok == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, asset.StringLE())
	}

	return tok, nil
}
