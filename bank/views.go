package bank

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/access"
	"github.com/nspcc-dev/multibank/convert"
	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/multibank/registry"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Stats is a snapshot of Bank counters.
type Stats struct {
	TotalValue  *uint256.Int
	BankCap     *uint256.Int
	Deposits    uint64
	Withdrawals uint64
	// Number of secondary assets.
	Assets int
	// USD ceiling of a single withdrawal, 18 fractional digits.
	Ceiling *uint256.Int
}

// BalanceOf returns native amount of the asset held by the account.
func (b *Bank) BalanceOf(account, asset util.Uint160) *uint256.Int {
	return b.state.Balance(account, asset)
}

// Balances returns all non-zero balances of the account.
func (b *Bank) Balances(account util.Uint160) map[util.Uint160]*uint256.Int {
	return b.state.Balances(account)
}

// TotalValue returns the total accounted value in canonical units.
func (b *Bank) TotalValue() *uint256.Int {
	return b.state.TotalValue()
}

// BankCap returns the maximum total accounted value in canonical units.
func (b *Bank) BankCap() *uint256.Int {
	return b.state.BankCap()
}

// DepositCount returns the number of successful deposits.
func (b *Bank) DepositCount() uint64 {
	return b.state.DepositCount()
}

// WithdrawCount returns the number of successful withdrawals.
func (b *Bank) WithdrawCount() uint64 {
	return b.state.WithdrawCount()
}

// SupportedAssets returns registered secondary assets. The base asset is
// always supported and is not listed.
func (b *Bank) SupportedAssets() []registry.Asset {
	return b.registry.List()
}

// Asset returns the supported asset description.
func (b *Bank) Asset(asset util.Uint160) (registry.Asset, error) {
	return b.registry.Get(asset)
}

// LimitFor returns the maximum amount of the asset that can be withdrawn in
// a single call at the current price.
func (b *Bank) LimitFor(asset util.Uint160) (*uint256.Int, error) {
	return b.limiter.LimitFor(asset)
}

// Quote returns the validated current price of the asset.
func (b *Bank) Quote(asset util.Uint160) (oracle.Quote, error) {
	return b.gateway.Quote(asset)
}

// Convert returns amount of the asset "from" expressed in the asset "to" at
// current prices.
func (b *Bank) Convert(amount *uint256.Int, from, to util.Uint160) (*uint256.Int, error) {
	return b.converter.Convert(amount, from, to)
}

// AccountValue returns the sum of the account balances in canonical units at
// current prices. Balances of removed assets can't be priced and are
// skipped.
func (b *Bank) AccountValue(account util.Uint160) (*uint256.Int, error) {
	res := new(uint256.Int)

	for asset, bal := range b.state.Balances(account) {
		if !b.registry.IsSupported(asset) {
			continue
		}

		v, err := b.converter.ToCanonical(bal, asset)
		if err != nil {
			return nil, fmt.Errorf("value of %s: %w", asset.StringLE(), err)
		}

		if _, overflow := res.AddOverflow(res, v); overflow {
			return nil, convert.ErrOverflow
		}
	}

	return res, nil
}

// HasRole checks whether the account holds the role.
func (b *Bank) HasRole(account util.Uint160, role access.Role) bool {
	return b.gate.HasRole(account, role)
}

// Members returns holders of the role.
func (b *Bank) Members(role access.Role) []util.Uint160 {
	return b.gate.Members(role)
}

// Params returns economic parameters of the Bank.
func (b *Bank) Params() Params {
	return Params{
		BankCap:           b.params.BankCap.Clone(),
		MinimumDeposit:    b.params.MinimumDeposit.Clone(),
		WithdrawalCeiling: b.params.WithdrawalCeiling.Clone(),
		PriceStaleness:    b.params.PriceStaleness,
	}
}

// Stats returns current counters.
func (b *Bank) Stats() Stats {
	return Stats{
		TotalValue:  b.state.TotalValue(),
		BankCap:     b.state.BankCap(),
		Deposits:    b.state.DepositCount(),
		Withdrawals: b.state.WithdrawCount(),
		Assets:      b.registry.Len(),
		Ceiling:     b.limiter.Ceiling(),
	}
}
