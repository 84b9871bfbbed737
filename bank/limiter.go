package bank

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/convert"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Limiter computes the maximum amount of an asset that can be withdrawn in a
// single call. The ceiling is a USD value with 18 fractional digits for every
// asset, it is converted at the current asset price on every call.
type Limiter struct {
	quotes     convert.Quoter
	precisions convert.Precisions
	ceiling    *uint256.Int
}

// NewLimiter returns Limiter with the given USD ceiling.
func NewLimiter(quotes convert.Quoter, precisions convert.Precisions, ceiling *uint256.Int) *Limiter {
	return &Limiter{
		quotes:     quotes,
		precisions: precisions,
		ceiling:    new(uint256.Int).Set(ceiling),
	}
}

// Ceiling returns the USD ceiling.
func (l *Limiter) Ceiling() *uint256.Int {
	return new(uint256.Int).Set(l.ceiling)
}

// LimitFor returns the withdrawal limit of the asset in its native precision:
//
//	ceiling * 10^feedDecimals / price
//
// rescaled from 18 fractional digits to the asset precision within the same
// division, so it is truncated once.
func (l *Limiter) LimitFor(asset util.Uint160) (*uint256.Int, error) {
	q, err := l.quotes.Quote(asset)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", asset.StringLE(), err)
	}

	decimals, err := l.precisions.Decimals(asset)
	if err != nil {
		return nil, err
	}

	feed, err := convert.Pow10(uint(q.Decimals))
	if err != nil {
		return nil, err
	}

	nativeMul, nativeDiv, err := convert.Precision(convert.CanonicalDecimals, decimals)
	if err != nil {
		return nil, err
	}

	num, overflow := new(uint256.Int).MulOverflow(feed, nativeMul)
	if overflow {
		return nil, convert.ErrOverflow
	}

	den, overflow := new(uint256.Int).MulOverflow(q.PriceU256(), nativeDiv)
	if overflow {
		return nil, convert.ErrOverflow
	}

	return convert.MulDiv(l.ceiling, num, den)
}
