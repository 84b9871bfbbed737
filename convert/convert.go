/*
Package convert converts asset amounts between their native precision and the
canonical accounting unit.

The canonical unit is the value of the base asset expressed with 18
fractional digits. Conversion between two assets goes through their current
prices: the amount is multiplied by the source price and divided by the target
price, both prices are normalized by their feed precision and the result is
rescaled from the source native precision to the target one. All factors are
combined into a single multiply-then-divide over a 512-bit intermediate, so the
result is the exact quotient truncated once (floor). Truncation is always in
favor of the bank.
*/
package convert

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/multibank/registry"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// CanonicalDecimals is the number of fractional digits of the canonical unit.
const CanonicalDecimals = registry.BaseDecimals

// maxPow10 is the largest n with 10^n fitting into 256 bits.
const maxPow10 = 77

var (
	// ErrOverflow is returned when a result doesn't fit into 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrDivisionByZero is returned by MulDiv for zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

var pow10 [maxPow10 + 1]uint256.Int

func init() {
	pow10[0].SetOne()
	ten := uint256.NewInt(10)
	for i := 1; i <= maxPow10; i++ {
		pow10[i].Mul(&pow10[i-1], ten)
	}
}

// Pow10 returns 10^n.
func Pow10(n uint) (*uint256.Int, error) {
	if n > maxPow10 {
		return nil, fmt.Errorf("%w: 10^%d", ErrOverflow, n)
	}

	return new(uint256.Int).Set(&pow10[n]), nil
}

// MulDiv returns floor(x*y/d) computed without intermediate overflow.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}

	res, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("%w: %s*%s/%s", ErrOverflow, x.ToBig(), y.ToBig(), d.ToBig())
	}

	return res, nil
}

// Scale returns x*10^exp checking for overflow.
func Scale(x *uint256.Int, exp uint) (*uint256.Int, error) {
	p, err := Pow10(exp)
	if err != nil {
		return nil, err
	}

	res, overflow := new(uint256.Int).MulOverflow(x, p)
	if overflow {
		return nil, fmt.Errorf("%w: %s*10^%d", ErrOverflow, x.ToBig(), exp)
	}

	return res, nil
}

// Precision returns multiplier and divisor rescaling amounts from one
// precision to another. One of them is always 1.
func Precision(from, to uint8) (mul, div *uint256.Int, err error) {
	mul, div = uint256.NewInt(1), uint256.NewInt(1)

	switch {
	case to > from:
		mul, err = Pow10(uint(to - from))
	case from > to:
		div, err = Pow10(uint(from - to))
	}

	return mul, div, err
}

// Quoter provides validated asset prices.
type Quoter interface {
	Quote(asset util.Uint160) (oracle.Quote, error)
}

// Precisions provides native precision of assets.
type Precisions interface {
	Decimals(asset util.Uint160) (uint8, error)
}

// Converter converts amounts using current prices. Quotes are requested on
// every call.
type Converter struct {
	quotes     Quoter
	precisions Precisions
}

// New returns Converter using given price and precision sources. Precisions
// must report CanonicalDecimals for registry.BaseAsset.
func New(quotes Quoter, precisions Precisions) *Converter {
	return &Converter{
		quotes:     quotes,
		precisions: precisions,
	}
}

// ToCanonical converts native amount of the asset into canonical units.
// Precision scaling is folded into the price division, so the result is
// truncated once and may exceed the one of dividing by price and scaling
// afterwards.
func (c *Converter) ToCanonical(amount *uint256.Int, asset util.Uint160) (*uint256.Int, error) {
	return c.rate(amount, asset, registry.BaseAsset)
}

// FromCanonical converts canonical units into native amount of the asset.
func (c *Converter) FromCanonical(value *uint256.Int, asset util.Uint160) (*uint256.Int, error) {
	return c.rate(value, registry.BaseAsset, asset)
}

// Convert converts native amount of one asset into native amount of another
// one through canonical units. Both steps truncate.
func (c *Converter) Convert(amount *uint256.Int, from, to util.Uint160) (*uint256.Int, error) {
	v, err := c.ToCanonical(amount, from)
	if err != nil {
		return nil, err
	}

	return c.FromCanonical(v, to)
}

type side struct {
	quote    oracle.Quote
	decimals uint8
}

func (c *Converter) side(asset util.Uint160) (side, error) {
	q, err := c.quotes.Quote(asset)
	if err != nil {
		return side{}, fmt.Errorf("quote %s: %w", asset.StringLE(), err)
	}

	d, err := c.precisions.Decimals(asset)
	if err != nil {
		return side{}, err
	}

	return side{quote: q, decimals: d}, nil
}

// rate computes
//
//	amount * srcPrice * 10^dstFeedDecimals * 10^dstDecimals
//	-------------------------------------------------------
//	dstPrice * 10^srcFeedDecimals * 10^srcDecimals
//
// with common powers of ten cancelled.
func (c *Converter) rate(amount *uint256.Int, from, to util.Uint160) (*uint256.Int, error) {
	src, err := c.side(from)
	if err != nil {
		return nil, err
	}

	dst := src
	if !from.Equals(to) {
		dst, err = c.side(to)
		if err != nil {
			return nil, err
		}
	}

	feedMul, feedDiv, err := Precision(src.quote.Decimals, dst.quote.Decimals)
	if err != nil {
		return nil, err
	}

	nativeMul, nativeDiv, err := Precision(src.decimals, dst.decimals)
	if err != nil {
		return nil, err
	}

	num, err := product(src.quote.PriceU256(), feedMul, nativeMul)
	if err != nil {
		return nil, err
	}

	den, err := product(dst.quote.PriceU256(), feedDiv, nativeDiv)
	if err != nil {
		return nil, err
	}

	return MulDiv(amount, num, den)
}

func product(xs ...*uint256.Int) (*uint256.Int, error) {
	res := uint256.NewInt(1)
	for _, x := range xs {
		var overflow bool
		res, overflow = new(uint256.Int).MulOverflow(res, x)
		if overflow {
			return nil, ErrOverflow
		}
	}

	return res, nil
}
