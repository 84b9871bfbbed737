package convert_test

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/convert"
	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/multibank/registry"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

var (
	base = registry.BaseAsset
	usdc = util.Uint160{0x06}
	wbtc = util.Uint160{0x08}
	wide = util.Uint160{0x24}
)

type market struct {
	prices   map[util.Uint160]oracle.Quote
	decimals map[util.Uint160]uint8
	calls    int
}

func (m *market) Quote(a util.Uint160) (oracle.Quote, error) {
	m.calls++
	q, ok := m.prices[a]
	if !ok {
		return oracle.Quote{}, oracle.ErrStaleOracleData
	}
	return q, nil
}

func (m *market) Decimals(a util.Uint160) (uint8, error) {
	d, ok := m.decimals[a]
	if !ok {
		return 0, registry.ErrTokenNotSupported
	}
	return d, nil
}

func (m *market) set(a util.Uint160, price int64, feedDecimals, decimals uint8) {
	m.prices[a] = oracle.Quote{Asset: a, Price: big.NewInt(price), Decimals: feedDecimals}
	m.decimals[a] = decimals
}

func newMarket() *market {
	m := &market{
		prices:   make(map[util.Uint160]oracle.Quote),
		decimals: make(map[util.Uint160]uint8),
	}
	m.set(base, 2000_00000000, 8, 18)  // $2000
	m.set(usdc, 1_00000000, 8, 6)      // $1
	m.set(wbtc, 50000_00000000, 8, 8) // $50000
	m.set(wide, 1_000000, 6, 36)       // $1, feed with 6 decimals
	return m
}

func u(s string) *uint256.Int {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid number " + s)
	}
	return uint256.MustFromBig(b)
}

func TestPow10(t *testing.T) {
	p, err := convert.Pow10(0)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.Uint64())

	p, err = convert.Pow10(18)
	require.NoError(t, err)
	require.EqualValues(t, uint64(1e18), p.Uint64())

	p, err = convert.Pow10(77)
	require.NoError(t, err)
	require.Equal(t, "1"+zeros(77), p.ToBig().String())

	_, err = convert.Pow10(78)
	require.ErrorIs(t, err, convert.ErrOverflow)

	// returned value is a copy
	p, _ = convert.Pow10(1)
	p.SetUint64(7)
	p, _ = convert.Pow10(1)
	require.EqualValues(t, 10, p.Uint64())
}

func TestMulDiv(t *testing.T) {
	top := new(uint256.Int).SetAllOne()

	// intermediate product exceeds 256 bits
	res, err := convert.MulDiv(top, u("1000"), u("1000"))
	require.NoError(t, err)
	require.Equal(t, top, res)

	res, err = convert.MulDiv(u("7"), u("10"), u("3"))
	require.NoError(t, err)
	require.EqualValues(t, 23, res.Uint64())

	_, err = convert.MulDiv(top, u("2"), u("1"))
	require.ErrorIs(t, err, convert.ErrOverflow)

	_, err = convert.MulDiv(u("1"), u("1"), u("0"))
	require.ErrorIs(t, err, convert.ErrDivisionByZero)

	_, err = convert.Scale(top, 1)
	require.ErrorIs(t, err, convert.ErrOverflow)

	res, err = convert.Scale(u("5"), 3)
	require.NoError(t, err)
	require.EqualValues(t, 5000, res.Uint64())
}

func TestToCanonical(t *testing.T) {
	m := newMarket()
	c := convert.New(m, m)

	for _, tc := range []struct {
		name   string
		asset  util.Uint160
		amount string
		value  string
	}{
		{"base is identity", base, "1500000000000000000", "1500000000000000000"},
		{"1 USDC at $1 vs $2000 base", usdc, "1000000", "500000000000000"},
		{"2000 USDC", usdc, "2000000000", "1000000000000000000"},
		{"1 WBTC", wbtc, "100000000", "25000000000000000000"},
		{"36 decimals truncate", wide, "1999999999999999999999999999999999999", "999999999999999"},
		{"zero amount", usdc, "0", "0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, err := c.ToCanonical(u(tc.amount), tc.asset)
			require.NoError(t, err)
			require.Equal(t, tc.value, v.ToBig().String())
		})
	}
}

func TestSixDecimalsScenario(t *testing.T) {
	m := newMarket()
	m.set(base, 1_00000000, 8, 18) // base priced so that 1 token = 1 base unit

	c := convert.New(m, m)

	v, err := c.ToCanonical(u("1000000"), usdc)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", v.ToBig().String())

	n, err := c.FromCanonical(v, usdc)
	require.NoError(t, err)
	require.EqualValues(t, 1000000, n.Uint64())
}

func TestFromCanonical(t *testing.T) {
	m := newMarket()
	c := convert.New(m, m)

	v, err := c.FromCanonical(u("1000000000000000000"), usdc)
	require.NoError(t, err)
	require.EqualValues(t, 2000_000000, v.Uint64())

	v, err = c.FromCanonical(u("1000000000000000000"), wbtc)
	require.NoError(t, err)
	require.EqualValues(t, 4000000, v.Uint64()) // 0.04 WBTC

	v, err = c.FromCanonical(u("1"), wide)
	require.NoError(t, err)
	require.Equal(t, "2000"+zeros(18), v.ToBig().String())
}

func TestConvert(t *testing.T) {
	m := newMarket()
	c := convert.New(m, m)

	v, err := c.Convert(u("100000000"), wbtc, usdc)
	require.NoError(t, err)
	require.EqualValues(t, 50000_000000, v.Uint64())

	v, err = c.Convert(u("50000000000"), usdc, wbtc)
	require.NoError(t, err)
	require.EqualValues(t, 100000000, v.Uint64())
}

func TestRoundTrip(t *testing.T) {
	var (
		m   = newMarket()
		c   = convert.New(m, m)
		rnd = rand.New(rand.NewSource(1))
		one = uint256.NewInt(1)
	)

	for _, a := range []util.Uint160{base, usdc, wbtc, wide} {
		for i := 0; i < 500; i++ {
			x := new(uint256.Int).SetUint64(rnd.Uint64())
			if i%2 == 0 {
				x.Mul(x, uint256.NewInt(rnd.Uint64()))
			}

			v, err := c.ToCanonical(x, a)
			require.NoError(t, err)

			back, err := c.FromCanonical(v, a)
			require.NoError(t, err)

			require.False(t, back.Gt(x), "round trip must not create value: %s -> %s", x.ToBig(), back.ToBig())

			diff := new(uint256.Int).Sub(x, back)
			if a.Equals(wide) {
				// one canonical unit is worth 2000e18 native units of the 36 decimals asset
				continue
			}
			require.False(t, diff.Gt(one), "asset %s: %s -> %s", a.StringLE(), x.ToBig(), back.ToBig())
		}
	}
}

func TestSingleTruncation(t *testing.T) {
	m := newMarket()
	c := convert.New(m, m)

	// 1e-6 USDC is worth 5e-10 of the $2000 base asset
	v, err := c.ToCanonical(u("1"), usdc)
	require.NoError(t, err)
	require.EqualValues(t, 500000000, v.Uint64())

	back, err := c.FromCanonical(v, usdc)
	require.NoError(t, err)
	require.EqualValues(t, 1, back.Uint64())
}

func TestRoundTripUnevenPrices(t *testing.T) {
	var (
		m   = newMarket()
		c   = convert.New(m, m)
		rnd = rand.New(rand.NewSource(7))
		one = uint256.NewInt(1)
	)

	m.set(base, 1987_65432101, 8, 18) // $1987.65432101
	m.set(usdc, 99987654, 8, 6)       // $0.99987654
	m.set(wbtc, 61234_98765432, 8, 8) // $61234.98765432

	for _, a := range []util.Uint160{usdc, wbtc} {
		maxLoss := new(uint256.Int)

		for i := 0; i < 3000; i++ {
			x := new(uint256.Int).SetUint64(rnd.Uint64() | 1)
			if i%2 == 0 {
				x.Mul(x, uint256.NewInt(rnd.Uint64()|1))
			}

			v, err := c.ToCanonical(x, a)
			require.NoError(t, err)

			back, err := c.FromCanonical(v, a)
			require.NoError(t, err)
			require.False(t, back.Gt(x), "round trip must not create value: %s -> %s", x.ToBig(), back.ToBig())

			diff := new(uint256.Int).Sub(x, back)
			require.False(t, diff.Gt(one), "asset %s: %s -> %s", a.StringLE(), x.ToBig(), back.ToBig())

			if diff.Gt(maxLoss) {
				maxLoss = diff
			}
		}

		require.Equal(t, one, maxLoss, "asset %s: truncation never observed", a.StringLE())
	}
}

func TestConverterErrors(t *testing.T) {
	m := newMarket()
	c := convert.New(m, m)

	delete(m.prices, usdc)
	_, err := c.ToCanonical(u("1"), usdc)
	require.ErrorIs(t, err, oracle.ErrStaleOracleData)

	_, err = c.ToCanonical(u("1"), util.Uint160{0x42})
	require.Error(t, err)

	m = newMarket()
	c = convert.New(m, m)
	delete(m.prices, base)
	_, err = c.ToCanonical(u("1"), wbtc)
	require.ErrorIs(t, err, oracle.ErrStaleOracleData)

	m = newMarket()
	c = convert.New(m, m)
	m.decimals[usdc] = 100
	_, err = c.ToCanonical(u("1"), usdc)
	require.ErrorIs(t, err, convert.ErrOverflow)

	m = newMarket()
	c = convert.New(m, m)
	_, err = c.ToCanonical(new(uint256.Int).SetAllOne(), wbtc)
	require.True(t, errors.Is(err, convert.ErrOverflow))
}

func TestQuotesAreRequestedEveryTime(t *testing.T) {
	m := newMarket()
	c := convert.New(m, m)

	_, err := c.ToCanonical(u("1"), usdc)
	require.NoError(t, err)
	require.Equal(t, 2, m.calls)

	_, err = c.ToCanonical(u("1"), base)
	require.NoError(t, err)
	require.Equal(t, 3, m.calls)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
