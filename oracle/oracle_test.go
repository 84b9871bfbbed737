package oracle_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nspcc-dev/multibank/mock"
	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

var (
	asset = util.Uint160{0xaa}
	feed  = util.Uint160{0xfe}
)

type bindings map[util.Uint160]util.Uint160

func (b bindings) Oracle(a util.Uint160) (util.Uint160, error) {
	ref, ok := b[a]
	if !ok {
		return util.Uint160{}, errors.New("not bound")
	}
	return ref, nil
}

func newGateway(t *testing.T) (*oracle.Gateway, *mock.PriceFeed, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))

	pf := mock.NewPriceFeed(clk, 8, 200000000000)
	feeds := mock.NewFeeds()
	feeds.Add(feed, pf)

	return oracle.NewGateway(bindings{asset: feed}, feeds, clk, time.Hour), pf, clk
}

func TestGatewayQuote(t *testing.T) {
	g, pf, clk := newGateway(t)
	require.Equal(t, time.Hour, g.Staleness())

	q, err := g.Quote(asset)
	require.NoError(t, err)
	require.Equal(t, asset, q.Asset)
	require.Equal(t, feed, q.Feed)
	require.EqualValues(t, 8, q.Decimals)
	require.Equal(t, big.NewInt(200000000000), q.Price)
	require.Equal(t, uint64(200000000000), q.PriceU256().Uint64())
	require.True(t, clk.Now().Equal(q.UpdatedAt))

	t.Run("fresh at the window edge", func(t *testing.T) {
		pf.SetUpdatedAt(clk.Now().Add(-time.Hour))
		_, err := g.Quote(asset)
		require.NoError(t, err)
	})

	t.Run("quote is never cached", func(t *testing.T) {
		pf.SetPrice(big.NewInt(100))
		q, err := g.Quote(asset)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(100), q.Price)
	})
}

func TestGatewayInvalid(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(*mock.PriceFeed, *clock.Mock)
		err   error
	}{
		{
			name:  "zero price",
			setup: func(pf *mock.PriceFeed, _ *clock.Mock) { pf.SetPrice(big.NewInt(0)) },
			err:   oracle.ErrInvalidOraclePrice,
		},
		{
			name:  "negative price",
			setup: func(pf *mock.PriceFeed, _ *clock.Mock) { pf.SetPrice(big.NewInt(-1)) },
			err:   oracle.ErrInvalidOraclePrice,
		},
		{
			name: "price exceeds 256 bits",
			setup: func(pf *mock.PriceFeed, _ *clock.Mock) {
				pf.SetPrice(new(big.Int).Lsh(big.NewInt(1), 256))
			},
			err: oracle.ErrInvalidOraclePrice,
		},
		{
			name: "unfinished round",
			setup: func(pf *mock.PriceFeed, _ *clock.Mock) {
				pf.SetRound(big.NewInt(10), big.NewInt(9))
			},
			err: oracle.ErrStaleOracleData,
		},
		{
			name: "outdated",
			setup: func(pf *mock.PriceFeed, clk *clock.Mock) {
				pf.SetUpdatedAt(clk.Now().Add(-time.Hour - time.Second))
			},
			err: oracle.ErrStaleOracleData,
		},
		{
			name: "clock moved forward",
			setup: func(_ *mock.PriceFeed, clk *clock.Mock) {
				clk.Add(2 * time.Hour)
			},
			err: oracle.ErrStaleOracleData,
		},
		{
			name: "incomplete round",
			setup: func(pf *mock.PriceFeed, _ *clock.Mock) {
				pf.SetUpdatedAt(time.Unix(0, 0))
			},
			err: oracle.ErrStaleOracleData,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g, pf, clk := newGateway(t)
			tc.setup(pf, clk)

			_, err := g.Quote(asset)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGatewayFeedErrors(t *testing.T) {
	g, pf, _ := newGateway(t)

	_, err := g.Quote(util.Uint160{0x01})
	require.Error(t, err)

	errFeed := errors.New("feed is down")
	pf.SetError(errFeed)

	_, err = g.Quote(asset)
	require.ErrorIs(t, err, errFeed)

	g = oracle.NewGateway(bindings{asset: util.Uint160{0x02}}, mock.NewFeeds(), nil, 0)
	require.Equal(t, oracle.DefaultStaleness, g.Staleness())

	_, err = g.Quote(asset)
	require.ErrorIs(t, err, mock.ErrUnknownFeed)
}
