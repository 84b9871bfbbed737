package mock

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestPriceFeed(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1000, 0))

	f := NewPriceFeed(clk, 8, 100)

	rd, err := f.LatestRoundData()
	require.NoError(t, err)
	require.EqualValues(t, 1, rd.RoundID.Int64())
	require.EqualValues(t, 100, rd.Answer.Int64())
	require.EqualValues(t, 1000, rd.UpdatedAt)

	clk.Add(time.Minute)
	f.SetPrice(big.NewInt(200))

	rd, err = f.LatestRoundData()
	require.NoError(t, err)
	require.EqualValues(t, 2, rd.RoundID.Int64())
	require.EqualValues(t, 2, rd.AnsweredInRound.Int64())
	require.EqualValues(t, 1060, rd.UpdatedAt)

	rd.Answer.SetInt64(1)
	rd, err = f.LatestRoundData()
	require.NoError(t, err)
	require.EqualValues(t, 200, rd.Answer.Int64())

	f.SetUpdatedAt(time.Unix(-5, 0))
	rd, err = f.LatestRoundData()
	require.NoError(t, err)
	require.Zero(t, rd.UpdatedAt)

	f.SetDecimals(6)
	d, err := f.Decimals()
	require.NoError(t, err)
	require.EqualValues(t, 6, d)

	errFeed := errors.New("down")
	f.SetError(errFeed)
	_, err = f.Decimals()
	require.ErrorIs(t, err, errFeed)
	_, err = f.LatestRoundData()
	require.ErrorIs(t, err, errFeed)

	feeds := NewFeeds()
	feeds.Add(util.Uint160{1}, f)
	got, err := feeds.Feed(util.Uint160{1})
	require.NoError(t, err)
	require.Same(t, f, got)
	_, err = feeds.Feed(util.Uint160{2})
	require.ErrorIs(t, err, ErrUnknownFeed)
}

func TestToken(t *testing.T) {
	var (
		tok   = NewToken(6)
		alice = util.Uint160{0xa1}
		bob   = util.Uint160{0xb0}
	)

	d, err := tok.Decimals()
	require.NoError(t, err)
	require.EqualValues(t, 6, d)

	tok.Mint(alice, uint256.NewInt(10))

	require.ErrorIs(t, tok.TransferIn(alice, uint256.NewInt(11)), ErrInsufficientFunds)
	require.NoError(t, tok.TransferIn(alice, uint256.NewInt(7)))
	require.ErrorIs(t, tok.TransferOut(bob, uint256.NewInt(8)), ErrInsufficientFunds)
	require.NoError(t, tok.TransferOut(bob, uint256.NewInt(2)))

	require.EqualValues(t, 3, tok.BalanceOf(alice).Uint64())
	require.EqualValues(t, 2, tok.BalanceOf(bob).Uint64())
	require.EqualValues(t, 5, tok.Custody().Uint64())
	require.Equal(t, []Transfer{
		{Direction: In, Account: alice, Amount: uint256.NewInt(7)},
		{Direction: Out, Account: bob, Amount: uint256.NewInt(2)},
	}, tok.Transfers())

	var hooked []Transfer
	tok.SetHook(func(tr Transfer) error {
		hooked = append(hooked, tr)
		// the token is unlocked while the hook runs
		_ = tok.Custody()
		return nil
	})
	require.NoError(t, tok.TransferOut(bob, uint256.NewInt(1)))
	require.Len(t, hooked, 1)

	errHook := errors.New("hook")
	tok.SetHook(func(Transfer) error { return errHook })
	require.ErrorIs(t, tok.TransferOut(bob, uint256.NewInt(1)), errHook)
	tok.SetHook(nil)

	errFail := errors.New("fail")
	tok.SetFailure(errFail)
	require.ErrorIs(t, tok.TransferIn(alice, uint256.NewInt(1)), errFail)
	tok.SetFailure(nil)

	require.EqualValues(t, 4, tok.Custody().Uint64())
	require.Len(t, tok.Transfers(), 3)

	tokens := NewTokens()
	tokens.Add(util.Uint160{1}, tok)
	tr, err := tokens.Transferor(util.Uint160{1})
	require.NoError(t, err)
	require.Equal(t, tok, tr)
	require.Nil(t, tokens.Token(util.Uint160{2}))
	_, err = tokens.Transferor(util.Uint160{2})
	require.ErrorIs(t, err, ErrUnknownToken)
}
