/*
Package mock provides deterministic in-memory price feeds and asset tokens.

They implement oracle.FeedResolver and bank.TransferorProvider and are meant
for tests and local simulations of the bank.
*/
package mock

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ErrUnknownFeed is returned by Feeds for unregistered references.
var ErrUnknownFeed = errors.New("unknown price feed")

// PriceFeed is a manually driven oracle.PriceSource. Every price update
// completes a new round stamped with the current time of the clock.
type PriceFeed struct {
	clk clock.Clock

	mtx             sync.RWMutex
	decimals        uint8
	answer          *big.Int
	roundID         *big.Int
	answeredInRound *big.Int
	startedAt       uint64
	updatedAt       uint64
	err             error
}

// NewPriceFeed returns PriceFeed answering price with the given precision in
// its first round.
func NewPriceFeed(clk clock.Clock, decimals uint8, price int64) *PriceFeed {
	if clk == nil {
		clk = clock.New()
	}

	now := unix(clk.Now())

	return &PriceFeed{
		clk:             clk,
		decimals:        decimals,
		answer:          big.NewInt(price),
		roundID:         big.NewInt(1),
		answeredInRound: big.NewInt(1),
		startedAt:       now,
		updatedAt:       now,
	}
}

// Decimals implements oracle.PriceSource.
func (f *PriceFeed) Decimals() (uint8, error) {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	if f.err != nil {
		return 0, f.err
	}

	return f.decimals, nil
}

// LatestRoundData implements oracle.PriceSource.
func (f *PriceFeed) LatestRoundData() (oracle.RoundData, error) {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	if f.err != nil {
		return oracle.RoundData{}, f.err
	}

	return oracle.RoundData{
		RoundID:         new(big.Int).Set(f.roundID),
		Answer:          new(big.Int).Set(f.answer),
		StartedAt:       f.startedAt,
		UpdatedAt:       f.updatedAt,
		AnsweredInRound: new(big.Int).Set(f.answeredInRound),
	}, nil
}

// SetPrice completes a new round with the given answer.
func (f *PriceFeed) SetPrice(price *big.Int) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	now := unix(f.clk.Now())

	f.answer = new(big.Int).Set(price)
	f.roundID = new(big.Int).Add(f.roundID, big.NewInt(1))
	f.answeredInRound = new(big.Int).Set(f.roundID)
	f.startedAt = now
	f.updatedAt = now
}

// SetUpdatedAt overrides the update time of the latest round.
func (f *PriceFeed) SetUpdatedAt(t time.Time) {
	f.mtx.Lock()
	f.updatedAt = unix(t)
	f.mtx.Unlock()
}

// SetRound overrides round identifiers of the latest round.
func (f *PriceFeed) SetRound(roundID, answeredInRound *big.Int) {
	f.mtx.Lock()
	f.roundID = roundID
	f.answeredInRound = answeredInRound
	f.mtx.Unlock()
}

// SetDecimals changes precision of the answers.
func (f *PriceFeed) SetDecimals(decimals uint8) {
	f.mtx.Lock()
	f.decimals = decimals
	f.mtx.Unlock()
}

// SetError makes all the following calls fail with err. Nil err restores
// normal operation.
func (f *PriceFeed) SetError(err error) {
	f.mtx.Lock()
	f.err = err
	f.mtx.Unlock()
}

func unix(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}

	return 0
}

// Feeds is a set of price feeds implementing oracle.FeedResolver.
type Feeds struct {
	mtx   sync.RWMutex
	feeds map[util.Uint160]oracle.PriceSource
}

// NewFeeds returns empty Feeds.
func NewFeeds() *Feeds {
	return &Feeds{feeds: make(map[util.Uint160]oracle.PriceSource)}
}

// Add registers the feed under the reference replacing the previous one.
func (f *Feeds) Add(ref util.Uint160, feed oracle.PriceSource) {
	f.mtx.Lock()
	f.feeds[ref] = feed
	f.mtx.Unlock()
}

// Feed implements oracle.FeedResolver.
func (f *Feeds) Feed(ref util.Uint160) (oracle.PriceSource, error) {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	feed, ok := f.feeds[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, ref.StringLE())
	}

	return feed, nil
}
