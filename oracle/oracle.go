/*
Package oracle fetches and validates asset prices from external price feeds.

Every quote is read fresh from the feed bound to the asset: quotes are never
cached since a previous one may be stale by the time of use. A quote is
accepted only if its price is positive and the feed has completed the current
round within the freshness window.
*/
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// DefaultStaleness is the freshness window used when none is configured.
const DefaultStaleness = time.Hour

var (
	// ErrInvalidOraclePrice is returned for non-positive or out of range prices.
	ErrInvalidOraclePrice = errors.New("invalid oracle price")
	// ErrStaleOracleData is returned for incomplete or outdated rounds.
	ErrStaleOracleData = errors.New("stale oracle data")
)

// RoundData is the latest round reported by a price feed. Timestamps are
// Unix seconds.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound *big.Int
}

// PriceSource is a single price feed.
type PriceSource interface {
	// Decimals returns the number of fractional digits in feed answers.
	Decimals() (uint8, error)
	// LatestRoundData returns the latest round of the feed.
	LatestRoundData() (RoundData, error)
}

// FeedResolver gives access to price feeds by their references.
type FeedResolver interface {
	Feed(ref util.Uint160) (PriceSource, error)
}

// Bindings resolves the price feed reference bound to an asset.
type Bindings interface {
	Oracle(asset util.Uint160) (util.Uint160, error)
}

// Quote is a validated price of an asset.
type Quote struct {
	Asset           util.Uint160
	Feed            util.Uint160
	Price           *big.Int
	Decimals        uint8
	RoundID         *big.Int
	AnsweredInRound *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
}

// PriceU256 returns the quote price as an unsigned 256-bit integer. Validated
// quotes always have it representable.
func (q Quote) PriceU256() *uint256.Int {
	p, _ := uint256.FromBig(q.Price)
	return p
}

// Gateway validates quotes of the bound feeds.
type Gateway struct {
	bindings  Bindings
	feeds     FeedResolver
	clock     clock.Clock
	staleness time.Duration
}

// NewGateway returns Gateway reading feeds bound to the assets. Zero
// staleness means DefaultStaleness, nil clock means the system one.
func NewGateway(bindings Bindings, feeds FeedResolver, clk clock.Clock, staleness time.Duration) *Gateway {
	if clk == nil {
		clk = clock.New()
	}

	if staleness <= 0 {
		staleness = DefaultStaleness
	}

	return &Gateway{
		bindings:  bindings,
		feeds:     feeds,
		clock:     clk,
		staleness: staleness,
	}
}

// Staleness returns the freshness window.
func (g *Gateway) Staleness() time.Duration {
	return g.staleness
}

// Quote fetches the latest price of the asset and validates it.
func (g *Gateway) Quote(asset util.Uint160) (Quote, error) {
	ref, err := g.bindings.Oracle(asset)
	if err != nil {
		return Quote{}, err
	}

	feed, err := g.feeds.Feed(ref)
	if err != nil {
		return Quote{}, fmt.Errorf("resolve price feed %s: %w", ref.StringLE(), err)
	}

	decimals, err := feed.Decimals()
	if err != nil {
		return Quote{}, fmt.Errorf("read decimals of price feed %s: %w", ref.StringLE(), err)
	}

	rd, err := feed.LatestRoundData()
	if err != nil {
		return Quote{}, fmt.Errorf("read latest round of price feed %s: %w", ref.StringLE(), err)
	}

	err = g.validate(rd)
	if err != nil {
		return Quote{}, fmt.Errorf("price feed %s: %w", ref.StringLE(), err)
	}

	return Quote{
		Asset:           asset,
		Feed:            ref,
		Price:           new(big.Int).Set(rd.Answer),
		Decimals:        decimals,
		RoundID:         rd.RoundID,
		AnsweredInRound: rd.AnsweredInRound,
		StartedAt:       time.Unix(int64(rd.StartedAt), 0),
		UpdatedAt:       time.Unix(int64(rd.UpdatedAt), 0),
	}, nil
}

func (g *Gateway) validate(rd RoundData) error {
	if rd.Answer == nil || rd.Answer.Sign() <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidOraclePrice, rd.Answer)
	}

	if _, overflow := uint256.FromBig(rd.Answer); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidOraclePrice, rd.Answer)
	}

	if rd.RoundID == nil || rd.AnsweredInRound == nil {
		return fmt.Errorf("%w: missing round identifiers", ErrStaleOracleData)
	}

	if rd.AnsweredInRound.Cmp(rd.RoundID) < 0 {
		return fmt.Errorf("%w: round %s answered in %s", ErrStaleOracleData, rd.RoundID, rd.AnsweredInRound)
	}

	if rd.UpdatedAt == 0 {
		return fmt.Errorf("%w: round %s is incomplete", ErrStaleOracleData, rd.RoundID)
	}

	updated := time.Unix(int64(rd.UpdatedAt), 0)
	if age := g.clock.Now().Sub(updated); age > g.staleness {
		return fmt.Errorf("%w: updated %s ago", ErrStaleOracleData, age.Truncate(time.Second))
	}

	return nil
}
