package pricefeed

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/multibank/oracle"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Feed is oracle.PriceSource reading the price feed contract. Contract
// timestamps are expected in Unix seconds.
type Feed struct {
	reader *ContractReader
}

// NewFeed returns Feed of the contract with the given hash.
func NewFeed(inv Invoker, hash util.Uint160) *Feed {
	return &Feed{reader: NewReader(inv, hash)}
}

// Decimals implements oracle.PriceSource.
func (f *Feed) Decimals() (uint8, error) {
	d, err := f.reader.Decimals()
	if err != nil {
		return 0, fmt.Errorf("invoke decimals: %w", err)
	}

	if d.Sign() < 0 || !d.IsUint64() || d.Uint64() > 255 {
		return 0, fmt.Errorf("decimals %s out of range", d)
	}

	return uint8(d.Uint64()), nil
}

// LatestRoundData implements oracle.PriceSource.
func (f *Feed) LatestRoundData() (oracle.RoundData, error) {
	rd, err := f.reader.LatestRoundData()
	if err != nil {
		return oracle.RoundData{}, fmt.Errorf("invoke latestRoundData: %w", err)
	}

	startedAt, err := timestamp(rd.StartedAt)
	if err != nil {
		return oracle.RoundData{}, fmt.Errorf("startedAt: %w", err)
	}

	updatedAt, err := timestamp(rd.UpdatedAt)
	if err != nil {
		return oracle.RoundData{}, fmt.Errorf("updatedAt: %w", err)
	}

	return oracle.RoundData{
		RoundID:         rd.RoundID,
		Answer:          rd.Answer,
		StartedAt:       startedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: rd.AnsweredInRound,
	}, nil
}

func timestamp(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, errors.New("invalid timestamp " + v.String())
	}

	return v.Uint64(), nil
}

// Resolver is oracle.FeedResolver treating references as price feed
// contract hashes.
type Resolver struct {
	inv Invoker
}

// NewResolver returns Resolver calling contracts through inv.
func NewResolver(inv Invoker) *Resolver {
	return &Resolver{inv: inv}
}

// Feed implements oracle.FeedResolver.
func (r *Resolver) Feed(ref util.Uint160) (oracle.PriceSource, error) {
	if ref.Equals(util.Uint160{}) {
		return nil, errors.New("zero price feed hash")
	}

	return NewFeed(r.inv, ref), nil
}
