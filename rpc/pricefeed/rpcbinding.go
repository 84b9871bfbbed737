// Package pricefeed contains RPC wrappers for price feed contracts.
package pricefeed

import (
	"errors"
	"fmt"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"math/big"
)

// RoundData is a contract-specific pricefeed.RoundData type used by its methods.
type RoundData struct {
	RoundID *big.Int
	Answer *big.Int
	StartedAt *big.Int
	UpdatedAt *big.Int
	AnsweredInRound *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// Decimals invokes `decimals` method of contract.
func (c *ContractReader) Decimals() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "decimals"))
}

// Description invokes `description` method of contract.
func (c *ContractReader) Description() (string, error) {
	return unwrap.UTF8String(c.invoker.Call(c.hash, "description"))
}

// LatestRoundData invokes `latestRoundData` method of contract.
func (c *ContractReader) LatestRoundData() (*RoundData, error) {
	return itemToRoundData(unwrap.Item(c.invoker.Call(c.hash, "latestRoundData")))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// itemToRoundData converts stack item into *RoundData.
func itemToRoundData(item stackitem.Item, err error) (*RoundData, error) {
	if err != nil {
		return nil, err
	}
	var res = new(RoundData)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of RoundData from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *RoundData) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 5 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	res.RoundID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field RoundID: %w", err)
	}

	index++
	res.Answer, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Answer: %w", err)
	}

	index++
	res.StartedAt, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field StartedAt: %w", err)
	}

	index++
	res.UpdatedAt, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field UpdatedAt: %w", err)
	}

	index++
	res.AnsweredInRound, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field AnsweredInRound: %w", err)
	}

	return nil
}
