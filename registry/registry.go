/*
Package registry tracks the set of assets accepted by the bank and their price
oracle bindings.

Secondary assets are kept in a dense array with a reverse index, so removal is
O(1) swap-remove: the last element is moved into the freed slot. Enumeration
order is therefore insertion order only until the first removal.

The base asset is identified by BaseAsset. It is bound at construction, is
always supported, can't be removed and is not part of the dense array.
*/
package registry

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

const (
	// BaseDecimals is the native precision of the base asset.
	BaseDecimals = 18

	// MaxDecimals limits native precision of secondary assets, 10^77 is the
	// biggest power of ten fitting 256 bits.
	MaxDecimals = 77
)

// BaseAsset is the sentinel identifier of the base asset.
var BaseAsset = util.Uint160{}

var (
	// ErrInvalidAddress is returned for zero or reserved identifiers.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrTokenAlreadySupported is returned on attempt to add a registered asset.
	ErrTokenAlreadySupported = errors.New("token already supported")
	// ErrTokenNotSupported is returned for unknown assets.
	ErrTokenNotSupported = errors.New("token not supported")
	// ErrInvalidDecimals is returned for unsupported native precisions.
	ErrInvalidDecimals = errors.New("invalid decimals")
)

// Asset describes a supported asset.
type Asset struct {
	// Hash identifies the asset, BaseAsset for the base one.
	Hash util.Uint160
	// Native precision of the asset amounts.
	Decimals uint8
	// Price feed bound to the asset.
	Oracle util.Uint160
	// Supported is false only in values describing removed assets.
	Supported bool
	// Position in the enumeration array, -1 for the base asset.
	Index int
}

// Registry is a set of supported assets. Zero value is not usable, use New.
type Registry struct {
	base   Asset
	assets []Asset
	index  map[util.Uint160]int
}

// New returns Registry with the base asset bound to the given oracle.
func New(baseOracle util.Uint160) (*Registry, error) {
	if baseOracle.Equals(util.Uint160{}) {
		return nil, fmt.Errorf("%w: zero base oracle", ErrInvalidAddress)
	}

	return &Registry{
		base: Asset{
			Hash:      BaseAsset,
			Decimals:  BaseDecimals,
			Oracle:    baseOracle,
			Supported: true,
			Index:     -1,
		},
		index: make(map[util.Uint160]int),
	}, nil
}

// CheckAdd checks whether the asset can be registered with the oracle without
// changing the Registry.
func (r *Registry) CheckAdd(asset, oracle util.Uint160) error {
	switch {
	case asset.Equals(BaseAsset):
		return fmt.Errorf("%w: asset %s is reserved", ErrInvalidAddress, asset.StringLE())
	case oracle.Equals(util.Uint160{}):
		return fmt.Errorf("%w: zero oracle", ErrInvalidAddress)
	}

	if _, ok := r.index[asset]; ok {
		return fmt.Errorf("%w: %s", ErrTokenAlreadySupported, asset.StringLE())
	}

	return nil
}

// Add registers the asset with given oracle and native precision.
func (r *Registry) Add(asset, oracle util.Uint160, decimals uint8) (Asset, error) {
	if err := r.CheckAdd(asset, oracle); err != nil {
		return Asset{}, err
	}

	if decimals > MaxDecimals {
		return Asset{}, fmt.Errorf("%w: precision %d exceeds %d", ErrInvalidDecimals, decimals, MaxDecimals)
	}

	a := Asset{
		Hash:      asset,
		Decimals:  decimals,
		Oracle:    oracle,
		Supported: true,
		Index:     len(r.assets),
	}

	r.assets = append(r.assets, a)
	r.index[asset] = a.Index

	return a, nil
}

// Remove unregisters the asset and returns its last state with Supported
// cleared.
func (r *Registry) Remove(asset util.Uint160) (Asset, error) {
	if asset.Equals(BaseAsset) {
		return Asset{}, fmt.Errorf("%w: base asset can't be removed", ErrInvalidAddress)
	}

	i, ok := r.index[asset]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrTokenNotSupported, asset.StringLE())
	}

	removed := r.assets[i]
	last := len(r.assets) - 1

	if i != last {
		moved := r.assets[last]
		moved.Index = i
		r.assets[i] = moved
		r.index[moved.Hash] = i
	}

	r.assets[last] = Asset{}
	r.assets = r.assets[:last]
	delete(r.index, asset)

	removed.Supported = false
	removed.Index = 0
	removed.Oracle = util.Uint160{}

	return removed, nil
}

// Get returns the supported asset.
func (r *Registry) Get(asset util.Uint160) (Asset, error) {
	if asset.Equals(BaseAsset) {
		return r.base, nil
	}

	i, ok := r.index[asset]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrTokenNotSupported, asset.StringLE())
	}

	return r.assets[i], nil
}

// IsSupported checks whether the asset is registered. It's always true for
// the base asset.
func (r *Registry) IsSupported(asset util.Uint160) bool {
	if asset.Equals(BaseAsset) {
		return true
	}

	_, ok := r.index[asset]
	return ok
}

// Oracle returns price feed bound to the asset.
func (r *Registry) Oracle(asset util.Uint160) (util.Uint160, error) {
	a, err := r.Get(asset)
	if err != nil {
		return util.Uint160{}, err
	}

	return a.Oracle, nil
}

// Decimals returns native precision of the asset.
func (r *Registry) Decimals(asset util.Uint160) (uint8, error) {
	a, err := r.Get(asset)
	if err != nil {
		return 0, err
	}

	return a.Decimals, nil
}

// List returns secondary assets in enumeration order. The base asset is not
// included.
func (r *Registry) List() []Asset {
	res := make([]Asset, len(r.assets))
	copy(res, r.assets)

	return res
}

// Len returns the number of secondary assets.
func (r *Registry) Len() int {
	return len(r.assets)
}

// CheckInvariants verifies that the dense array and the index agree.
func (r *Registry) CheckInvariants() error {
	if len(r.index) != len(r.assets) {
		return fmt.Errorf("index has %d entries, array has %d", len(r.index), len(r.assets))
	}

	for i, a := range r.assets {
		if a.Index != i {
			return fmt.Errorf("asset %s at slot %d records index %d", a.Hash.StringLE(), i, a.Index)
		}

		j, ok := r.index[a.Hash]
		switch {
		case !ok:
			return fmt.Errorf("asset %s at slot %d is missing in index", a.Hash.StringLE(), i)
		case j != i:
			return fmt.Errorf("asset %s at slot %d is indexed as %d", a.Hash.StringLE(), i, j)
		case !a.Supported:
			return fmt.Errorf("asset %s at slot %d is not marked supported", a.Hash.StringLE(), i)
		}
	}

	return nil
}
