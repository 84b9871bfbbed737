package bank

import (
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// AssetTransferor moves a single asset between the bank custody and
// accounts. Any returned error means nothing was moved.
//
// Implementations may call back into the Bank while transferring. Such calls
// fail with guard.ErrReentrancyDetected.
type AssetTransferor interface {
	// Decimals returns native precision of the asset.
	Decimals() (uint8, error)
	// TransferIn moves amount from the account into the bank custody.
	TransferIn(from util.Uint160, amount *uint256.Int) error
	// TransferOut moves amount from the bank custody to the account.
	TransferOut(to util.Uint160, amount *uint256.Int) error
}

// TransferorProvider gives AssetTransferor of the asset. For
// registry.BaseAsset it must return the native value transferor.
type TransferorProvider interface {
	Transferor(asset util.Uint160) (AssetTransferor, error)
}
