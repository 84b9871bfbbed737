package bank

import "errors"

var (
	// ErrZeroAmount is returned for zero deposit, withdrawal or sweep amounts.
	ErrZeroAmount = errors.New("zero amount")
	// ErrMinimumDepositRequired is returned for deposits below the configured
	// minimum.
	ErrMinimumDepositRequired = errors.New("minimum deposit required")
	// ErrExceedsBankCap is returned when a deposit would bring the total
	// accounted value over the bank cap.
	ErrExceedsBankCap = errors.New("exceeds bank cap")
	// ErrInsufficientBalance is returned on attempt to withdraw more than the
	// account holds.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrExceedsWithdrawLimit is returned for withdrawals over the per-call
	// limit.
	ErrExceedsWithdrawLimit = errors.New("exceeds withdraw limit")
	// ErrTransferFailed is returned when the asset transferor reports failure.
	ErrTransferFailed = errors.New("transfer failed")
)
