package bank

import (
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// State is the mutable ledger state: per-account balances, the running total
// of accounted value and operation counters. The bank cap is fixed at
// creation.
//
// State is changed only through a journal that can restore the exact previous
// content, which makes every operation all-or-nothing.
type State struct {
	balances    map[util.Uint160]map[util.Uint160]*uint256.Int
	totalValue  *uint256.Int
	bankCap     *uint256.Int
	deposits    uint64
	withdrawals uint64
}

// NewState returns empty State with the given bank cap in canonical units.
func NewState(bankCap *uint256.Int) *State {
	return &State{
		balances:   make(map[util.Uint160]map[util.Uint160]*uint256.Int),
		totalValue: new(uint256.Int),
		bankCap:    new(uint256.Int).Set(bankCap),
	}
}

// Balance returns native amount of the asset held by the account.
func (s *State) Balance(account, asset util.Uint160) *uint256.Int {
	if b, ok := s.balances[account][asset]; ok {
		return new(uint256.Int).Set(b)
	}

	return new(uint256.Int)
}

// Balances returns all non-zero balances of the account.
func (s *State) Balances(account util.Uint160) map[util.Uint160]*uint256.Int {
	res := make(map[util.Uint160]*uint256.Int, len(s.balances[account]))
	for asset, b := range s.balances[account] {
		if !b.IsZero() {
			res[asset] = new(uint256.Int).Set(b)
		}
	}

	return res
}

// HasAccount checks whether the account has ever been credited.
func (s *State) HasAccount(account util.Uint160) bool {
	_, ok := s.balances[account]
	return ok
}

// TotalValue returns the total accounted value in canonical units.
func (s *State) TotalValue() *uint256.Int {
	return new(uint256.Int).Set(s.totalValue)
}

// BankCap returns the maximum total accounted value.
func (s *State) BankCap() *uint256.Int {
	return new(uint256.Int).Set(s.bankCap)
}

// DepositCount returns the number of successful deposits.
func (s *State) DepositCount() uint64 {
	return s.deposits
}

// WithdrawCount returns the number of successful withdrawals.
func (s *State) WithdrawCount() uint64 {
	return s.withdrawals
}

// journal applies changes to State remembering how to undo them.
type journal struct {
	st   *State
	undo []func()
}

func (s *State) begin() *journal {
	return &journal{st: s}
}

func (j *journal) setBalance(account, asset util.Uint160, v *uint256.Int) {
	assets, accountExists := j.st.balances[account]
	if !accountExists {
		assets = make(map[util.Uint160]*uint256.Int)
		j.st.balances[account] = assets
	}

	prev, assetExists := assets[asset]
	assets[asset] = new(uint256.Int).Set(v)

	j.undo = append(j.undo, func() {
		switch {
		case !accountExists:
			delete(j.st.balances, account)
		case !assetExists:
			delete(assets, asset)
		default:
			assets[asset] = prev
		}
	})
}

func (j *journal) setTotalValue(v *uint256.Int) {
	prev := j.st.totalValue
	j.st.totalValue = new(uint256.Int).Set(v)

	j.undo = append(j.undo, func() { j.st.totalValue = prev })
}

func (j *journal) incDeposits() {
	j.st.deposits++
	j.undo = append(j.undo, func() { j.st.deposits-- })
}

func (j *journal) incWithdrawals() {
	j.st.withdrawals++
	j.undo = append(j.undo, func() { j.st.withdrawals-- })
}

// rollback reverts all changes in reverse order. It does nothing after
// commit.
func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}

	j.undo = nil
}

func (j *journal) commit() {
	j.undo = nil
}
