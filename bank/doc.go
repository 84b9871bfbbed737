/*
Package bank implements multi-asset custodial ledger.

Bank keeps per-account balances of the base asset and registered secondary
assets in their native precision. Every deposit and withdrawal is priced
through oracle feeds into the canonical unit (base-asset value with 18
fractional digits) to maintain the total accounted value, which never exceeds
the bank cap. A single withdrawal is limited by a USD ceiling converted at the
current asset price.

Assets are moved by AssetTransferor implementations: transfer package
provides NEP-17 based one, mock package provides in-memory one for tests.
Deposits credit the ledger before pulling funds and withdrawals debit it
before sending them, any transfer failure rolls all changes back.

Roles

Admin can adjust balances, sweep funds and manage roles. TokenManager can add
and remove secondary assets. The owner given to New holds both roles.

Events

Committed operations produce events delivered to Prm.Listener and logged.

  Deposit:
    - Caller, Account: depositor
    - Asset, Amount: native amount
    - Value: canonical equivalent
    - TotalValue: total accounted value after deposit

  Withdraw:
    - Caller, Account: withdrawer
    - Asset, Amount: native amount
    - Value: canonical equivalent
    - TotalValue: total accounted value after withdrawal

  BalanceRecovered:
    - Caller: admin
    - Account, Asset
    - Previous, Amount: old and new native balances
    - Value: canonical equivalent of the new balance
    - TotalValue

  EmergencySweep:
    - Caller: admin
    - Account: recipient
    - Asset, Amount

  TokenAdded, TokenRemoved:
    - Caller: token manager
    - Asset, Oracle

  RoleGranted, RoleRevoked:
    - Caller: admin
    - Account, Role
*/
package bank
