package vm

import (
	"github.com/colorfulnotion/devchain/common"
	"github.com/holiman/uint256"
)

// AccountChange is one effect of an executed transaction on the ledger.
type AccountChange interface {
	ChangedAddress() common.Address
}

// FullChange replaces nonce and balance of an existing account and writes
// the changed storage words. Code must be the account's current code.
type FullChange struct {
	Address         common.Address
	Nonce           *uint256.Int
	Balance         *uint256.Int
	ChangingStorage map[common.Hash]common.Hash
	Code            []byte
}

type IncreaseBalance struct {
	Address common.Address
	Amount  *uint256.Int
}

type DecreaseBalance struct {
	Address common.Address
	Amount  *uint256.Int
}

// CreateChange installs a fresh account, replacing whatever was at Address.
// With Exists false the account is destroyed instead.
type CreateChange struct {
	Address common.Address
	Nonce   *uint256.Int
	Balance *uint256.Int
	Storage map[common.Hash]common.Hash
	Code    []byte
	Exists  bool
}

func (c FullChange) ChangedAddress() common.Address      { return c.Address }
func (c IncreaseBalance) ChangedAddress() common.Address { return c.Address }
func (c DecreaseBalance) ChangedAddress() common.Address { return c.Address }
func (c CreateChange) ChangedAddress() common.Address    { return c.Address }
