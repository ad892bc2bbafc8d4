package vm

import (
	"github.com/colorfulnotion/devchain/common"
	"github.com/holiman/uint256"
)

// AccountCommitment answers one Requirement with ledger data.
type AccountCommitment interface {
	CommitAddress() common.Address
}

// FullCommitment carries a present account together with its code.
type FullCommitment struct {
	Address common.Address
	Nonce   *uint256.Int
	Balance *uint256.Int
	Code    []byte
}

type CodeCommitment struct {
	Address common.Address
	Code    []byte
}

// StorageCommitment carries one storage word; absent slots are the zero word.
type StorageCommitment struct {
	Address common.Address
	Index   common.Hash
	Value   common.Hash
}

// NonexistCommitment says the ledger has no account at Address.
type NonexistCommitment struct {
	Address common.Address
}

func (c FullCommitment) CommitAddress() common.Address     { return c.Address }
func (c CodeCommitment) CommitAddress() common.Address     { return c.Address }
func (c StorageCommitment) CommitAddress() common.Address  { return c.Address }
func (c NonexistCommitment) CommitAddress() common.Address { return c.Address }
