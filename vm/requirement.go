package vm

import (
	"fmt"

	"github.com/colorfulnotion/devchain/common"
)

// Requirement is returned by Fire and Validate when execution cannot go on
// without a piece of ledger data.
type Requirement interface {
	error
	requirement()
}

type RequireAccount struct {
	Address common.Address
}

type RequireAccountCode struct {
	Address common.Address
}

type RequireAccountStorage struct {
	Address common.Address
	Index   common.Hash
}

type RequireBlockhash struct {
	Number uint64
}

func (r RequireAccount) Error() string {
	return fmt.Sprintf("require account %s", r.Address)
}

func (r RequireAccountCode) Error() string {
	return fmt.Sprintf("require code of %s", r.Address)
}

func (r RequireAccountStorage) Error() string {
	return fmt.Sprintf("require storage %s of %s", r.Index, r.Address)
}

func (r RequireBlockhash) Error() string {
	return fmt.Sprintf("require hash of block %d", r.Number)
}

func (RequireAccount) requirement()        {}
func (RequireAccountCode) requirement()    {}
func (RequireAccountStorage) requirement() {}
func (RequireBlockhash) requirement()      {}
