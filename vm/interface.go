package vm

import (
	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// VM executes one validated transaction against ledger data it asks for
// piece by piece. Fire either finishes or stops with a Requirement naming
// the data it is missing; the caller commits that data and fires again.
type VM interface {
	Fire() error
	CommitAccount(c AccountCommitment) error
	CommitBlockhash(number uint64, hash common.Hash) error

	// Accounts lists the effects to apply, in order, once Fire returned nil.
	Accounts() []AccountChange
	Logs() []types.Log
	UsedGas() uint64
}

// Engine turns raw transactions into validated ones and runs them.
type Engine interface {
	// Validate checks tx against the facts committed to state so far. It
	// returns a Requirement when it needs more, or a validation error.
	Validate(tx *ethtypes.Transaction, state *AccountState, patch *Patch) (*ValidTransaction, error)
	Execute(tx *ValidTransaction, header HeaderParams, patch *Patch) VM
}
