package miner

import (
	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/types"
	"github.com/colorfulnotion/devchain/vm"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// scriptedVM issues a fixed list of requirements, then reports the effects
// built by finish from what was committed.
type scriptedVM struct {
	reqs    []vm.Requirement
	next    int
	fireErr error

	commits []vm.AccountCommitment
	hashes  map[uint64]common.Hash

	finish  func(*scriptedVM) []vm.AccountChange
	logs    []types.Log
	usedGas uint64
	changes []vm.AccountChange
}

func (s *scriptedVM) Fire() error {
	if s.fireErr != nil {
		return s.fireErr
	}
	if s.next < len(s.reqs) {
		r := s.reqs[s.next]
		s.next++
		return r
	}
	if s.finish != nil {
		s.changes = s.finish(s)
	}
	return nil
}

func (s *scriptedVM) CommitAccount(c vm.AccountCommitment) error {
	s.commits = append(s.commits, c)
	return nil
}

func (s *scriptedVM) CommitBlockhash(number uint64, hash common.Hash) error {
	if s.hashes == nil {
		s.hashes = make(map[uint64]common.Hash)
	}
	s.hashes[number] = hash
	return nil
}

func (s *scriptedVM) Accounts() []vm.AccountChange { return s.changes }
func (s *scriptedVM) Logs() []types.Log            { return s.logs }
func (s *scriptedVM) UsedGas() uint64              { return s.usedGas }

// scriptedEngine validates like the transfer engine unless validate is set,
// and runs whatever VM execute builds.
type scriptedEngine struct {
	validate func(tx *ethtypes.Transaction, state *vm.AccountState, patch *vm.Patch) (*vm.ValidTransaction, error)
	execute  func(tx *vm.ValidTransaction, header vm.HeaderParams) *scriptedVM

	executed []*scriptedVM
}

func (e *scriptedEngine) Validate(tx *ethtypes.Transaction, state *vm.AccountState, patch *vm.Patch) (*vm.ValidTransaction, error) {
	if e.validate != nil {
		return e.validate(tx, state, patch)
	}
	return vm.ValidateTransaction(tx, state, patch)
}

func (e *scriptedEngine) Execute(tx *vm.ValidTransaction, header vm.HeaderParams, patch *vm.Patch) vm.VM {
	m := e.execute(tx, header)
	e.executed = append(e.executed, m)
	return m
}
