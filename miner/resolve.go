package miner

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/statedb"
	"github.com/colorfulnotion/devchain/storage"
	"github.com/colorfulnotion/devchain/types"
	"github.com/colorfulnotion/devchain/vm"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// BlockReader looks up finalized blocks by number.
type BlockReader interface {
	GetBlockByNumber(n uint64) (*types.Block, error)
}

// ToValid runs the validity check of engine on tx, answering each data
// requirement from ledger. A rejected transaction comes back as a validation
// error; anything else is fatal.
func ToValid(ledger *statedb.Ledger, tx *ethtypes.Transaction, patch *vm.Patch, engine vm.Engine) (*vm.ValidTransaction, error) {
	r := &resolver{ledger: ledger, patch: patch, engine: engine}
	return r.toValid(tx)
}

// Call executes valid on a fresh VM, feeding it ledger data and block
// hashes until it finishes. The returned VM holds the effects to apply.
func Call(chain BlockReader, ledger *statedb.Ledger, params vm.HeaderParams, valid *vm.ValidTransaction, patch *vm.Patch, engine vm.Engine) (vm.VM, error) {
	r := &resolver{chain: chain, ledger: ledger, patch: patch, engine: engine}
	return r.call(params, valid)
}

type resolver struct {
	chain    BlockReader
	ledger   *statedb.Ledger
	patch    *vm.Patch
	engine   vm.Engine
	maxSteps int

	steps int // this transaction
	total int
}

func (r *resolver) step(txHash common.Hash) error {
	r.steps++
	r.total++
	if r.maxSteps > 0 && r.steps > r.maxSteps {
		return chainerrors.Fatal(chainerrors.ErrFResolutionBudget, "tx %s after %d steps", txHash, r.maxSteps)
	}
	return nil
}

func (r *resolver) toValid(tx *ethtypes.Transaction) (*vm.ValidTransaction, error) {
	state := vm.NewAccountState()
	txHash := types.TxHash(tx)
	for {
		valid, err := r.engine.Validate(tx, state, r.patch)
		if err == nil {
			return valid, nil
		}
		var req vm.Requirement
		if !errors.As(err, &req) {
			if chainerrors.IsValidation(err) {
				return nil, err
			}
			return nil, chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "validate %s: %v", txHash, err)
		}
		if err := r.step(txHash); err != nil {
			return nil, err
		}
		log.Trace(log.VMMonitoring, "ToValid: requirement", "tx", txHash, "req", req)

		var c vm.AccountCommitment
		switch req := req.(type) {
		case vm.RequireAccount:
			c, err = r.accountCommitment(req.Address)
		case vm.RequireAccountCode:
			c, err = r.codeCommitment(req.Address)
		case vm.RequireAccountStorage:
			c, err = r.storageCommitment(req.Address, req.Index)
		case vm.RequireBlockhash:
			return nil, chainerrors.Fatal(chainerrors.ErrFBlockhashInValidation, "tx %s asked for block %d", txHash, req.Number)
		default:
			return nil, chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "validate %s: unknown requirement %T", txHash, req)
		}
		if err != nil {
			return nil, err
		}
		if err := state.Commit(c); err != nil {
			return nil, chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "validate %s: %v", txHash, err)
		}
	}
}

func (r *resolver) call(params vm.HeaderParams, valid *vm.ValidTransaction) (vm.VM, error) {
	m := r.engine.Execute(valid, params, r.patch)
	for {
		err := m.Fire()
		if err == nil {
			return m, nil
		}
		var req vm.Requirement
		if !errors.As(err, &req) {
			return nil, chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "execute %s: %v", valid.Hash, err)
		}
		if err := r.step(valid.Hash); err != nil {
			return nil, err
		}
		log.Trace(log.VMMonitoring, "Call: requirement", "tx", valid.Hash, "req", req)

		switch req := req.(type) {
		case vm.RequireBlockhash:
			h, err := r.blockhash(req.Number)
			if err != nil {
				return nil, err
			}
			err = m.CommitBlockhash(req.Number, h)
			if err != nil {
				return nil, chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "execute %s: %v", valid.Hash, err)
			}
			continue
		case vm.RequireAccount:
			var c vm.AccountCommitment
			if c, err = r.accountCommitment(req.Address); err == nil {
				err = commit(m, c, valid.Hash)
			}
		case vm.RequireAccountCode:
			var c vm.AccountCommitment
			if c, err = r.codeCommitment(req.Address); err == nil {
				err = commit(m, c, valid.Hash)
			}
		case vm.RequireAccountStorage:
			var c vm.AccountCommitment
			if c, err = r.storageCommitment(req.Address, req.Index); err == nil {
				err = commit(m, c, valid.Hash)
			}
		default:
			err = chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "execute %s: unknown requirement %T", valid.Hash, req)
		}
		if err != nil {
			return nil, err
		}
	}
}

func commit(m vm.VM, c vm.AccountCommitment, txHash common.Hash) error {
	if err := m.CommitAccount(c); err != nil {
		return chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "execute %s: %v", txHash, err)
	}
	return nil
}

func (r *resolver) blockhash(number uint64) (common.Hash, error) {
	if r.chain == nil {
		return common.Hash{}, chainerrors.Fatal(chainerrors.ErrFMissingBlock, "block %d: no chain", number)
	}
	blk, err := r.chain.GetBlockByNumber(number)
	if errors.Is(err, storage.ErrNotFound) {
		return common.Hash{}, chainerrors.Fatal(chainerrors.ErrFMissingBlock, "block %d", number)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("read block %d: %w", number, err)
	}
	return blk.Hash(), nil
}

// code returns the code of acct after checking it against the code hash.
func (r *resolver) code(addr common.Address, acct *types.Account) ([]byte, error) {
	code, err := r.ledger.Code(acct)
	if err != nil {
		return nil, fmt.Errorf("code of %s: %w", addr, err)
	}
	if h := common.Keccak256(code); h != acct.CodeHash {
		return nil, chainerrors.Fatal(chainerrors.ErrFCodeHashMismatch, "account %s: code hashes to %s, want %s", addr, h, acct.CodeHash)
	}
	return code, nil
}

func (r *resolver) accountCommitment(addr common.Address) (vm.AccountCommitment, error) {
	acct, ok, err := r.ledger.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", addr, err)
	}
	if !ok {
		return vm.NonexistCommitment{Address: addr}, nil
	}
	code, err := r.code(addr, acct)
	if err != nil {
		return nil, err
	}
	return vm.FullCommitment{
		Address: addr,
		Nonce:   new(uint256.Int).Set(acct.Nonce),
		Balance: new(uint256.Int).Set(acct.Balance),
		Code:    code,
	}, nil
}

func (r *resolver) codeCommitment(addr common.Address) (vm.AccountCommitment, error) {
	acct, ok, err := r.ledger.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", addr, err)
	}
	if !ok {
		return vm.NonexistCommitment{Address: addr}, nil
	}
	code, err := r.code(addr, acct)
	if err != nil {
		return nil, err
	}
	return vm.CodeCommitment{Address: addr, Code: code}, nil
}

func (r *resolver) storageCommitment(addr common.Address, index common.Hash) (vm.AccountCommitment, error) {
	acct, ok, err := r.ledger.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", addr, err)
	}
	if !ok {
		return vm.NonexistCommitment{Address: addr}, nil
	}
	v, err := r.ledger.GetStorage(acct, index)
	if err != nil {
		return nil, fmt.Errorf("read storage %s of %s: %w", index, addr, err)
	}
	return vm.StorageCommitment{Address: addr, Index: index, Value: v}, nil
}
