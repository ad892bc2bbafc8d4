package vm

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	"github.com/holiman/uint256"
)

var ErrAlreadyCommitted = errors.New("account data already committed")

// AccountInfo is what a VM knows about one address.
type AccountInfo struct {
	Exists  bool
	Nonce   *uint256.Int
	Balance *uint256.Int
	Code    []byte
}

// AccountState collects the ledger facts committed for one transaction.
type AccountState struct {
	accounts map[common.Address]*AccountInfo
	codes    map[common.Address][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
}

func NewAccountState() *AccountState {
	return &AccountState{
		accounts: make(map[common.Address]*AccountInfo),
		codes:    make(map[common.Address][]byte),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
}

// Commit records c. Committing an address's account twice is an error.
func (s *AccountState) Commit(c AccountCommitment) error {
	switch c := c.(type) {
	case FullCommitment:
		if _, ok := s.accounts[c.Address]; ok {
			return fmt.Errorf("%w: account %s", ErrAlreadyCommitted, c.Address)
		}
		info := &AccountInfo{Exists: true, Nonce: new(uint256.Int), Balance: new(uint256.Int), Code: c.Code}
		if c.Nonce != nil {
			info.Nonce.Set(c.Nonce)
		}
		if c.Balance != nil {
			info.Balance.Set(c.Balance)
		}
		s.accounts[c.Address] = info
	case NonexistCommitment:
		if _, ok := s.accounts[c.Address]; ok {
			return fmt.Errorf("%w: account %s", ErrAlreadyCommitted, c.Address)
		}
		s.accounts[c.Address] = &AccountInfo{Nonce: new(uint256.Int), Balance: new(uint256.Int)}
	case CodeCommitment:
		if _, ok := s.codes[c.Address]; ok {
			return fmt.Errorf("%w: code %s", ErrAlreadyCommitted, c.Address)
		}
		s.codes[c.Address] = c.Code
	case StorageCommitment:
		slots, ok := s.storage[c.Address]
		if !ok {
			slots = make(map[common.Hash]common.Hash)
			s.storage[c.Address] = slots
		}
		if _, ok := slots[c.Index]; ok {
			return fmt.Errorf("%w: storage %s of %s", ErrAlreadyCommitted, c.Index, c.Address)
		}
		slots[c.Index] = c.Value
	default:
		return fmt.Errorf("unknown commitment %T", c)
	}
	return nil
}

// Account returns the committed account at addr, or RequireAccount.
func (s *AccountState) Account(addr common.Address) (*AccountInfo, error) {
	info, ok := s.accounts[addr]
	if !ok {
		return nil, RequireAccount{Address: addr}
	}
	return info, nil
}

// Code returns the code at addr, or RequireAccountCode.
func (s *AccountState) Code(addr common.Address) ([]byte, error) {
	if info, ok := s.accounts[addr]; ok {
		return info.Code, nil
	}
	if code, ok := s.codes[addr]; ok {
		return code, nil
	}
	return nil, RequireAccountCode{Address: addr}
}

// Storage returns one storage word at addr, or RequireAccountStorage.
func (s *AccountState) Storage(addr common.Address, index common.Hash) (common.Hash, error) {
	if info, ok := s.accounts[addr]; ok && !info.Exists {
		return common.Hash{}, nil
	}
	if v, ok := s.storage[addr][index]; ok {
		return v, nil
	}
	return common.Hash{}, RequireAccountStorage{Address: addr, Index: index}
}
