package vm

import (
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// TransferEngine moves value and fees between accounts and installs the
// payload of creation transactions as contract code. It does not run bytecode.
type TransferEngine struct{}

func (TransferEngine) Validate(tx *ethtypes.Transaction, state *AccountState, patch *Patch) (*ValidTransaction, error) {
	return ValidateTransaction(tx, state, patch)
}

func (TransferEngine) Execute(tx *ValidTransaction, header HeaderParams, patch *Patch) VM {
	return NewTransferVM(tx, header, patch)
}

// TransferVM executes one transaction for TransferEngine.
type TransferVM struct {
	tx     *ValidTransaction
	header HeaderParams
	patch  *Patch

	state       *AccountState
	blockhashes map[uint64]common.Hash

	done    bool
	usedGas uint64
	changes []AccountChange
}

func NewTransferVM(tx *ValidTransaction, header HeaderParams, patch *Patch) *TransferVM {
	return &TransferVM{
		tx:          tx,
		header:      header,
		patch:       patch,
		state:       NewAccountState(),
		blockhashes: make(map[uint64]common.Hash),
	}
}

func (m *TransferVM) CommitAccount(c AccountCommitment) error {
	return m.state.Commit(c)
}

func (m *TransferVM) CommitBlockhash(number uint64, hash common.Hash) error {
	if _, ok := m.blockhashes[number]; ok {
		return fmt.Errorf("%w: block %d", ErrAlreadyCommitted, number)
	}
	m.blockhashes[number] = hash
	return nil
}

func (m *TransferVM) fee() *uint256.Int {
	used := m.patch.IntrinsicGas(m.tx.Input, m.tx.IsCreate())
	return new(uint256.Int).Mul(m.tx.GasPrice, uint256.NewInt(used))
}

// Fire asks for sender, target and, when a fee is paid, the beneficiary.
// Once all three are known it computes the effect list.
func (m *TransferVM) Fire() error {
	if m.done {
		return nil
	}
	fee := m.fee()
	target := m.tx.Target()

	sender, err := m.state.Account(m.tx.Caller)
	if err != nil {
		return err
	}
	recipient, err := m.state.Account(target)
	if err != nil {
		return err
	}
	var beneficiary *AccountInfo
	if !fee.IsZero() {
		if beneficiary, err = m.state.Account(m.header.Beneficiary); err != nil {
			return err
		}
	}
	if !sender.Exists {
		return fmt.Errorf("sender %s vanished after validation", m.tx.Caller)
	}

	value := m.tx.Value
	collision := m.tx.IsCreate() && recipient.Exists
	if collision {
		value = new(uint256.Int)
	}

	created := make(map[common.Address]bool)
	changes := make([]AccountChange, 0, 4)

	balance := new(uint256.Int).Sub(sender.Balance, value)
	changes = append(changes, FullChange{
		Address:         m.tx.Caller,
		Nonce:           new(uint256.Int).AddUint64(sender.Nonce, 1),
		Balance:         balance,
		ChangingStorage: map[common.Hash]common.Hash{},
		Code:            sender.Code,
	})
	if !fee.IsZero() {
		changes = append(changes, DecreaseBalance{Address: m.tx.Caller, Amount: fee})
	}

	switch {
	case m.tx.IsCreate() && !collision:
		changes = append(changes, CreateChange{
			Address: target,
			Nonce:   new(uint256.Int),
			Balance: new(uint256.Int).Set(value),
			Storage: map[common.Hash]common.Hash{},
			Code:    m.tx.Input,
			Exists:  true,
		})
		created[target] = true
	case m.tx.IsCreate():
	case value.IsZero():
	case recipient.Exists:
		changes = append(changes, IncreaseBalance{Address: target, Amount: new(uint256.Int).Set(value)})
	default:
		changes = append(changes, CreateChange{
			Address: target,
			Nonce:   new(uint256.Int),
			Balance: new(uint256.Int).Set(value),
			Storage: map[common.Hash]common.Hash{},
			Exists:  true,
		})
		created[target] = true
	}

	if beneficiary != nil {
		to := m.header.Beneficiary
		if beneficiary.Exists || created[to] {
			changes = append(changes, IncreaseBalance{Address: to, Amount: fee})
		} else {
			changes = append(changes, CreateChange{
				Address: to,
				Nonce:   new(uint256.Int),
				Balance: fee,
				Storage: map[common.Hash]common.Hash{},
				Exists:  true,
			})
		}
	}

	m.usedGas = m.patch.IntrinsicGas(m.tx.Input, m.tx.IsCreate())
	m.changes = changes
	m.done = true
	return nil
}

func (m *TransferVM) Accounts() []AccountChange { return m.changes }

func (m *TransferVM) Logs() []types.Log { return []types.Log{} }

func (m *TransferVM) UsedGas() uint64 { return m.usedGas }
