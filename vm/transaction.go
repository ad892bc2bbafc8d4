package vm

import (
	"fmt"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ValidTransaction is a transaction whose signature, nonce, gas and
// up-front cost have been checked against the ledger.
type ValidTransaction struct {
	Hash     common.Hash
	Caller   common.Address
	Nonce    uint64
	GasPrice *uint256.Int
	GasLimit uint64
	To       *common.Address // nil for contract creation
	Value    *uint256.Int
	Input    []byte
}

func (v *ValidTransaction) IsCreate() bool {
	return v.To == nil
}

// CreateAddress is where a creation transaction places its contract.
func (v *ValidTransaction) CreateAddress() common.Address {
	return common.Address(crypto.CreateAddress(v.Caller.Eth(), v.Nonce))
}

// Target is the recipient, or the new contract address for creations.
func (v *ValidTransaction) Target() common.Address {
	if v.To == nil {
		return v.CreateAddress()
	}
	return *v.To
}

// ValidateTransaction checks tx against the sender account committed to
// state. It asks for the sender with RequireAccount first.
func ValidateTransaction(tx *ethtypes.Transaction, state *AccountState, patch *Patch) (*ValidTransaction, error) {
	if tx.Type() != ethtypes.LegacyTxType {
		return nil, fmt.Errorf("%w: type %d", chainerrors.ErrVUnsupportedTxType, tx.Type())
	}
	from, err := ethtypes.Sender(patch.Signer(), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrVBadSignature, err)
	}
	caller := common.Address(from)

	sender, err := state.Account(caller)
	if err != nil {
		return nil, err
	}
	if !sender.Nonce.IsUint64() || sender.Nonce.Uint64() != tx.Nonce() {
		return nil, fmt.Errorf("%w: tx %d, account %s has %s", chainerrors.ErrVNonceMismatch, tx.Nonce(), caller, sender.Nonce)
	}

	create := tx.To() == nil
	intrinsic := patch.IntrinsicGas(tx.Data(), create)
	if tx.Gas() < intrinsic {
		return nil, fmt.Errorf("%w: have %d, want %d", chainerrors.ErrVIntrinsicGas, tx.Gas(), intrinsic)
	}

	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, fmt.Errorf("%w: value overflows", chainerrors.ErrVInsufficientBalance)
	}
	gasPrice, overflow := uint256.FromBig(tx.GasPrice())
	if overflow {
		return nil, fmt.Errorf("%w: gas price overflows", chainerrors.ErrVInsufficientBalance)
	}
	cost, overflow := new(uint256.Int).MulOverflow(gasPrice, uint256.NewInt(tx.Gas()))
	if !overflow {
		_, overflow = cost.AddOverflow(cost, value)
	}
	if overflow || sender.Balance.Lt(cost) {
		return nil, fmt.Errorf("%w: balance %s of %s", chainerrors.ErrVInsufficientBalance, sender.Balance, caller)
	}

	valid := &ValidTransaction{
		Hash:     types.TxHash(tx),
		Caller:   caller,
		Nonce:    tx.Nonce(),
		GasPrice: gasPrice,
		GasLimit: tx.Gas(),
		Value:    value,
		Input:    tx.Data(),
	}
	if !create {
		to := common.Address(*tx.To())
		valid.To = &to
	}
	return valid, nil
}
