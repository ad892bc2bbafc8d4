package miner

import (
	"fmt"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/statedb"
	"github.com/colorfulnotion/devchain/trie"
	"github.com/colorfulnotion/devchain/types"
	"github.com/colorfulnotion/devchain/vm"
	"github.com/holiman/uint256"
)

// Transit applies the effects of a finished VM to ledger in order and
// returns the receipt of the transaction.
func Transit(ledger *statedb.Ledger, m vm.VM) (*types.Receipt, error) {
	for _, change := range m.Accounts() {
		if err := applyChange(ledger, change); err != nil {
			return nil, err
		}
	}
	logs := make([]types.Log, 0, len(m.Logs()))
	logs = append(logs, m.Logs()...)
	receipt := &types.Receipt{
		UsedGas:   m.UsedGas(),
		Logs:      logs,
		LogsBloom: types.LogsBloom(logs),
		StateRoot: ledger.Root(),
	}
	log.Trace(log.LedgerMonitoring, "Transit", "changes", len(m.Accounts()), "logs", len(logs), "root", receipt.StateRoot)
	return receipt, nil
}

func existing(ledger *statedb.Ledger, addr common.Address) (*types.Account, error) {
	acct, ok, err := ledger.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", addr, err)
	}
	if !ok {
		return nil, chainerrors.Fatal(chainerrors.ErrFMissingAccount, "%s", addr)
	}
	return acct, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func applyChange(ledger *statedb.Ledger, change vm.AccountChange) error {
	switch c := change.(type) {
	case vm.FullChange:
		acct, err := existing(ledger, c.Address)
		if err != nil {
			return err
		}
		if h := common.Keccak256(c.Code); h != acct.CodeHash {
			return chainerrors.Fatal(chainerrors.ErrFCodeHashMismatch, "account %s: change carries code %s, ledger has %s", c.Address, h, acct.CodeHash)
		}
		root, err := ledger.WriteStorage(acct.StorageRoot, c.ChangingStorage)
		if err != nil {
			return fmt.Errorf("storage of %s: %w", c.Address, err)
		}
		acct.Nonce = orZero(c.Nonce)
		acct.Balance = orZero(c.Balance)
		acct.StorageRoot = root
		return ledger.SetAccount(c.Address, acct)

	case vm.IncreaseBalance:
		acct, err := existing(ledger, c.Address)
		if err != nil {
			return err
		}
		sum, overflow := new(uint256.Int).AddOverflow(acct.Balance, orZero(c.Amount))
		if overflow {
			return chainerrors.Fatal(chainerrors.ErrFBalanceOverflow, "account %s: %s + %s", c.Address, acct.Balance, c.Amount)
		}
		acct.Balance = sum
		return ledger.SetAccount(c.Address, acct)

	case vm.DecreaseBalance:
		acct, err := existing(ledger, c.Address)
		if err != nil {
			return err
		}
		amount := orZero(c.Amount)
		if acct.Balance.Lt(amount) {
			return chainerrors.Fatal(chainerrors.ErrFBalanceUnderflow, "account %s: %s - %s", c.Address, acct.Balance, amount)
		}
		acct.Balance = new(uint256.Int).Sub(acct.Balance, amount)
		return ledger.SetAccount(c.Address, acct)

	case vm.CreateChange:
		if !c.Exists {
			return ledger.RemoveAccount(c.Address)
		}
		root, err := ledger.WriteStorage(trie.EmptyRoot(), c.Storage)
		if err != nil {
			return fmt.Errorf("storage of %s: %w", c.Address, err)
		}
		codeHash, err := ledger.PutCode(c.Code)
		if err != nil {
			return err
		}
		return ledger.SetAccount(c.Address, &types.Account{
			Nonce:       orZero(c.Nonce),
			Balance:     orZero(c.Balance),
			StorageRoot: root,
			CodeHash:    codeHash,
		})
	}
	return chainerrors.Fatal(chainerrors.ErrFUnexpectedVMError, "unknown account change %T", change)
}
