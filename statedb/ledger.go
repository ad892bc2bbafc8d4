package statedb

import (
	"bytes"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/trie"
	"github.com/colorfulnotion/devchain/types"
	"github.com/xlab/treeprint"
	"golang.org/x/exp/slices"
)

// Ledger is a typed view of the account trie at one version. Reads and
// writes go through the handle; other versions of the trie are unaffected.
type Ledger struct {
	db       *trie.Database
	accounts *trie.Trie
}

// NewLedger opens the ledger whose account trie has the given root.
func NewLedger(db *trie.Database, root common.Hash) (*Ledger, error) {
	t, err := db.CreateTrie(root)
	if err != nil {
		return nil, fmt.Errorf("open ledger at %s: %w", root, err)
	}
	return &Ledger{db: db, accounts: t}, nil
}

func (l *Ledger) Database() *trie.Database {
	return l.db
}

func (l *Ledger) Root() common.Hash {
	return l.accounts.Root()
}

// GetAccount returns the account at addr; ok is false when there is none.
func (l *Ledger) GetAccount(addr common.Address) (*types.Account, bool, error) {
	data, ok, err := l.accounts.Get(addr.Bytes())
	if err != nil || !ok {
		return nil, false, err
	}
	acct, err := types.DecodeAccount(data)
	if err != nil {
		return nil, false, fmt.Errorf("account %s: %w", addr, err)
	}
	return acct, true, nil
}

func (l *Ledger) SetAccount(addr common.Address, acct *types.Account) error {
	enc, err := types.Encode(acct)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", addr, err)
	}
	if err := l.accounts.Insert(addr.Bytes(), enc); err != nil {
		return err
	}
	log.Trace(log.LedgerMonitoring, "SetAccount", "addr", addr, "nonce", acct.Nonce, "balance", acct.Balance, "root", l.Root())
	return nil
}

func (l *Ledger) RemoveAccount(addr common.Address) error {
	log.Trace(log.LedgerMonitoring, "RemoveAccount", "addr", addr)
	return l.accounts.Remove(addr.Bytes())
}

// Code returns the code committed by acct. Code-less accounts return nil.
func (l *Ledger) Code(acct *types.Account) ([]byte, error) {
	if acct.CodeHash == common.EmptyCodeHash {
		return nil, nil
	}
	code, ok, err := l.db.GetHashRaw(acct.CodeHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("code %s not in raw store", acct.CodeHash)
	}
	return code, nil
}

// PutCode stores code under its keccak hash and returns the hash.
func (l *Ledger) PutCode(code []byte) (common.Hash, error) {
	h := common.Keccak256(code)
	if err := l.db.InsertHashRaw(h, code); err != nil {
		return common.Hash{}, fmt.Errorf("store code %s: %w", h, err)
	}
	return h, nil
}

// StorageTrie opens the storage trie with the given root.
func (l *Ledger) StorageTrie(root common.Hash) (*trie.Trie, error) {
	return l.db.CreateTrie(root)
}

// GetStorage reads one storage word of acct. Missing slots read as zero.
func (l *Ledger) GetStorage(acct *types.Account, key common.Hash) (common.Hash, error) {
	st, err := l.StorageTrie(acct.StorageRoot)
	if err != nil {
		return common.Hash{}, err
	}
	v, ok, err := st.Get(key.Bytes())
	if err != nil || !ok {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// WriteStorage applies changes on top of the storage trie at root and
// returns the new root. A zero word deletes the slot.
func (l *Ledger) WriteStorage(root common.Hash, changes map[common.Hash]common.Hash) (common.Hash, error) {
	st, err := l.StorageTrie(root)
	if err != nil {
		return common.Hash{}, err
	}
	keys := make([]common.Hash, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })
	for _, k := range keys {
		v := changes[k]
		if common.IsNilHash(v) {
			err = st.Remove(k.Bytes())
		} else {
			err = st.Insert(k.Bytes(), v.Bytes())
		}
		if err != nil {
			return common.Hash{}, fmt.Errorf("storage slot %s: %w", k, err)
		}
	}
	return st.Root(), nil
}

// Accounts lists every account in the ledger.
func (l *Ledger) Accounts() (map[common.Address]*types.Account, error) {
	out := make(map[common.Address]*types.Account)
	err := l.accounts.Walk(func(e trie.Entry) error {
		if len(e.Key) != 20 {
			return fmt.Errorf("account at path %s has no address preimage", e.Path)
		}
		acct, err := types.DecodeAccount(e.Value)
		if err != nil {
			return err
		}
		out[common.BytesToAddress(e.Key)] = acct
		return nil
	})
	return out, err
}

// Tree renders the account trie.
func (l *Ledger) Tree() (treeprint.Tree, error) {
	return l.accounts.Tree()
}
