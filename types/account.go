package types

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/colorfulnotion/devchain/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Account is the ledger record stored under an address in the account trie.
type Account struct {
	Nonce       *uint256.Int `json:"nonce"`
	Balance     *uint256.Int `json:"balance"`
	StorageRoot common.Hash  `json:"storageRoot"`
	CodeHash    common.Hash  `json:"codeHash"`
}

// accountRLP is the wire form; rlp has long-standing support for *big.Int.
type accountRLP struct {
	Nonce       *big.Int
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// NewAccount returns a code-less account with an empty storage trie.
func NewAccount(nonce, balance *uint256.Int) *Account {
	a := &Account{
		Nonce:    new(uint256.Int),
		Balance:  new(uint256.Int),
		CodeHash: common.EmptyCodeHash,
	}
	if nonce != nil {
		a.Nonce.Set(nonce)
	}
	if balance != nil {
		a.Balance.Set(balance)
	}
	return a
}

func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Nonce = new(uint256.Int)
	c.Balance = new(uint256.Int)
	if a.Nonce != nil {
		c.Nonce.Set(a.Nonce)
	}
	if a.Balance != nil {
		c.Balance.Set(a.Balance)
	}
	return &c
}

func (a *Account) EncodeRLP(w io.Writer) error {
	enc := accountRLP{StorageRoot: a.StorageRoot, CodeHash: a.CodeHash, Nonce: new(big.Int), Balance: new(big.Int)}
	if a.Nonce != nil {
		enc.Nonce = a.Nonce.ToBig()
	}
	if a.Balance != nil {
		enc.Balance = a.Balance.ToBig()
	}
	return rlp.Encode(w, &enc)
}

func (a *Account) DecodeRLP(s *rlp.Stream) error {
	var dec accountRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	nonce, overflow := uint256.FromBig(dec.Nonce)
	if overflow {
		return fmt.Errorf("account nonce overflows 256 bits")
	}
	balance, overflow := uint256.FromBig(dec.Balance)
	if overflow {
		return fmt.Errorf("account balance overflows 256 bits")
	}
	a.Nonce, a.Balance = nonce, balance
	a.StorageRoot, a.CodeHash = dec.StorageRoot, dec.CodeHash
	return nil
}

// DecodeAccount decodes a value read from the account trie.
func DecodeAccount(data []byte) (*Account, error) {
	a := new(Account)
	if err := rlp.DecodeBytes(data, a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}

func (a *Account) String() string {
	enc, err := json.Marshal(a)
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(enc)
}
