package chainspecs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/colorfulnotion/devchain/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"

	"embed"
)

//go:embed *.json
var configFS embed.FS

var networkFile = map[string]string{
	"dev": "dev-spec.json",
}

// DefaultBalance is what the node account holds at genesis when a spec sets none.
const DefaultBalance = "0x10000000000000000000000000000"

// ReadSpec loads a built-in spec by id, or a spec file by path.
func ReadSpec(id string) (spec *ChainSpec, err error) {
	var data []byte
	path, ok := networkFile[id]
	if ok {
		data, err = configFS.ReadFile(path)
		if err != nil {
			return spec, err
		}
	} else {
		data, err = os.ReadFile(id)
		if err != nil {
			return spec, err
		}
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, err
	}
	return spec, nil
}

// GenesisAccount is an account placed in the ledger at genesis.
type GenesisAccount struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// ChainSpec describes the genesis ledger. Balance funds the node account.
type ChainSpec struct {
	ID       string
	ChainID  uint64
	Balance  *uint256.Int
	GasLimit uint64
	Alloc    map[common.Address]GenesisAccount
}

type genesisAccountRaw struct {
	Nonce   hexutil.Uint64    `json:"nonce,omitempty"`
	Balance string            `json:"balance,omitempty"`
	Code    hexutil.Bytes     `json:"code,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
}

type chainSpecRaw struct {
	ID       string                       `json:"id"`
	ChainID  uint64                       `json:"chain_id"`
	Balance  string                       `json:"balance,omitempty"`
	GasLimit string                       `json:"gas_limit,omitempty"`
	Alloc    map[string]genesisAccountRaw `json:"alloc,omitempty"`
}

func (cs ChainSpec) MarshalJSON() ([]byte, error) {
	tmp := chainSpecRaw{
		ID:      cs.ID,
		ChainID: cs.ChainID,
		Alloc:   make(map[string]genesisAccountRaw, len(cs.Alloc)),
	}
	if cs.Balance != nil {
		tmp.Balance = cs.Balance.Hex()
	}
	if cs.GasLimit != 0 {
		tmp.GasLimit = hexutil.EncodeUint64(cs.GasLimit)
	}
	for addr, acct := range cs.Alloc {
		raw := genesisAccountRaw{Nonce: hexutil.Uint64(acct.Nonce), Code: acct.Code}
		if acct.Balance != nil {
			raw.Balance = acct.Balance.Hex()
		}
		if len(acct.Storage) > 0 {
			raw.Storage = make(map[string]string, len(acct.Storage))
			for k, v := range acct.Storage {
				raw.Storage[k.Hex()] = v.Hex()
			}
		}
		tmp.Alloc[addr.Hex()] = raw
	}
	return json.Marshal(tmp)
}

func (cs *ChainSpec) UnmarshalJSON(data []byte) error {
	tmp := chainSpecRaw{}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	cs.ID = tmp.ID
	cs.ChainID = tmp.ChainID
	balance := tmp.Balance
	if balance == "" {
		balance = DefaultBalance
	}
	var err error
	if cs.Balance, err = uint256.FromHex(balance); err != nil {
		return fmt.Errorf("balance %q: %w", balance, err)
	}
	if tmp.GasLimit != "" {
		if cs.GasLimit, err = hexutil.DecodeUint64(tmp.GasLimit); err != nil {
			return fmt.Errorf("gas_limit %q: %w", tmp.GasLimit, err)
		}
	}
	cs.Alloc = make(map[common.Address]GenesisAccount, len(tmp.Alloc))
	for k, raw := range tmp.Alloc {
		if !common.IsHexAddress(k) {
			return fmt.Errorf("alloc: invalid address %q", k)
		}
		acct := GenesisAccount{Nonce: uint64(raw.Nonce), Balance: new(uint256.Int), Code: raw.Code}
		if raw.Balance != "" {
			if acct.Balance, err = uint256.FromHex(raw.Balance); err != nil {
				return fmt.Errorf("alloc %s balance: %w", k, err)
			}
		}
		if len(raw.Storage) > 0 {
			acct.Storage = make(map[common.Hash]common.Hash, len(raw.Storage))
			for sk, sv := range raw.Storage {
				acct.Storage[common.HexToHash(sk)] = common.HexToHash(sv)
			}
		}
		cs.Alloc[common.HexToAddress(k)] = acct
	}
	return nil
}

// Addresses returns the alloc addresses in ascending byte order.
func (cs *ChainSpec) Addresses() []common.Address {
	out := make([]common.Address, 0, len(cs.Alloc))
	for addr := range cs.Alloc {
		out = append(out, addr)
	}
	slices.SortFunc(out, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	return out
}
