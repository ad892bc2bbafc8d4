package vm

import (
	"math/big"

	"github.com/colorfulnotion/devchain/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// DefaultChainID signs and verifies transactions on a local dev chain.
const DefaultChainID = 1337

// Patch holds the chain rules a transaction is checked and charged under.
type Patch struct {
	ChainID               *big.Int
	TxGas                 uint64
	TxGasContractCreation uint64
	TxDataZeroGas         uint64
	TxDataNonZeroGas      uint64
}

// DefaultPatch returns Homestead-era gas rules with replay-protected signatures.
func DefaultPatch(chainID uint64) *Patch {
	return &Patch{
		ChainID:               new(big.Int).SetUint64(chainID),
		TxGas:                 params.TxGas,
		TxGasContractCreation: params.TxGasContractCreation,
		TxDataZeroGas:         params.TxDataZeroGas,
		TxDataNonZeroGas:      params.TxDataNonZeroGasFrontier,
	}
}

// Signer recovers senders. Unprotected legacy signatures are accepted too.
func (p *Patch) Signer() ethtypes.Signer {
	return ethtypes.NewEIP155Signer(p.ChainID)
}

// IntrinsicGas is the gas charged before any execution.
func (p *Patch) IntrinsicGas(data []byte, create bool) uint64 {
	gas := p.TxGas
	if create {
		gas = p.TxGasContractCreation
	}
	for _, b := range data {
		if b == 0 {
			gas += p.TxDataZeroGas
		} else {
			gas += p.TxDataNonZeroGas
		}
	}
	return gas
}

// HeaderParams is the block context a transaction executes in.
type HeaderParams struct {
	Beneficiary common.Address
	Timestamp   uint64
	Number      uint64
	GasLimit    uint64
}
