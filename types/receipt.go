package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Log is an event emitted during execution.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    []byte         `json:"data"`
}

// Receipt records the outcome of one transaction. StateRoot is the ledger
// root right after the transaction was applied.
type Receipt struct {
	UsedGas   uint64         `json:"usedGas"`
	Logs      []Log          `json:"logs"`
	LogsBloom ethtypes.Bloom `json:"logsBloom"`
	StateRoot common.Hash    `json:"stateRoot"`
}

// LogsBloom folds every log address and topic into a fresh bloom.
func LogsBloom(logs []Log) ethtypes.Bloom {
	var bloom ethtypes.Bloom
	for _, l := range logs {
		bloom.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			bloom.Add(topic.Bytes())
		}
	}
	return bloom
}

// OrBloom returns a | b.
func OrBloom(a, b ethtypes.Bloom) ethtypes.Bloom {
	var out ethtypes.Bloom
	for i := range out {
		out[i] = a[i] | b[i]
	}
	return out
}

func (r *Receipt) Bytes() ([]byte, error) {
	return Encode(r)
}

func (r *Receipt) Hash() (common.Hash, error) {
	enc, err := r.Bytes()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Keccak256(enc), nil
}

func (r *Receipt) String() string {
	enc, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(enc)
}
