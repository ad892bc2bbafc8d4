package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

type Header struct {
	ParentHash       common.Hash    `json:"parentHash"`
	OmmersHash       common.Hash    `json:"ommersHash"`
	Beneficiary      common.Address `json:"beneficiary"`
	StateRoot        common.Hash    `json:"stateRoot"`
	TransactionsRoot common.Hash    `json:"transactionsRoot"`
	ReceiptsRoot     common.Hash    `json:"receiptsRoot"`
	LogsBloom        ethtypes.Bloom `json:"logsBloom"`
	GasLimit         uint64         `json:"gasLimit"`
	GasUsed          uint64         `json:"gasUsed"`
	Timestamp        uint64         `json:"timestamp"`
	ExtraData        common.Hash    `json:"extraData"`
	Number           uint64         `json:"number"`
	Difficulty       uint64         `json:"difficulty"`
	MixHash          common.Hash    `json:"mixHash"`
	Nonce            [8]byte        `json:"nonce"`
}

func (h *Header) Bytes() ([]byte, error) {
	return Encode(h)
}

// Hash is the keccak256 of the header's RLP encoding.
func (h *Header) Hash() common.Hash {
	enc, err := h.Bytes()
	if err != nil {
		// every field is fixed-size or an unsigned integer
		panic(fmt.Sprintf("header encode: %v", err))
	}
	return common.Keccak256(enc)
}

func (h *Header) String() string {
	enc, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(enc)
}
