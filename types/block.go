package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

type Block struct {
	Header       Header                  `json:"header"`
	Transactions []*ethtypes.Transaction `json:"transactions"`
	Ommers       []Header                `json:"ommers"`
}

func NewBlock(header Header, txs []*ethtypes.Transaction) *Block {
	if txs == nil {
		txs = []*ethtypes.Transaction{}
	}
	return &Block{Header: header, Transactions: txs, Ommers: []Header{}}
}

// Hash identifies a block by its header hash.
func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

func (b *Block) Number() uint64 {
	return b.Header.Number
}

func (b *Block) Bytes() ([]byte, error) {
	return Encode(b)
}

func DecodeBlock(data []byte) (*Block, error) {
	b := new(Block)
	if err := Decode(data, b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return b, nil
}

func (b *Block) String() string {
	enc, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(enc)
}
