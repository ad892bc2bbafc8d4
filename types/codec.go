package types

import (
	"github.com/colorfulnotion/devchain/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

func Encode(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

func Decode(data []byte, v interface{}) error {
	return rlp.DecodeBytes(data, v)
}

// IndexKey is the trie key of the i-th entry of a block's transaction or receipt trie.
func IndexKey(i int) []byte {
	k, _ := rlp.EncodeToBytes(uint64(i))
	return k
}

// EncodeTransaction returns the canonical bytes of tx. A legacy transaction
// encodes as its RLP list.
func EncodeTransaction(tx *ethtypes.Transaction) ([]byte, error) {
	return tx.MarshalBinary()
}

func DecodeTransaction(data []byte) (*ethtypes.Transaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return tx, nil
}

func TxHash(tx *ethtypes.Transaction) common.Hash {
	return common.Hash(tx.Hash())
}
