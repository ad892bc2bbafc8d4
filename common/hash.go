package common

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// EmptyCodeHash is the code hash of every account without code.
var EmptyCodeHash = Keccak256(nil)

// Blake2Hash is the BLAKE2b-256 digest of data.
func Blake2Hash(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

func Keccak256(data ...[]byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return BytesToHash(hash.Sum(nil))
}

// Uint64ToBytes encodes big-endian so that numeric keys sort in order in leveldb.
func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, val)
	return bytes
}

func IsNilHash(h Hash) bool {
	return h == Hash{}
}
