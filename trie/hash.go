package trie

import (
	"bytes"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
)

/*
Branch Node (64 bytes)
+-------------------------------------------------+
|    First 255 bits of left child node hash       |
+-------------------------------------------------+
|    Full 256 bits of right child node hash       |
+-------------------------------------------------+

Embedded-Value Leaf Node (64 bytes) <= value of at most 32 bytes
+--------+------------------------------------------+
|  2 bits | 6 bits (value size) | 31 bytes (path)   |
+--------+------------------------------------------+
|              32 bytes (embedded value)            |
+---------------------------------------------------+

Regular Leaf Node (64 bytes) value longer than 32 bytes, only its hash is kept
+--------+------------------------------------------+
|  2 bits | 6 bits (0s) | 31 bytes (path)           |
+--------+------------------------------------------+
|               32 bytes (hash of value)            |
+---------------------------------------------------+
*/

const (
	nodeSize   = 64
	pathPrefix = 31
	maxDepth   = pathPrefix * 8
)

var zeroHash common.Hash

// computeHash hashes the data using Blake2b-256
func computeHash(data []byte) common.Hash {
	return common.Blake2Hash(data)
}

// branch concatenates the left and right node hashes with a modified head
func branch(left, right common.Hash) []byte {
	out := make([]byte, 0, nodeSize)
	out = append(out, left[0]&0xfe) // LSB of the first byte marks a branch
	out = append(out, left[1:]...)
	return append(out, right[:]...)
}

// leaf encodes a path/value pair into a leaf node
func leaf(path common.Hash, v []byte) []byte {
	out := make([]byte, nodeSize)
	copy(out[1:32], path[:pathPrefix])
	if len(v) <= 32 {
		out[0] = byte(0b01 | (len(v) << 2))
		copy(out[32:], v)
	} else {
		out[0] = 0b11
		h := computeHash(v)
		copy(out[32:], h[:])
	}
	return out
}

// decodeLeaf decodes a leaf node into its value (or value hash) and whether the value is embedded
func decodeLeaf(enc []byte) (v []byte, isEmbedded bool, err error) {
	if len(enc) != nodeSize {
		return nil, false, fmt.Errorf("invalid leaf length %v", len(enc))
	}
	head := enc[0]
	switch head & 0b11 {
	case 0b01:
		size := int(head >> 2)
		if size > 32 {
			return nil, false, fmt.Errorf("invalid embedded size %d", size)
		}
		return bytes.Clone(enc[32 : 32+size]), true, nil
	case 0b11:
		return bytes.Clone(enc[32:64]), false, nil
	default:
		return nil, false, fmt.Errorf("invalid leaf node header %#x", head)
	}
}

// bit returns the i-th bit of k, least significant bit first within each byte.
func bit(k common.Hash, i int) bool {
	byteIndex := i / 8
	if byteIndex >= len(k) {
		return false
	}
	mask := byte(1 << (i % 8))
	return k[byteIndex]&mask != 0
}

// samePath compares the part of two paths a leaf commits to.
func samePath(a, b common.Hash) bool {
	return bytes.Equal(a[:pathPrefix], b[:pathPrefix])
}

// keyPath maps a trie key onto its 256-bit path.
func keyPath(key []byte) common.Hash {
	return common.Keccak256(key)
}
