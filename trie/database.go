package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/storage"
)

var (
	nodePrefix     = []byte("trie_") // trie_<nodeHash> -> node record
	valuePrefix    = []byte("tval_") // tval_<valueHash> -> value longer than 32 bytes
	preimagePrefix = []byte("tkey_") // tkey_<path> -> original key

	ErrMissingNode = errors.New("trie node missing")
)

const (
	recordLeaf   byte = 'L'
	recordBranch byte = 'B'
)

// Database stores trie nodes by hash. Nodes are never rewritten or deleted,
// so any number of Trie handles opened at different roots can share it.
type Database struct {
	store *storage.PersistenceStore
}

func NewDatabase(store *storage.PersistenceStore) *Database {
	return &Database{store: store}
}

// CreateTrie opens a handle at root. The zero hash is the empty trie.
func (db *Database) CreateTrie(root common.Hash) (*Trie, error) {
	if root != zeroHash {
		if _, err := db.node(root); err != nil {
			return nil, err
		}
	}
	return &Trie{db: db, root: root}, nil
}

// CreateEmpty opens a handle on an empty trie.
func (db *Database) CreateEmpty() *Trie {
	return &Trie{db: db}
}

// EmptyRoot is the root of a trie with no entries.
func EmptyRoot() common.Hash {
	return zeroHash
}

// GetHashRaw reads a blob from the raw namespace.
func (db *Database) GetHashRaw(h common.Hash) ([]byte, bool, error) {
	return db.store.GetHashRaw(h)
}

// InsertHashRaw writes a blob to the raw namespace.
func (db *Database) InsertHashRaw(h common.Hash, value []byte) error {
	return db.store.InsertHashRaw(h, value)
}

func prefixed(prefix []byte, h common.Hash) []byte {
	return append(bytes.Clone(prefix), h.Bytes()...)
}

type node struct {
	isLeaf bool
	// leaf
	path    common.Hash
	encoded []byte
	// branch
	left, right common.Hash
}

func (db *Database) node(h common.Hash) (*node, error) {
	rec, ok, err := db.store.Get(prefixed(nodePrefix, h))
	if err != nil {
		return nil, err
	}
	if !ok || len(rec) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingNode, h)
	}
	switch rec[0] {
	case recordLeaf:
		if len(rec) != 1+32+nodeSize {
			return nil, fmt.Errorf("leaf record %s has length %d", h, len(rec))
		}
		return &node{isLeaf: true, path: common.BytesToHash(rec[1:33]), encoded: rec[33:]}, nil
	case recordBranch:
		if len(rec) != 1+64 {
			return nil, fmt.Errorf("branch record %s has length %d", h, len(rec))
		}
		return &node{left: common.BytesToHash(rec[1:33]), right: common.BytesToHash(rec[33:65])}, nil
	default:
		return nil, fmt.Errorf("unknown record tag %#x for node %s", rec[0], h)
	}
}

func (db *Database) putLeaf(path common.Hash, key, value []byte) (common.Hash, error) {
	enc := leaf(path, value)
	h := computeHash(enc)
	rec := make([]byte, 0, 1+32+nodeSize)
	rec = append(rec, recordLeaf)
	rec = append(rec, path[:]...)
	rec = append(rec, enc...)
	if err := db.store.Put(prefixed(nodePrefix, h), rec); err != nil {
		return zeroHash, err
	}
	if len(value) > 32 {
		if err := db.store.Put(prefixed(valuePrefix, computeHash(value)), value); err != nil {
			return zeroHash, err
		}
	}
	if key != nil {
		if err := db.store.Put(prefixed(preimagePrefix, path), key); err != nil {
			return zeroHash, err
		}
	}
	return h, nil
}

func (db *Database) putBranch(left, right common.Hash) (common.Hash, error) {
	h := computeHash(branch(left, right))
	rec := make([]byte, 0, 1+64)
	rec = append(rec, recordBranch)
	rec = append(rec, left[:]...)
	rec = append(rec, right[:]...)
	if err := db.store.Put(prefixed(nodePrefix, h), rec); err != nil {
		return zeroHash, err
	}
	return h, nil
}

// leafValue recovers the value committed by a leaf.
func (db *Database) leafValue(n *node) ([]byte, error) {
	v, embedded, err := decodeLeaf(n.encoded)
	if err != nil {
		return nil, err
	}
	if embedded {
		return v, nil
	}
	value, ok, err := db.store.Get(prefixed(valuePrefix, common.BytesToHash(v)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: value %x", ErrMissingNode, v)
	}
	return value, nil
}

// preimage returns the key that hashed to path, if it was recorded.
func (db *Database) preimage(path common.Hash) []byte {
	key, ok, err := db.store.Get(prefixed(preimagePrefix, path))
	if err != nil || !ok {
		return nil
	}
	return key
}
