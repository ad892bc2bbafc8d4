package storage

import (
	"bytes"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// rawPrefix namespaces content-addressed blobs (code, encoded txs and receipts).
var rawPrefix = []byte("raw_")

// PersistenceStore wraps LevelDB for raw key-value persistence.
// Thread-safe: LevelDB handles its own synchronization.
type PersistenceStore struct {
	db *leveldb.DB
}

// NewPersistenceStore opens or creates a LevelDB database at the given path.
// If path is empty, uses in-memory storage.
func NewPersistenceStore(path string) (*PersistenceStore, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		memStorage := leveldbstorage.NewMemStorage()
		db, err = leveldb.Open(memStorage, nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	return &PersistenceStore{db: db}, nil
}

// NewMemoryPersistenceStore creates an in-memory PersistenceStore for testing.
func NewMemoryPersistenceStore() (*PersistenceStore, error) {
	return NewPersistenceStore("")
}

// Get retrieves a value by key. Returns (nil, false, nil) if not found.
func (ps *PersistenceStore) Get(key []byte) ([]byte, bool, error) {
	data, err := ps.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get %x: %w", key, err)
	}
	return data, true, nil
}

func (ps *PersistenceStore) Has(key []byte) (bool, error) {
	return ps.db.Has(key, nil)
}

func (ps *PersistenceStore) Put(key []byte, value []byte) error {
	return ps.db.Put(key, value, nil)
}

// WriteBatch applies every Put/Delete recorded in b atomically.
func (ps *PersistenceStore) WriteBatch(b *leveldb.Batch) error {
	return ps.db.Write(b, nil)
}

func rawKey(h common.Hash) []byte {
	return append(bytes.Clone(rawPrefix), h.Bytes()...)
}

// GetHashRaw reads a blob from the raw namespace.
func (ps *PersistenceStore) GetHashRaw(h common.Hash) ([]byte, bool, error) {
	return ps.Get(rawKey(h))
}

// InsertHashRaw writes a blob to the raw namespace under h. Callers key blobs
// by their own hash, so rewriting an existing key is a no-op in effect.
func (ps *PersistenceStore) InsertHashRaw(h common.Hash, value []byte) error {
	return ps.Put(rawKey(h), value)
}

func (ps *PersistenceStore) Close() error {
	return ps.db.Close()
}
