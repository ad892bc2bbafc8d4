package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	blockPrefix  = []byte("blk_") // blk_<blockHash> -> encoded block
	numberPrefix = []byte("num_") // num_<number> -> blockHash
	txLookupPfx  = []byte("txl_") // txl_<txHash> -> encoded txLookup
	headKey      = []byte("head") // head -> blockHash
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotChainHead = errors.New("block does not extend the chain head")
	ErrAlreadyMined = errors.New("transaction already in the chain")
	ErrNoGenesis    = errors.New("chain has no blocks")
)

type txLookup struct {
	BlockHash   common.Hash
	Index       uint64
	ReceiptHash common.Hash
}

// ChainStore indexes finalized blocks and holds the pending queue. Blocks are
// kept under three indices: by hash, by number, and per transaction hash.
type ChainStore struct {
	store   *PersistenceStore
	pending *PendingQueue

	mu   sync.RWMutex
	head *types.Block
}

// NewChainStore opens the chain kept in store, resuming from a stored head if any.
func NewChainStore(store *PersistenceStore) (*ChainStore, error) {
	c := &ChainStore{store: store, pending: NewPendingQueue()}
	h, ok, err := store.Get(headKey)
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	if ok {
		blk, err := c.GetBlockByHash(common.BytesToHash(h))
		if err != nil {
			return nil, fmt.Errorf("load head %x: %w", h, err)
		}
		c.head = blk
	}
	return c, nil
}

func (c *ChainStore) Persist() *PersistenceStore {
	return c.store
}

func blockKey(h common.Hash) []byte {
	return append(append([]byte{}, blockPrefix...), h.Bytes()...)
}

func numberKey(n uint64) []byte {
	return append(append([]byte{}, numberPrefix...), common.Uint64ToBytes(n)...)
}

func txLookupKey(h common.Hash) []byte {
	return append(append([]byte{}, txLookupPfx...), h.Bytes()...)
}

// AppendBlock makes blk the new head. blk must be the child of the current
// head, or block 0 on an empty chain. receipts, when given, are indexed per
// transaction; their bytes are expected in the raw namespace already.
func (c *ChainStore) AppendBlock(blk *types.Block, receipts []*types.Receipt) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.head == nil {
		if blk.Header.Number != 0 {
			return fmt.Errorf("%w: first block has number %d", ErrNotChainHead, blk.Header.Number)
		}
	} else if blk.Header.ParentHash != c.head.Hash() || blk.Header.Number != c.head.Header.Number+1 {
		return fmt.Errorf("%w: block %d parent %s, head %d %s", ErrNotChainHead,
			blk.Header.Number, blk.Header.ParentHash, c.head.Header.Number, c.head.Hash())
	}

	blockHash := blk.Hash()
	encodedBlk, err := blk.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(blockKey(blockHash), encodedBlk)
	batch.Put(numberKey(blk.Header.Number), blockHash.Bytes())
	for i, tx := range blk.Transactions {
		entry := txLookup{BlockHash: blockHash, Index: uint64(i)}
		if i < len(receipts) && receipts[i] != nil {
			if entry.ReceiptHash, err = receipts[i].Hash(); err != nil {
				return fmt.Errorf("failed to hash receipt %d: %w", i, err)
			}
		}
		enc, err := types.Encode(&entry)
		if err != nil {
			return fmt.Errorf("failed to encode tx lookup: %w", err)
		}
		batch.Put(txLookupKey(types.TxHash(tx)), enc)
	}
	batch.Put(headKey, blockHash.Bytes())
	if err := c.store.WriteBatch(batch); err != nil {
		return fmt.Errorf("failed to store block %d: %w", blk.Header.Number, err)
	}
	c.head = blk
	log.Debug(log.ChainMonitoring, "AppendBlock", "number", blk.Header.Number, "hash", blockHash, "txs", len(blk.Transactions))
	return nil
}

// CurrentBlock returns the chain head, or nil on an empty chain.
func (c *ChainStore) CurrentBlock() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// BlockHeight is the number of the head block.
func (c *ChainStore) BlockHeight() (uint64, error) {
	head := c.CurrentBlock()
	if head == nil {
		return 0, ErrNoGenesis
	}
	return head.Header.Number, nil
}

func (c *ChainStore) GetBlockByHash(h common.Hash) (*types.Block, error) {
	data, ok, err := c.store.Get(blockKey(h))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("block %s: %w", h, ErrNotFound)
	}
	return types.DecodeBlock(data)
}

func (c *ChainStore) GetBlockByNumber(n uint64) (*types.Block, error) {
	h, ok, err := c.store.Get(numberKey(n))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("block number %d: %w", n, ErrNotFound)
	}
	return c.GetBlockByHash(common.BytesToHash(h))
}

func (c *ChainStore) lookup(txHash common.Hash) (*txLookup, error) {
	data, ok, err := c.store.Get(txLookupKey(txHash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txHash, ErrNotFound)
	}
	var entry txLookup
	if err := types.Decode(data, &entry); err != nil {
		return nil, fmt.Errorf("decode tx lookup: %w", err)
	}
	return &entry, nil
}

// GetTransactionBlockHashByHash returns the hash of the block that included txHash.
func (c *ChainStore) GetTransactionBlockHashByHash(txHash common.Hash) (common.Hash, error) {
	entry, err := c.lookup(txHash)
	if err != nil {
		return common.Hash{}, err
	}
	return entry.BlockHash, nil
}

func (c *ChainStore) GetTransactionByHash(txHash common.Hash) (*ethtypes.Transaction, error) {
	entry, err := c.lookup(txHash)
	if err != nil {
		return nil, err
	}
	blk, err := c.GetBlockByHash(entry.BlockHash)
	if err != nil {
		return nil, err
	}
	if entry.Index >= uint64(len(blk.Transactions)) {
		return nil, fmt.Errorf("transaction %s: index %d out of range", txHash, entry.Index)
	}
	return blk.Transactions[entry.Index], nil
}

// GetReceiptByHash returns the receipt of the transaction txHash.
func (c *ChainStore) GetReceiptByHash(txHash common.Hash) (*types.Receipt, error) {
	entry, err := c.lookup(txHash)
	if err != nil {
		return nil, err
	}
	if common.IsNilHash(entry.ReceiptHash) {
		return nil, fmt.Errorf("receipt of %s: %w", txHash, ErrNotFound)
	}
	data, ok, err := c.store.GetHashRaw(entry.ReceiptHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", entry.ReceiptHash, ErrNotFound)
	}
	receipt := new(types.Receipt)
	if err := types.Decode(data, receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return receipt, nil
}

// AppendPendingTransaction queues tx for the next block.
func (c *ChainStore) AppendPendingTransaction(tx *ethtypes.Transaction) error {
	ok, err := c.store.Has(txLookupKey(types.TxHash(tx)))
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyMined, types.TxHash(tx))
	}
	return c.pending.Append(tx)
}

// ClearPendingTransactions atomically takes every pending transaction.
func (c *ChainStore) ClearPendingTransactions() []*ethtypes.Transaction {
	return c.pending.Drain()
}

func (c *ChainStore) AllPendingTransactionHashes() []common.Hash {
	return c.pending.Hashes()
}

func (c *ChainStore) PendingStats() PendingStats {
	return c.pending.Stats()
}
