package storage

import (
	"fmt"
	"sync"

	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// PendingStats holds counters about the pending queue
type PendingStats struct {
	PendingCount  int `json:"pendingCount"`
	TotalReceived int `json:"totalReceived"`
	TotalDrained  int `json:"totalDrained"`
}

// PendingQueue is the FIFO of submitted transactions not yet drained into a block.
// Producers append concurrently; the block producer takes everything at once.
type PendingQueue struct {
	mutex sync.Mutex
	txs   []*ethtypes.Transaction
	known map[common.Hash]struct{}
	stats PendingStats
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{known: make(map[common.Hash]struct{})}
}

// Append adds tx to the tail of the queue. A hash already waiting is refused.
func (q *PendingQueue) Append(tx *ethtypes.Transaction) error {
	hash := types.TxHash(tx)
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if _, exists := q.known[hash]; exists {
		return fmt.Errorf("transaction %s already pending", hash)
	}
	q.txs = append(q.txs, tx)
	q.known[hash] = struct{}{}
	q.stats.TotalReceived++
	log.Trace(log.ChainMonitoring, "pending append", "tx", hash, "queued", len(q.txs))
	return nil
}

// Drain swaps the queue for an empty one and returns the old contents in
// submission order.
func (q *PendingQueue) Drain() []*ethtypes.Transaction {
	q.mutex.Lock()
	txs := q.txs
	q.txs = nil
	q.known = make(map[common.Hash]struct{})
	q.stats.TotalDrained += len(txs)
	q.mutex.Unlock()
	return txs
}

func (q *PendingQueue) Hashes() []common.Hash {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	hashes := make([]common.Hash, len(q.txs))
	for i, tx := range q.txs {
		hashes[i] = types.TxHash(tx)
	}
	return hashes
}

func (q *PendingQueue) Stats() PendingStats {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	s := q.stats
	s.PendingCount = len(q.txs)
	return s
}
