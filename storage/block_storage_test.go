package storage

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/types"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTx(t *testing.T, nonce uint64) *ethtypes.Transaction {
	t.Helper()
	_, keyHex := common.DevAccount(0)
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)
	recipient := ethcommon.Address{0xbb}
	unsigned := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(0),
	})
	tx, err := ethtypes.SignTx(unsigned, ethtypes.NewEIP155Signer(big.NewInt(1337)), key)
	require.NoError(t, err)
	return tx
}

func newChain(t *testing.T) *ChainStore {
	t.Helper()
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	c, err := NewChainStore(ps)
	require.NoError(t, err)
	return c
}

func TestChainStore_AppendAndLookup(t *testing.T) {
	c := newChain(t)
	require.Nil(t, c.CurrentBlock())
	_, err := c.BlockHeight()
	require.ErrorIs(t, err, ErrNoGenesis)

	genesis := types.NewBlock(types.Header{Number: 0}, nil)
	require.NoError(t, c.AppendBlock(genesis, nil))

	tx := signedTx(t, 0)
	receipt := &types.Receipt{UsedGas: 21000, Logs: []types.Log{}, StateRoot: common.HexToHash("0x01")}
	enc, err := receipt.Bytes()
	require.NoError(t, err)
	rh, err := receipt.Hash()
	require.NoError(t, err)
	require.NoError(t, c.Persist().InsertHashRaw(rh, enc))

	blk := types.NewBlock(types.Header{Number: 1, ParentHash: genesis.Hash()}, []*ethtypes.Transaction{tx})
	require.NoError(t, c.AppendBlock(blk, []*types.Receipt{receipt}))

	height, err := c.BlockHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	assert.Equal(t, blk.Hash(), c.CurrentBlock().Hash())

	byNum, err := c.GetBlockByNumber(0)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash(), byNum.Hash())

	txHash := types.TxHash(tx)
	bh, err := c.GetTransactionBlockHashByHash(txHash)
	require.NoError(t, err)
	assert.Equal(t, blk.Hash(), bh)

	gotTx, err := c.GetTransactionByHash(txHash)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), gotTx.Hash())

	gotReceipt, err := c.GetReceiptByHash(txHash)
	require.NoError(t, err)
	assert.Equal(t, receipt.UsedGas, gotReceipt.UsedGas)
	assert.Equal(t, receipt.StateRoot, gotReceipt.StateRoot)

	_, err = c.GetBlockByNumber(9)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = c.GetTransactionByHash(common.HexToHash("0xdead"))
	assert.True(t, errors.Is(err, ErrNotFound))

	// a mined transaction cannot be queued again
	require.ErrorIs(t, c.AppendPendingTransaction(tx), ErrAlreadyMined)
}

func TestChainStore_RejectsNonChild(t *testing.T) {
	c := newChain(t)
	require.ErrorIs(t, c.AppendBlock(types.NewBlock(types.Header{Number: 1}, nil), nil), ErrNotChainHead)

	genesis := types.NewBlock(types.Header{}, nil)
	require.NoError(t, c.AppendBlock(genesis, nil))
	orphan := types.NewBlock(types.Header{Number: 1, ParentHash: common.HexToHash("0x99")}, nil)
	require.ErrorIs(t, c.AppendBlock(orphan, nil), ErrNotChainHead)
	skip := types.NewBlock(types.Header{Number: 2, ParentHash: genesis.Hash()}, nil)
	require.ErrorIs(t, c.AppendBlock(skip, nil), ErrNotChainHead)
	assert.Equal(t, genesis.Hash(), c.CurrentBlock().Hash())
}

func TestChainStore_ResumeHead(t *testing.T) {
	dir := t.TempDir()
	ps, err := NewPersistenceStore(dir)
	require.NoError(t, err)
	c, err := NewChainStore(ps)
	require.NoError(t, err)
	genesis := types.NewBlock(types.Header{Timestamp: 42}, nil)
	require.NoError(t, c.AppendBlock(genesis, nil))
	require.NoError(t, ps.Close())

	ps, err = NewPersistenceStore(dir)
	require.NoError(t, err)
	defer ps.Close()
	c, err = NewChainStore(ps)
	require.NoError(t, err)
	require.NotNil(t, c.CurrentBlock())
	assert.Equal(t, genesis.Hash(), c.CurrentBlock().Hash())
}

func TestPendingQueue_FIFOAndDrain(t *testing.T) {
	c := newChain(t)
	var txs []*ethtypes.Transaction
	for i := uint64(0); i < 3; i++ {
		tx := signedTx(t, i)
		txs = append(txs, tx)
		require.NoError(t, c.AppendPendingTransaction(tx))
	}
	require.Error(t, c.AppendPendingTransaction(txs[1]), "duplicate must be refused")
	assert.Equal(t, []common.Hash{types.TxHash(txs[0]), types.TxHash(txs[1]), types.TxHash(txs[2])}, c.AllPendingTransactionHashes())

	drained := c.ClearPendingTransactions()
	require.Len(t, drained, 3)
	for i := range txs {
		assert.Equal(t, txs[i].Hash(), drained[i].Hash())
	}
	assert.Empty(t, c.ClearPendingTransactions())
	assert.Empty(t, c.AllPendingTransactionHashes())

	stats := c.PendingStats()
	assert.Equal(t, 3, stats.TotalReceived)
	assert.Equal(t, 3, stats.TotalDrained)
	assert.Equal(t, 0, stats.PendingCount)

	// after a drain the same hash may be queued again
	require.NoError(t, c.AppendPendingTransaction(txs[0]))
}

func TestPendingQueue_ConcurrentAppend(t *testing.T) {
	q := NewPendingQueue()
	const n = 32
	txs := make([]*ethtypes.Transaction, n)
	for i := range txs {
		txs[i] = signedTx(t, uint64(i))
	}

	var wg sync.WaitGroup
	var drained []*ethtypes.Transaction
	var dmu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(tx *ethtypes.Transaction) {
			defer wg.Done()
			assert.NoError(t, q.Append(tx))
		}(txs[i])
		if i%8 == 0 {
			dmu.Lock()
			drained = append(drained, q.Drain()...)
			dmu.Unlock()
		}
	}
	wg.Wait()
	drained = append(drained, q.Drain()...)

	// every append lands in exactly one drain
	seen := make(map[common.Hash]int)
	for _, tx := range drained {
		seen[types.TxHash(tx)]++
	}
	require.Len(t, seen, n)
	for h, cnt := range seen {
		assert.Equal(t, 1, cnt, h.Hex())
	}
}
