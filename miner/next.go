package miner

import (
	"fmt"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/statedb"
	"github.com/colorfulnotion/devchain/trie"
	"github.com/colorfulnotion/devchain/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Next assembles the block that follows parent. txs and receipts pair up by
// index; ledger is the state after the last transaction. A non-zero reward is
// credited to beneficiary before the state root is taken.
func Next(db *trie.Database, ledger *statedb.Ledger, parent *types.Block, txs []*ethtypes.Transaction, receipts []*types.Receipt, beneficiary common.Address, gasLimit uint64, reward *uint256.Int, timestamp uint64) (*types.Block, error) {
	if len(txs) != len(receipts) {
		return nil, chainerrors.Fatal(chainerrors.ErrFReceiptCountMismatch, "%d transactions, %d receipts", len(txs), len(receipts))
	}
	if reward != nil && !reward.IsZero() {
		if err := credit(ledger, beneficiary, reward); err != nil {
			return nil, err
		}
	}

	txTrie := db.CreateEmpty()
	for i, tx := range txs {
		enc, err := types.EncodeTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("encode tx %d: %w", i, err)
		}
		if err := insertIndexed(db, txTrie, i, enc); err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
	}

	var (
		bloom   ethtypes.Bloom
		gasUsed uint64
	)
	receiptTrie := db.CreateEmpty()
	for i, receipt := range receipts {
		enc, err := receipt.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encode receipt %d: %w", i, err)
		}
		if err := insertIndexed(db, receiptTrie, i, enc); err != nil {
			return nil, fmt.Errorf("receipt %d: %w", i, err)
		}
		bloom = types.OrBloom(bloom, receipt.LogsBloom)
		gasUsed += receipt.UsedGas
	}

	header := types.Header{
		ParentHash:       parent.Header.Hash(),
		OmmersHash:       trie.EmptyRoot(),
		Beneficiary:      beneficiary,
		StateRoot:        ledger.Root(),
		TransactionsRoot: txTrie.Root(),
		ReceiptsRoot:     receiptTrie.Root(),
		LogsBloom:        bloom,
		GasLimit:         gasLimit,
		GasUsed:          gasUsed,
		Timestamp:        timestamp,
		Number:           parent.Header.Number + 1,
	}
	blk := types.NewBlock(header, txs)
	log.Debug(log.ChainMonitoring, "Next", "number", header.Number, "txs", len(txs), "gasUsed", gasUsed, "stateRoot", header.StateRoot)
	return blk, nil
}

func insertIndexed(db *trie.Database, t *trie.Trie, i int, enc []byte) error {
	if err := t.Insert(types.IndexKey(i), enc); err != nil {
		return err
	}
	return db.InsertHashRaw(common.Keccak256(enc), enc)
}

func credit(ledger *statedb.Ledger, addr common.Address, amount *uint256.Int) error {
	acct, ok, err := ledger.GetAccount(addr)
	if err != nil {
		return fmt.Errorf("read account %s: %w", addr, err)
	}
	if !ok {
		return ledger.SetAccount(addr, types.NewAccount(new(uint256.Int), new(uint256.Int).Set(amount)))
	}
	sum, overflow := new(uint256.Int).AddOverflow(acct.Balance, amount)
	if overflow {
		return chainerrors.Fatal(chainerrors.ErrFBalanceOverflow, "reward to %s", addr)
	}
	acct.Balance = sum
	return ledger.SetAccount(addr, acct)
}
