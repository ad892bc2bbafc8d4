package miner

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/chainspecs"
	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/statedb"
	"github.com/colorfulnotion/devchain/storage"
	"github.com/colorfulnotion/devchain/telemetry"
	"github.com/colorfulnotion/devchain/trie"
	"github.com/colorfulnotion/devchain/types"
	"github.com/colorfulnotion/devchain/vm"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/colorfulnotion/devchain/miner"

var (
	ErrNoGenesis        = errors.New("genesis block not produced")
	ErrAllocNodeAddress = errors.New("genesis alloc overwrites the node account")
)

// Miner produces blocks on top of the chain store, one every Interval.
type Miner struct {
	cfg    Config
	chain  *storage.ChainStore
	db     *trie.Database
	engine vm.Engine
	patch  *vm.Patch

	nodeKey     *ecdsa.PrivateKey
	address     common.Address
	beneficiary common.Address

	tracer trace.Tracer
	now    func() time.Time

	mu sync.Mutex
}

// NewMiner sets up a block producer. The node key is taken from
// cfg.NodeKeyHex or generated.
func NewMiner(cfg Config, chain *storage.ChainStore, engine vm.Engine) (*Miner, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	if cfg.NodeKeyHex != "" {
		key, err = crypto.HexToECDSA(cfg.NodeKeyHex)
	} else {
		key, err = crypto.GenerateKey()
	}
	if err != nil {
		return nil, fmt.Errorf("node key: %w", err)
	}
	m := &Miner{
		cfg:     cfg,
		chain:   chain,
		db:      trie.NewDatabase(chain.Persist()),
		engine:  engine,
		patch:   vm.DefaultPatch(cfg.ChainID),
		nodeKey: key,
		address: common.Address(crypto.PubkeyToAddress(key.PublicKey)),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	m.beneficiary = cfg.Beneficiary
	if m.beneficiary == (common.Address{}) {
		m.beneficiary = m.address
	}
	return m, nil
}

// SetTracerProvider replaces the global tracer provider for this miner.
func (m *Miner) SetTracerProvider(tp trace.TracerProvider) {
	m.tracer = tp.Tracer(tracerName)
}

func (m *Miner) Address() common.Address     { return m.address }
func (m *Miner) Beneficiary() common.Address { return m.beneficiary }
func (m *Miner) Database() *trie.Database    { return m.db }
func (m *Miner) Chain() *storage.ChainStore  { return m.chain }

// Ledger opens the ledger at the state root of the chain head.
func (m *Miner) Ledger() (*statedb.Ledger, error) {
	head := m.chain.CurrentBlock()
	if head == nil {
		return nil, ErrNoGenesis
	}
	return statedb.NewLedger(m.db, head.Header.StateRoot)
}

// Genesis writes block 0 with the node account and spec allocations. When
// the chain store already has a head, it is returned unchanged. An alloc
// entry for the node address is refused.
func (m *Miner) Genesis(spec *chainspecs.ChainSpec) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if head := m.chain.CurrentBlock(); head != nil {
		log.Info(log.GenesisMonitoring, "Genesis: resuming chain", "number", head.Number(), "hash", head.Hash())
		return head, nil
	}
	if _, ok := spec.Alloc[m.address]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAllocNodeAddress, m.address)
	}

	ledger, err := statedb.NewLedger(m.db, trie.EmptyRoot())
	if err != nil {
		return nil, err
	}
	if _, err := ledger.PutCode(nil); err != nil {
		return nil, err
	}
	balance := spec.Balance
	if balance == nil {
		balance = uint256.MustFromHex(chainspecs.DefaultBalance)
	}
	if err := ledger.SetAccount(m.address, types.NewAccount(nil, balance)); err != nil {
		return nil, err
	}
	for _, addr := range spec.Addresses() {
		alloc := spec.Alloc[addr]
		root, err := ledger.WriteStorage(trie.EmptyRoot(), alloc.Storage)
		if err != nil {
			return nil, fmt.Errorf("alloc %s storage: %w", addr, err)
		}
		codeHash, err := ledger.PutCode(alloc.Code)
		if err != nil {
			return nil, err
		}
		acct := types.NewAccount(uint256.NewInt(alloc.Nonce), alloc.Balance)
		acct.StorageRoot = root
		acct.CodeHash = codeHash
		if err := ledger.SetAccount(addr, acct); err != nil {
			return nil, err
		}
	}

	header := types.Header{
		OmmersHash:       trie.EmptyRoot(),
		Beneficiary:      m.address,
		StateRoot:        ledger.Root(),
		TransactionsRoot: trie.EmptyRoot(),
		ReceiptsRoot:     trie.EmptyRoot(),
		Timestamp:        uint64(m.now().Unix()),
	}
	blk := types.NewBlock(header, nil)
	if err := m.chain.AppendBlock(blk, nil); err != nil {
		return nil, fmt.Errorf("append genesis: %w", err)
	}
	log.Info(log.GenesisMonitoring, "Genesis: block 0", "hash", blk.Hash(), "stateRoot", header.StateRoot, "node", m.address, "accounts", len(spec.Alloc)+1)
	return blk, nil
}

// Produce drains the pending queue and appends one block built from it.
// Rejected transactions are dropped. With SkipEmptyBlocks set and nothing
// pending it returns a nil block.
func (m *Miner) Produce(ctx context.Context) (blk *types.Block, err error) {
	ctx, span := m.tracer.Start(ctx, "miner.Produce")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	start := time.Now()

	parent := m.chain.CurrentBlock()
	if parent == nil {
		return nil, ErrNoGenesis
	}
	txs := m.chain.ClearPendingTransactions()
	span.SetAttributes(attribute.Int64("block.number", int64(parent.Number()+1)), attribute.Int("txs.pending", len(txs)))
	if m.cfg.SkipEmptyBlocks && len(txs) == 0 {
		return nil, nil
	}
	log.Event(telemetry.Telemetry_Authoring, m.address.Hex(), map[string]interface{}{"parent": parent.Hash(), "pending": len(txs)}, 0)

	ledger, err := statedb.NewLedger(m.db, parent.Header.StateRoot)
	if err != nil {
		return nil, m.failed(err)
	}
	params := vm.HeaderParams{
		Beneficiary: m.beneficiary,
		Timestamp:   uint64(m.now().Unix()),
		Number:      parent.Number() + 1,
		GasLimit:    m.cfg.GasLimit,
	}
	r := &resolver{chain: m.chain, ledger: ledger, patch: m.patch, engine: m.engine, maxSteps: m.cfg.MaxResolutionSteps}

	included := make([]*ethtypes.Transaction, 0, len(txs))
	receipts := make([]*types.Receipt, 0, len(txs))
	rejected := 0
	for _, tx := range txs {
		receipt, reject, err := m.applyTransaction(ctx, r, params, tx)
		if err != nil {
			return nil, m.failed(err)
		}
		if reject != nil {
			rejected++
			log.Warn(log.MinerMonitoring, "Produce: transaction rejected", "tx", types.TxHash(tx), "err", reject)
			log.Event(telemetry.Telemetry_Tx_Rejected, m.address.Hex(), telemetry.TxRejection{TxHash: types.TxHash(tx), Reason: chainerrors.GetErrorName(reject)}, 0)
			continue
		}
		included = append(included, tx)
		receipts = append(receipts, receipt)
	}

	blk, err = Next(m.db, ledger, parent, included, receipts, m.beneficiary, m.cfg.GasLimit, m.cfg.BlockReward, params.Timestamp)
	if err != nil {
		return nil, m.failed(err)
	}
	if err := m.chain.AppendBlock(blk, receipts); err != nil {
		return nil, m.failed(fmt.Errorf("append block %d: %w", blk.Number(), err))
	}

	outline := telemetry.BlockOutline{
		Number:       blk.Number(),
		HeaderHash:   blk.Hash(),
		StateRoot:    blk.Header.StateRoot,
		NumTxs:       len(included),
		NumRejected:  rejected,
		GasUsed:      blk.Header.GasUsed,
		ResolveSteps: r.total,
	}
	span.SetAttributes(attribute.String("block.hash", outline.HeaderHash.Hex()), attribute.Int("txs.included", len(included)))
	log.Event(telemetry.Telemetry_Authored, m.address.Hex(), outline, time.Since(start))
	log.Info(log.MinerMonitoring, "Produce: block", "number", outline.Number, "hash", outline.HeaderHash, "txs", outline.NumTxs, "rejected", rejected, "gasUsed", outline.GasUsed, "elapsed", time.Since(start))
	return blk, nil
}

func (m *Miner) failed(err error) error {
	log.Event(telemetry.Telemetry_Authoring_Failed, m.address.Hex(), map[string]string{"err": err.Error()}, 0)
	return err
}

// applyTransaction validates, executes and applies tx. A non-nil reject means
// tx was left out and ledger is untouched.
func (m *Miner) applyTransaction(ctx context.Context, r *resolver, params vm.HeaderParams, tx *ethtypes.Transaction) (receipt *types.Receipt, reject error, err error) {
	_, span := m.tracer.Start(ctx, "miner.ApplyTransaction", trace.WithAttributes(attribute.String("tx.hash", types.TxHash(tx).Hex())))
	defer func() {
		if reject != nil {
			span.SetAttributes(attribute.String("tx.rejected", chainerrors.GetErrorName(reject)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	r.steps = 0
	if tx.Gas() > params.GasLimit {
		return nil, fmt.Errorf("%w: %d > %d", chainerrors.ErrVGasLimitExceeded, tx.Gas(), params.GasLimit), nil
	}
	valid, err := r.toValid(tx)
	if err != nil {
		if chainerrors.IsValidation(err) {
			return nil, err, nil
		}
		return nil, nil, err
	}
	machine, err := r.call(params, valid)
	if err != nil {
		return nil, nil, err
	}
	receipt, err = Transit(r.ledger, machine)
	if err != nil {
		return nil, nil, err
	}
	log.Debug(log.MinerMonitoring, "ApplyTransaction", "tx", valid.Hash, "from", valid.Caller, "usedGas", receipt.UsedGas, "root", receipt.StateRoot)
	return receipt, nil, nil
}

// Run writes genesis and then produces a block every Interval until ctx is
// done or a block fails.
func (m *Miner) Run(ctx context.Context, spec *chainspecs.ChainSpec) error {
	if _, err := m.Genesis(spec); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.Produce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.Interval):
		}
	}
}
