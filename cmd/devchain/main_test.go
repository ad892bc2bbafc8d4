package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colorfulnotion/devchain/chainspecs"
	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/miner"
	"github.com/colorfulnotion/devchain/storage"
	"github.com/colorfulnotion/devchain/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOptionsConfig(t *testing.T) {
	spec, err := chainspecs.ReadSpec("dev")
	require.NoError(t, err)

	o := &runOptions{interval: time.Second, reward: "0x10", nodeKey: "0xabcd"}
	cfg, err := o.config(spec)
	require.NoError(t, err)
	assert.Equal(t, spec.ChainID, cfg.ChainID)
	assert.Equal(t, spec.GasLimit, cfg.GasLimit)
	assert.Equal(t, uint64(16), cfg.BlockReward.Uint64())
	assert.Equal(t, "abcd", cfg.NodeKeyHex)
	assert.Equal(t, common.Address{}, cfg.Beneficiary)

	o = &runOptions{chainID: 9, chainIDSet: true, gasLimit: 30000, gasLimitSet: true, reward: "25", beneficiary: "0x00000000000000000000000000000000000000cc"}
	cfg, err = o.config(spec)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), cfg.ChainID)
	assert.Equal(t, uint64(30000), cfg.GasLimit)
	assert.Equal(t, uint64(25), cfg.BlockReward.Uint64())
	assert.Equal(t, common.HexToAddress("0xcc"), cfg.Beneficiary)

	_, err = (&runOptions{beneficiary: "0x12"}).config(spec)
	require.Error(t, err)
	_, err = (&runOptions{reward: "lots"}).config(spec)
	require.Error(t, err)
}

func TestRunNodeFatalReleasesStore(t *testing.T) {
	dir := t.TempDir()
	_, key := common.DevAccount(0) // also in the dev alloc
	o := &runOptions{dataPath: dir, genesis: "dev", interval: time.Millisecond, nodeKey: key}

	err := runNode(context.Background(), o)
	require.ErrorIs(t, err, miner.ErrAllocNodeAddress)

	// the leveldb lock is gone once the store was closed
	ps, err := storage.NewPersistenceStore(dir)
	require.NoError(t, err)
	require.NoError(t, ps.Close())
}

func TestRunNodeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	events := filepath.Join(t.TempDir(), "events.jsonl")
	_, key := common.DevAccount(5)
	o := &runOptions{dataPath: dir, genesis: "dev", interval: time.Millisecond, nodeKey: key, eventsFile: events}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, runNode(ctx, o))

	ps, err := storage.NewPersistenceStore(dir)
	require.NoError(t, err)
	defer ps.Close()
	chain, err := storage.NewChainStore(ps)
	require.NoError(t, err)
	head := chain.CurrentBlock()
	require.NotNil(t, head)
	assert.GreaterOrEqual(t, head.Header.Number, uint64(1))

	data, err := os.ReadFile(events)
	require.NoError(t, err)
	assert.Contains(t, string(data), telemetry.Telemetry_Authored)
}
