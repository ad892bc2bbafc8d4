package miner

import (
	"testing"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/statedb"
	"github.com/colorfulnotion/devchain/trie"
	"github.com/colorfulnotion/devchain/types"
	"github.com/colorfulnotion/devchain/vm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finished(changes []vm.AccountChange, logs []types.Log, gas uint64) *scriptedVM {
	return &scriptedVM{changes: changes, logs: logs, usedGas: gas}
}

func balanceOf(t *testing.T, ledger *statedb.Ledger, addr common.Address) uint64 {
	t.Helper()
	acct, ok, err := ledger.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok, "no account %s", addr)
	return acct.Balance.Uint64()
}

func TestTransitAppliesEffectsInOrder(t *testing.T) {
	f := newResolveFixture(t)
	newAddr := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	gone := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	require.NoError(t, f.ledger.SetAccount(gone, types.NewAccount(nil, uint256.NewInt(9))))

	logs := []types.Log{
		{Address: addrA, Topics: []common.Hash{{0xaa}}, Data: []byte{1}},
		{Address: newAddr, Topics: []common.Hash{{0xbb}, {0xcc}}},
	}
	m := finished([]vm.AccountChange{
		vm.FullChange{
			Address:         addrA,
			Nonce:           uint256.NewInt(5),
			Balance:         uint256.NewInt(90),
			ChangingStorage: map[common.Hash]common.Hash{slot1: {}, slot2: {0x22}},
			Code:            f.code,
		},
		vm.DecreaseBalance{Address: addrA, Amount: uint256.NewInt(30)},
		vm.CreateChange{
			Address: newAddr,
			Nonce:   uint256.NewInt(1),
			Balance: uint256.NewInt(30),
			Storage: map[common.Hash]common.Hash{slot1: {0x33}},
			Code:    []byte{0xfe},
			Exists:  true,
		},
		vm.IncreaseBalance{Address: newAddr, Amount: uint256.NewInt(2)},
		vm.CreateChange{Address: gone},
	}, logs, 50000)

	receipt, err := Transit(f.ledger, m)
	require.NoError(t, err)
	assert.Equal(t, uint64(50000), receipt.UsedGas)
	assert.Equal(t, logs, receipt.Logs)
	assert.Equal(t, types.LogsBloom(logs), receipt.LogsBloom)
	assert.Equal(t, f.ledger.Root(), receipt.StateRoot)
	for _, l := range logs {
		assert.True(t, receipt.LogsBloom.Test(l.Address.Bytes()))
	}

	a, ok, err := f.ledger.GetAccount(addrA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), a.Nonce.Uint64())
	assert.Equal(t, uint64(60), a.Balance.Uint64())
	w, err := f.ledger.GetStorage(a, slot1)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, w)
	w, err = f.ledger.GetStorage(a, slot2)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{0x22}, w)

	n, ok, err := f.ledger.GetAccount(newAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(32), n.Balance.Uint64())
	assert.Equal(t, common.Keccak256([]byte{0xfe}), n.CodeHash)
	code, err := f.ledger.Code(n)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe}, code)
	w, err = f.ledger.GetStorage(n, slot1)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{0x33}, w)

	_, ok, err = f.ledger.GetAccount(gone)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitEmptyLogs(t *testing.T) {
	f := newResolveFixture(t)
	root := f.ledger.Root()
	receipt, err := Transit(f.ledger, finished(nil, nil, 21000))
	require.NoError(t, err)
	assert.NotNil(t, receipt.Logs)
	assert.Empty(t, receipt.Logs)
	assert.Equal(t, root, receipt.StateRoot)
}

func TestTransitDestroyLeavesParentIntact(t *testing.T) {
	f := newResolveFixture(t)
	parentRoot := f.ledger.Root()
	_, err := Transit(f.ledger, finished([]vm.AccountChange{vm.CreateChange{Address: addrA}}, nil, 0))
	require.NoError(t, err)
	_, ok, err := f.ledger.GetAccount(addrA)
	require.NoError(t, err)
	assert.False(t, ok)

	parent, err := statedb.NewLedger(f.db, parentRoot)
	require.NoError(t, err)
	acct, ok, err := parent.GetAccount(addrA)
	require.NoError(t, err)
	require.True(t, ok)
	w, err := parent.GetStorage(acct, slot1)
	require.NoError(t, err)
	assert.Equal(t, word1, w)
}

func TestTransitFatalFaults(t *testing.T) {
	allOnes := new(uint256.Int).SetAllOne()
	cases := []struct {
		name   string
		change vm.AccountChange
		err    error
	}{
		{"full change on missing account", vm.FullChange{Address: absent, Nonce: uint256.NewInt(1), Balance: uint256.NewInt(1)}, chainerrors.ErrFMissingAccount},
		{"increase on missing account", vm.IncreaseBalance{Address: absent, Amount: uint256.NewInt(1)}, chainerrors.ErrFMissingAccount},
		{"decrease on missing account", vm.DecreaseBalance{Address: absent, Amount: uint256.NewInt(1)}, chainerrors.ErrFMissingAccount},
		{"underflow", vm.DecreaseBalance{Address: addrA, Amount: uint256.NewInt(101)}, chainerrors.ErrFBalanceUnderflow},
		{"overflow", vm.IncreaseBalance{Address: addrA, Amount: allOnes}, chainerrors.ErrFBalanceOverflow},
		{"code mismatch", vm.FullChange{Address: addrA, Nonce: uint256.NewInt(1), Balance: uint256.NewInt(1), Code: []byte{0x00}}, chainerrors.ErrFCodeHashMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newResolveFixture(t)
			_, err := Transit(f.ledger, finished([]vm.AccountChange{tc.change}, nil, 0))
			require.ErrorIs(t, err, tc.err)
			assert.True(t, chainerrors.IsFatal(err))
		})
	}
}

func TestTransitExactDecrease(t *testing.T) {
	f := newResolveFixture(t)
	_, err := Transit(f.ledger, finished([]vm.AccountChange{vm.DecreaseBalance{Address: addrA, Amount: uint256.NewInt(100)}}, nil, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balanceOf(t, f.ledger, addrA))
}

func TestTransitUnchangedStorageKeepsRoot(t *testing.T) {
	f := newResolveFixture(t)
	before, _, err := f.ledger.GetAccount(addrA)
	require.NoError(t, err)
	_, err = Transit(f.ledger, finished([]vm.AccountChange{vm.FullChange{
		Address: addrA, Nonce: uint256.NewInt(4), Balance: uint256.NewInt(100), Code: f.code,
	}}, nil, 0))
	require.NoError(t, err)
	after, _, err := f.ledger.GetAccount(addrA)
	require.NoError(t, err)
	assert.Equal(t, before.StorageRoot, after.StorageRoot)
	assert.NotEqual(t, trie.EmptyRoot(), after.StorageRoot)
}
