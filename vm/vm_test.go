package vm

import (
	"math/big"
	"testing"

	"github.com/colorfulnotion/devchain/chainerrors"
	"github.com/colorfulnotion/devchain/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	recipient   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	beneficiary = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func sender(t *testing.T) common.Address {
	t.Helper()
	addr, _ := common.DevAccount(0)
	return addr
}

func signLegacy(t *testing.T, chainID int64, tx *ethtypes.LegacyTx) *ethtypes.Transaction {
	t.Helper()
	_, keyHex := common.DevAccount(0)
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)
	signed, err := ethtypes.SignTx(ethtypes.NewTx(tx), ethtypes.NewEIP155Signer(big.NewInt(chainID)), key)
	require.NoError(t, err)
	return signed
}

func transfer(t *testing.T, nonce uint64, value, gasPrice int64) *ethtypes.Transaction {
	to := recipient.Eth()
	return signLegacy(t, DefaultChainID, &ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(value),
		Gas:      21000,
		GasPrice: big.NewInt(gasPrice),
	})
}

func full(addr common.Address, nonce, balance uint64) FullCommitment {
	return FullCommitment{Address: addr, Nonce: uint256.NewInt(nonce), Balance: uint256.NewInt(balance)}
}

func TestIntrinsicGas(t *testing.T) {
	p := DefaultPatch(DefaultChainID)
	assert.Equal(t, uint64(21000), p.IntrinsicGas(nil, false))
	assert.Equal(t, uint64(53000), p.IntrinsicGas(nil, true))
	assert.Equal(t, uint64(21000+4+68), p.IntrinsicGas([]byte{0, 1}, false))
}

func TestAccountState(t *testing.T) {
	s := NewAccountState()
	a := common.HexToAddress("0x01")

	_, err := s.Account(a)
	assert.Equal(t, RequireAccount{Address: a}, err)
	_, err = s.Code(a)
	assert.Equal(t, RequireAccountCode{Address: a}, err)
	_, err = s.Storage(a, common.Hash{1})
	assert.Equal(t, RequireAccountStorage{Address: a, Index: common.Hash{1}}, err)

	require.NoError(t, s.Commit(full(a, 3, 10)))
	info, err := s.Account(a)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, uint64(3), info.Nonce.Uint64())
	require.ErrorIs(t, s.Commit(NonexistCommitment{Address: a}), ErrAlreadyCommitted)

	require.NoError(t, s.Commit(StorageCommitment{Address: a, Index: common.Hash{1}, Value: common.Hash{9}}))
	v, err := s.Storage(a, common.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, common.Hash{9}, v)

	b := common.HexToAddress("0x02")
	require.NoError(t, s.Commit(NonexistCommitment{Address: b}))
	v, err = s.Storage(b, common.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, v)
}

func TestValidateTransaction(t *testing.T) {
	patch := DefaultPatch(DefaultChainID)
	from := sender(t)

	cases := []struct {
		name    string
		tx      *ethtypes.Transaction
		nonce   uint64
		balance uint64
		err     error
	}{
		{"ok", transfer(t, 0, 5, 1), 0, 21005, nil},
		{"nonce", transfer(t, 1, 5, 1), 0, 1 << 40, chainerrors.ErrVNonceMismatch},
		{"balance", transfer(t, 0, 5, 1), 0, 21004, chainerrors.ErrVInsufficientBalance},
		{"wrong chain", signLegacy(t, 1, &ethtypes.LegacyTx{Gas: 21000, GasPrice: big.NewInt(0), To: &ethcommon.Address{}}), 0, 0, chainerrors.ErrVBadSignature},
		{"intrinsic", signLegacy(t, DefaultChainID, &ethtypes.LegacyTx{Gas: 20999, GasPrice: big.NewInt(0), To: &ethcommon.Address{}}), 0, 0, chainerrors.ErrVIntrinsicGas},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := NewAccountState()
			_, err := ValidateTransaction(tc.tx, state, patch)
			if tc.err == chainerrors.ErrVBadSignature {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.Equal(t, RequireAccount{Address: from}, err)
			require.NoError(t, state.Commit(full(from, tc.nonce, tc.balance)))

			valid, err := ValidateTransaction(tc.tx, state, patch)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				assert.True(t, chainerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, from, valid.Caller)
			assert.Equal(t, recipient, *valid.To)
			assert.Equal(t, uint64(5), valid.Value.Uint64())
			assert.Equal(t, common.Hash(tc.tx.Hash()), valid.Hash)
		})
	}
}

func TestValidateRejectsTypedTransactions(t *testing.T) {
	_, keyHex := common.DevAccount(0)
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)
	signer := ethtypes.LatestSignerForChainID(big.NewInt(DefaultChainID))
	tx, err := ethtypes.SignNewTx(key, signer, &ethtypes.AccessListTx{ChainID: big.NewInt(DefaultChainID), Gas: 21000, GasPrice: big.NewInt(0)})
	require.NoError(t, err)
	_, err = ValidateTransaction(tx, NewAccountState(), DefaultPatch(DefaultChainID))
	require.ErrorIs(t, err, chainerrors.ErrVUnsupportedTxType)
}

// drive answers requirements from a fixed account table until Fire succeeds.
func drive(t *testing.T, m VM, ledger map[common.Address]FullCommitment) []Requirement {
	t.Helper()
	var seen []Requirement
	for i := 0; i < 10; i++ {
		err := m.Fire()
		if err == nil {
			return seen
		}
		req, ok := err.(RequireAccount)
		require.True(t, ok, "unexpected error %v", err)
		seen = append(seen, req)
		if c, ok := ledger[req.Address]; ok {
			require.NoError(t, m.CommitAccount(c))
		} else {
			require.NoError(t, m.CommitAccount(NonexistCommitment{Address: req.Address}))
		}
	}
	t.Fatal("vm did not finish")
	return nil
}

func validFor(t *testing.T, tx *ethtypes.Transaction, nonce, balance uint64) *ValidTransaction {
	state := NewAccountState()
	from := sender(t)
	require.NoError(t, state.Commit(full(from, nonce, balance)))
	valid, err := ValidateTransaction(tx, state, DefaultPatch(DefaultChainID))
	require.NoError(t, err)
	return valid
}

func TestTransferVM_NewRecipient(t *testing.T) {
	from := sender(t)
	patch := DefaultPatch(DefaultChainID)
	valid := validFor(t, transfer(t, 0, 7, 0), 0, 100)

	m := TransferEngine{}.Execute(valid, HeaderParams{Beneficiary: beneficiary, Number: 1}, patch)
	seen := drive(t, m, map[common.Address]FullCommitment{from: full(from, 0, 100)})
	assert.Equal(t, []Requirement{RequireAccount{Address: from}, RequireAccount{Address: recipient}}, seen)

	assert.Equal(t, uint64(21000), m.UsedGas())
	assert.Empty(t, m.Logs())
	changes := m.Accounts()
	require.Len(t, changes, 2)
	fc := changes[0].(FullChange)
	assert.Equal(t, uint64(1), fc.Nonce.Uint64())
	assert.Equal(t, uint64(93), fc.Balance.Uint64())
	cc := changes[1].(CreateChange)
	assert.Equal(t, recipient, cc.Address)
	assert.True(t, cc.Exists)
	assert.Equal(t, uint64(7), cc.Balance.Uint64())
}

func TestTransferVM_FeeToBeneficiary(t *testing.T) {
	from := sender(t)
	patch := DefaultPatch(DefaultChainID)
	valid := validFor(t, transfer(t, 2, 7, 2), 2, 100000)

	m := TransferEngine{}.Execute(valid, HeaderParams{Beneficiary: beneficiary, Number: 1}, patch)
	seen := drive(t, m, map[common.Address]FullCommitment{
		from:      full(from, 2, 100000),
		recipient: full(recipient, 0, 1),
	})
	require.Len(t, seen, 3)
	assert.Equal(t, RequireAccount{Address: beneficiary}, seen[2])

	changes := m.Accounts()
	require.Len(t, changes, 4)
	assert.Equal(t, DecreaseBalance{Address: from, Amount: uint256.NewInt(42000)}, changes[1])
	assert.Equal(t, IncreaseBalance{Address: recipient, Amount: uint256.NewInt(7)}, changes[2])
	cc := changes[3].(CreateChange)
	assert.Equal(t, beneficiary, cc.Address)
	assert.Equal(t, uint64(42000), cc.Balance.Uint64())
}

func TestTransferVM_ContractCreation(t *testing.T) {
	from := sender(t)
	patch := DefaultPatch(DefaultChainID)
	code := []byte{0x60, 0x00}
	tx := signLegacy(t, DefaultChainID, &ethtypes.LegacyTx{Nonce: 0, Value: big.NewInt(3), Gas: 60000, GasPrice: big.NewInt(0), Data: code})
	valid := validFor(t, tx, 0, 10)
	require.True(t, valid.IsCreate())
	target := valid.CreateAddress()
	assert.Equal(t, common.Address(crypto.CreateAddress(from.Eth(), 0)), target)

	m := TransferEngine{}.Execute(valid, HeaderParams{Beneficiary: beneficiary}, patch)
	drive(t, m, map[common.Address]FullCommitment{from: full(from, 0, 10)})
	changes := m.Accounts()
	require.Len(t, changes, 2)
	cc := changes[1].(CreateChange)
	assert.Equal(t, target, cc.Address)
	assert.Equal(t, code, cc.Code)
	assert.Equal(t, uint64(3), cc.Balance.Uint64())
	assert.Equal(t, patch.IntrinsicGas(code, true), m.UsedGas())
}

func TestTransferVM_CreationCollisionKeepsValue(t *testing.T) {
	from := sender(t)
	tx := signLegacy(t, DefaultChainID, &ethtypes.LegacyTx{Nonce: 0, Value: big.NewInt(3), Gas: 60000, GasPrice: big.NewInt(0)})
	valid := validFor(t, tx, 0, 10)

	m := TransferEngine{}.Execute(valid, HeaderParams{}, DefaultPatch(DefaultChainID))
	drive(t, m, map[common.Address]FullCommitment{
		from:                  full(from, 0, 10),
		valid.CreateAddress(): full(valid.CreateAddress(), 1, 0),
	})
	changes := m.Accounts()
	require.Len(t, changes, 1)
	assert.Equal(t, uint64(10), changes[0].(FullChange).Balance.Uint64())
}

func TestTransferVM_Blockhash(t *testing.T) {
	m := NewTransferVM(&ValidTransaction{}, HeaderParams{}, DefaultPatch(DefaultChainID))
	require.NoError(t, m.CommitBlockhash(4, common.Hash{4}))
	require.ErrorIs(t, m.CommitBlockhash(4, common.Hash{5}), ErrAlreadyCommitted)
}
