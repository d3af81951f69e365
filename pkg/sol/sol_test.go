package sol

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockBytes(slot, epoch uint64) []byte {
	data := make([]byte, ClockAccountDataSize)
	binary.LittleEndian.PutUint64(data[0:8], slot)
	binary.LittleEndian.PutUint64(data[16:24], epoch)
	binary.LittleEndian.PutUint64(data[32:40], 1_700_000_000)
	return data
}

func TestParseClock(t *testing.T) {
	clock, err := ParseClock(clockBytes(250_000_000, 578))
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), clock.Slot)
	assert.Equal(t, uint64(578), clock.Epoch)
	assert.Equal(t, int64(1_700_000_000), clock.UnixTimestamp)

	_, err = ParseClock(make([]byte, 39))
	assert.Error(t, err)
}

func TestBuildSnapshot(t *testing.T) {
	present := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()
	query := []solana.PublicKey{solana.SysVarClockPubkey, present, missing}

	res := &rpc.GetMultipleAccountsResult{
		RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: 42}},
		Value: []*rpc.Account{
			{Owner: solana.SysVarRentPubkey, Data: rpc.DataBytesOrJSONFromBytes(clockBytes(42, 7))},
			{Owner: solana.TokenProgramID, Lamports: 2_039_280, Data: rpc.DataBytesOrJSONFromBytes([]byte{1, 2, 3})},
			nil,
		},
	}
	snap, err := buildSnapshot(res, query)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Slot)
	assert.Equal(t, uint64(7), snap.Clock.Epoch)

	acc, err := snap.Get(present)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, acc.Data)
	assert.Equal(t, solana.TokenProgramID, acc.Owner)

	assert.False(t, snap.Has(missing))
	_, err = snap.Get(missing)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBuildSnapshotRejects(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	query := []solana.PublicKey{solana.SysVarClockPubkey, key}

	tests := []struct {
		name  string
		value []*rpc.Account
	}{
		{"short result", []*rpc.Account{{Data: rpc.DataBytesOrJSONFromBytes(clockBytes(1, 1))}}},
		{"no clock", []*rpc.Account{nil, nil}},
		{"bad clock", []*rpc.Account{{Data: rpc.DataBytesOrJSONFromBytes([]byte{1})}, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildSnapshot(&rpc.GetMultipleAccountsResult{Value: tt.value}, query)
			assert.Error(t, err)
		})
	}
}

func TestLoadKeypair(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	fromSecret, err := LoadKeypair(base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromSecret.PublicKey())

	path := filepath.Join(t.TempDir(), "id.json")
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	content, err := json.Marshal(ints)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	fromFile, err := LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromFile.PublicKey())

	_, err = LoadKeypair("")
	assert.Error(t, err)
	_, err = LoadKeypair(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestAssociatedTokenAddress(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	got, err := AssociatedTokenAddress(owner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	want, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	token2022, err := AssociatedTokenAddress(owner, mint, solana.Token2022ProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, got, token2022)
}

func TestCreateAssociatedTokenAccountToken2022(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ix, err := CreateAssociatedTokenAccount(owner, owner, mint, solana.Token2022ProgramID)
	require.NoError(t, err)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{createIdempotent}, data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, solana.Token2022ProgramID, accounts[5].PublicKey)
}

func TestPriorityFeeInstructions(t *testing.T) {
	instrs, err := PriorityFeeInstructions(0, 0)
	require.NoError(t, err)
	assert.Empty(t, instrs)

	instrs, err = PriorityFeeInstructions(200_000, 5_000)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	for _, ix := range instrs {
		assert.Equal(t, solana.ComputeBudget, ix.ProgramID())
	}
}
