package raydium

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/require"
	"github.com/yimingwow/rayquote/pkg/anchor"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
	"github.com/yimingwow/rayquote/pkg/sol"
)

// memReader serves snapshots from an in-memory account set.
type memReader struct {
	epoch    uint64
	accounts map[solana.PublicKey]*sol.Account
	reads    int
}

func newMemReader(epoch uint64) *memReader {
	return &memReader{epoch: epoch, accounts: make(map[solana.PublicKey]*sol.Account)}
}

func (r *memReader) Snapshot(_ context.Context, keys ...solana.PublicKey) (*sol.Snapshot, error) {
	r.reads++
	snap := &sol.Snapshot{
		Slot:     1_000,
		Clock:    sol.Clock{Slot: 1_000, Epoch: r.epoch},
		Accounts: make(map[solana.PublicKey]*sol.Account, len(keys)),
	}
	for _, k := range keys {
		if acc, ok := r.accounts[k]; ok {
			snap.Accounts[k] = acc
		}
	}
	return snap, nil
}

func (r *memReader) put(key, owner solana.PublicKey, data []byte) {
	r.accounts[key] = &sol.Account{Owner: owner, Lamports: 1, Data: data}
}

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(v))
	return buf.Bytes()
}

func anchorAccount(t *testing.T, name string, v interface{}) []byte {
	t.Helper()
	return append(anchor.Account(name), encode(t, v)...)
}

func tokenAccount(t *testing.T, mint solana.PublicKey, amount uint64) []byte {
	t.Helper()
	data := encode(t, token.Account{
		Mint:   mint,
		Owner:  solana.NewWallet().PublicKey(),
		Amount: amount,
		State:  token.Initialized,
	})
	require.Len(t, data, transferfee.TokenAccountSize)
	return data
}

func plainMint(t *testing.T, decimals uint8) []byte {
	t.Helper()
	data := encode(t, token.Mint{Decimals: decimals, Supply: 1_000_000_000, IsInitialized: true})
	require.Len(t, data, transferfee.MintSize)
	return data
}

// feeMint builds a Token-2022 mint carrying a TransferFeeConfig whose older
// and newer fees are both fee.
func feeMint(t *testing.T, decimals uint8, fee transferfee.Fee) []byte {
	t.Helper()
	data := make([]byte, transferfee.TokenAccountSize)
	copy(data, plainMint(t, decimals))
	data = append(data, 1)
	data = binary.LittleEndian.AppendUint16(data, 1)
	data = binary.LittleEndian.AppendUint16(data, 108)
	data = append(data, make([]byte, 64+8)...)
	for i := 0; i < 2; i++ {
		data = binary.LittleEndian.AppendUint64(data, fee.Epoch)
		data = binary.LittleEndian.AppendUint64(data, fee.MaximumFee)
		data = binary.LittleEndian.AppendUint16(data, fee.BasisPoints)
	}
	return data
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}
