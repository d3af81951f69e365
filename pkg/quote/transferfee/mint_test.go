package transferfee

import (
	"bytes"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var token2022 = solana.Token2022ProgramID

func encodeBaseMint(t *testing.T, decimals uint8, supply uint64) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(&token.Mint{
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: true,
	}))
	require.Len(t, buf.Bytes(), MintSize)
	return buf.Bytes()
}

func encodeFeeMint(t *testing.T, older, newer Fee) []byte {
	t.Helper()
	data := make([]byte, tlvStart)
	copy(data, encodeBaseMint(t, 6, 1_000_000))
	data[accountTypeOffset] = accountTypeMint

	// an unrelated extension first, so the scan has to skip it
	data = binary.LittleEndian.AppendUint16(data, 3)
	data = binary.LittleEndian.AppendUint16(data, 32)
	data = append(data, make([]byte, 32)...)

	data = binary.LittleEndian.AppendUint16(data, extensionTransferFeeConfig)
	data = binary.LittleEndian.AppendUint16(data, transferFeeConfigLen)
	data = append(data, make([]byte, 64)...)
	data = binary.LittleEndian.AppendUint64(data, 77)
	for _, f := range []Fee{older, newer} {
		data = binary.LittleEndian.AppendUint64(data, f.Epoch)
		data = binary.LittleEndian.AppendUint64(data, f.MaximumFee)
		data = binary.LittleEndian.AppendUint16(data, f.BasisPoints)
	}
	return data
}

func TestParseMintPlain(t *testing.T) {
	m, err := ParseMint(solana.SystemProgramID, solana.TokenProgramID, encodeBaseMint(t, 9, 42))
	require.NoError(t, err)
	assert.Equal(t, uint8(9), m.Decimals)
	assert.Equal(t, uint64(42), m.Supply)
	assert.Nil(t, m.TransferFee)
}

func TestParseMintWithTransferFee(t *testing.T) {
	older := Fee{Epoch: 10, MaximumFee: 1_000, BasisPoints: 50}
	newer := Fee{Epoch: 20, MaximumFee: 2_000, BasisPoints: 100}

	m, err := ParseMint(solana.SystemProgramID, token2022, encodeFeeMint(t, older, newer))
	require.NoError(t, err)
	require.NotNil(t, m.TransferFee)
	assert.Equal(t, uint8(6), m.Decimals)
	assert.Equal(t, older, m.TransferFee.Older)
	assert.Equal(t, newer, m.TransferFee.Newer)
	assert.Equal(t, uint64(77), m.TransferFee.WithheldAmount)
	assert.Equal(t, token2022, m.Program)
}

func TestParseMintRejectsBadLayouts(t *testing.T) {
	_, err := ParseMint(solana.SystemProgramID, token2022, make([]byte, 10))
	assert.Error(t, err)

	data := encodeFeeMint(t, Fee{}, Fee{})
	data[accountTypeOffset] = accountTypeAccount
	_, err = ParseMint(solana.SystemProgramID, token2022, data)
	assert.Error(t, err)

	data = encodeFeeMint(t, Fee{}, Fee{})
	_, err = ParseMint(solana.SystemProgramID, token2022, data[:len(data)-4])
	assert.Error(t, err)
}

func TestParseTokenAccount(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(&token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: 123_456,
		State:  token.Initialized,
	}))

	acc, err := ParseTokenAccount(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, mint, acc.Mint)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, uint64(123_456), acc.Amount)

	_, err = ParseTokenAccount(buf.Bytes()[:100])
	assert.Error(t, err)
}
