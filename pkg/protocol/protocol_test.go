package protocol

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yimingwow/rayquote/pkg/anchor"
	"github.com/yimingwow/rayquote/pkg/config"
	"github.com/yimingwow/rayquote/pkg/pool/raydium"
)

// fakeSource answers program scans by evaluating the filters against an
// in-memory account set.
type fakeSource struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*rpc.Account
	scans    [][]rpc.RPCFilter
	scanErr  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{accounts: make(map[solana.PublicKey]*rpc.Account)}
}

func (f *fakeSource) put(owner solana.PublicKey, data []byte) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	f.accounts[key] = &rpc.Account{Owner: owner, Lamports: 1, Data: rpc.DataBytesOrJSONFromBytes(data)}
	return key
}

func matches(filters []rpc.RPCFilter, data []byte) bool {
	for _, flt := range filters {
		if flt.DataSize != 0 && uint64(len(data)) != flt.DataSize {
			return false
		}
		if m := flt.Memcmp; m != nil {
			end := m.Offset + uint64(len(m.Bytes))
			if end > uint64(len(data)) || !bytes.Equal(data[m.Offset:end], m.Bytes) {
				return false
			}
		}
	}
	return true
}

func (f *fakeSource) GetProgramAccountsWithOpts(_ context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, opts.Filters)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var out rpc.GetProgramAccountsResult
	for key, acc := range f.accounts {
		if acc.Owner.Equals(program) && matches(opts.Filters, acc.Data.GetBinary()) {
			out = append(out, &rpc.KeyedAccount{Pubkey: key, Account: acc})
		}
	}
	return out, nil
}

func (f *fakeSource) GetAccountInfoWithOpts(_ context.Context, key solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	acc, ok := f.accounts[key]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acc}, nil
}

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(v))
	return buf.Bytes()
}

func ammPoolData(t *testing.T, coin, pc solana.PublicKey) []byte {
	t.Helper()
	_, nonce, err := solana.FindProgramAddress([][]byte{[]byte("amm authority")}, config.DefaultPrograms().Amm)
	require.NoError(t, err)
	data := encode(t, &raydium.AmmInfo{Nonce: uint64(nonce), CoinMint: coin, PcMint: pc})
	require.Len(t, data, raydium.AmmInfoSize)
	return data
}

func cpmmPoolData(t *testing.T, mint0, mint1 solana.PublicKey) []byte {
	t.Helper()
	data := append(anchor.Account("PoolState"), encode(t, &raydium.CpmmPoolState{Token0Mint: mint0, Token1Mint: mint1})...)
	require.Len(t, data, raydium.CpmmPoolStateSize)
	return data
}

func TestFetchAMMPoolsBothOrders(t *testing.T) {
	programs := config.DefaultPrograms()
	src := newFakeSource()
	a, b, c := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	ab := src.put(programs.Amm, ammPoolData(t, a, b))
	ba := src.put(programs.Amm, ammPoolData(t, b, a))
	src.put(programs.Amm, ammPoolData(t, a, c))
	src.put(programs.CpSwap, cpmmPoolData(t, a, b))

	p := NewRaydiumAmm(src, programs.Amm, nil)
	pools, err := p.FetchAMMPools(context.Background(), a.String(), b.String())
	require.NoError(t, err)
	require.Len(t, pools, 2)

	got := map[solana.PublicKey]bool{}
	for _, pool := range pools {
		got[pool.PoolId] = true
		assert.Equal(t, programs.Amm, pool.GetProgramID())
	}
	assert.True(t, got[ab])
	assert.True(t, got[ba])

	require.Len(t, src.scans, 2)
	for _, filters := range src.scans {
		require.Len(t, filters, 3)
		assert.Equal(t, uint64(raydium.AmmInfoSize), filters[0].DataSize)
		assert.Equal(t, uint64(raydium.AmmCoinMintOffset), filters[1].Memcmp.Offset)
		assert.Equal(t, uint64(raydium.AmmPcMintOffset), filters[2].Memcmp.Offset)
	}
}

func TestFetchPoolsSameMint(t *testing.T) {
	programs := config.DefaultPrograms()
	src := newFakeSource()
	a := solana.NewWallet().PublicKey()
	src.put(programs.CpSwap, cpmmPoolData(t, a, a))

	pools, err := NewRaydiumCpmm(src, programs.CpSwap, nil).FetchPoolsByPair(context.Background(), a.String(), a.String())
	require.NoError(t, err)
	assert.Len(t, pools, 1)
	assert.Len(t, src.scans, 1)
}

func TestFetchCPMMPoolsSkipsUndecodable(t *testing.T) {
	programs := config.DefaultPrograms()
	src := newFakeSource()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	good := src.put(programs.CpSwap, cpmmPoolData(t, a, b))
	bad := cpmmPoolData(t, a, b)
	copy(bad, make([]byte, 8))
	src.put(programs.CpSwap, bad)

	pools, err := NewRaydiumCpmm(src, programs.CpSwap, nil).FetchCPMMPools(context.Background(), b.String(), a.String())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, good, pools[0].PoolId)
	assert.Equal(t, a, pools[0].Info.Token0Mint)
}

func TestFetchPoolsScanError(t *testing.T) {
	src := newFakeSource()
	src.scanErr = errors.New("rpc down")
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	_, err := NewRaydiumClmm(src, config.DefaultPrograms().Clmm, nil).FetchPoolsByPair(context.Background(), a.String(), b.String())
	assert.ErrorIs(t, err, src.scanErr)

	_, err = NewRaydiumClmm(src, config.DefaultPrograms().Clmm, nil).FetchPoolsByPair(context.Background(), "not-a-key", b.String())
	assert.ErrorContains(t, err, "invalid mint address")
}

func TestFetchPoolByID(t *testing.T) {
	programs := config.DefaultPrograms()
	src := newFakeSource()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	id := src.put(programs.Amm, ammPoolData(t, a, b))
	foreign := src.put(programs.CpSwap, ammPoolData(t, a, b))

	p := NewRaydiumAmm(src, programs.Amm, nil)
	pool, err := p.FetchPoolByID(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), pool.GetID())
	base, quote := pool.GetTokens()
	assert.Equal(t, a.String(), base)
	assert.Equal(t, b.String(), quote)

	_, err = p.FetchPoolByID(context.Background(), foreign.String())
	assert.ErrorContains(t, err, "owned by")

	_, err = p.FetchPoolByID(context.Background(), solana.NewWallet().PublicKey().String())
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestFetchClmmConfigs(t *testing.T) {
	programs := config.DefaultPrograms()
	src := newFakeSource()
	cfgData := append(anchor.Account("AmmConfig"), encode(t, &raydium.ClmmAmmConfig{Index: 3, TradeFeeRate: 2_500, TickSpacing: 60})...)
	require.Len(t, cfgData, raydium.ClmmAmmConfigSize)
	id := src.put(programs.Clmm, cfgData)
	src.put(programs.Clmm, append(anchor.Account("PoolState"), make([]byte, raydium.ClmmAmmConfigSize-8)...))

	p := NewRaydiumClmm(src, programs.Clmm, nil)
	cfgs, err := p.FetchConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, id, cfgs[0].Address)
	assert.Equal(t, uint16(60), cfgs[0].Value.TickSpacing)

	one, err := p.FetchConfig(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, uint32(2_500), one.TradeFeeRate)
}
