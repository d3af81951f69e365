package raydium

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	cosmath "cosmossdk.io/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/yimingwow/rayquote/pkg"
	"github.com/yimingwow/rayquote/pkg/anchor"
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/quote/clmm"
	"github.com/yimingwow/rayquote/pkg/sol"
	"lukechampine.com/uint128"
)

const (
	ClmmPoolStateSize      = 1544
	ClmmAmmConfigSize      = 117
	ClmmTickArraySize      = 10240
	ClmmBitmapExtensionLen = 1832

	ClmmMint0Offset = 8 + 1 + 32*2
	ClmmMint1Offset = 8 + 1 + 32*3

	// Tick arrays staged after the first one in the swap direction.
	clmmExtraTickArrays = 5
	clmmStageAttempts   = 2
)

type RewardInfo struct {
	RewardState           uint8
	OpenTime              uint64
	EndTime               uint64
	LastUpdateTime        uint64
	EmissionsPerSecondX64 uint128.Uint128
	RewardTotalEmissioned uint64
	RewardClaimed         uint64
	TokenMint             solana.PublicKey
	TokenVault            solana.PublicKey
	Authority             solana.PublicKey
	RewardGrowthGlobalX64 uint128.Uint128
}

// ClmmPoolState is the CLMM PoolState account without its discriminator.
type ClmmPoolState struct {
	Bump                   uint8
	AmmConfig              solana.PublicKey
	Owner                  solana.PublicKey
	TokenMint0             solana.PublicKey
	TokenMint1             solana.PublicKey
	TokenVault0            solana.PublicKey
	TokenVault1            solana.PublicKey
	ObservationKey         solana.PublicKey
	MintDecimals0          uint8
	MintDecimals1          uint8
	TickSpacing            uint16
	Liquidity              uint128.Uint128
	SqrtPriceX64           uint128.Uint128
	TickCurrent            int32
	Padding3               uint16
	Padding4               uint16
	FeeGrowthGlobal0X64    uint128.Uint128
	FeeGrowthGlobal1X64    uint128.Uint128
	ProtocolFeesToken0     uint64
	ProtocolFeesToken1     uint64
	SwapInAmountToken0     uint128.Uint128
	SwapOutAmountToken1    uint128.Uint128
	SwapInAmountToken1     uint128.Uint128
	SwapOutAmountToken0    uint128.Uint128
	Status                 uint8
	Padding                [7]uint8
	RewardInfos            [3]RewardInfo
	TickArrayBitmap        [16]uint64
	TotalFeesToken0        uint64
	TotalFeesClaimedToken0 uint64
	TotalFeesToken1        uint64
	TotalFeesClaimedToken1 uint64
	FundFeesToken0         uint64
	FundFeesToken1         uint64
	OpenTime               uint64
	RecentEpoch            uint64
	Padding1               [24]uint64
	Padding2               [32]uint64
}

func (s *ClmmPoolState) Decode(data []byte) error {
	if len(data) != ClmmPoolStateSize {
		return fmt.Errorf("clmm pool: expected %d bytes, got %d", ClmmPoolStateSize, len(data))
	}
	body, err := anchor.CheckAccount("PoolState", data)
	if err != nil {
		return err
	}
	return bin.NewBinDecoder(body).Decode(s)
}

// RewardMints lists the mints of the pool's active reward slots.
func (s *ClmmPoolState) RewardMints() []solana.PublicKey {
	var mints []solana.PublicKey
	for _, r := range s.RewardInfos {
		if !r.TokenMint.IsZero() {
			mints = append(mints, r.TokenMint)
		}
	}
	return mints
}

// ClmmAmmConfig holds the fee tier of a CLMM pool. Rates are in millionths.
type ClmmAmmConfig struct {
	Bump            uint8
	Index           uint16
	Owner           solana.PublicKey
	ProtocolFeeRate uint32
	TradeFeeRate    uint32
	TickSpacing     uint16
	FundFeeRate     uint32
	PaddingU32      uint32
	FundOwner       solana.PublicKey
	Padding         [3]uint64
}

func (c *ClmmAmmConfig) Decode(data []byte) error {
	body, err := anchor.CheckAccount("AmmConfig", data)
	if err != nil {
		return err
	}
	return bin.NewBinDecoder(body).Decode(c)
}

type TickState struct {
	Tick                    int32
	LiquidityNet            bin.Int128
	LiquidityGross          uint128.Uint128
	FeeGrowthOutside0X64    uint128.Uint128
	FeeGrowthOutside1X64    uint128.Uint128
	RewardGrowthsOutsideX64 [3]uint128.Uint128
	Padding                 [13]uint32
}

type TickArrayState struct {
	PoolId               solana.PublicKey
	StartTickIndex       int32
	Ticks                [clmm.TickArraySize]TickState
	InitializedTickCount uint8
	RecentEpoch          uint64
	Padding              [107]uint8
}

func (t *TickArrayState) Decode(data []byte) error {
	if len(data) != ClmmTickArraySize {
		return fmt.Errorf("tick array: expected %d bytes, got %d", ClmmTickArraySize, len(data))
	}
	body, err := anchor.CheckAccount("TickArrayState", data)
	if err != nil {
		return err
	}
	return bin.NewBinDecoder(body).Decode(t)
}

// TickArray converts the account into the quoting representation.
func (t *TickArrayState) TickArray() *clmm.TickArray {
	out := &clmm.TickArray{
		StartTickIndex:       t.StartTickIndex,
		InitializedTickCount: t.InitializedTickCount,
	}
	for i := range t.Ticks {
		out.Ticks[i] = clmm.Tick{
			Tick:           t.Ticks[i].Tick,
			LiquidityNet:   cosmath.NewIntFromBigInt(t.Ticks[i].LiquidityNet.BigInt()),
			LiquidityGross: t.Ticks[i].LiquidityGross,
		}
	}
	return out
}

type TickArrayBitmapExtension struct {
	PoolId                  solana.PublicKey
	PositiveTickArrayBitmap [14][8]uint64
	NegativeTickArrayBitmap [14][8]uint64
}

func (e *TickArrayBitmapExtension) Decode(data []byte) error {
	if len(data) != ClmmBitmapExtensionLen {
		return fmt.Errorf("bitmap extension: expected %d bytes, got %d", ClmmBitmapExtensionLen, len(data))
	}
	body, err := anchor.CheckAccount("TickArrayBitmapExtension", data)
	if err != nil {
		return err
	}
	return bin.NewBinDecoder(body).Decode(e)
}

// CLMMPool is a Raydium concentrated liquidity pool.
type CLMMPool struct {
	PoolId          solana.PublicKey
	ProgramID       solana.PublicKey
	Info            ClmmPoolState
	Config          ClmmAmmConfig
	BitmapExtension solana.PublicKey

	State  clmm.Pool
	Epoch  uint64
	loaded bool
}

func NewCLMMPool(program, id solana.PublicKey, data []byte) (*CLMMPool, error) {
	p := &CLMMPool{PoolId: id, ProgramID: program}
	if err := p.Info.Decode(data); err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	ext, err := BitmapExtensionAddress(program, id)
	if err != nil {
		return nil, err
	}
	p.BitmapExtension = ext
	return p, nil
}

func (pool *CLMMPool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameRaydiumClmm
}

func (pool *CLMMPool) GetProgramID() solana.PublicKey {
	return pool.ProgramID
}

func (pool *CLMMPool) GetID() string {
	return pool.PoolId.String()
}

func (pool *CLMMPool) GetTokens() (baseMint, quoteMint string) {
	return pool.Info.TokenMint0.String(), pool.Info.TokenMint1.String()
}

// Load reads the pool, its AmmConfig, the bitmap extension and both mints
// from one snapshot. Extra keys are read in the same snapshot, which is
// returned for the caller to decode them.
func (pool *CLMMPool) Load(ctx context.Context, reader sol.AccountReader, extra ...solana.PublicKey) (*sol.Snapshot, error) {
	s := &pool.Info
	keys := append([]solana.PublicKey{pool.PoolId, s.AmmConfig, pool.BitmapExtension, s.TokenMint0, s.TokenMint1}, extra...)
	snap, err := reader.Snapshot(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", pool.PoolId, err)
	}
	acc, err := snap.Get(pool.PoolId)
	if err != nil {
		return nil, err
	}
	if err := s.Decode(acc.Data); err != nil {
		return nil, fmt.Errorf("pool %s: %w", pool.PoolId, err)
	}
	acc, err = snap.Get(s.AmmConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Config.Decode(acc.Data); err != nil {
		return nil, fmt.Errorf("amm config %s: %w", s.AmmConfig, err)
	}
	// pools that never crossed the default bitmap have no extension account
	var ext *clmm.BitmapExtension
	if snap.Has(pool.BitmapExtension) {
		acc, _ := snap.Get(pool.BitmapExtension)
		var raw TickArrayBitmapExtension
		if err := raw.Decode(acc.Data); err != nil {
			return nil, fmt.Errorf("pool %s: %w", pool.PoolId, err)
		}
		ext = &clmm.BitmapExtension{
			Positive: raw.PositiveTickArrayBitmap,
			Negative: raw.NegativeTickArrayBitmap,
		}
	}
	mint0, err := snapshotMint(snap, s.TokenMint0)
	if err != nil {
		return nil, err
	}
	mint1, err := snapshotMint(snap, s.TokenMint1)
	if err != nil {
		return nil, err
	}

	pool.State = clmm.Pool{
		PoolState: clmm.PoolState{
			SqrtPriceX64: s.SqrtPriceX64,
			TickCurrent:  s.TickCurrent,
			Liquidity:    s.Liquidity,
			Bitmap: clmm.Bitmap{
				TickSpacing: s.TickSpacing,
				Default:     s.TickArrayBitmap,
				Extension:   ext,
			},
		},
		Mint0:        mint0,
		Mint1:        mint1,
		Decimals0:    s.MintDecimals0,
		Decimals1:    s.MintDecimals1,
		TradeFeeRate: pool.Config.TradeFeeRate,
	}
	pool.Epoch = snap.Clock.Epoch
	pool.loaded = true
	return snap, nil
}

// tickArrayKeys derives the addresses of the given tick array start indices.
func (pool *CLMMPool) tickArrayKeys(starts []int32) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, len(starts))
	for i, start := range starts {
		key, err := TickArrayAddress(pool.ProgramID, pool.PoolId, start)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

// StageTickArrays reads the pool together with the tick arrays a swap in the
// given direction may cross. The array addresses depend on the pool bitmap, so
// they are chosen from the last known state and the read is repeated when the
// fresh state needs arrays that were not staged.
func (pool *CLMMPool) StageTickArrays(ctx context.Context, reader sol.AccountReader, zeroForOne bool) (*clmm.TickArrayCursor, error) {
	if !pool.loaded {
		if _, err := pool.Load(ctx, reader); err != nil {
			return nil, err
		}
	}
	for attempt := 0; attempt < clmmStageAttempts; attempt++ {
		starts, err := pool.State.Bitmap.InitializedTickArrays(pool.State.TickCurrent, zeroForOne, clmmExtraTickArrays)
		if err != nil {
			return nil, err
		}
		keys, err := pool.tickArrayKeys(starts)
		if err != nil {
			return nil, err
		}
		snap, err := pool.Load(ctx, reader, keys...)
		if err != nil {
			return nil, err
		}
		fresh, err := pool.State.Bitmap.InitializedTickArrays(pool.State.TickCurrent, zeroForOne, clmmExtraTickArrays)
		if err != nil {
			return nil, err
		}
		arrays, ok, err := decodeStaged(snap, starts, keys, fresh)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", pool.PoolId, err)
		}
		if ok {
			return clmm.NewTickArrayCursor(arrays...), nil
		}
	}
	return nil, fmt.Errorf("%w: pool %s tick arrays moved between reads", quote.ErrInsufficientTickArrays, pool.PoolId)
}

// decodeStaged decodes the arrays listed in want. It reports false when one of
// them was not part of the staged set.
func decodeStaged(snap *sol.Snapshot, staged []int32, keys []solana.PublicKey, want []int32) ([]*clmm.TickArray, bool, error) {
	index := make(map[int32]solana.PublicKey, len(staged))
	for i, start := range staged {
		index[start] = keys[i]
	}
	arrays := make([]*clmm.TickArray, 0, len(want))
	for _, start := range want {
		key, ok := index[start]
		if !ok {
			return nil, false, nil
		}
		acc, err := snap.Get(key)
		if err != nil {
			return nil, false, err
		}
		var state TickArrayState
		if err := state.Decode(acc.Data); err != nil {
			return nil, false, fmt.Errorf("tick array %d: %w", start, err)
		}
		arrays = append(arrays, state.TickArray())
	}
	return arrays, true, nil
}

func (pool *CLMMPool) Quote(ctx context.Context, reader sol.AccountReader, inputMint string, inputAmount cosmath.Int) (cosmath.Int, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return cosmath.ZeroInt(), fmt.Errorf("input mint: %w", err)
	}
	if !inputAmount.IsUint64() {
		return cosmath.ZeroInt(), fmt.Errorf("%w: %s", quote.ErrInvalidSwapAmount, inputAmount)
	}
	q, err := pool.SwapQuote(ctx, reader, mint, inputAmount.Uint64(), uint128.Zero, true, 0)
	if err != nil {
		return cosmath.ZeroInt(), err
	}
	return cosmath.NewIntFromUint64(q.Threshold), nil
}

func (pool *CLMMPool) zeroForOne(inputMint solana.PublicKey) (bool, error) {
	switch {
	case inputMint.Equals(pool.Info.TokenMint0):
		return true, nil
	case inputMint.Equals(pool.Info.TokenMint1):
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", quote.ErrMismatchedMint, inputMint)
}

// SwapQuote stages tick arrays and quotes a swap. A zero sqrtPriceLimit uses
// the furthest price in the swap direction.
func (pool *CLMMPool) SwapQuote(ctx context.Context, reader sol.AccountReader, inputMint solana.PublicKey, amount uint64, sqrtPriceLimit uint128.Uint128, baseIn bool, slippageBps uint64) (clmm.SwapQuote, error) {
	zeroForOne, err := pool.zeroForOne(inputMint)
	if err != nil {
		return clmm.SwapQuote{}, err
	}
	cursor, err := pool.StageTickArrays(ctx, reader, zeroForOne)
	if err != nil {
		return clmm.SwapQuote{}, err
	}
	return clmm.SwapChange(&pool.State, cursor, pool.Epoch, amount, sqrtPriceLimit, zeroForOne, baseIn, slippageBps)
}

// LiquidityQuote quotes a position change over [tickLower, tickUpper) sized by
// amount of token0 or token1.
func (pool *CLMMPool) LiquidityQuote(ctx context.Context, reader sol.AccountReader, tickLower, tickUpper int32, amount uint64, baseToken0 bool, slippageBps uint64) (clmm.LiquidityQuote, error) {
	if _, err := pool.Load(ctx, reader); err != nil {
		return clmm.LiquidityQuote{}, err
	}
	return clmm.LiquidityChange(&pool.State, pool.Epoch, tickLower, tickUpper, amount, baseToken0, slippageBps)
}

// Price is the human price of token0 in token1 at the loaded state.
func (pool *CLMMPool) Price() decimal.Decimal {
	return clmm.SqrtPriceX64ToPrice(pool.State.SqrtPriceX64, pool.State.Decimals0, pool.State.Decimals1)
}

func (pool *CLMMPool) SpotPrice(inputMint string) (decimal.Decimal, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("input mint: %w", err)
	}
	zeroForOne, err := pool.zeroForOne(mint)
	if err != nil {
		return decimal.Zero, err
	}
	raw := clmm.SqrtPriceX64ToPrice(pool.State.SqrtPriceX64, 0, 0)
	if zeroForOne {
		return raw, nil
	}
	if raw.IsZero() {
		return decimal.Zero, quote.ErrZeroTradingTokens
	}
	return decimal.NewFromInt(1).Div(raw), nil
}

func (pool *CLMMPool) BuildSwapInstructions(
	ctx context.Context,
	reader sol.AccountReader,
	userAddr solana.PublicKey,
	inputMint string,
	amountIn cosmath.Int,
	minOut cosmath.Int,
	userBaseAccount solana.PublicKey,
	userQuoteAccount solana.PublicKey,
) ([]solana.Instruction, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return nil, fmt.Errorf("input mint: %w", err)
	}
	if !amountIn.IsUint64() || !minOut.IsUint64() {
		return nil, fmt.Errorf("%w: %s min %s", quote.ErrInvalidSwapAmount, amountIn, minOut)
	}
	q, err := pool.SwapQuote(ctx, reader, mint, amountIn.Uint64(), uint128.Zero, true, 0)
	if err != nil {
		return nil, err
	}
	input, output := userBaseAccount, userQuoteAccount
	if !q.ZeroForOne {
		input, output = userQuoteAccount, userBaseAccount
	}
	inst, err := pool.SwapInstruction(userAddr, input, output, q.Amount, minOut.Uint64(), q)
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{inst}, nil
}

// ClmmSwapInstruction is swap_v2.
type ClmmSwapInstruction struct {
	bin.BaseVariant
	Program                 solana.PublicKey `bin:"-" borsh_skip:"true"`
	Amount                  uint64
	OtherAmountThreshold    uint64
	SqrtPriceLimitX64       uint128.Uint128
	IsBaseInput             bool
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *ClmmSwapInstruction) ProgramID() solana.PublicKey {
	return inst.Program
}

func (inst *ClmmSwapInstruction) Accounts() (out []*solana.AccountMeta) {
	return inst.AccountMetaSlice
}

func (inst *ClmmSwapInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(inst); err != nil {
		return nil, fmt.Errorf("unable to encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

func (inst *ClmmSwapInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(anchor.Instruction("swap_v2"), false); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.Amount, binary.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.OtherAmountThreshold, binary.LittleEndian); err != nil {
		return err
	}
	// u128 little-endian: low word first
	if err := encoder.WriteUint64(inst.SqrtPriceLimitX64.Lo, binary.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.SqrtPriceLimitX64.Hi, binary.LittleEndian); err != nil {
		return err
	}
	return encoder.WriteBool(inst.IsBaseInput)
}

// SwapInstruction builds swap_v2 for a quote. The tick arrays the quote
// visited and the bitmap extension go in the remaining accounts.
func (pool *CLMMPool) SwapInstruction(user, inputAccount, outputAccount solana.PublicKey, amount, threshold uint64, q clmm.SwapQuote) (*ClmmSwapInstruction, error) {
	s := &pool.Info
	inVault, outVault := s.TokenVault0, s.TokenVault1
	inMint, outMint := s.TokenMint0, s.TokenMint1
	if !q.ZeroForOne {
		inVault, outVault = outVault, inVault
		inMint, outMint = outMint, inMint
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(user, false, true),
		solana.NewAccountMeta(s.AmmConfig, false, false),
		solana.NewAccountMeta(pool.PoolId, true, false),
		solana.NewAccountMeta(inputAccount, true, false),
		solana.NewAccountMeta(outputAccount, true, false),
		solana.NewAccountMeta(inVault, true, false),
		solana.NewAccountMeta(outVault, true, false),
		solana.NewAccountMeta(s.ObservationKey, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(solana.MemoProgramID, false, false),
		solana.NewAccountMeta(inMint, false, false),
		solana.NewAccountMeta(outMint, false, false),
		solana.NewAccountMeta(pool.BitmapExtension, true, false),
	}
	keys, err := pool.tickArrayKeys(q.Result.TickArrays)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		metas = append(metas, solana.NewAccountMeta(key, true, false))
	}

	inst := &ClmmSwapInstruction{
		Program:              pool.ProgramID,
		Amount:               amount,
		OtherAmountThreshold: threshold,
		SqrtPriceLimitX64:    q.SqrtPriceLimitX64,
		IsBaseInput:          q.BaseIn,
		AccountMetaSlice:     metas,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	return inst, nil
}
