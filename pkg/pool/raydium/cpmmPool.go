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
	"github.com/yimingwow/rayquote/pkg/quote/cpswap"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
	"github.com/yimingwow/rayquote/pkg/sol"
)

const (
	// CpmmPoolStateSize includes the discriminator.
	CpmmPoolStateSize = 8 + 629
	CpmmAmmConfigSize = 8 + 228

	CpmmToken0MintOffset = 8 + 32*5
	CpmmToken1MintOffset = 8 + 32*6
)

// CpmmPoolState is the CP-Swap PoolState account without its discriminator.
type CpmmPoolState struct {
	AmmConfig          solana.PublicKey
	PoolCreator        solana.PublicKey
	Token0Vault        solana.PublicKey
	Token1Vault        solana.PublicKey
	LpMint             solana.PublicKey
	Token0Mint         solana.PublicKey
	Token1Mint         solana.PublicKey
	Token0Program      solana.PublicKey
	Token1Program      solana.PublicKey
	ObservationKey     solana.PublicKey
	AuthBump           uint8
	Status             uint8
	LpMintDecimals     uint8
	Mint0Decimals      uint8
	Mint1Decimals      uint8
	LpSupply           uint64
	ProtocolFeesToken0 uint64
	ProtocolFeesToken1 uint64
	FundFeesToken0     uint64
	FundFeesToken1     uint64
	OpenTime           uint64
	RecentEpoch        uint64
	CreatorFeeOn       uint8
	EnableCreatorFee   uint8
	Padding1           [6]uint8
	CreatorFeesToken0  uint64
	CreatorFeesToken1  uint64
	Padding            [28]uint64
}

func (s *CpmmPoolState) Decode(data []byte) error {
	body, err := anchor.CheckAccount("PoolState", data)
	if err != nil {
		return err
	}
	if len(data) != CpmmPoolStateSize {
		return fmt.Errorf("cp-swap pool: expected %d bytes, got %d", CpmmPoolStateSize, len(data))
	}
	return bin.NewBinDecoder(body).Decode(s)
}

// CpmmAmmConfig is the CP-Swap AmmConfig account. Rates are in millionths.
type CpmmAmmConfig struct {
	Bump              uint8
	DisableCreatePool bool
	Index             uint16
	TradeFeeRate      uint64
	ProtocolFeeRate   uint64
	FundFeeRate       uint64
	CreatePoolFee     uint64
	ProtocolOwner     solana.PublicKey
	FundOwner         solana.PublicKey
	CreatorFeeRate    uint64
	Padding           [15]uint64
}

func (c *CpmmAmmConfig) Decode(data []byte) error {
	body, err := anchor.CheckAccount("AmmConfig", data)
	if err != nil {
		return err
	}
	return bin.NewBinDecoder(body).Decode(c)
}

// CPMMPool is a Raydium CP-Swap pool.
type CPMMPool struct {
	PoolId    solana.PublicKey
	ProgramID solana.PublicKey
	Info      CpmmPoolState
	Config    CpmmAmmConfig
	Authority solana.PublicKey

	State cpswap.Pool
	Epoch uint64
}

func NewCPMMPool(program, id solana.PublicKey, data []byte) (*CPMMPool, error) {
	p := &CPMMPool{PoolId: id, ProgramID: program}
	if err := p.Info.Decode(data); err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	authority, err := CpSwapAuthority(program)
	if err != nil {
		return nil, err
	}
	p.Authority = authority
	return p, nil
}

func (pool *CPMMPool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameRaydiumCpSwap
}

func (pool *CPMMPool) GetProgramID() solana.PublicKey {
	return pool.ProgramID
}

func (pool *CPMMPool) GetID() string {
	return pool.PoolId.String()
}

func (pool *CPMMPool) GetTokens() (string, string) {
	return pool.Info.Token0Mint.String(), pool.Info.Token1Mint.String()
}

// Load reads the pool, its AmmConfig, both vaults and both mints from one
// snapshot.
func (pool *CPMMPool) Load(ctx context.Context, reader sol.AccountReader) error {
	s := &pool.Info
	snap, err := reader.Snapshot(ctx, pool.PoolId, s.AmmConfig, s.Token0Vault, s.Token1Vault, s.Token0Mint, s.Token1Mint)
	if err != nil {
		return fmt.Errorf("pool %s: %w", pool.PoolId, err)
	}
	acc, err := snap.Get(pool.PoolId)
	if err != nil {
		return err
	}
	if err := s.Decode(acc.Data); err != nil {
		return fmt.Errorf("pool %s: %w", pool.PoolId, err)
	}
	acc, err = snap.Get(s.AmmConfig)
	if err != nil {
		return err
	}
	if err := pool.Config.Decode(acc.Data); err != nil {
		return fmt.Errorf("amm config %s: %w", s.AmmConfig, err)
	}
	vault0, err := vaultAmount(snap, s.Token0Vault)
	if err != nil {
		return err
	}
	vault1, err := vaultAmount(snap, s.Token1Vault)
	if err != nil {
		return err
	}
	mint0, err := snapshotMint(snap, s.Token0Mint)
	if err != nil {
		return err
	}
	mint1, err := snapshotMint(snap, s.Token1Mint)
	if err != nil {
		return err
	}

	pool.State = cpswap.Pool{
		Mint0:         mint0,
		Mint1:         mint1,
		Vault0:        vault0,
		Vault1:        vault1,
		ProtocolFees0: s.ProtocolFeesToken0,
		ProtocolFees1: s.ProtocolFeesToken1,
		FundFees0:     s.FundFeesToken0,
		FundFees1:     s.FundFeesToken1,
		CreatorFees0:  s.CreatorFeesToken0,
		CreatorFees1:  s.CreatorFeesToken1,
		LpSupply:      s.LpSupply,
		Rates: cpswap.FeeRates{
			Trade:    pool.Config.TradeFeeRate,
			Protocol: pool.Config.ProtocolFeeRate,
			Fund:     pool.Config.FundFeeRate,
			Creator:  pool.Config.CreatorFeeRate,
		},
	}
	pool.Epoch = snap.Clock.Epoch
	return nil
}

func snapshotMint(snap *sol.Snapshot, mint solana.PublicKey) (*transferfee.Mint, error) {
	acc, err := snap.Get(mint)
	if err != nil {
		return nil, err
	}
	m, err := transferfee.ParseMint(mint, acc.Owner, acc.Data)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", mint, err)
	}
	return m, nil
}

func (pool *CPMMPool) direction(inputMint solana.PublicKey) (cpswap.Direction, error) {
	switch {
	case inputMint.Equals(pool.Info.Token0Mint):
		return cpswap.ZeroForOne, nil
	case inputMint.Equals(pool.Info.Token1Mint):
		return cpswap.OneForZero, nil
	}
	return 0, fmt.Errorf("%w: %s", quote.ErrMismatchedMint, inputMint)
}

func (pool *CPMMPool) Quote(ctx context.Context, reader sol.AccountReader, inputMint string, inputAmount cosmath.Int) (cosmath.Int, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return cosmath.ZeroInt(), fmt.Errorf("input mint: %w", err)
	}
	if !inputAmount.IsUint64() {
		return cosmath.ZeroInt(), fmt.Errorf("%w: %s", quote.ErrInvalidSwapAmount, inputAmount)
	}
	q, err := pool.SwapQuote(ctx, reader, mint, inputAmount.Uint64(), true, 0)
	if err != nil {
		return cosmath.ZeroInt(), err
	}
	// with zero slippage the threshold is what the user receives
	return cosmath.NewIntFromUint64(q.Threshold), nil
}

// SwapQuote reads a fresh snapshot and quotes a swap at its epoch.
func (pool *CPMMPool) SwapQuote(ctx context.Context, reader sol.AccountReader, inputMint solana.PublicKey, amount uint64, baseIn bool, slippageBps uint64) (cpswap.SwapQuote, error) {
	d, err := pool.direction(inputMint)
	if err != nil {
		return cpswap.SwapQuote{}, err
	}
	if err := pool.Load(ctx, reader); err != nil {
		return cpswap.SwapQuote{}, err
	}
	return cpswap.Swap(&pool.State, pool.Epoch, d, amount, baseIn, slippageBps)
}

// DepositQuote quotes a deposit fixing amount of token 0 or token 1.
func (pool *CPMMPool) DepositQuote(ctx context.Context, reader sol.AccountReader, amount uint64, baseToken0 bool, slippageBps uint64) (cpswap.LiquidityQuote, error) {
	if err := pool.Load(ctx, reader); err != nil {
		return cpswap.LiquidityQuote{}, err
	}
	return cpswap.AddLiquidity(&pool.State, pool.Epoch, amount, baseToken0, slippageBps)
}

// WithdrawQuote quotes burning lpAmount.
func (pool *CPMMPool) WithdrawQuote(ctx context.Context, reader sol.AccountReader, lpAmount, slippageBps uint64) (cpswap.LiquidityQuote, error) {
	if err := pool.Load(ctx, reader); err != nil {
		return cpswap.LiquidityQuote{}, err
	}
	return cpswap.RemoveLiquidity(&pool.State, pool.Epoch, lpAmount, slippageBps)
}

// SpotPrice returns the raw output per input unit at the last loaded
// reserves, before fees.
func (pool *CPMMPool) SpotPrice(inputMint string) (decimal.Decimal, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("input mint: %w", err)
	}
	d, err := pool.direction(mint)
	if err != nil {
		return decimal.Zero, err
	}
	r0, r1, err := pool.State.Reserves()
	if err != nil {
		return decimal.Zero, err
	}
	if d == cpswap.OneForZero {
		r0, r1 = r1, r0
	}
	if r0 == 0 {
		return decimal.Zero, quote.ErrZeroTradingTokens
	}
	return decimal.NewFromUint64(r1).Div(decimal.NewFromUint64(r0)), nil
}

func (pool *CPMMPool) BuildSwapInstructions(
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
	d, err := pool.direction(mint)
	if err != nil {
		return nil, err
	}
	if !amountIn.IsUint64() || !minOut.IsUint64() {
		return nil, fmt.Errorf("%w: %s min %s", quote.ErrInvalidSwapAmount, amountIn, minOut)
	}
	input, output := userBaseAccount, userQuoteAccount
	if d == cpswap.OneForZero {
		input, output = userQuoteAccount, userBaseAccount
	}
	return []solana.Instruction{pool.SwapInstruction(userAddr, input, output, d, amountIn.Uint64(), minOut.Uint64(), true)}, nil
}

// CpSwapInstruction is an Anchor instruction of the CP-Swap program: the
// discriminator followed by u64 arguments.
type CpSwapInstruction struct {
	bin.BaseVariant
	Program                 solana.PublicKey `bin:"-" borsh_skip:"true"`
	Discriminator           []byte           `bin:"-" borsh_skip:"true"`
	Args                    []uint64         `bin:"-" borsh_skip:"true"`
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *CpSwapInstruction) ProgramID() solana.PublicKey {
	return inst.Program
}

func (inst *CpSwapInstruction) Accounts() (out []*solana.AccountMeta) {
	return inst.AccountMetaSlice
}

func (inst *CpSwapInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(inst); err != nil {
		return nil, fmt.Errorf("unable to encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

func (inst *CpSwapInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(inst.Discriminator, false); err != nil {
		return err
	}
	for _, arg := range inst.Args {
		if err := encoder.WriteUint64(arg, binary.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func (pool *CPMMPool) newInstruction(name string, args []uint64, metas solana.AccountMetaSlice) *CpSwapInstruction {
	inst := &CpSwapInstruction{
		Program:          pool.ProgramID,
		Discriminator:    anchor.Instruction(name),
		Args:             args,
		AccountMetaSlice: metas,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	return inst
}

// SwapInstruction builds swap_base_input (amount in, threshold minimum out)
// or swap_base_output (threshold maximum in, amount out).
func (pool *CPMMPool) SwapInstruction(user, inputAccount, outputAccount solana.PublicKey, d cpswap.Direction, amount, threshold uint64, baseIn bool) *CpSwapInstruction {
	s := &pool.Info
	inVault, outVault := s.Token0Vault, s.Token1Vault
	inProgram, outProgram := s.Token0Program, s.Token1Program
	inMint, outMint := s.Token0Mint, s.Token1Mint
	if d == cpswap.OneForZero {
		inVault, outVault = outVault, inVault
		inProgram, outProgram = outProgram, inProgram
		inMint, outMint = outMint, inMint
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(user, false, true),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(s.AmmConfig, false, false),
		solana.NewAccountMeta(pool.PoolId, true, false),
		solana.NewAccountMeta(inputAccount, true, false),
		solana.NewAccountMeta(outputAccount, true, false),
		solana.NewAccountMeta(inVault, true, false),
		solana.NewAccountMeta(outVault, true, false),
		solana.NewAccountMeta(inProgram, false, false),
		solana.NewAccountMeta(outProgram, false, false),
		solana.NewAccountMeta(inMint, false, false),
		solana.NewAccountMeta(outMint, false, false),
		solana.NewAccountMeta(s.ObservationKey, true, false),
	}
	if baseIn {
		return pool.newInstruction("swap_base_input", []uint64{amount, threshold}, metas)
	}
	return pool.newInstruction("swap_base_output", []uint64{threshold, amount}, metas)
}

func (pool *CPMMPool) liquidityMetas(user, userLp, user0, user1 solana.PublicKey) solana.AccountMetaSlice {
	s := &pool.Info
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(user, false, true),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(pool.PoolId, true, false),
		solana.NewAccountMeta(userLp, true, false),
		solana.NewAccountMeta(user0, true, false),
		solana.NewAccountMeta(user1, true, false),
		solana.NewAccountMeta(s.Token0Vault, true, false),
		solana.NewAccountMeta(s.Token1Vault, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(s.Token0Mint, false, false),
		solana.NewAccountMeta(s.Token1Mint, false, false),
		solana.NewAccountMeta(s.LpMint, true, false),
	}
}

// DepositInstruction mints q.LpAmount for at most q.Amount0 and q.Amount1.
func (pool *CPMMPool) DepositInstruction(user, userLp, user0, user1 solana.PublicKey, q cpswap.LiquidityQuote) *CpSwapInstruction {
	return pool.newInstruction("deposit", []uint64{q.LpAmount, q.Amount0, q.Amount1}, pool.liquidityMetas(user, userLp, user0, user1))
}

// WithdrawInstruction burns q.LpAmount for at least q.Amount0 and q.Amount1.
func (pool *CPMMPool) WithdrawInstruction(user, userLp, user0, user1 solana.PublicKey, q cpswap.LiquidityQuote) *CpSwapInstruction {
	metas := append(pool.liquidityMetas(user, userLp, user0, user1), solana.NewAccountMeta(solana.MemoProgramID, false, false))
	return pool.newInstruction("withdraw", []uint64{q.LpAmount, q.Amount0, q.Amount1}, metas)
}
