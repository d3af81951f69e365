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
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/quote/amm"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
	"github.com/yimingwow/rayquote/pkg/sol"
	"lukechampine.com/uint128"
)

const (
	AmmInfoSize      = 752
	TargetOrdersSize = 2208

	// Offsets of the vault mints inside AmmInfo, used by pool discovery.
	AmmCoinMintOffset = 400
	AmmPcMintOffset   = 432
)

// AmmFees is the fee block of AmmInfo.
type AmmFees struct {
	MinSeparateNumerator   uint64
	MinSeparateDenominator uint64
	TradeFeeNumerator      uint64
	TradeFeeDenominator    uint64
	PnlNumerator           uint64
	PnlDenominator         uint64
	SwapFeeNumerator       uint64
	SwapFeeDenominator     uint64
}

// AmmStateData tracks PnL owed to the protocol and cumulative swap volume.
type AmmStateData struct {
	NeedTakePnlCoin     uint64
	NeedTakePnlPc       uint64
	TotalPnlPc          uint64
	TotalPnlCoin        uint64
	PoolOpenTime        uint64
	PunishPcAmount      uint64
	PunishCoinAmount    uint64
	OrderbookToInitTime uint64
	SwapCoinInAmount    uint128.Uint128
	SwapPcOutAmount     uint128.Uint128
	SwapAccPcFee        uint64
	SwapPcInAmount      uint128.Uint128
	SwapCoinOutAmount   uint128.Uint128
	SwapAccCoinFee      uint64
}

// AmmInfo is the AMM v4 pool account. Coin is the base token, pc the quote.
type AmmInfo struct {
	Status             uint64
	Nonce              uint64
	OrderNum           uint64
	Depth              uint64
	CoinDecimals       uint64
	PcDecimals         uint64
	State              uint64
	ResetFlag          uint64
	MinSize            uint64
	VolMaxCutRatio     uint64
	AmountWave         uint64
	CoinLotSize        uint64
	PcLotSize          uint64
	MinPriceMultiplier uint64
	MaxPriceMultiplier uint64
	SysDecimalValue    uint64
	Fees               AmmFees
	StateData          AmmStateData
	CoinVault          solana.PublicKey
	PcVault            solana.PublicKey
	CoinMint           solana.PublicKey
	PcMint             solana.PublicKey
	LpMint             solana.PublicKey
	OpenOrders         solana.PublicKey
	Market             solana.PublicKey
	MarketProgram      solana.PublicKey
	TargetOrders       solana.PublicKey
	Padding1           [8]uint64
	AmmOwner           solana.PublicKey
	LpAmount           uint64
	ClientOrderID      uint64
	RecentEpoch        uint64
	Padding2           uint64
}

func (l *AmmInfo) Decode(data []byte) error {
	if len(data) != AmmInfoSize {
		return fmt.Errorf("amm info: expected %d bytes, got %d", AmmInfoSize, len(data))
	}
	return bin.NewBinDecoder(data).Decode(l)
}

type TargetOrder struct {
	Price uint64
	Vol   uint64
}

// TargetOrders holds the leading part of the AMM target orders account, up
// to the PnL snapshot that deposits and withdrawals read.
type TargetOrders struct {
	Owner     [4]uint64
	BuyOrders [50]TargetOrder
	Padding1  [8]uint64
	TargetX   uint128.Uint128
	TargetY   uint128.Uint128
	PlanXBuy  uint128.Uint128
	PlanYBuy  uint128.Uint128
	PlanXSell uint128.Uint128
	PlanYSell uint128.Uint128
	PlacedX   uint128.Uint128
	PlacedY   uint128.Uint128
	CalcPnlX  uint128.Uint128
	CalcPnlY  uint128.Uint128
}

func (t *TargetOrders) Decode(data []byte) error {
	if len(data) != TargetOrdersSize {
		return fmt.Errorf("target orders: expected %d bytes, got %d", TargetOrdersSize, len(data))
	}
	return bin.NewBinDecoder(data).Decode(t)
}

// AMMPool is a Raydium AMM v4 pool. State holds the quoting view of the last
// snapshot read by Load.
type AMMPool struct {
	PoolId    solana.PublicKey
	ProgramID solana.PublicKey
	Info      AmmInfo
	Authority solana.PublicKey

	State amm.Pool
	Epoch uint64
}

// NewAMMPool decodes pool account data and derives the pool authority.
func NewAMMPool(program, id solana.PublicKey, data []byte) (*AMMPool, error) {
	p := &AMMPool{PoolId: id, ProgramID: program}
	if err := p.Info.Decode(data); err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	authority, err := AmmAuthority(program, p.Info.Nonce)
	if err != nil {
		return nil, err
	}
	p.Authority = authority
	return p, nil
}

func (pool *AMMPool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameRaydiumAmm
}

func (pool *AMMPool) GetProgramID() solana.PublicKey {
	return pool.ProgramID
}

func (p *AMMPool) GetID() string {
	return p.PoolId.String()
}

// GetTokens returns the coin and pc mints.
func (p *AMMPool) GetTokens() (baseMint, quoteMint string) {
	return p.Info.CoinMint.String(), p.Info.PcMint.String()
}

// Load reads the pool, its target orders and both vaults in one snapshot and
// refreshes State from them.
func (p *AMMPool) Load(ctx context.Context, reader sol.AccountReader) error {
	snap, err := reader.Snapshot(ctx, p.PoolId, p.Info.TargetOrders, p.Info.CoinVault, p.Info.PcVault)
	if err != nil {
		return fmt.Errorf("pool %s: %w", p.PoolId, err)
	}
	poolAcc, err := snap.Get(p.PoolId)
	if err != nil {
		return err
	}
	if err := p.Info.Decode(poolAcc.Data); err != nil {
		return fmt.Errorf("pool %s: %w", p.PoolId, err)
	}
	targetAcc, err := snap.Get(p.Info.TargetOrders)
	if err != nil {
		return err
	}
	var target TargetOrders
	if err := target.Decode(targetAcc.Data); err != nil {
		return fmt.Errorf("pool %s: %w", p.PoolId, err)
	}
	coin, err := vaultAmount(snap, p.Info.CoinVault)
	if err != nil {
		return err
	}
	pc, err := vaultAmount(snap, p.Info.PcVault)
	if err != nil {
		return err
	}

	info := &p.Info
	p.State = amm.Pool{
		Status:          amm.Status(info.Status),
		PcVault:         pc,
		CoinVault:       coin,
		NeedTakePnlPc:   info.StateData.NeedTakePnlPc,
		NeedTakePnlCoin: info.StateData.NeedTakePnlCoin,
		LpAmount:        info.LpAmount,
		SwapFee:         amm.FeeRate{Numerator: info.Fees.SwapFeeNumerator, Denominator: info.Fees.SwapFeeDenominator},
		Pnl: amm.PnlState{
			SysDecimalValue: info.SysDecimalValue,
			PcDecimals:      info.PcDecimals,
			CoinDecimals:    info.CoinDecimals,
			PnlNumerator:    info.Fees.PnlNumerator,
			PnlDenominator:  info.Fees.PnlDenominator,
			CalcPnlX:        target.CalcPnlX,
			CalcPnlY:        target.CalcPnlY,
		},
	}
	p.Epoch = snap.Clock.Epoch
	return nil
}

func vaultAmount(snap *sol.Snapshot, vault solana.PublicKey) (uint64, error) {
	acc, err := snap.Get(vault)
	if err != nil {
		return 0, err
	}
	ta, err := transferfee.ParseTokenAccount(acc.Data)
	if err != nil {
		return 0, fmt.Errorf("vault %s: %w", vault, err)
	}
	return ta.Amount, nil
}

// Direction resolves the swap direction of inputMint.
func (p *AMMPool) Direction(inputMint solana.PublicKey) (amm.Direction, error) {
	switch {
	case inputMint.Equals(p.Info.CoinMint):
		return amm.CoinToPc, nil
	case inputMint.Equals(p.Info.PcMint):
		return amm.PcToCoin, nil
	}
	return 0, fmt.Errorf("%w: %s", quote.ErrMismatchedMint, inputMint)
}

// Quote returns the exact-input output for inputAmount of inputMint.
func (p *AMMPool) Quote(
	ctx context.Context,
	reader sol.AccountReader,
	inputMint string,
	inputAmount cosmath.Int,
) (cosmath.Int, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return cosmath.ZeroInt(), fmt.Errorf("input mint: %w", err)
	}
	if !inputAmount.IsUint64() {
		return cosmath.ZeroInt(), fmt.Errorf("%w: %s", quote.ErrInvalidSwapAmount, inputAmount)
	}
	q, err := p.SwapQuote(ctx, reader, mint, inputAmount.Uint64(), true, 0)
	if err != nil {
		return cosmath.ZeroInt(), err
	}
	return cosmath.NewIntFromUint64(q.Other), nil
}

// SwapQuote reads a fresh snapshot and quotes a swap with slippage.
func (p *AMMPool) SwapQuote(ctx context.Context, reader sol.AccountReader, inputMint solana.PublicKey, amount uint64, baseIn bool, slippageBps uint64) (amm.SwapQuote, error) {
	d, err := p.Direction(inputMint)
	if err != nil {
		return amm.SwapQuote{}, err
	}
	if err := p.Load(ctx, reader); err != nil {
		return amm.SwapQuote{}, err
	}
	r, err := p.State.SwapReserves()
	if err != nil {
		return amm.SwapQuote{}, fmt.Errorf("pool %s: %w", p.PoolId, err)
	}
	return amm.SwapWithSlippage(r, p.State.SwapFee, d, amount, baseIn, slippageBps)
}

// DepositQuote reads a fresh snapshot and quotes a deposit fixing amount on side.
func (p *AMMPool) DepositQuote(ctx context.Context, reader sol.AccountReader, amount uint64, side amm.Side, withMinOther bool, slippageBps uint64) (amm.DepositQuote, error) {
	if err := p.Load(ctx, reader); err != nil {
		return amm.DepositQuote{}, err
	}
	r, err := p.State.LiquidityReserves()
	if err != nil {
		return amm.DepositQuote{}, fmt.Errorf("pool %s: %w", p.PoolId, err)
	}
	return amm.DepositWithSlippage(r, amount, side, withMinOther, slippageBps)
}

// WithdrawQuote reads a fresh snapshot and quotes burning lpAmount.
func (p *AMMPool) WithdrawQuote(ctx context.Context, reader sol.AccountReader, lpAmount, slippageBps uint64) (amm.WithdrawQuote, error) {
	if err := p.Load(ctx, reader); err != nil {
		return amm.WithdrawQuote{}, err
	}
	r, err := p.State.LiquidityReserves()
	if err != nil {
		return amm.WithdrawQuote{}, fmt.Errorf("pool %s: %w", p.PoolId, err)
	}
	return amm.WithdrawWithSlippage(r, p.State.LpAmount, lpAmount, slippageBps)
}

// SpotPrice returns the output per input unit at the last loaded reserves.
func (p *AMMPool) SpotPrice(inputMint string) (decimal.Decimal, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("input mint: %w", err)
	}
	d, err := p.Direction(mint)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := p.State.SwapReserves()
	if err != nil {
		return decimal.Zero, err
	}
	in, out := r.Coin, r.Pc
	if d == amm.PcToCoin {
		in, out = r.Pc, r.Coin
	}
	if in == 0 {
		return decimal.Zero, quote.ErrZeroTradingTokens
	}
	return decimal.NewFromUint64(out).Div(decimal.NewFromUint64(in)), nil
}

// BuildSwapInstructions builds an exact-input swap from the user's account of
// inputMint into the other side.
func (pool *AMMPool) BuildSwapInstructions(
	ctx context.Context,
	reader sol.AccountReader,
	user solana.PublicKey,
	inputMint string,
	inputAmount cosmath.Int,
	minOut cosmath.Int,
	userBaseAccount solana.PublicKey,
	userQuoteAccount solana.PublicKey,
) ([]solana.Instruction, error) {
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return nil, fmt.Errorf("input mint: %w", err)
	}
	d, err := pool.Direction(mint)
	if err != nil {
		return nil, err
	}
	if !inputAmount.IsUint64() || !minOut.IsUint64() {
		return nil, fmt.Errorf("%w: %s min %s", quote.ErrInvalidSwapAmount, inputAmount, minOut)
	}
	from, to := userBaseAccount, userQuoteAccount
	if d == amm.PcToCoin {
		from, to = userQuoteAccount, userBaseAccount
	}
	return []solana.Instruction{pool.SwapInstruction(user, from, to, inputAmount.Uint64(), minOut.Uint64(), true)}, nil
}

const (
	ammTagDeposit     = 3
	ammTagWithdraw    = 4
	ammTagSwapBaseIn  = 9
	ammTagSwapBaseOut = 11
)

// AmmInstruction is an AMM v4 instruction: a one-byte tag followed by u64
// arguments.
type AmmInstruction struct {
	bin.BaseVariant
	Program                 solana.PublicKey `bin:"-" borsh_skip:"true"`
	Tag                     uint8
	Args                    []uint64
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *AmmInstruction) ProgramID() solana.PublicKey {
	return inst.Program
}

func (inst *AmmInstruction) Accounts() (out []*solana.AccountMeta) {
	return inst.AccountMetaSlice
}

func (inst *AmmInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(inst); err != nil {
		return nil, fmt.Errorf("unable to encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

func (inst *AmmInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint8(inst.Tag); err != nil {
		return err
	}
	for _, arg := range inst.Args {
		if err := encoder.WriteUint64(arg, binary.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func (pool *AMMPool) newInstruction(tag uint8, args []uint64, metas solana.AccountMetaSlice) *AmmInstruction {
	inst := &AmmInstruction{
		Program:          pool.ProgramID,
		Tag:              tag,
		Args:             args,
		AccountMetaSlice: metas,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	return inst
}

// SwapInstruction builds SwapBaseIn or SwapBaseOut. For base-in amount is the
// input and threshold the minimum output; for base-out amount is the output
// and threshold the maximum input.
func (pool *AMMPool) SwapInstruction(user, source, destination solana.PublicKey, amount, threshold uint64, baseIn bool) *AmmInstruction {
	info := &pool.Info
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(pool.PoolId, true, false),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.CoinVault, true, false),
		solana.NewAccountMeta(info.PcVault, true, false),
		// OpenBook program, market, bids, asks, event queue, coin and pc
		// vaults and vault signer. Pools without an orderbook ignore them.
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(user, false, true),
	}
	if baseIn {
		return pool.newInstruction(ammTagSwapBaseIn, []uint64{amount, threshold}, metas)
	}
	return pool.newInstruction(ammTagSwapBaseOut, []uint64{threshold, amount}, metas)
}

// DepositInstruction builds a Deposit from a DepositQuote.
func (pool *AMMPool) DepositInstruction(user, userCoin, userPc, userLp solana.PublicKey, q amm.DepositQuote, side amm.Side) *AmmInstruction {
	info := &pool.Info
	args := []uint64{q.MaxCoin, q.MaxPc, uint64(side)}
	if q.MinOther != nil {
		args = append(args, *q.MinOther)
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(pool.PoolId, true, false),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(info.OpenOrders, false, false),
		solana.NewAccountMeta(info.TargetOrders, true, false),
		solana.NewAccountMeta(info.LpMint, true, false),
		solana.NewAccountMeta(info.CoinVault, true, false),
		solana.NewAccountMeta(info.PcVault, true, false),
		// market
		solana.NewAccountMeta(info.OpenOrders, false, false),
		solana.NewAccountMeta(userCoin, true, false),
		solana.NewAccountMeta(userPc, true, false),
		solana.NewAccountMeta(userLp, true, false),
		solana.NewAccountMeta(user, false, true),
		// market event queue
		solana.NewAccountMeta(info.OpenOrders, false, false),
	}
	return pool.newInstruction(ammTagDeposit, args, metas)
}

// WithdrawInstruction builds a Withdraw of lpAmount with the quoted minimums.
func (pool *AMMPool) WithdrawInstruction(user, userLp, userCoin, userPc solana.PublicKey, lpAmount uint64, q amm.WithdrawQuote) *AmmInstruction {
	info := &pool.Info
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(pool.PoolId, true, false),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.TargetOrders, true, false),
		solana.NewAccountMeta(info.LpMint, true, false),
		solana.NewAccountMeta(info.CoinVault, true, false),
		solana.NewAccountMeta(info.PcVault, true, false),
		// OpenBook program, market, coin and pc vaults, vault signer
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(pool.Authority, false, false),
		solana.NewAccountMeta(userLp, true, false),
		solana.NewAccountMeta(userCoin, true, false),
		solana.NewAccountMeta(userPc, true, false),
		solana.NewAccountMeta(user, false, true),
		// event queue, bids, asks
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
		solana.NewAccountMeta(info.OpenOrders, true, false),
	}
	return pool.newInstruction(ammTagWithdraw, []uint64{lpAmount, q.MinCoin, q.MinPc}, metas)
}
