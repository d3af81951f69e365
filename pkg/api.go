package pkg

import (
	"context"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/yimingwow/rayquote/pkg/sol"
)

// ProtocolName represents the string name of AMM protocol
type ProtocolName string

const (
	ProtocolNameRaydiumAmm    ProtocolName = "raydium_amm"
	ProtocolNameRaydiumClmm   ProtocolName = "raydium_clmm"
	ProtocolNameRaydiumCpSwap ProtocolName = "raydium_cpswap"
)

// Pool quotes and builds swaps against one on-chain pool. Every Quote reads a
// fresh account snapshot through reader; BuildSwapInstructions uses the state
// of the last Quote.
type Pool interface {
	ProtocolName() ProtocolName
	GetProgramID() solana.PublicKey
	GetID() string
	GetTokens() (baseMint, quoteMint string)
	Quote(ctx context.Context, reader sol.AccountReader, inputMint string, inputAmount math.Int) (math.Int, error)
	// SpotPrice is the marginal output per unit of input, in raw token units,
	// at the state of the last Quote.
	SpotPrice(inputMint string) (decimal.Decimal, error)
	BuildSwapInstructions(
		ctx context.Context,
		reader sol.AccountReader,
		user solana.PublicKey,
		inputMint string,
		inputAmount math.Int,
		minOut math.Int,
		userBaseAccount solana.PublicKey,
		userQuoteAccount solana.PublicKey,
	) ([]solana.Instruction, error)
}

type Protocol interface {
	ProtocolName() ProtocolName
	FetchPoolsByPair(ctx context.Context, baseMint, quoteMint string) ([]Pool, error)
	FetchPoolByID(ctx context.Context, poolID string) (Pool, error)
}
