package sol

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// GetUserTokenBalance returns the first token account of userAddr for
// tokenMint and its raw balance.
func (c *Client) GetUserTokenBalance(ctx context.Context, userAddr solana.PublicKey, tokenMint solana.PublicKey) (solana.PublicKey, uint64, error) {
	acc, err := c.GetTokenAccountsByOwner(ctx, userAddr,
		&rpc.GetTokenAccountsConfig{Mint: tokenMint.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: "jsonParsed"},
	)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	if len(acc.Value) == 0 {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: no %s token account for %s", ErrAccountNotFound, tokenMint, userAddr)
	}

	balance, err := c.GetTokenAccountBalance(ctx, acc.Value[0].Pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to get token account balance: %w", err)
	}
	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to parse token amount: %w", err)
	}
	return acc.Value[0].Pubkey, amount, nil
}
