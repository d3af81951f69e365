package sol

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// limited waits for the rate limiter before issuing call.
func limited[T any](ctx context.Context, c *Client, call func() (T, error)) (T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return call()
}

func (c *Client) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return limited(ctx, c, func() (*rpc.GetAccountInfoResult, error) {
		return c.rpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{Commitment: rpc.CommitmentProcessed})
	})
}

func (c *Client) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	return limited(ctx, c, func() (*rpc.GetMultipleAccountsResult, error) {
		return c.rpcClient.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{Commitment: rpc.CommitmentProcessed})
	})
}

// GetProgramAccountsWithOpts is retried with backoff; scans are the slowest
// calls a quote makes.
func (c *Client) GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	return retry(ctx, c, "getProgramAccounts", func() (rpc.GetProgramAccountsResult, error) {
		return limited(ctx, c, func() (rpc.GetProgramAccountsResult, error) {
			return c.rpcClient.GetProgramAccountsWithOpts(ctx, programID, opts)
		})
	})
}

func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, config *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	return limited(ctx, c, func() (*rpc.GetTokenAccountsResult, error) {
		return c.rpcClient.GetTokenAccountsByOwner(ctx, owner, config, opts)
	})
}

func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return limited(ctx, c, func() (*rpc.GetTokenAccountBalanceResult, error) {
		return c.rpcClient.GetTokenAccountBalance(ctx, account, commitment)
	})
}

func (c *Client) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return limited(ctx, c, func() (*rpc.GetLatestBlockhashResult, error) {
		return c.rpcClient.GetLatestBlockhash(ctx, commitment)
	})
}

func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResponse, error) {
	return limited(ctx, c, func() (*rpc.SimulateTransactionResponse, error) {
		return c.rpcClient.SimulateTransaction(ctx, tx)
	})
}

func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return limited(ctx, c, func() (solana.Signature, error) {
		return c.rpcClient.SendTransactionWithOpts(ctx, tx, opts)
	})
}
