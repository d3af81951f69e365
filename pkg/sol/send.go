package sol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// SimulationResult is the outcome of a simulated transaction.
type SimulationResult struct {
	Err           any
	Logs          []string
	UnitsConsumed uint64
}

func (r *SimulationResult) Failed() bool {
	return r.Err != nil
}

// Simulate runs tx against the current bank without submitting it.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	res, err := c.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if res.Value == nil {
		return nil, errors.New("empty simulation result")
	}
	out := &SimulationResult{Err: res.Value.Err, Logs: res.Value.Logs}
	if res.Value.UnitsConsumed != nil {
		out.UnitsConsumed = *res.Value.UnitsConsumed
	}
	return out, nil
}

// SendTx submits tx, retrying transport failures with backoff.
func (c *Client) SendTx(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := retry(ctx, c, "sendTransaction", func() (solana.Signature, error) {
		return c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentProcessed,
		})
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.log.Info("transaction sent", zap.Stringer("signature", sig))
	return sig, nil
}

// SendTxWithJito submits mainTx in a bundle followed by a tip transfer signed
// by signers[0], then polls the bundle status.
func (c *Client) SendTxWithJito(ctx context.Context, jitoTipAmount uint64, signers []solana.PrivateKey, mainTx *solana.Transaction) (string, error) {
	if c.jitoClient == nil {
		return "", errors.New("jito client not configured")
	}
	if len(signers) == 0 {
		return "", errors.New("a signer is required for the tip transaction")
	}
	res, err := c.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get blockhash: %w", err)
	}
	tipTx, err := createTipTransaction(signers[0], jitoTipAmount, res.Value.Blockhash, c.jitoClient.tipAccount)
	if err != nil {
		return "", err
	}

	encodedMain, err := encodeTransaction(mainTx)
	if err != nil {
		return "", err
	}
	encodedTip, err := encodeTransaction(tipTx)
	if err != nil {
		return "", err
	}
	bundleID, err := retry(ctx, c, "sendBundle", func() (string, error) {
		raw, err := c.jitoClient.rpcClient.SendBundle([][]string{{encodedMain, encodedTip}})
		if err != nil {
			return "", err
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", backoff.Permanent(fmt.Errorf("failed to unmarshal bundle ID: %w", err))
		}
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to send bundle: %w", err)
	}

	c.log.Info("bundle sent", zap.String("bundle", bundleID))
	if err := c.jitoClient.CheckBundleStatus(ctx, bundleID); err != nil {
		return bundleID, err
	}
	return bundleID, nil
}
