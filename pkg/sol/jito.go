package sol

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	"go.uber.org/zap"
)

const (
	bundlePollAttempts = 5
	bundlePollInterval = 5 * time.Second
)

type JitoClient struct {
	rpcClient  *jitorpc.JitoJsonRpcClient
	tipAccount solana.PublicKey
	log        *zap.Logger
}

// Jito endpoint refer to: https://docs.jito.wtf/lowlatencytxnsend/
func NewJitoClient(ctx context.Context, endpoint string, log *zap.Logger) (*JitoClient, error) {
	rpcClient := jitorpc.NewJitoJsonRpcClient(endpoint, "")
	tipAccount, err := rpcClient.GetRandomTipAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to get random tip account: %w", err)
	}
	tipAccountPublicKey, err := solana.PublicKeyFromBase58(tipAccount.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid tip account %q: %w", tipAccount.Address, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &JitoClient{
		rpcClient:  rpcClient,
		tipAccount: tipAccountPublicKey,
		log:        log,
	}, nil
}

func createTipTransaction(privateKey solana.PrivateKey, amount uint64, recentBlockhash solana.Hash, tipAccount solana.PublicKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(
				amount,
				privateKey.PublicKey(),
				tipAccount,
			).Build(),
		},
		recentBlockhash,
		solana.TransactionPayer(privateKey.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tip transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if privateKey.PublicKey().Equals(key) {
			return &privateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign tip transaction: %w", err)
	}
	return tx, nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	serializedTx, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(serializedTx), nil
}

// CheckBundleStatus polls until the bundle is finalized or the attempts run
// out.
func (c *JitoClient) CheckBundleStatus(ctx context.Context, bundleID string) error {
	ticker := time.NewTicker(bundlePollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= bundlePollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		statusResponse, err := c.rpcClient.GetBundleStatuses([]string{bundleID})
		if err != nil {
			c.log.Warn("bundle status", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if len(statusResponse.Value) == 0 {
			c.log.Debug("bundle status not available", zap.Int("attempt", attempt))
			continue
		}

		status := statusResponse.Value[0]
		c.log.Info("bundle status", zap.Int("attempt", attempt), zap.String("status", status.ConfirmationStatus))
		switch status.ConfirmationStatus {
		case "processed", "confirmed":
		case "finalized":
			if status.Err.Ok != nil {
				return fmt.Errorf("bundle %s failed: %v", bundleID, status.Err.Ok)
			}
			for _, txID := range status.Transactions {
				c.log.Info("bundle transaction", zap.String("url", "https://solscan.io/tx/"+txID))
			}
			return nil
		default:
			return fmt.Errorf("bundle %s has unexpected status %q", bundleID, status.ConfirmationStatus)
		}
	}
	return errors.New("bundle status unknown after polling")
}
