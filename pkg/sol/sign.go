package sol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
)

// LoadKeypair reads a private key from a solana-keygen JSON file, or decodes
// it as a base58 secret when no such file exists.
func LoadKeypair(pathOrSecret string) (solana.PrivateKey, error) {
	pathOrSecret = strings.TrimSpace(pathOrSecret)
	if pathOrSecret == "" {
		return nil, errors.New("keypair not configured")
	}
	if _, err := os.Stat(pathOrSecret); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(pathOrSecret)
		if err != nil {
			return nil, fmt.Errorf("read keypair file: %w", err)
		}
		return key, nil
	}
	raw, err := base58.Decode(pathOrSecret)
	if err != nil {
		return nil, fmt.Errorf("keypair is neither a file nor base58: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("base58 keypair has %d bytes, want 64", len(raw))
	}
	key := solana.PrivateKey(raw)
	if _, err := solana.ValidatePrivateKey(key); err != nil {
		return nil, fmt.Errorf("invalid keypair: %w", err)
	}
	return key, nil
}

func (c *Client) SignTransaction(ctx context.Context, signers []solana.PrivateKey, instrs ...solana.Instruction) (*solana.Transaction, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("at least one signer is required")
	}

	res, err := c.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instrs,
		res.Value.Blockhash,
		solana.TransactionPayer(signers[0].PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(
		func(key solana.PublicKey) *solana.PrivateKey {
			for i := range signers {
				if signers[i].PublicKey().Equals(key) {
					return &signers[i]
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}
