// Package cmd is the rayquote command line: quotes for Raydium AMM v4,
// CP-Swap and CLMM pools, with optional signing and submission.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yimingwow/rayquote/pkg/config"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rayquote",
		Short:        "Quote and build Raydium AMM, CP-Swap and CLMM transactions",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "https://api.mainnet-beta.solana.com", "Solana RPC URL")
	flags.String("jito-rpc", "", "Jito block engine URL")
	flags.Int("rps", 10, "RPC requests per second")
	flags.String("keypair", "", "signer keypair file or base58 secret")
	flags.Uint64("slippage-bps", 100, "slippage tolerance in basis points")
	flags.Bool("simulate", true, "simulate instead of sending")
	flags.Bool("use-jito", false, "send through a Jito bundle")
	flags.Uint64("jito-tip", 1_000_000, "Jito tip in lamports")
	flags.Uint64("compute-unit-price", 0, "priority fee in micro-lamports per compute unit")
	flags.Uint("max-retries", 5, "maximum RPC retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("amm-program", config.MainnetAmm, "AMM v4 program ID")
	flags.String("clmm-program", config.MainnetClmm, "CLMM program ID")
	flags.String("cpswap-program", config.MainnetCpSwap, "CP-Swap program ID")
	flags.String("openbook-program", config.MainnetOpenBook, "OpenBook program ID")

	root.AddCommand(
		newAmmCmd(),
		newCpSwapCmd(),
		newClmmCmd(),
		newRouteCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
