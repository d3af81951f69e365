package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yimingwow/rayquote/pkg/config"
	"github.com/yimingwow/rayquote/pkg/sol"
)

// env is what every command runs with.
type env struct {
	cfg    config.Config
	log    *zap.Logger
	client *sol.Client
	out    io.Writer
}

// setup loads configuration and connects the RPC client. The context is
// cancelled on interrupt; done releases it and flushes the logger.
func setup(cmd *cobra.Command) (ctx context.Context, e *env, done func(), err error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.RPCURL == "" {
		return nil, nil, nil, fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	jito := ""
	if cfg.UseJito {
		jito = cfg.JitoURL
	}
	client, err := sol.NewClient(ctx, sol.Options{
		Endpoint:     cfg.RPCURL,
		JitoEndpoint: jito,
		RPS:          cfg.RPS,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	done = func() {
		stop()
		_ = logger.Sync()
	}
	return ctx, &env{cfg: cfg, log: logger, client: client, out: cmd.OutOrStdout()}, done, nil
}

// signer loads the configured keypair. ok is false when none is configured,
// in which case commands only print their quote.
func (e *env) signer() (key solana.PrivateKey, ok bool, err error) {
	if e.cfg.Keypair == "" {
		e.log.Info("no keypair configured, skipping transaction")
		return nil, false, nil
	}
	key, err = sol.LoadKeypair(e.cfg.Keypair)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// submit signs instrs behind the priority fee instructions, then simulates or
// sends the transaction.
func (e *env) submit(ctx context.Context, signer solana.PrivateKey, instrs []solana.Instruction) error {
	all, err := sol.PriorityFeeInstructions(0, e.cfg.ComputeUnitPrice)
	if err != nil {
		return err
	}
	all = append(all, instrs...)
	signers := []solana.PrivateKey{signer}
	tx, err := e.client.SignTransaction(ctx, signers, all...)
	if err != nil {
		return err
	}

	if e.cfg.Simulate {
		res, err := e.client.Simulate(ctx, tx)
		if err != nil {
			return err
		}
		for _, line := range res.Logs {
			e.log.Debug("program log", zap.String("log", line))
		}
		if res.Failed() {
			return fmt.Errorf("simulation failed: %v", res.Err)
		}
		e.log.Info("simulation succeeded", zap.Uint64("units", res.UnitsConsumed))
		return nil
	}

	if e.cfg.UseJito {
		bundle, err := e.client.SendTxWithJito(ctx, e.cfg.JitoTip, signers, tx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(e.out, "bundle\t%s\n", bundle)
		return err
	}
	sig, err := e.client.SendTx(ctx, tx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.out, "signature\thttps://solscan.io/tx/%s\n", sig)
	return err
}

// sourceAccount returns the account need units of mint are paid from. For
// WSOL the signer's SOL is wrapped into its associated account first.
func (e *env) sourceAccount(ctx context.Context, owner, mint, program, override solana.PublicKey, need uint64) (solana.PublicKey, []solana.Instruction, error) {
	if !override.IsZero() {
		return override, nil, nil
	}
	if mint.Equals(sol.WSOL) {
		ata, err := sol.AssociatedTokenAddress(owner, mint, program)
		if err != nil {
			return solana.PublicKey{}, nil, err
		}
		acc, createIx, err := e.client.SelectOrCreateTokenAccount(ctx, owner, mint, program)
		if err != nil {
			return solana.PublicKey{}, nil, err
		}
		if createIx == nil && !acc.Equals(ata) {
			e.log.Warn("wsol held outside the associated account, not wrapping", zap.Stringer("account", acc))
			return acc, nil, nil
		}
		wrap, err := sol.WrapSOLInstructions(owner, need, createIx != nil)
		if err != nil {
			return solana.PublicKey{}, nil, err
		}
		return ata, wrap, nil
	}

	acc, balance, err := e.client.GetUserTokenBalance(ctx, owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("token account of %s for %s: %w", owner, mint, err)
	}
	if balance < need {
		e.log.Warn("balance below amount",
			zap.Stringer("mint", mint), zap.Uint64("balance", balance), zap.Uint64("amount", need))
	}
	return acc, nil, nil
}

// destinationAccount returns the account mint is received into. The
// associated account is created when the owner has none.
func (e *env) destinationAccount(ctx context.Context, owner, mint, program, override solana.PublicKey) (solana.PublicKey, []solana.Instruction, error) {
	if !override.IsZero() {
		return override, nil, nil
	}
	acc, createIx, err := e.client.SelectOrCreateTokenAccount(ctx, owner, mint, program)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if createIx == nil {
		return acc, nil, nil
	}
	return acc, []solana.Instruction{createIx}, nil
}

// unwrapIfSOL closes the signer's WSOL account when mint is WSOL and unwrap
// is requested.
func unwrapIfSOL(owner, mint solana.PublicKey, unwrap bool) ([]solana.Instruction, error) {
	if !unwrap || !mint.Equals(sol.WSOL) {
		return nil, nil
	}
	ix, err := sol.UnwrapSOLInstruction(owner)
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{ix}, nil
}

func pubkeyFlag(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return key, nil
}

// optionalPubkeyFlag returns the zero key when the flag is unset.
func optionalPubkeyFlag(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return solana.PublicKey{}, nil
	}
	return pubkeyFlag(cmd, name)
}

var errNoPrice = errors.New("price not set")

// decimalFlag parses a human price or amount flag.
func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, errNoPrice)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func uiAmount(raw uint64, decimals uint8) string {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals)).String()
}

// report prints aligned key/value rows.
type report struct {
	w *tabwriter.Writer
}

func newReport(w io.Writer) *report {
	return &report{w: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (r *report) row(key string, value any) *report {
	fmt.Fprintf(r.w, "%s\t%v\n", key, value)
	return r
}

func (r *report) flush() error {
	return r.w.Flush()
}
