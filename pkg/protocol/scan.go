package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/yimingwow/rayquote/pkg/anchor"
	"golang.org/x/sync/errgroup"
)

// AccountSource is the part of *sol.Client that pool discovery uses.
type AccountSource interface {
	GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Keyed pairs a decoded account with its address.
type Keyed[T any] struct {
	Address solana.PublicKey
	Value   T
}

// pairLayout locates the two mints of a pool account.
type pairLayout struct {
	size    uint64
	offset0 uint64
	offset1 uint64
}

func parseMint(mint string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}
	return key, nil
}

// scanPair returns the pool accounts holding mintA and mintB in either order.
// Both orders are queried concurrently.
func scanPair(ctx context.Context, src AccountSource, program solana.PublicKey, layout pairLayout, mintA, mintB string) (rpc.GetProgramAccountsResult, error) {
	a, err := parseMint(mintA)
	if err != nil {
		return nil, err
	}
	b, err := parseMint(mintB)
	if err != nil {
		return nil, err
	}

	orders := [][2]solana.PublicKey{{a, b}, {b, a}}
	if a.Equals(b) {
		orders = orders[:1]
	}
	results := make([]rpc.GetProgramAccountsResult, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range orders {
		g.Go(func() error {
			res, err := src.GetProgramAccountsWithOpts(gctx, program, &rpc.GetProgramAccountsOpts{
				Filters: []rpc.RPCFilter{
					{DataSize: layout.size},
					{Memcmp: &rpc.RPCFilterMemcmp{Offset: layout.offset0, Bytes: pair[0].Bytes()}},
					{Memcmp: &rpc.RPCFilterMemcmp{Offset: layout.offset1, Bytes: pair[1].Bytes()}},
				},
			})
			if err != nil {
				return fmt.Errorf("failed to scan %s for %s/%s: %w", program, pair[0], pair[1], err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[solana.PublicKey]struct{})
	var out rpc.GetProgramAccountsResult
	for _, res := range results {
		for _, acc := range res {
			if acc == nil || acc.Account == nil || acc.Account.Data == nil {
				continue
			}
			if _, ok := seen[acc.Pubkey]; ok {
				continue
			}
			seen[acc.Pubkey] = struct{}{}
			out = append(out, acc)
		}
	}
	return out, nil
}

// scanAnchorAccounts returns every account of program with the given size
// whose data starts with the discriminator of account type name.
func scanAnchorAccounts(ctx context.Context, src AccountSource, program solana.PublicKey, name string, size uint64) (rpc.GetProgramAccountsResult, error) {
	res, err := src.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Filters: []rpc.RPCFilter{
			{DataSize: size},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: anchor.Account(name)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s accounts of %s: %w", name, program, err)
	}
	return res, nil
}

// fetchAccount reads the data of one account owned by program.
func fetchAccount(ctx context.Context, src AccountSource, program solana.PublicKey, id string) (solana.PublicKey, []byte, error) {
	key, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("invalid account ID %q: %w", id, err)
	}
	res, err := src.GetAccountInfoWithOpts(ctx, key)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("failed to get account %s: %w", key, err)
	}
	if res == nil || res.Value == nil {
		return solana.PublicKey{}, nil, fmt.Errorf("account %s: %w", key, rpc.ErrNotFound)
	}
	if !res.Value.Owner.Equals(program) {
		return solana.PublicKey{}, nil, fmt.Errorf("account %s is owned by %s, not %s", key, res.Value.Owner, program)
	}
	return key, res.GetBinary(), nil
}
