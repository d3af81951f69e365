package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/yimingwow/rayquote/pkg"
	"github.com/yimingwow/rayquote/pkg/sol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoRoute = errors.New("no route found")

type SimpleRouter struct {
	Protocols []pkg.Protocol
	Pools     []pkg.Pool
	log       *zap.Logger
}

func NewSimpleRouter(log *zap.Logger, protocols ...pkg.Protocol) *SimpleRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &SimpleRouter{
		Protocols: protocols,
		Pools:     []pkg.Pool{},
		log:       log,
	}
}

// QueryAllPools replaces Pools with the pools of every protocol trading the
// pair. A protocol that fails is logged and skipped.
func (r *SimpleRouter) QueryAllPools(ctx context.Context, baseMint, quoteMint string) error {
	found := make([][]pkg.Pool, len(r.Protocols))
	var g errgroup.Group
	for i, proto := range r.Protocols {
		g.Go(func() error {
			r.log.Debug("fetching pools", zap.String("protocol", string(proto.ProtocolName())))
			pools, err := proto.FetchPoolsByPair(ctx, baseMint, quoteMint)
			if err != nil {
				r.log.Warn("error fetching pools from protocol",
					zap.String("protocol", string(proto.ProtocolName())), zap.Error(err))
				return nil
			}
			found[i] = pools
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	var allPools []pkg.Pool
	for _, pools := range found {
		allPools = append(allPools, pools...)
	}
	r.Pools = allPools
	r.log.Info("pools found", zap.Int("count", len(allPools)))
	return nil
}

// Route is the best quote across the router's pools.
type Route struct {
	Pool      pkg.Pool
	AmountIn  math.Int
	AmountOut math.Int
	// SpotPrice is the pool's marginal output per input unit before the swap.
	SpotPrice decimal.Decimal
	// PriceImpact is 1 - executed price / spot price.
	PriceImpact decimal.Decimal
}

type quoteResult struct {
	pool      pkg.Pool
	outAmount math.Int
	spot      decimal.Decimal
}

// BestRoute quotes every pool concurrently and returns the one with the
// highest output. Pools that fail to quote are skipped.
func (r *SimpleRouter) BestRoute(ctx context.Context, reader sol.AccountReader, tokenIn string, amountIn math.Int) (*Route, error) {
	var (
		mu      sync.Mutex
		results []quoteResult
		g       errgroup.Group
	)
	for _, pool := range r.Pools {
		g.Go(func() error {
			outAmount, err := pool.Quote(ctx, reader, tokenIn, amountIn)
			if err != nil {
				r.log.Warn("error quoting pool", zap.String("pool", pool.GetID()), zap.Error(err))
				return nil
			}
			spot, err := pool.SpotPrice(tokenIn)
			if err != nil {
				r.log.Debug("no spot price", zap.String("pool", pool.GetID()), zap.Error(err))
				spot = decimal.Zero
			}
			mu.Lock()
			results = append(results, quoteResult{pool: pool, outAmount: outAmount, spot: spot})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var best *quoteResult
	for i := range results {
		res := &results[i]
		if best == nil || res.outAmount.GT(best.outAmount) ||
			(res.outAmount.Equal(best.outAmount) && res.pool.GetID() < best.pool.GetID()) {
			best = res
		}
	}
	if best == nil || !best.outAmount.IsPositive() {
		return nil, fmt.Errorf("%w for %s over %d pools", ErrNoRoute, tokenIn, len(r.Pools))
	}
	return &Route{
		Pool:        best.pool,
		AmountIn:    amountIn,
		AmountOut:   best.outAmount,
		SpotPrice:   best.spot,
		PriceImpact: PriceImpact(best.spot, amountIn, best.outAmount),
	}, nil
}

func (r *SimpleRouter) GetBestPool(ctx context.Context, reader sol.AccountReader, tokenIn string, amountIn math.Int) (pkg.Pool, math.Int, error) {
	route, err := r.BestRoute(ctx, reader, tokenIn, amountIn)
	if err != nil {
		return nil, math.ZeroInt(), err
	}
	return route.Pool, route.AmountOut, nil
}

// PriceImpact compares the executed price out/in with spot. It is zero when
// spot is unknown.
func PriceImpact(spot decimal.Decimal, amountIn, amountOut math.Int) decimal.Decimal {
	if !spot.IsPositive() || !amountIn.IsPositive() {
		return decimal.Zero
	}
	executed := decimal.NewFromBigInt(amountOut.BigInt(), 0).Div(decimal.NewFromBigInt(amountIn.BigInt(), 0))
	return decimal.NewFromInt(1).Sub(executed.Div(spot))
}
