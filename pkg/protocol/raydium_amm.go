package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yimingwow/rayquote/pkg"
	"github.com/yimingwow/rayquote/pkg/pool/raydium"
	"go.uber.org/zap"
)

type RaydiumAMMProtocol struct {
	Source  AccountSource
	Program solana.PublicKey
	log     *zap.Logger
}

func NewRaydiumAmm(src AccountSource, program solana.PublicKey, log *zap.Logger) *RaydiumAMMProtocol {
	if log == nil {
		log = zap.NewNop()
	}
	return &RaydiumAMMProtocol{
		Source:  src,
		Program: program,
		log:     log,
	}
}

func (p *RaydiumAMMProtocol) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameRaydiumAmm
}

func (p *RaydiumAMMProtocol) FetchPoolsByPair(ctx context.Context, baseMint, quoteMint string) ([]pkg.Pool, error) {
	pools, err := p.FetchAMMPools(ctx, baseMint, quoteMint)
	if err != nil {
		return nil, err
	}
	res := make([]pkg.Pool, 0, len(pools))
	for _, pool := range pools {
		res = append(res, pool)
	}
	return res, nil
}

// FetchAMMPools returns the AMM pools trading baseMint against quoteMint in
// either coin/pc order. Accounts that fail to decode are skipped.
func (p *RaydiumAMMProtocol) FetchAMMPools(ctx context.Context, baseMint, quoteMint string) ([]*raydium.AMMPool, error) {
	accounts, err := scanPair(ctx, p.Source, p.Program, pairLayout{
		size:    raydium.AmmInfoSize,
		offset0: raydium.AmmCoinMintOffset,
		offset1: raydium.AmmPcMintOffset,
	}, baseMint, quoteMint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pools with base token %s: %w", baseMint, err)
	}

	res := make([]*raydium.AMMPool, 0, len(accounts))
	for _, v := range accounts {
		pool, err := raydium.NewAMMPool(p.Program, v.Pubkey, v.Account.Data.GetBinary())
		if err != nil {
			p.log.Debug("skip undecodable amm pool", zap.Stringer("pool", v.Pubkey), zap.Error(err))
			continue
		}
		res = append(res, pool)
	}
	return res, nil
}

// FetchPoolByID fetches a specific pool by its ID
func (p *RaydiumAMMProtocol) FetchPoolByID(ctx context.Context, poolID string) (pkg.Pool, error) {
	return p.FetchAMMPool(ctx, poolID)
}

func (p *RaydiumAMMProtocol) FetchAMMPool(ctx context.Context, poolID string) (*raydium.AMMPool, error) {
	key, data, err := fetchAccount(ctx, p.Source, p.Program, poolID)
	if err != nil {
		return nil, err
	}
	pool, err := raydium.NewAMMPool(p.Program, key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pool data for %s: %w", poolID, err)
	}
	return pool, nil
}
