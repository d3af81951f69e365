package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yimingwow/rayquote/pkg"
	"github.com/yimingwow/rayquote/pkg/pool/raydium"
	"go.uber.org/zap"
)

type RaydiumClmmProtocol struct {
	Source  AccountSource
	Program solana.PublicKey
	log     *zap.Logger
}

func NewRaydiumClmm(src AccountSource, program solana.PublicKey, log *zap.Logger) *RaydiumClmmProtocol {
	if log == nil {
		log = zap.NewNop()
	}
	return &RaydiumClmmProtocol{
		Source:  src,
		Program: program,
		log:     log,
	}
}

func (p *RaydiumClmmProtocol) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameRaydiumClmm
}

func (p *RaydiumClmmProtocol) FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]pkg.Pool, error) {
	pools, err := p.FetchCLMMPools(ctx, baseMint, quoteMint)
	if err != nil {
		return nil, err
	}
	res := make([]pkg.Pool, 0, len(pools))
	for _, pool := range pools {
		res = append(res, pool)
	}
	return res, nil
}

// FetchCLMMPools returns the pools of the pair. The fee config and tick
// arrays are read later, with the first quote.
func (p *RaydiumClmmProtocol) FetchCLMMPools(ctx context.Context, baseMint string, quoteMint string) ([]*raydium.CLMMPool, error) {
	accounts, err := scanPair(ctx, p.Source, p.Program, pairLayout{
		size:    raydium.ClmmPoolStateSize,
		offset0: raydium.ClmmMint0Offset,
		offset1: raydium.ClmmMint1Offset,
	}, baseMint, quoteMint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pools with base token %s: %w", baseMint, err)
	}

	res := make([]*raydium.CLMMPool, 0, len(accounts))
	for _, v := range accounts {
		pool, err := raydium.NewCLMMPool(p.Program, v.Pubkey, v.Account.Data.GetBinary())
		if err != nil {
			p.log.Debug("skip undecodable clmm pool", zap.Stringer("pool", v.Pubkey), zap.Error(err))
			continue
		}
		res = append(res, pool)
	}
	return res, nil
}

func (p *RaydiumClmmProtocol) FetchPoolByID(ctx context.Context, poolId string) (pkg.Pool, error) {
	return p.FetchCLMMPool(ctx, poolId)
}

func (p *RaydiumClmmProtocol) FetchCLMMPool(ctx context.Context, poolId string) (*raydium.CLMMPool, error) {
	key, data, err := fetchAccount(ctx, p.Source, p.Program, poolId)
	if err != nil {
		return nil, err
	}
	pool, err := raydium.NewCLMMPool(p.Program, key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pool data for %s: %w", poolId, err)
	}
	return pool, nil
}

func (p *RaydiumClmmProtocol) FetchConfig(ctx context.Context, configID string) (*raydium.ClmmAmmConfig, error) {
	_, data, err := fetchAccount(ctx, p.Source, p.Program, configID)
	if err != nil {
		return nil, err
	}
	var cfg raydium.ClmmAmmConfig
	if err := cfg.Decode(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", configID, err)
	}
	return &cfg, nil
}

// FetchConfigs lists every fee tier of the program.
func (p *RaydiumClmmProtocol) FetchConfigs(ctx context.Context) ([]Keyed[raydium.ClmmAmmConfig], error) {
	accounts, err := scanAnchorAccounts(ctx, p.Source, p.Program, "AmmConfig", raydium.ClmmAmmConfigSize)
	if err != nil {
		return nil, err
	}
	var res []Keyed[raydium.ClmmAmmConfig]
	for _, account := range accounts {
		if account == nil || account.Account == nil || account.Account.Data == nil {
			continue
		}
		var cfg raydium.ClmmAmmConfig
		if err := cfg.Decode(account.Account.Data.GetBinary()); err != nil {
			p.log.Debug("skip undecodable clmm config", zap.Stringer("config", account.Pubkey), zap.Error(err))
			continue
		}
		res = append(res, Keyed[raydium.ClmmAmmConfig]{Address: account.Pubkey, Value: cfg})
	}
	return res, nil
}
