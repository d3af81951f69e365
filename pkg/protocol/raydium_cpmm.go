package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yimingwow/rayquote/pkg"
	"github.com/yimingwow/rayquote/pkg/pool/raydium"
	"go.uber.org/zap"
)

// RaydiumCpmmProtocol discovers Raydium CP-Swap pools and fee configs.
type RaydiumCpmmProtocol struct {
	Source  AccountSource
	Program solana.PublicKey
	log     *zap.Logger
}

func NewRaydiumCpmm(src AccountSource, program solana.PublicKey, log *zap.Logger) *RaydiumCpmmProtocol {
	if log == nil {
		log = zap.NewNop()
	}
	return &RaydiumCpmmProtocol{
		Source:  src,
		Program: program,
		log:     log,
	}
}

func (p *RaydiumCpmmProtocol) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameRaydiumCpSwap
}

// FetchPoolsByPair retrieves all pools for a given token pair
func (p *RaydiumCpmmProtocol) FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]pkg.Pool, error) {
	pools, err := p.FetchCPMMPools(ctx, baseMint, quoteMint)
	if err != nil {
		return nil, err
	}
	res := make([]pkg.Pool, 0, len(pools))
	for _, pool := range pools {
		res = append(res, pool)
	}
	return res, nil
}

func (p *RaydiumCpmmProtocol) FetchCPMMPools(ctx context.Context, baseMint string, quoteMint string) ([]*raydium.CPMMPool, error) {
	accounts, err := scanPair(ctx, p.Source, p.Program, pairLayout{
		size:    raydium.CpmmPoolStateSize,
		offset0: raydium.CpmmToken0MintOffset,
		offset1: raydium.CpmmToken1MintOffset,
	}, baseMint, quoteMint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pools with base token %s: %w", baseMint, err)
	}

	pools := make([]*raydium.CPMMPool, 0, len(accounts))
	for _, account := range accounts {
		pool, err := raydium.NewCPMMPool(p.Program, account.Pubkey, account.Account.Data.GetBinary())
		if err != nil {
			p.log.Debug("skip undecodable cp-swap pool", zap.Stringer("pool", account.Pubkey), zap.Error(err))
			continue
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// FetchPoolByID retrieves a CPMM pool by its ID
func (p *RaydiumCpmmProtocol) FetchPoolByID(ctx context.Context, poolID string) (pkg.Pool, error) {
	return p.FetchCPMMPool(ctx, poolID)
}

func (p *RaydiumCpmmProtocol) FetchCPMMPool(ctx context.Context, poolID string) (*raydium.CPMMPool, error) {
	key, data, err := fetchAccount(ctx, p.Source, p.Program, poolID)
	if err != nil {
		return nil, err
	}
	pool, err := raydium.NewCPMMPool(p.Program, key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pool data for %s: %w", poolID, err)
	}
	return pool, nil
}

// FetchConfig reads one AmmConfig account.
func (p *RaydiumCpmmProtocol) FetchConfig(ctx context.Context, configID string) (*raydium.CpmmAmmConfig, error) {
	_, data, err := fetchAccount(ctx, p.Source, p.Program, configID)
	if err != nil {
		return nil, err
	}
	var cfg raydium.CpmmAmmConfig
	if err := cfg.Decode(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", configID, err)
	}
	return &cfg, nil
}

// FetchConfigs lists every AmmConfig account of the program.
func (p *RaydiumCpmmProtocol) FetchConfigs(ctx context.Context) ([]Keyed[raydium.CpmmAmmConfig], error) {
	accounts, err := scanAnchorAccounts(ctx, p.Source, p.Program, "AmmConfig", raydium.CpmmAmmConfigSize)
	if err != nil {
		return nil, err
	}
	var res []Keyed[raydium.CpmmAmmConfig]
	for _, account := range accounts {
		if account == nil || account.Account == nil || account.Account.Data == nil {
			continue
		}
		var cfg raydium.CpmmAmmConfig
		if err := cfg.Decode(account.Account.Data.GetBinary()); err != nil {
			p.log.Debug("skip undecodable cp-swap config", zap.Stringer("config", account.Pubkey), zap.Error(err))
			continue
		}
		res = append(res, Keyed[raydium.CpmmAmmConfig]{Address: account.Pubkey, Value: cfg})
	}
	return res, nil
}
