// Package config loads rayquote settings from a config file, RAYQUOTE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Programs holds the on-chain program IDs quotes and instructions target.
// Mainnet IDs are the defaults; devnet deployments override them.
type Programs struct {
	Amm      solana.PublicKey
	Clmm     solana.PublicKey
	CpSwap   solana.PublicKey
	OpenBook solana.PublicKey
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	JitoURL          string
	RPS              int
	Keypair          string
	SlippageBps      uint64
	Simulate         bool
	UseJito          bool
	JitoTip          uint64
	ComputeUnitPrice uint64
	MaxRetries       uint
	RetryBackoff     time.Duration
	LogLevel         string
	Programs         Programs
}

const (
	MainnetAmm      = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	MainnetClmm     = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	MainnetCpSwap   = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
	MainnetOpenBook = "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX"
)

// DefaultPrograms returns the mainnet program IDs.
func DefaultPrograms() Programs {
	return Programs{
		Amm:      solana.MustPublicKeyFromBase58(MainnetAmm),
		Clmm:     solana.MustPublicKeyFromBase58(MainnetClmm),
		CpSwap:   solana.MustPublicKeyFromBase58(MainnetCpSwap),
		OpenBook: solana.MustPublicKeyFromBase58(MainnetOpenBook),
	}
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAYQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rps", 10)
	v.SetDefault("slippage-bps", uint64(100))
	v.SetDefault("simulate", true)
	v.SetDefault("jito-tip", uint64(1_000_000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("amm-program", MainnetAmm)
	v.SetDefault("clmm-program", MainnetClmm)
	v.SetDefault("cpswap-program", MainnetCpSwap)
	v.SetDefault("openbook-program", MainnetOpenBook)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("rayquote")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	programs, err := loadPrograms(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		JitoURL:          v.GetString("jito-rpc"),
		RPS:              v.GetInt("rps"),
		Keypair:          v.GetString("keypair"),
		SlippageBps:      v.GetUint64("slippage-bps"),
		Simulate:         v.GetBool("simulate"),
		UseJito:          v.GetBool("use-jito"),
		JitoTip:          v.GetUint64("jito-tip"),
		ComputeUnitPrice: v.GetUint64("compute-unit-price"),
		MaxRetries:       v.GetUint("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		LogLevel:         v.GetString("log-level"),
		Programs:         programs,
	}
	if cfg.SlippageBps > 10_000 {
		return Config{}, fmt.Errorf("slippage-bps %d exceeds 10000", cfg.SlippageBps)
	}
	if cfg.UseJito && cfg.JitoURL == "" {
		return Config{}, fmt.Errorf("use-jito requires jito-rpc")
	}
	return cfg, nil
}

func loadPrograms(v *viper.Viper) (Programs, error) {
	var p Programs
	for _, f := range []struct {
		key string
		dst *solana.PublicKey
	}{
		{"amm-program", &p.Amm},
		{"clmm-program", &p.Clmm},
		{"cpswap-program", &p.CpSwap},
		{"openbook-program", &p.OpenBook},
	} {
		key, err := solana.PublicKeyFromBase58(strings.TrimSpace(v.GetString(f.key)))
		if err != nil {
			return Programs{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = key
	}
	return p, nil
}
