package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), cfg.SlippageBps)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, uint(5), cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, DefaultPrograms(), cfg.Programs)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "rayquote.yaml")
	require.NoError(t, os.WriteFile(file, []byte("slippage-bps: 30\nrps: 4\nlog-level: debug\n"), 0o600))
	t.Setenv("RAYQUOTE_RPS", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("slippage-bps", 100, "")
	require.NoError(t, flags.Parse([]string{"--slippage-bps=75"}))

	cfg, err := Load(file, flags)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), cfg.SlippageBps)
	assert.Equal(t, 7, cfg.RPS)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejects(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("RAYQUOTE_SLIPPAGE_BPS", "10001")
	_, err := Load("", nil)
	assert.Error(t, err)

	t.Setenv("RAYQUOTE_SLIPPAGE_BPS", "50")
	t.Setenv("RAYQUOTE_CLMM_PROGRAM", "not-a-key")
	_, err = Load("", nil)
	assert.ErrorContains(t, err, "clmm-program")

	t.Setenv("RAYQUOTE_CLMM_PROGRAM", MainnetClmm)
	t.Setenv("RAYQUOTE_USE_JITO", "true")
	_, err = Load("", nil)
	assert.ErrorContains(t, err, "jito-rpc")
}
