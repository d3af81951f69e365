// Package raydium decodes Raydium AMM v4, CP-Swap and CLMM accounts, quotes
// them from account snapshots and builds their instructions.
package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	ammAuthoritySeed    = "amm authority"
	cpSwapAuthoritySeed = "vault_and_lp_mint_auth_seed"
	tickArraySeed       = "tick_array"
	bitmapExtensionSeed = "pool_tick_array_bitmap_extension"
)

// AmmAuthority derives the AMM v4 authority from the nonce stored in AmmInfo.
func AmmAuthority(program solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	if nonce > 255 {
		return solana.PublicKey{}, fmt.Errorf("amm nonce %d out of range", nonce)
	}
	authority, err := solana.CreateProgramAddress([][]byte{[]byte(ammAuthoritySeed), {byte(nonce)}}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("amm authority: %w", err)
	}
	return authority, nil
}

// CpSwapAuthority derives the CP-Swap vault and LP mint authority.
func CpSwapAuthority(program solana.PublicKey) (solana.PublicKey, error) {
	authority, _, err := solana.FindProgramAddress([][]byte{[]byte(cpSwapAuthoritySeed)}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("cp-swap authority: %w", err)
	}
	return authority, nil
}

// TickArrayAddress derives the CLMM tick array starting at start. The start
// index is encoded big-endian.
func TickArrayAddress(program, pool solana.PublicKey, start int32) (solana.PublicKey, error) {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(start))
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(tickArraySeed), pool[:], idx[:]}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("tick array %d: %w", start, err)
	}
	return addr, nil
}

// BitmapExtensionAddress derives the CLMM tick array bitmap extension.
func BitmapExtensionAddress(program, pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(bitmapExtensionSeed), pool[:]}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("bitmap extension: %w", err)
	}
	return addr, nil
}
