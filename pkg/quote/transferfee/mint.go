package transferfee

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

const (
	MintSize         = 82
	TokenAccountSize = 165

	accountTypeOffset = TokenAccountSize
	tlvStart          = TokenAccountSize + 1

	accountTypeMint    = 1
	accountTypeAccount = 2

	extensionTransferFeeConfig = 1
	transferFeeConfigLen       = 108
)

// Mint is a decoded SPL or Token-2022 mint. TransferFee is nil when the mint
// carries no fee extension.
type Mint struct {
	Address     solana.PublicKey
	Program     solana.PublicKey
	Decimals    uint8
	Supply      uint64
	TransferFee *Config
}

// ParseMint decodes mint account data owned by program.
func ParseMint(address, program solana.PublicKey, data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("mint %s: data too short: %d bytes", address, len(data))
	}
	var base token.Mint
	if err := bin.NewBinDecoder(data[:MintSize]).Decode(&base); err != nil {
		return nil, fmt.Errorf("mint %s: %w", address, err)
	}
	m := &Mint{
		Address:  address,
		Program:  program,
		Decimals: base.Decimals,
		Supply:   base.Supply,
	}
	if len(data) == MintSize {
		return m, nil
	}
	// Token-2022 pads the mint out to the account size so the account type
	// byte sits at the same offset for mints and token accounts.
	if len(data) <= accountTypeOffset || data[accountTypeOffset] != accountTypeMint {
		return nil, fmt.Errorf("mint %s: not a token-2022 mint layout", address)
	}
	ext, err := findExtension(data[tlvStart:], extensionTransferFeeConfig)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", address, err)
	}
	if ext != nil {
		cfg, err := decodeTransferFeeConfig(ext)
		if err != nil {
			return nil, fmt.Errorf("mint %s: %w", address, err)
		}
		m.TransferFee = cfg
	}
	return m, nil
}

func findExtension(tlv []byte, want uint16) ([]byte, error) {
	for len(tlv) >= 4 {
		typ := binary.LittleEndian.Uint16(tlv[0:2])
		length := int(binary.LittleEndian.Uint16(tlv[2:4]))
		if typ == 0 {
			return nil, nil
		}
		if len(tlv) < 4+length {
			return nil, fmt.Errorf("extension %d truncated", typ)
		}
		if typ == want {
			return tlv[4 : 4+length], nil
		}
		tlv = tlv[4+length:]
	}
	return nil, nil
}

func decodeTransferFeeConfig(data []byte) (*Config, error) {
	if len(data) != transferFeeConfigLen {
		return nil, fmt.Errorf("transfer fee config: expected %d bytes, got %d", transferFeeConfigLen, len(data))
	}
	cfg := &Config{}
	offset := 0
	cfg.ConfigAuthority = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32
	cfg.WithdrawAuthority = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32
	cfg.WithheldAmount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	cfg.Older, offset = decodeFee(data, offset)
	cfg.Newer, _ = decodeFee(data, offset)
	return cfg, nil
}

func decodeFee(data []byte, offset int) (Fee, int) {
	var f Fee
	f.Epoch = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	f.MaximumFee = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	f.BasisPoints = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2
	return f, offset
}

// TokenAccount is the subset of an SPL token account the quoting code needs.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// ParseTokenAccount decodes the base token account state, ignoring any
// Token-2022 extensions that follow it.
func ParseTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account: data too short: %d bytes", len(data))
	}
	if len(data) > TokenAccountSize && data[accountTypeOffset] != accountTypeAccount {
		return nil, fmt.Errorf("token account: unexpected account type %d", data[accountTypeOffset])
	}
	var acc token.Account
	if err := bin.NewBinDecoder(data[:TokenAccountSize]).Decode(&acc); err != nil {
		return nil, fmt.Errorf("token account: %w", err)
	}
	return &TokenAccount{Mint: acc.Mint, Owner: acc.Owner, Amount: acc.Amount}, nil
}

// FeeAt returns the forward transfer fee on amount at epoch. A nil mint or a
// mint without the extension charges nothing.
func (m *Mint) FeeAt(epoch, amount uint64) (uint64, error) {
	if m == nil {
		return 0, nil
	}
	return Forward(m.TransferFee, epoch, amount)
}

// InverseFeeAt returns the inverse transfer fee for a post-fee amount at epoch.
func (m *Mint) InverseFeeAt(epoch, amount uint64) (uint64, error) {
	if m == nil {
		return 0, nil
	}
	return Inverse(m.TransferFee, epoch, amount)
}
