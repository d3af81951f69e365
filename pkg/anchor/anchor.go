// Package anchor computes the 8-byte discriminators Anchor programs put in
// front of instruction data and account state.
package anchor

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// DiscriminatorSize is the length of every Anchor discriminator.
const DiscriminatorSize = 8

func GetDiscriminator(namespace string, name string) []byte {
	preimage := fmt.Sprintf("%s:%s", namespace, name)
	hash := sha256.Sum256([]byte(preimage))
	return hash[:DiscriminatorSize]
}

// Instruction returns the discriminator of the instruction handler name.
func Instruction(name string) []byte {
	return GetDiscriminator("global", name)
}

// Account returns the discriminator of the account type name.
func Account(name string) []byte {
	return GetDiscriminator("account", name)
}

// CheckAccount verifies that data starts with the discriminator of account
// type name and returns the bytes after it.
func CheckAccount(name string, data []byte) ([]byte, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("%s: data too short: %d bytes", name, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], Account(name)) {
		return nil, fmt.Errorf("%s: discriminator mismatch", name)
	}
	return data[DiscriminatorSize:], nil
}
