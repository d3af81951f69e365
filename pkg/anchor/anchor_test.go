package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction(t *testing.T) {
	assert.Equal(t, []byte{43, 4, 237, 11, 26, 201, 30, 98}, Instruction("swap_v2"))
	assert.Len(t, Instruction("swap_base_input"), DiscriminatorSize)
	assert.NotEqual(t, Instruction("swap_base_input"), Instruction("swap_base_output"))
}

func TestCheckAccount(t *testing.T) {
	data := append(Account("PoolState"), 1, 2, 3)
	rest, err := CheckAccount("PoolState", data)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, rest)

	_, err = CheckAccount("AmmConfig", data)
	assert.ErrorContains(t, err, "discriminator mismatch")

	_, err = CheckAccount("PoolState", []byte{1})
	assert.Error(t, err)
}
