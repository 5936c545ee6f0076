package model

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/hnsnode/hnsnode/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNBit(t *testing.T) {
	bits, err := NewNBitFromString("1e0cbb05")
	require.NoError(t, err)
	require.Equal(t, "1e0cbb05", bits.String())

	target := bits.CalculateTarget()
	require.Equal(t, "87862992749702277876753291758735394717545048148536728461472937357082624", target.String())

	difficulty, _ := bits.CalculateDifficulty().Float64()
	assert.InDelta(t, 0.0003068360688, difficulty, 1e-12)

	_, err = NewNBitFromString("1e0cbb")
	require.True(t, errors.Is(err, errors.ErrInvalidLength))

	_, err = NewNBitFromString("xx")
	require.True(t, errors.Is(err, errors.ErrFormat))
}

func TestCompactToBig(t *testing.T) {
	tests := []struct {
		bits uint32
		want string
	}{
		{0x1d00ffff, "26959535291011309493156476344723991336010898738574164086137773096960"},
		{0x180f7f7d, "380009881215830907712605183958726704270100120947772096512"},
		{0x03123456, "1193046"},
		{0x01123456, "18"},
		{0x01803456, "0"},
	}

	for _, tt := range tests {
		t.Run(NBit(tt.bits).String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CompactToBig(tt.bits).String())
		})
	}
}

func TestTargetBytes(t *testing.T) {
	b, err := TargetBytes(CompactToBig(0x207fffff))
	require.NoError(t, err)
	require.Len(t, b, 32)
	assert.Equal(t, "7fffff0000000000000000000000000000000000000000000000000000000000", hex.EncodeToString(b))

	_, err = TargetBytes(new(big.Int).Lsh(big.NewInt(1), 256))
	require.Error(t, err)

	_, err = TargetBytes(nil)
	require.Error(t, err)
}

func TestCompactTargetExpander(t *testing.T) {
	target, err := CompactTargetExpander{}.ExpandTarget(0x1d00ffff)
	require.NoError(t, err)
	assert.Equal(t, CompactToBig(0x1d00ffff), target)

	_, err = CompactTargetExpander{}.ExpandTarget(0)
	require.Error(t, err)

	t.Run("widest target that fits", func(t *testing.T) {
		target, err := CompactTargetExpander{}.ExpandTarget(0x2100ffff)
		require.NoError(t, err)
		assert.Equal(t, 256, target.BitLen())
	})

	t.Run("oversized targets are rejected", func(t *testing.T) {
		for _, bits := range []uint32{0x2200ffff, 0xff7fffff} {
			_, err := CompactTargetExpander{}.ExpandTarget(bits)
			require.Error(t, err, NBit(bits).String())
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
		}
	})
}
