package model

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/hnsnode/hnsnode/errors"
)

// difficultyOneBits is the compact form of the difficulty 1 target.
const difficultyOneBits = 0x1d00ffff

// NBit is the compact encoding of a 256 bit target.
type NBit uint32

func NewNBitFromString(s string) (NBit, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, errors.NewFormatError("error decoding bits %q", s, err)
	}

	if len(b) != 4 {
		return 0, errors.NewInvalidLengthError("bits should be 4 bytes long, got %d", len(b))
	}

	return NBit(binary.BigEndian.Uint32(b)), nil
}

func (b NBit) String() string {
	return fmt.Sprintf("%08x", uint32(b))
}

// CalculateTarget expands the compact bits to the full target.
func (b NBit) CalculateTarget() *big.Int {
	return CompactToBig(uint32(b))
}

// CalculateDifficulty returns the target of difficulty 1 divided by this target.
func (b NBit) CalculateDifficulty() *big.Float {
	target := b.CalculateTarget()
	if target.Sign() <= 0 {
		return new(big.Float)
	}

	one := new(big.Float).SetInt(CompactToBig(difficultyOneBits))

	return new(big.Float).Quo(one, new(big.Float).SetInt(target))
}

// CompactToBig converts a compact representation of a whole number N to an
// unsigned 256 bit number:
//
//	N = (-1^sign) * mantissa * 256^(exponent-3)
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int

	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}

	return bn
}

// TargetBytes renders a target as 32 big-endian bytes.
func TargetBytes(target *big.Int) ([]byte, error) {
	if target == nil || target.Sign() < 0 {
		return nil, errors.NewInvalidArgumentError("target must be a non-negative integer")
	}

	if target.BitLen() > 256 {
		return nil, errors.NewInvalidArgumentError("target does not fit in 256 bits")
	}

	return target.FillBytes(make([]byte, 32)), nil
}

// CompactTargetExpander expands header bits using the compact encoding.
type CompactTargetExpander struct{}

func (CompactTargetExpander) ExpandTarget(bits uint32) (*big.Int, error) {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return nil, errors.NewInvalidArgumentError("bits %08x expand to a non-positive target", bits)
	}

	if target.BitLen() > 256 {
		return nil, errors.NewInvalidArgumentError("bits %08x expand to a target wider than 256 bits", bits)
	}

	return target, nil
}
