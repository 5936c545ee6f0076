package model

import (
	"math/big"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashTrace carries every intermediate of the proof of work pipeline.
type HashTrace struct {
	Prehead    []byte         `json:"prehead"`
	Subhead    []byte         `json:"subhead"`
	SubHash    chainhash.Hash `json:"subHash"`
	MaskHash   chainhash.Hash `json:"maskHash"`
	CommitHash chainhash.Hash `json:"commitHash"`
	Left       []byte         `json:"left"`
	Right      chainhash.Hash `json:"right"`
	ShareHash  chainhash.Hash `json:"shareHash"`
	PowHash    chainhash.Hash `json:"powHash"`
}

// MaskHash is the commitment to a mask that goes into the header.
func MaskHash(mask chainhash.Hash) chainhash.Hash {
	return blake2b.Sum256(mask[:])
}

// SubHash commits to the subhead.
func (h *MinerHeader) SubHash() chainhash.Hash {
	return blake2b.Sum256(h.Subhead())
}

// CommitHash binds the subhead to the mask hash carried in the header.
func (h *MinerHeader) CommitHash() chainhash.Hash {
	subHash := h.SubHash()

	buf := make([]byte, 0, 64)
	buf = append(buf, subHash[:]...)
	buf = append(buf, h.MaskHash[:]...)

	return blake2b.Sum256(buf)
}

// ShareHash is the unmasked hash miners grind on.
func (h *MinerHeader) ShareHash() (chainhash.Hash, error) {
	trace, err := h.trace(chainhash.Hash{})
	if err != nil {
		return chainhash.Hash{}, err
	}

	return trace.ShareHash, nil
}

// PowHash is the share hash xor'ed with the mask. This is the value checked
// against the target and the hash the block is known by.
func (h *MinerHeader) PowHash(mask chainhash.Hash) (chainhash.Hash, error) {
	trace, err := h.trace(mask)
	if err != nil {
		return chainhash.Hash{}, err
	}

	return trace.PowHash, nil
}

// Trace runs the pipeline and returns all intermediates.
func (h *MinerHeader) Trace(mask chainhash.Hash) (*HashTrace, error) {
	return h.trace(mask)
}

func (h *MinerHeader) trace(mask chainhash.Hash) (*HashTrace, error) {
	data, err := h.Bytes()
	if err != nil {
		return nil, err
	}

	t := &HashTrace{
		Prehead:    h.Prehead(),
		Subhead:    h.Subhead(),
		SubHash:    h.SubHash(),
		MaskHash:   MaskHash(mask),
		CommitHash: h.CommitHash(),
	}

	left := blake2b.Sum512(t.Prehead)
	t.Left = left[:]

	rightInput := make([]byte, 0, MinerHeaderSize+8)
	rightInput = append(rightInput, data...)
	rightInput = append(rightInput, h.Padding(8)...)
	t.Right = sha3.Sum256(rightInput)

	shareInput := make([]byte, 0, 64+32+32)
	shareInput = append(shareInput, t.Left...)
	shareInput = append(shareInput, h.Padding(32)...)
	shareInput = append(shareInput, t.Right[:]...)
	t.ShareHash = blake2b.Sum256(shareInput)

	for i := range t.PowHash {
		t.PowHash[i] = t.ShareHash[i] ^ mask[i]
	}

	return t, nil
}

// PowHash computes the final proof of work hash of raw header bytes.
func PowHash(data []byte, mask chainhash.Hash) (chainhash.Hash, error) {
	if len(data) != MinerHeaderSize {
		return chainhash.Hash{}, errors.NewInvalidLengthError("header data should be %d bytes long, got %d", MinerHeaderSize, len(data))
	}

	h, err := NewMinerHeaderFromBytes(data)
	if err != nil {
		return chainhash.Hash{}, err
	}

	return h.PowHash(mask)
}

// HashToBig interprets the hash as a big-endian 256 bit integer.
func HashToBig(hash chainhash.Hash) *big.Int {
	return new(big.Int).SetBytes(hash[:])
}

// CheckProofOfWork reports whether hash <= target.
func CheckProofOfWork(hash chainhash.Hash, target *big.Int) bool {
	if target == nil || target.Sign() <= 0 {
		return false
	}

	return HashToBig(hash).Cmp(target) <= 0
}
