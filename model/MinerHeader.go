package model

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
)

const (
	// MinerHeaderSize is the size of the header exchanged with external miners.
	MinerHeaderSize = 256

	// PreheadSize and SubheadSize are the two halves of the miner header.
	PreheadSize = 128
	SubheadSize = 128

	// ExtraNonceSize is the width of the miner grindable extra nonce.
	ExtraNonceSize = 24

	preheadPaddingSize = 20
)

// MinerHeader is the 256 byte header handed out by getwork. The commitment slot
// carries the mask hash, never the mask itself.
type MinerHeader struct {
	Nonce        uint32
	Time         uint64
	PrevBlock    chainhash.Hash
	TreeRoot     chainhash.Hash
	MaskHash     chainhash.Hash
	ExtraNonce   []byte
	ReservedRoot chainhash.Hash
	WitnessRoot  chainhash.Hash
	MerkleRoot   chainhash.Hash
	Version      uint32
	Bits         uint32
}

func NewMinerHeaderFromBytes(headerBytes []byte) (*MinerHeader, error) {
	if len(headerBytes) != MinerHeaderSize {
		return nil, errors.NewFormatError("miner header should be %d bytes long, got %d", MinerHeaderSize, len(headerBytes))
	}

	h := &MinerHeader{
		Nonce:      binary.LittleEndian.Uint32(headerBytes[0:4]),
		Time:       binary.LittleEndian.Uint64(headerBytes[4:12]),
		ExtraNonce: make([]byte, ExtraNonceSize),
		Version:    binary.LittleEndian.Uint32(headerBytes[248:252]),
		Bits:       binary.LittleEndian.Uint32(headerBytes[252:256]),
	}

	copy(h.PrevBlock[:], headerBytes[32:64])
	copy(h.TreeRoot[:], headerBytes[64:96])
	copy(h.MaskHash[:], headerBytes[96:128])
	copy(h.ExtraNonce, headerBytes[128:152])
	copy(h.ReservedRoot[:], headerBytes[152:184])
	copy(h.WitnessRoot[:], headerBytes[184:216])
	copy(h.MerkleRoot[:], headerBytes[216:248])

	padding := h.Padding(preheadPaddingSize)
	for i := range padding {
		if headerBytes[12+i] != padding[i] {
			return nil, errors.NewFormatError("miner header padding does not match prevBlock/treeRoot")
		}
	}

	return h, nil
}

func NewMinerHeaderFromString(headerHex string) (*MinerHeader, error) {
	headerBytes, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, errors.NewFormatError("error decoding hex string to bytes", err)
	}

	return NewMinerHeaderFromBytes(headerBytes)
}

// Bytes serializes the header into its 256 byte wire form.
func (h *MinerHeader) Bytes() ([]byte, error) {
	if len(h.ExtraNonce) != ExtraNonceSize {
		return nil, errors.NewFormatError("extra nonce should be %d bytes long, got %d", ExtraNonceSize, len(h.ExtraNonce))
	}

	b := make([]byte, MinerHeaderSize)

	binary.LittleEndian.PutUint32(b[0:4], h.Nonce)
	binary.LittleEndian.PutUint64(b[4:12], h.Time)
	copy(b[12:32], h.Padding(preheadPaddingSize))
	copy(b[32:64], h.PrevBlock[:])
	copy(b[64:96], h.TreeRoot[:])
	copy(b[96:128], h.MaskHash[:])
	copy(b[128:128+SubheadSize], h.Subhead())

	return b, nil
}

// Subhead is everything after the commitment slot: the half of the header that
// commits to the transaction set.
func (h *MinerHeader) Subhead() []byte {
	b := make([]byte, SubheadSize)

	copy(b[0:24], h.ExtraNonce)
	copy(b[24:56], h.ReservedRoot[:])
	copy(b[56:88], h.WitnessRoot[:])
	copy(b[88:120], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[120:124], h.Version)
	binary.LittleEndian.PutUint32(b[124:128], h.Bits)

	return b
}

// Prehead is the first half of the header as hashed by the proof of work: the
// commitment slot holds commitHash instead of maskHash.
func (h *MinerHeader) Prehead() []byte {
	b := make([]byte, PreheadSize)
	commitHash := h.CommitHash()

	binary.LittleEndian.PutUint32(b[0:4], h.Nonce)
	binary.LittleEndian.PutUint64(b[4:12], h.Time)
	copy(b[12:32], h.Padding(preheadPaddingSize))
	copy(b[32:64], h.PrevBlock[:])
	copy(b[64:96], h.TreeRoot[:])
	copy(b[96:128], commitHash[:])

	return b
}

// Padding returns n bytes of prevBlock[i%32] ^ treeRoot[i%32].
func (h *MinerHeader) Padding(n int) []byte {
	pad := make([]byte, n)

	for i := 0; i < n; i++ {
		pad[i] = h.PrevBlock[i%32] ^ h.TreeRoot[i%32]
	}

	return pad
}

// Clone returns a deep copy.
func (h *MinerHeader) Clone() *MinerHeader {
	c := *h
	c.ExtraNonce = append([]byte(nil), h.ExtraNonce...)

	return &c
}

func (h *MinerHeader) String() string {
	return fmt.Sprintf("nonce=%d time=%d prevBlock=%x witnessRoot=%x merkleRoot=%x bits=%08x",
		h.Nonce, h.Time, h.PrevBlock[:], h.WitnessRoot[:], h.MerkleRoot[:], h.Bits)
}
