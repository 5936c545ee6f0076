package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Block is a solved template handed to the chain for acceptance.
type Block struct {
	Header       *MinerHeader
	Mask         chainhash.Hash
	Height       uint32
	Transactions []*Tx
	Fees         uint64
}

// Hash is the proof of work hash of the header under the block's mask.
func (b *Block) Hash() (chainhash.Hash, error) {
	return b.Header.PowHash(b.Mask)
}

func (b *Block) TransactionCount() int {
	return len(b.Transactions)
}
