package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Tx is a mempool candidate as seen by the block template builder. Validity is
// the mempool's concern, the template only needs identity, fee and size.
type Tx struct {
	Hash        chainhash.Hash
	WitnessHash chainhash.Hash
	Fee         uint64
	Size        uint64
	Raw         []byte
}
