package model

import (
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// AcceptedWork records a solution the chain accepted.
type AcceptedWork struct {
	AttemptID string
	BlockHash chainhash.Hash
	PrevBlock chainhash.Hash
	Height    uint32
	Fee       uint64
	TxCount   int
	CreatedAt time.Time
}
