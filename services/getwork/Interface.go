// Package getwork hands block templates to external miners and validates the
// solutions they submit.
package getwork

import (
	"context"
	"math/big"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/model"
)

// Tip is the chain state a template is built on.
type Tip struct {
	Hash         chainhash.Hash
	Height       uint32
	Bits         uint32
	TreeRoot     chainhash.Hash
	ReservedRoot chainhash.Hash
	Version      uint32
	MedianTime   uint64
}

type TipNotification struct {
	Hash   chainhash.Hash
	Height uint32
}

// ChainClient is the chain collaborator. AcceptBlock returns an error with
// code ERR_BLOCK_REJECTED when the block fails validation; any other error
// means the chain could not be reached.
type ChainClient interface {
	CurrentTip(ctx context.Context) (*Tip, error)
	AcceptBlock(ctx context.Context, block *model.Block) error
}

// TipSubscriber is implemented by chain clients that push tip changes.
type TipSubscriber interface {
	Subscribe(ctx context.Context) (<-chan *TipNotification, error)
}

type MempoolClient interface {
	// Snapshot returns the candidate transactions in priority order.
	Snapshot(ctx context.Context) ([]*model.Tx, error)
	ChangedSince(t time.Time) bool
}

type TargetExpander interface {
	ExpandTarget(bits uint32) (*big.Int, error)
}

type WorkResponse struct {
	Data   string `json:"data"`
	Target string `json:"target"`
	Fee    uint64 `json:"fee"`
	Height uint32 `json:"height"`
	Time   uint64 `json:"time"`
}

type SubmitReason string

const (
	ReasonValid     SubmitReason = "valid"
	ReasonHighHash  SubmitReason = "high-hash"
	ReasonStale     SubmitReason = "stale"
	ReasonDuplicate SubmitReason = "duplicate"
	ReasonInvalid   SubmitReason = "invalid"
)

type SubmitResult struct {
	Accepted bool         `json:"accepted"`
	Reason   SubmitReason `json:"reason"`
	Detail   string       `json:"detail,omitempty"`
	Hash     string       `json:"hash,omitempty"`
}
