// Package acceptedwork journals solutions that were accepted by the chain.
package acceptedwork

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/model"
)

type Store interface {
	Health(ctx context.Context) (int, string, error)
	Store(ctx context.Context, work *model.AcceptedWork) error
	// Get returns an ERR_NOT_FOUND error when the block hash is unknown.
	Get(ctx context.Context, blockHash chainhash.Hash) (*model.AcceptedWork, error)
	// List returns up to limit records, most recent first.
	List(ctx context.Context, limit int) ([]*model.AcceptedWork, error)
	Close(ctx context.Context) error
}
