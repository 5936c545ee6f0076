package null

import (
	"context"
	"net/http"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/ulogger"
)

// Null drops every record.
type Null struct {
	logger ulogger.Logger
}

func New(logger ulogger.Logger) *Null {
	return &Null{
		logger: logger,
	}
}

func (n *Null) Health(_ context.Context) (int, string, error) {
	return http.StatusOK, "Null Store", nil
}

func (n *Null) Store(_ context.Context, work *model.AcceptedWork) error {
	if work == nil {
		return errors.NewInvalidArgumentError("accepted work is nil")
	}

	n.logger.Debugf("[AcceptedWork] dropping accepted work for block %x", work.BlockHash[:])
	return nil
}

func (n *Null) Get(_ context.Context, blockHash chainhash.Hash) (*model.AcceptedWork, error) {
	return nil, errors.NewNotFoundError("accepted work for block %x not found", blockHash[:])
}

func (n *Null) List(_ context.Context, _ int) ([]*model.AcceptedWork, error) {
	return nil, nil
}

func (n *Null) Close(_ context.Context) error {
	return nil
}
