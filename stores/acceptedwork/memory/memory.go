package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
)

type Memory struct {
	mu      sync.RWMutex
	byHash  map[chainhash.Hash]*model.AcceptedWork
	ordered []*model.AcceptedWork
}

func New() *Memory {
	return &Memory{
		byHash: make(map[chainhash.Hash]*model.AcceptedWork),
	}
}

func (m *Memory) Health(_ context.Context) (int, string, error) {
	return http.StatusOK, "Memory Store", nil
}

func (m *Memory) Store(_ context.Context, work *model.AcceptedWork) error {
	if work == nil {
		return errors.NewInvalidArgumentError("accepted work is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHash[work.BlockHash]; ok {
		return errors.NewStorageError("accepted work for block %x already stored", work.BlockHash[:])
	}

	w := *work
	m.byHash[work.BlockHash] = &w
	m.ordered = append(m.ordered, &w)

	return nil
}

func (m *Memory) Get(_ context.Context, blockHash chainhash.Hash) (*model.AcceptedWork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.byHash[blockHash]
	if !ok {
		return nil, errors.NewNotFoundError("accepted work for block %x not found", blockHash[:])
	}

	c := *w

	return &c, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]*model.AcceptedWork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.ordered) {
		limit = len(m.ordered)
	}

	result := make([]*model.AcceptedWork, 0, limit)

	for i := len(m.ordered) - 1; i >= 0 && len(result) < limit; i-- {
		c := *m.ordered[i]
		result = append(result, &c)
	}

	return result, nil
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}
