package acceptedwork

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/model"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Health(ctx context.Context) (int, string, error) {
	args := m.Called(ctx)
	return args.Int(0), args.String(1), args.Error(2)
}

func (m *MockStore) Store(ctx context.Context, work *model.AcceptedWork) error {
	args := m.Called(ctx, work)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, blockHash chainhash.Hash) (*model.AcceptedWork, error) {
	args := m.Called(ctx, blockHash)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.AcceptedWork), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, limit int) ([]*model.AcceptedWork, error) {
	args := m.Called(ctx, limit)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.AcceptedWork), args.Error(1)
}

func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
