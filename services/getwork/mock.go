package getwork

import (
	"context"
	"math/big"
	"time"

	"github.com/hnsnode/hnsnode/model"
	"github.com/stretchr/testify/mock"
)

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) CurrentTip(ctx context.Context) (*Tip, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Tip), args.Error(1)
}

func (m *MockChainClient) AcceptBlock(ctx context.Context, block *model.Block) error {
	args := m.Called(ctx, block)
	return args.Error(0)
}

type MockMempoolClient struct {
	mock.Mock
}

func (m *MockMempoolClient) Snapshot(ctx context.Context) ([]*model.Tx, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.Tx), args.Error(1)
}

func (m *MockMempoolClient) ChangedSince(t time.Time) bool {
	args := m.Called(t)
	return args.Bool(0)
}

type MockTargetExpander struct {
	mock.Mock
}

func (m *MockTargetExpander) ExpandTarget(bits uint32) (*big.Int, error) {
	args := m.Called(bits)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*big.Int), args.Error(1)
}
