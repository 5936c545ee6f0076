package getwork

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/settings"
	"github.com/hnsnode/hnsnode/stores/acceptedwork/memory"
	"github.com/hnsnode/hnsnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const easyBits = 0x207fffff

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fakeChain struct {
	mu        sync.Mutex
	tips      []*Tip
	tipErr    error
	acceptErr error
	accepted  []*model.Block
	notify    chan *TipNotification
}

func (c *fakeChain) CurrentTip(_ context.Context) (*Tip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tipErr != nil {
		return nil, c.tipErr
	}

	tip := c.tips[0]
	if len(c.tips) > 1 {
		c.tips = c.tips[1:]
	}

	t := *tip

	return &t, nil
}

func (c *fakeChain) AcceptBlock(_ context.Context, block *model.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acceptErr != nil {
		return c.acceptErr
	}

	c.accepted = append(c.accepted, block)

	return nil
}

func (c *fakeChain) setTip(tips ...*Tip) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tips = tips
}

func (c *fakeChain) setTipErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tipErr = err
}

func (c *fakeChain) acceptedBlocks() []*model.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*model.Block(nil), c.accepted...)
}

// blockingChain holds every AcceptBlock call until release is closed. Calls
// take their result from errs in order.
type blockingChain struct {
	*fakeChain

	entered chan struct{}
	release chan struct{}

	errMu sync.Mutex
	errs  []error
}

func newBlockingChain(errs ...error) *blockingChain {
	return &blockingChain{
		fakeChain: &fakeChain{tips: []*Tip{testTip(0xa1, 100)}},
		entered:   make(chan struct{}, 8),
		release:   make(chan struct{}),
		errs:      errs,
	}
}

func (c *blockingChain) AcceptBlock(ctx context.Context, block *model.Block) error {
	c.entered <- struct{}{}

	<-c.release

	c.errMu.Lock()
	var err error
	if len(c.errs) > 0 {
		err, c.errs = c.errs[0], c.errs[1:]
	}
	c.errMu.Unlock()

	if err != nil {
		return err
	}

	return c.fakeChain.AcceptBlock(ctx, block)
}

type subscribingChain struct {
	*fakeChain
}

func (c *subscribingChain) Subscribe(_ context.Context) (<-chan *TipNotification, error) {
	return c.notify, nil
}

type fakeMempool struct {
	mu         sync.Mutex
	clock      *fakeClock
	txs        []*model.Tx
	lastChange time.Time
	snapErr    error
	snapshots  int
}

func (m *fakeMempool) Snapshot(_ context.Context) ([]*model.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots++

	if m.snapErr != nil {
		return nil, m.snapErr
	}

	return append([]*model.Tx(nil), m.txs...), nil
}

func (m *fakeMempool) ChangedSince(t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastChange.After(t)
}

func (m *fakeMempool) add(tx *model.Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs = append(m.txs, tx)
	m.lastChange = m.clock.Now()
}

func (m *fakeMempool) snapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshots
}

func (m *fakeMempool) setSnapErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapErr = err
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		GetWork: settings.GetWorkSettings{
			GraceInterval:      10 * time.Second,
			MaxBlockSize:       1000000,
			DuplicateTTL:       10 * time.Minute,
			MaxFutureBlockTime: 2 * time.Hour,
		},
	}
}

func testTip(id byte, height uint32) *Tip {
	return &Tip{
		Hash:       chainhash.Hash{id},
		Height:     height,
		Bits:       easyBits,
		TreeRoot:   chainhash.Hash{0x77},
		Version:    0,
		MedianTime: 1699999000,
	}
}

type testEnv struct {
	manager *Manager
	chain   *fakeChain
	mempool *fakeMempool
	clock   *fakeClock
	store   *memory.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	chain := &fakeChain{tips: []*Tip{testTip(0xa1, 100)}}
	mempool := &fakeMempool{clock: clock}
	store := memory.New()

	m, err := NewManager(ulogger.NewVerboseTestLogger(t), testSettings(), chain, mempool, WithClock(clock.Now), WithAcceptedWorkStore(store))
	require.NoError(t, err)

	return &testEnv{manager: m, chain: chain, mempool: mempool, clock: clock, store: store}
}

func decodeWork(t *testing.T, work *WorkResponse) *model.MinerHeader {
	t.Helper()

	header, err := model.NewMinerHeaderFromString(work.Data)
	require.NoError(t, err)

	return header
}

// solve brute forces the nonce with the attempt's mask, the way an external
// miner would search with the share hash.
func solve(t *testing.T, m *Manager, work *WorkResponse, startNonce uint32) []byte {
	t.Helper()

	header := decodeWork(t, work)
	attempt := m.Current()
	require.NotNil(t, attempt)

	targetBytes, err := hex.DecodeString(work.Target)
	require.NoError(t, err)

	target := new(big.Int).SetBytes(targetBytes)

	for nonce := startNonce; nonce < startNonce+1_000_000; nonce++ {
		header.Nonce = nonce

		hash, err := header.PowHash(attempt.Mask())
		require.NoError(t, err)

		if model.CheckProofOfWork(hash, target) {
			data, err := header.Bytes()
			require.NoError(t, err)

			return data
		}
	}

	t.Fatal("no solution found")

	return nil
}

func TestManager_GetWork(t *testing.T) {
	ctx := context.Background()

	t.Run("serves a 256 byte header and 32 byte target", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		data, err := hex.DecodeString(work.Data)
		require.NoError(t, err)
		assert.Len(t, data, model.MinerHeaderSize)

		target, err := hex.DecodeString(work.Target)
		require.NoError(t, err)
		assert.Len(t, target, 32)
		assert.Equal(t, "7fffff0000000000000000000000000000000000000000000000000000000000", work.Target)

		assert.Equal(t, uint32(101), work.Height)
		assert.Equal(t, uint64(1700000000), work.Time)

		header := decodeWork(t, work)
		assert.Equal(t, chainhash.Hash{0xa1}, header.PrevBlock)
		assert.Equal(t, model.MaskHash(env.manager.Current().Mask()), header.MaskHash)
		assert.Equal(t, AttemptCurrent, env.manager.Current().State())
	})

	t.Run("fee follows the mempool", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), work.Fee)

		env.clock.Advance(11 * time.Second)
		env.mempool.add(testTx(1, 12345, 250))

		work, err = env.manager.GetWork(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(12345), work.Fee)

		env.clock.Advance(11 * time.Second)
		env.mempool.add(testTx(2, 54321, 250))

		work, err = env.manager.GetWork(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(66666), work.Fee)
		assert.Len(t, env.manager.Current().Transactions, 2)
	})

	t.Run("idle mempool only refreshes time", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()

		env.clock.Advance(3 * time.Second)

		second, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		assert.Same(t, attempt, env.manager.Current())

		h1 := decodeWork(t, first)
		h2 := decodeWork(t, second)

		assert.Equal(t, h1.WitnessRoot, h2.WitnessRoot)
		assert.Equal(t, h1.MerkleRoot, h2.MerkleRoot)
		assert.Equal(t, h1.MaskHash, h2.MaskHash)
		assert.Equal(t, h1.Time+3, h2.Time)

		h2.Time = h1.Time
		assert.Equal(t, h1, h2)
	})

	t.Run("mempool change within grace does not rebuild", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()

		env.clock.Advance(2 * time.Second)
		env.mempool.add(testTx(1, 500, 250))

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)
		assert.Same(t, attempt, env.manager.Current())
		assert.Equal(t, uint64(0), work.Fee)
	})

	t.Run("tip change rebuilds", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		old := env.manager.Current()

		env.chain.setTip(testTip(0xa2, 101))

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		assert.NotSame(t, old, env.manager.Current())
		assert.Equal(t, AttemptSuperseded, old.State())
		assert.Equal(t, chainhash.Hash{0xa2}, decodeWork(t, work).PrevBlock)
		assert.Equal(t, uint32(102), work.Height)
	})

	t.Run("tip failure keeps the previous attempt", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()

		env.chain.setTipErr(errors.NewServiceUnavailableError("chain down"))

		_, err = env.manager.GetWork(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))

		assert.Same(t, attempt, env.manager.Current())
		assert.True(t, attempt.IsCurrent())
	})

	t.Run("mempool failure keeps the previous attempt", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()

		env.chain.setTip(testTip(0xa2, 101))
		env.mempool.setSnapErr(errors.NewServiceUnavailableError("mempool down"))

		_, err = env.manager.GetWork(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))

		assert.Same(t, attempt, env.manager.Current())
		assert.True(t, attempt.IsCurrent())
	})

	t.Run("no attempt is installed when the first build fails", func(t *testing.T) {
		env := newTestEnv(t)
		env.mempool.setSnapErr(errors.NewServiceUnavailableError("mempool down"))

		_, err := env.manager.GetWork(ctx)
		require.Error(t, err)
		assert.Nil(t, env.manager.Current())
	})

	t.Run("obsolete rebuild is discarded", func(t *testing.T) {
		env := newTestEnv(t)

		// build sees a1, the re-check before install already sees a2
		env.chain.setTip(testTip(0xa1, 100), testTip(0xa2, 101))

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		assert.Equal(t, chainhash.Hash{0xa2}, decodeWork(t, work).PrevBlock)
		assert.Equal(t, 2, env.mempool.snapshotCount())
	})

	t.Run("target expander failure", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		chain := &fakeChain{tips: []*Tip{testTip(0xa1, 100)}}

		expander := &MockTargetExpander{}
		expander.On("ExpandTarget", uint32(easyBits)).Return(nil, errors.NewInvalidArgumentError("bad bits"))

		m, err := NewManager(ulogger.TestLogger{}, testSettings(), chain, &fakeMempool{clock: clock},
			WithClock(clock.Now), WithAcceptedWorkStore(memory.New()), WithTargetExpander(expander))
		require.NoError(t, err)

		_, err = m.GetWork(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrProcessing))
		expander.AssertExpectations(t)
	})

	t.Run("oversized target is never installed", func(t *testing.T) {
		env := newTestEnv(t)

		tip := testTip(0xa1, 100)
		tip.Bits = 0xff7fffff
		env.chain.setTip(tip)

		for i := 0; i < 2; i++ {
			_, err := env.manager.GetWork(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrProcessing))
			assert.Nil(t, env.manager.Current())
		}
	})

	t.Run("oversized target keeps the previous attempt", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()

		tip := testTip(0xa2, 101)
		tip.Bits = 0xff7fffff
		env.chain.setTip(tip)

		_, err = env.manager.GetWork(ctx)
		require.Error(t, err)
		assert.Same(t, attempt, env.manager.Current())
		assert.True(t, attempt.IsCurrent())
	})

	t.Run("expander returning a target wider than 256 bits", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		chain := &fakeChain{tips: []*Tip{testTip(0xa1, 100)}}

		expander := &MockTargetExpander{}
		expander.On("ExpandTarget", uint32(easyBits)).Return(model.CompactToBig(0xff7fffff), nil)

		m, err := NewManager(ulogger.NewVerboseTestLogger(t), testSettings(), chain, &fakeMempool{clock: clock},
			WithClock(clock.Now), WithAcceptedWorkStore(memory.New()), WithTargetExpander(expander))
		require.NoError(t, err)

		_, err = m.GetWork(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrProcessing))
		assert.Nil(t, m.Current())
	})
}

func TestManager_GetWorkWithMocks(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}

	chain := &MockChainClient{}
	chain.On("CurrentTip", mock.Anything).Return(testTip(0xa1, 100), nil).Times(2)
	chain.On("CurrentTip", mock.Anything).Return(nil, errors.NewServiceUnavailableError("chain down"))

	mempool := &MockMempoolClient{}
	mempool.On("Snapshot", mock.Anything).Return([]*model.Tx{testTx(1, 12345, 100)}, nil).Once()

	m, err := NewManager(ulogger.TestLogger{}, testSettings(), chain, mempool, WithClock(clock.Now), WithAcceptedWorkStore(memory.New()))
	require.NoError(t, err)

	work, err := m.GetWork(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), work.Fee)

	attempt := m.Current()

	_, err = m.GetWork(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
	assert.Same(t, attempt, m.Current())

	chain.AssertExpectations(t)
	mempool.AssertExpectations(t)
}

func TestManager_SubmitWork(t *testing.T) {
	ctx := context.Background()

	t.Run("valid, duplicate, stale", func(t *testing.T) {
		env := newTestEnv(t)
		env.mempool.add(testTx(1, 12345, 250))

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()
		solution := solve(t, env.manager, work, 0)

		res, err := env.manager.SubmitWork(ctx, solution)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, ReasonValid, res.Reason)
		assert.Equal(t, AttemptSuperseded, attempt.State())

		blocks := env.chain.acceptedBlocks()
		require.Len(t, blocks, 1)
		assert.Equal(t, uint64(12345), blocks[0].Fees)
		assert.Equal(t, attempt.Mask(), blocks[0].Mask)

		blockHash, err := blocks[0].Hash()
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(blockHash[:]), res.Hash)

		journaled, err := env.store.Get(ctx, blockHash)
		require.NoError(t, err)
		assert.Equal(t, attempt.ID, journaled.AttemptID)
		assert.Equal(t, uint64(12345), journaled.Fee)

		res, err = env.manager.SubmitWork(ctx, solution)
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, ReasonDuplicate, res.Reason)

		env.chain.setTip(testTip(0xa2, 101))

		_, err = env.manager.GetWork(ctx)
		require.NoError(t, err)

		res, err = env.manager.SubmitWork(ctx, solution)
		require.NoError(t, err)
		assert.Equal(t, ReasonStale, res.Reason)

		assert.Len(t, env.chain.acceptedBlocks(), 1)
	})

	t.Run("solution for a replaced attempt is stale", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		solution := solve(t, env.manager, work, 0)

		env.clock.Advance(11 * time.Second)
		env.mempool.add(testTx(1, 100, 250))

		_, err = env.manager.GetWork(ctx)
		require.NoError(t, err)

		res, err := env.manager.SubmitWork(ctx, solution)
		require.NoError(t, err)
		assert.Equal(t, ReasonStale, res.Reason)
		assert.Empty(t, env.chain.acceptedBlocks())
	})

	t.Run("superseded by tip notification", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		solution := solve(t, env.manager, work, 0)

		env.manager.NotifyTip(ctx, chainhash.Hash{0xa2})

		res, err := env.manager.SubmitWork(ctx, solution)
		require.NoError(t, err)
		assert.Equal(t, ReasonStale, res.Reason)
	})

	t.Run("high hash", func(t *testing.T) {
		env := newTestEnv(t)
		tip := testTip(0xa1, 100)
		tip.Bits = 0x03000001
		env.chain.setTip(tip)

		_, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		header := env.manager.Current().Header()

		data, err := header.Bytes()
		require.NoError(t, err)

		res, err := env.manager.SubmitWork(ctx, data)
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, ReasonHighHash, res.Reason)
		assert.Empty(t, env.chain.acceptedBlocks())
	})

	t.Run("bad commitment", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		header := decodeWork(t, work)
		header.MerkleRoot[0] ^= 0x01

		data, err := header.Bytes()
		require.NoError(t, err)

		res, err := env.manager.SubmitWork(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalid, res.Reason)
		assert.Equal(t, "bad-commitment: merkleRoot", res.Detail)
	})

	t.Run("time bounds", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		tests := []struct {
			time   uint64
			detail string
		}{
			{1699999000, "time-too-old"},
			{1700000000 + 3*3600, "time-too-new"},
		}

		for _, tt := range tests {
			t.Run(tt.detail, func(t *testing.T) {
				header := decodeWork(t, work)
				header.Time = tt.time

				data, err := header.Bytes()
				require.NoError(t, err)

				res, err := env.manager.SubmitWork(ctx, data)
				require.NoError(t, err)
				assert.Equal(t, ReasonInvalid, res.Reason)
				assert.Equal(t, tt.detail, res.Detail)
			})
		}
	})

	t.Run("rejected by chain", func(t *testing.T) {
		env := newTestEnv(t)
		env.chain.acceptErr = errors.NewBlockRejectedError("bad-txns-inputs-missingorspent")

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		attempt := env.manager.Current()

		res, err := env.manager.SubmitWork(ctx, solve(t, env.manager, work, 0))
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, ReasonInvalid, res.Reason)
		assert.Equal(t, "bad-txns-inputs-missingorspent", res.Detail)
		assert.True(t, attempt.IsCurrent())

		list, err := env.store.List(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("chain unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.chain.acceptErr = errors.NewProcessingError("connection refused")

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		_, err = env.manager.SubmitWork(ctx, solve(t, env.manager, work, 0))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
		assert.True(t, env.manager.Current().IsCurrent())
	})

	t.Run("malformed", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.SubmitWork(ctx, make([]byte, 100))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrFormat))

		_, err = env.manager.SubmitWorkHex(ctx, "not hex")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrFormat))
	})

	t.Run("no attempt", func(t *testing.T) {
		env := newTestEnv(t)

		data, err := hex.DecodeString(sampleWork(t))
		require.NoError(t, err)

		res, err := env.manager.SubmitWork(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ReasonStale, res.Reason)
	})

	t.Run("concurrent identical submissions accept once", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		solution := solve(t, env.manager, work, 0)

		var (
			mu      sync.Mutex
			reasons = map[SubmitReason]int{}
		)

		g, gCtx := errgroup.WithContext(ctx)

		for i := 0; i < 16; i++ {
			g.Go(func() error {
				res, err := env.manager.SubmitWork(gCtx, solution)
				if err != nil {
					return err
				}

				mu.Lock()
				reasons[res.Reason]++
				mu.Unlock()

				return nil
			})
		}

		require.NoError(t, g.Wait())

		assert.Equal(t, 1, reasons[ReasonValid])
		assert.Equal(t, 15, reasons[ReasonDuplicate])
		assert.Len(t, env.chain.acceptedBlocks(), 1)
	})

	t.Run("competing solutions accept once", func(t *testing.T) {
		env := newTestEnv(t)

		work, err := env.manager.GetWork(ctx)
		require.NoError(t, err)

		first := solve(t, env.manager, work, 0)
		firstHeader, err := model.NewMinerHeaderFromBytes(first)
		require.NoError(t, err)

		second := solve(t, env.manager, work, firstHeader.Nonce+1)

		var (
			mu      sync.Mutex
			reasons = map[SubmitReason]int{}
		)

		g, gCtx := errgroup.WithContext(ctx)

		for _, solution := range [][]byte{first, second} {
			g.Go(func() error {
				res, err := env.manager.SubmitWork(gCtx, solution)
				if err != nil {
					return err
				}

				mu.Lock()
				reasons[res.Reason]++
				mu.Unlock()

				return nil
			})
		}

		require.NoError(t, g.Wait())

		assert.Equal(t, 1, reasons[ReasonValid])
		assert.Equal(t, 1, reasons[ReasonStale])
		assert.Len(t, env.chain.acceptedBlocks(), 1)
	})
}

func TestManager_SubmitWorkPendingSolution(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, chain *blockingChain) (*Manager, []byte, []byte) {
		t.Helper()

		clock := &fakeClock{now: time.Unix(1700000000, 0)}

		m, err := NewManager(ulogger.NewVerboseTestLogger(t), testSettings(), chain, &fakeMempool{clock: clock},
			WithClock(clock.Now), WithAcceptedWorkStore(memory.New()))
		require.NoError(t, err)

		work, err := m.GetWork(ctx)
		require.NoError(t, err)

		first := solve(t, m, work, 0)

		firstHeader, err := model.NewMinerHeaderFromBytes(first)
		require.NoError(t, err)

		return m, first, solve(t, m, work, firstHeader.Nonce+1)
	}

	t.Run("slow chain does not block other submitters", func(t *testing.T) {
		chain := newBlockingChain()
		m, first, second := setup(t, chain)

		results := make(chan *SubmitResult, 1)

		go func() {
			res, err := m.SubmitWork(ctx, first)
			assert.NoError(t, err)
			results <- res
		}()

		<-chain.entered

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := m.SubmitWork(waitCtx, second)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))

		// the state lock is free while the chain call is pending
		m.submitMu.Lock()
		assert.Len(t, m.pending, 1)
		m.submitMu.Unlock()

		close(chain.release)

		res := <-results
		require.NotNil(t, res)
		assert.Equal(t, ReasonValid, res.Reason)

		res, err = m.SubmitWork(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, ReasonStale, res.Reason)

		res, err = m.SubmitWork(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, ReasonDuplicate, res.Reason)

		assert.Len(t, chain.acceptedBlocks(), 1)
		assert.Empty(t, m.pending)
	})

	t.Run("waiting solution is tried after a rejection", func(t *testing.T) {
		chain := newBlockingChain(errors.NewBlockRejectedError("bad-cb-amount"))
		m, first, second := setup(t, chain)

		g, gCtx := errgroup.WithContext(ctx)

		var firstRes, secondRes *SubmitResult

		g.Go(func() error {
			var err error
			firstRes, err = m.SubmitWork(gCtx, first)

			return err
		})

		<-chain.entered

		g.Go(func() error {
			var err error
			secondRes, err = m.SubmitWork(gCtx, second)

			return err
		})

		close(chain.release)

		require.NoError(t, g.Wait())

		assert.Equal(t, ReasonInvalid, firstRes.Reason)
		assert.Equal(t, "bad-cb-amount", firstRes.Detail)
		assert.Equal(t, ReasonValid, secondRes.Reason)
		assert.Len(t, chain.acceptedBlocks(), 1)
	})
}

func TestManager_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	chain := &subscribingChain{fakeChain: &fakeChain{
		tips:   []*Tip{testTip(0xa1, 100)},
		notify: make(chan *TipNotification, 1),
	}}

	m, err := NewManager(ulogger.NewVerboseTestLogger(t), testSettings(), chain, &fakeMempool{clock: clock}, WithClock(clock.Now), WithAcceptedWorkStore(memory.New()))
	require.NoError(t, err)

	require.NoError(t, m.Start(ctx))

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	_, err = m.GetWork(ctx)
	require.NoError(t, err)

	attempt := m.Current()

	// same tip does not supersede
	chain.notify <- &TipNotification{Hash: chainhash.Hash{0xa1}, Height: 100}

	chain.notify <- &TipNotification{Hash: chainhash.Hash{0xa2}, Height: 101}

	require.Eventually(t, func() bool {
		return attempt.State() == AttemptSuperseded
	}, time.Second, 5*time.Millisecond)
}

func sampleWork(t *testing.T) string {
	t.Helper()

	h := &model.MinerHeader{
		Time:       1700000000,
		ExtraNonce: make([]byte, model.ExtraNonceSize),
		Bits:       easyBits,
	}

	data, err := h.Bytes()
	require.NoError(t, err)

	return hex.EncodeToString(data)
}
