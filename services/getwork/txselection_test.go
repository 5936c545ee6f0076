package getwork

import (
	"math"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx(id byte, fee, size uint64) *model.Tx {
	return &model.Tx{
		Hash:        chainhash.Hash{id},
		WitnessHash: chainhash.Hash{id, 0xff},
		Fee:         fee,
		Size:        size,
	}
}

func TestSelectTransactions(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		sel, err := selectTransactions(nil, 1000, 0)
		require.NoError(t, err)

		assert.Empty(t, sel.txs)
		assert.Equal(t, uint64(0), sel.fee)
		assert.Equal(t, util.MerkleSentinel, sel.merkleRoot)
		assert.Equal(t, util.MerkleSentinel, sel.witnessRoot)
	})

	t.Run("sums fees in order", func(t *testing.T) {
		sel, err := selectTransactions([]*model.Tx{testTx(1, 12345, 100), testTx(2, 54321, 200)}, 1000, 0)
		require.NoError(t, err)

		require.Len(t, sel.txs, 2)
		assert.Equal(t, uint64(66666), sel.fee)
		assert.Equal(t, uint64(300), sel.size)
		assert.Equal(t, util.MerkleRoot([]chainhash.Hash{{1}, {2}}), sel.merkleRoot)
		assert.Equal(t, util.MerkleRoot([]chainhash.Hash{{1, 0xff}, {2, 0xff}}), sel.witnessRoot)
	})

	t.Run("skips duplicates and nil", func(t *testing.T) {
		sel, err := selectTransactions([]*model.Tx{testTx(1, 10, 10), nil, testTx(1, 10, 10), testTx(2, 20, 10)}, 1000, 0)
		require.NoError(t, err)

		require.Len(t, sel.txs, 2)
		assert.Equal(t, uint64(30), sel.fee)
	})

	t.Run("size limit skips but keeps filling", func(t *testing.T) {
		sel, err := selectTransactions([]*model.Tx{testTx(1, 10, 600), testTx(2, 20, 600), testTx(3, 30, 400)}, 1000, 0)
		require.NoError(t, err)

		require.Len(t, sel.txs, 2)
		assert.Equal(t, chainhash.Hash{1}, sel.txs[0].Hash)
		assert.Equal(t, chainhash.Hash{3}, sel.txs[1].Hash)
		assert.Equal(t, uint64(40), sel.fee)
	})

	t.Run("count limit", func(t *testing.T) {
		sel, err := selectTransactions([]*model.Tx{testTx(1, 10, 1), testTx(2, 20, 1), testTx(3, 30, 1)}, 1000, 2)
		require.NoError(t, err)

		require.Len(t, sel.txs, 2)
		assert.Equal(t, uint64(30), sel.fee)
	})

	t.Run("fee overflow", func(t *testing.T) {
		_, err := selectTransactions([]*model.Tx{testTx(1, math.MaxUint64, 1), testTx(2, 1, 1)}, 1000, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrProcessing))
	})
}
