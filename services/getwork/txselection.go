package getwork

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/util"
)

type selection struct {
	txs         []*model.Tx
	fee         uint64
	size        uint64
	merkleRoot  chainhash.Hash
	witnessRoot chainhash.Hash
}

// selectTransactions walks the candidates in mempool order and takes every
// transaction that still fits. maxTxs <= 0 means no count limit.
func selectTransactions(candidates []*model.Tx, maxSize uint64, maxTxs int) (*selection, error) {
	sel := &selection{
		txs: make([]*model.Tx, 0, len(candidates)),
	}

	seen := util.NewSwissSet(len(candidates))

	for _, tx := range candidates {
		if maxTxs > 0 && len(sel.txs) >= maxTxs {
			break
		}

		if tx == nil {
			continue
		}

		if !seen.Put(tx.Hash) {
			continue
		}

		if maxSize > 0 && (tx.Size > maxSize || sel.size > maxSize-tx.Size) {
			continue
		}

		if sel.fee+tx.Fee < sel.fee {
			return nil, errors.NewProcessingError("fee overflow adding tx %x", tx.Hash[:])
		}

		sel.fee += tx.Fee
		sel.size += tx.Size
		sel.txs = append(sel.txs, tx)
	}

	txHashes := make([]chainhash.Hash, len(sel.txs))
	witnessHashes := make([]chainhash.Hash, len(sel.txs))

	for i, tx := range sel.txs {
		txHashes[i] = tx.Hash
		witnessHashes[i] = tx.WitnessHash
	}

	sel.merkleRoot = util.MerkleRoot(txHashes)
	sel.witnessRoot = util.MerkleRoot(witnessHashes)

	return sel, nil
}
