package getwork

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/google/uuid"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/looplab/fsm"
	"go.uber.org/atomic"
)

const (
	AttemptBuilding   = "building"
	AttemptCurrent    = "current"
	AttemptSuperseded = "superseded"
	AttemptDiscarded  = "discarded"

	eventInstall   = "install"
	eventSupersede = "supersede"
	eventDiscard   = "discard"
)

// Attempt is a block template offered to miners. Everything except the header
// time is fixed once the attempt is built.
type Attempt struct {
	ID           string
	Tip          Tip
	Height       uint32
	Target       *big.Int
	Transactions []*model.Tx
	Fee          uint64
	Size         uint64
	CreatedAt    time.Time

	header *model.MinerHeader
	mask   chainhash.Hash
	time   *atomic.Uint64
	state  *fsm.FSM
}

func newAttempt(tip *Tip, target *big.Int, sel *selection, createdAt time.Time) (*Attempt, error) {
	var mask chainhash.Hash
	if _, err := rand.Read(mask[:]); err != nil {
		return nil, errors.NewProcessingError("failed to generate attempt mask", err)
	}

	headerTime := minHeaderTime(tip, createdAt)

	header := &model.MinerHeader{
		Time:         headerTime,
		PrevBlock:    tip.Hash,
		TreeRoot:     tip.TreeRoot,
		MaskHash:     model.MaskHash(mask),
		ExtraNonce:   make([]byte, model.ExtraNonceSize),
		ReservedRoot: tip.ReservedRoot,
		WitnessRoot:  sel.witnessRoot,
		MerkleRoot:   sel.merkleRoot,
		Version:      tip.Version,
		Bits:         tip.Bits,
	}

	return &Attempt{
		ID:           uuid.NewString(),
		Tip:          *tip,
		Height:       tip.Height + 1,
		Target:       target,
		Transactions: sel.txs,
		Fee:          sel.fee,
		Size:         sel.size,
		CreatedAt:    createdAt,
		header:       header,
		mask:         mask,
		time:         atomic.NewUint64(headerTime),
		state: fsm.NewFSM(
			AttemptBuilding,
			fsm.Events{
				{Name: eventInstall, Src: []string{AttemptBuilding}, Dst: AttemptCurrent},
				{Name: eventSupersede, Src: []string{AttemptCurrent}, Dst: AttemptSuperseded},
				{Name: eventDiscard, Src: []string{AttemptBuilding}, Dst: AttemptDiscarded},
			},
			fsm.Callbacks{},
		),
	}, nil
}

// minHeaderTime is the clock time, never below the tip median time + 1.
func minHeaderTime(tip *Tip, now time.Time) uint64 {
	ts := uint64(0)
	if unix := now.Unix(); unix > 0 {
		ts = uint64(unix)
	}

	if ts <= tip.MedianTime {
		ts = tip.MedianTime + 1
	}

	return ts
}

func (a *Attempt) State() string {
	return a.state.Current()
}

func (a *Attempt) IsCurrent() bool {
	return a.state.Is(AttemptCurrent)
}

// Mask is the node side secret xor'ed into the proof of work hash.
func (a *Attempt) Mask() chainhash.Hash {
	return a.mask
}

func (a *Attempt) Time() uint64 {
	return a.time.Load()
}

// Header returns a copy of the template header carrying the current time.
func (a *Attempt) Header() *model.MinerHeader {
	h := a.header.Clone()
	h.Time = a.time.Load()

	return h
}

// refreshTime advances the header time to now. Committed fields are untouched.
func (a *Attempt) refreshTime(now time.Time) uint64 {
	ts := minHeaderTime(&a.Tip, now)

	for {
		current := a.time.Load()
		if ts <= current {
			return current
		}

		if a.time.CompareAndSwap(current, ts) {
			return ts
		}
	}
}

func (a *Attempt) install(ctx context.Context) error {
	return a.state.Event(ctx, eventInstall)
}

func (a *Attempt) supersede(ctx context.Context) error {
	return a.state.Event(ctx, eventSupersede)
}

func (a *Attempt) discard(ctx context.Context) error {
	return a.state.Event(ctx, eventDiscard)
}

// linkage reports whether the submitted header links to this attempt's tip,
// transaction set and mask.
func (a *Attempt) linkage(h *model.MinerHeader) bool {
	return h.PrevBlock.IsEqual(&a.header.PrevBlock) &&
		h.WitnessRoot.IsEqual(&a.header.WitnessRoot) &&
		h.MaskHash.IsEqual(&a.header.MaskHash)
}

// commitmentMismatch names the first committed field that differs from the
// template, or returns an empty string.
func (a *Attempt) commitmentMismatch(h *model.MinerHeader) string {
	switch {
	case !h.MerkleRoot.IsEqual(&a.header.MerkleRoot):
		return "merkleRoot"
	case !h.TreeRoot.IsEqual(&a.header.TreeRoot):
		return "treeRoot"
	case !h.ReservedRoot.IsEqual(&a.header.ReservedRoot):
		return "reservedRoot"
	case h.Version != a.header.Version:
		return "version"
	case h.Bits != a.header.Bits:
		return "bits"
	}

	return ""
}
