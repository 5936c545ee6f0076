package getwork

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/settings"
	"github.com/hnsnode/hnsnode/stores/acceptedwork"
	"github.com/hnsnode/hnsnode/ulogger"
	"github.com/jellydator/ttlcache/v3"
	"github.com/kpango/fastime"
	"go.uber.org/atomic"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// maxRebuildTries bounds how often a rebuild is retried when the tip moves
// while the template is being built.
const maxRebuildTries = 3

// Manager owns the current Attempt. Rebuilds are serialized, readers always see
// either the old or the fully built new attempt.
type Manager struct {
	logger   ulogger.Logger
	settings *settings.Settings
	chain    ChainClient
	mempool  MempoolClient
	targets  TargetExpander
	store    acceptedwork.Store
	clock    func() time.Time

	current      atomic.Pointer[Attempt]
	lastActivity atomic.Time
	started      atomic.Bool

	rebuildMu    sync.Mutex
	rebuildGroup singleflight.Group

	// submitMu guards pending, it is never held across a chain call
	submitMu sync.Mutex
	pending  map[string]*solutionClaim

	// solved maps the hash of an accepted submission to the attempt it solved
	solved *ttlcache.Cache[chainhash.Hash, string]
}

type Option func(*Manager)

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func WithTargetExpander(targets TargetExpander) Option {
	return func(m *Manager) {
		m.targets = targets
	}
}

func WithAcceptedWorkStore(store acceptedwork.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

func NewManager(logger ulogger.Logger, tSettings *settings.Settings, chain ChainClient, mempool MempoolClient, opts ...Option) (*Manager, error) {
	initPrometheusMetrics()

	if chain == nil || mempool == nil {
		return nil, errors.NewInvalidArgumentError("[GetWork] chain and mempool clients are required")
	}

	m := &Manager{
		logger:   logger,
		settings: tSettings,
		chain:    chain,
		mempool:  mempool,
		targets:  model.CompactTargetExpander{},
		clock:    fastime.Now,
		pending:  make(map[string]*solutionClaim),
		solved: ttlcache.New[chainhash.Hash, string](
			ttlcache.WithTTL[chainhash.Hash, string](tSettings.GetWork.DuplicateTTL),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, string](),
		),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		store, err := acceptedwork.New(logger, tSettings.GetWork.AcceptedWorkStore, tSettings.DataFolder)
		if err != nil {
			return nil, errors.NewConfigurationError("[GetWork] could not create accepted work store", err)
		}

		m.store = store
	}

	return m, nil
}

// Start runs the duplicate cache janitor and, when the chain client pushes tip
// changes, supersedes the current attempt as soon as the tip moves.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	go m.solved.Start()

	subscriber, ok := m.chain.(TipSubscriber)
	if !ok {
		return nil
	}

	ch, err := subscriber.Subscribe(ctx)
	if err != nil {
		return errors.NewServiceUnavailableError("[GetWork] could not subscribe to tip notifications", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case notification, ok := <-ch:
				if !ok {
					m.logger.Warnf("[GetWork] tip notification channel closed")
					return
				}

				if notification != nil {
					m.NotifyTip(ctx, notification.Hash)
				}
			}
		}
	}()

	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	if m.started.CompareAndSwap(true, false) {
		m.solved.Stop()
	}

	return m.store.Close(ctx)
}

// Current returns the installed attempt, or nil.
func (m *Manager) Current() *Attempt {
	return m.current.Load()
}

// GetWork returns the header miners should search on, rebuilding the template
// when it is stale.
func (m *Manager) GetWork(ctx context.Context) (*WorkResponse, error) {
	start := time.Now()
	defer func() {
		prometheusGetWork.Inc()
		prometheusGetWorkDuration.Observe(time.Since(start).Seconds())
	}()

	now := m.clock()

	attempt, err := m.ensureAttempt(ctx, now)
	if err != nil {
		return nil, err
	}

	m.lastActivity.Store(now)

	ts := attempt.refreshTime(now)

	header := attempt.Header()
	header.Time = ts

	data, err := header.Bytes()
	if err != nil {
		return nil, errors.NewProcessingError("[GetWork] could not encode header", err)
	}

	target, err := model.TargetBytes(attempt.Target)
	if err != nil {
		return nil, errors.NewProcessingError("[GetWork] could not encode target", err)
	}

	return &WorkResponse{
		Data:   hex.EncodeToString(data),
		Target: hex.EncodeToString(target),
		Fee:    attempt.Fee,
		Height: attempt.Height,
		Time:   ts,
	}, nil
}

func (m *Manager) ensureAttempt(ctx context.Context, now time.Time) (*Attempt, error) {
	attempt := m.current.Load()

	var reason RebuildReason

	switch {
	case attempt == nil:
		reason = RebuildNoAttempt
	case !attempt.IsCurrent():
		reason = RebuildSuperseded
	default:
		tip, err := m.chain.CurrentTip(ctx)
		if err != nil {
			return nil, errors.NewServiceUnavailableError("[GetWork] could not get current tip", err)
		}

		decision := ShouldRebuild(StalenessInput{
			Now:            now,
			LastActivity:   m.lastActivity.Load(),
			CurrentTip:     tip.Hash,
			AttemptTip:     attempt.Tip.Hash,
			MempoolChanged: m.mempool.ChangedSince(attempt.CreatedAt),
			GraceInterval:  m.settings.GetWork.GraceInterval,
		})

		if !decision.Rebuild {
			return attempt, nil
		}

		reason = decision.Reason
	}

	return m.rebuild(ctx, attempt, reason)
}

// rebuild coalesces concurrent callers onto one build. A caller arriving after
// another caller already replaced stale gets the new attempt without building.
func (m *Manager) rebuild(ctx context.Context, stale *Attempt, reason RebuildReason) (*Attempt, error) {
	v, err, _ := m.rebuildGroup.Do("rebuild", func() (interface{}, error) {
		m.rebuildMu.Lock()
		defer m.rebuildMu.Unlock()

		if current := m.current.Load(); current != nil && current != stale && current.IsCurrent() {
			return current, nil
		}

		return m.buildAndInstall(ctx, reason)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Attempt), nil
}

func (m *Manager) buildAndInstall(ctx context.Context, reason RebuildReason) (*Attempt, error) {
	for try := 1; try <= maxRebuildTries; try++ {
		attempt, err := m.build(ctx)
		if err != nil {
			return nil, err
		}

		// the tip may have moved while we were selecting transactions
		latest, err := m.chain.CurrentTip(ctx)
		if err != nil {
			m.discard(ctx, attempt, "tip unavailable")
			return nil, errors.NewServiceUnavailableError("[GetWork] could not re-check tip before installing attempt", err)
		}

		if !latest.Hash.IsEqual(&attempt.Tip.Hash) {
			m.discard(ctx, attempt, "tip moved")
			continue
		}

		if err = m.install(ctx, attempt); err != nil {
			return nil, err
		}

		prometheusRebuilds.WithLabelValues(string(reason)).Inc()

		m.logger.Infof("[GetWork] installed attempt %s at height %d (%s): %d txs, fee %d", attempt.ID, attempt.Height, reason, len(attempt.Transactions), attempt.Fee)

		return attempt, nil
	}

	return nil, errors.NewProcessingError("[GetWork] tip kept moving, gave up building attempt after %d tries", maxRebuildTries)
}

func (m *Manager) build(ctx context.Context) (*Attempt, error) {
	tip, err := m.chain.CurrentTip(ctx)
	if err != nil {
		return nil, errors.NewServiceUnavailableError("[GetWork] could not get current tip", err)
	}

	// taken before the snapshot so changes made while selecting are seen as changes
	createdAt := m.clock()

	candidates, err := m.mempool.Snapshot(ctx)
	if err != nil {
		return nil, errors.NewServiceUnavailableError("[GetWork] could not get mempool snapshot", err)
	}

	target, err := m.targets.ExpandTarget(tip.Bits)
	if err != nil {
		return nil, errors.NewProcessingError("[GetWork] could not expand target for bits %08x", tip.Bits, err)
	}

	// miners get the target as 32 bytes, anything wider can never be served
	if _, err = model.TargetBytes(target); err != nil {
		return nil, errors.NewProcessingError("[GetWork] target for bits %08x is not a valid 256 bit target", tip.Bits, err)
	}

	sel, err := selectTransactions(candidates, m.settings.GetWork.MaxBlockSize, m.settings.GetWork.MaxBlockTxs)
	if err != nil {
		return nil, err
	}

	return newAttempt(tip, target, sel, createdAt)
}

func (m *Manager) install(ctx context.Context, attempt *Attempt) error {
	if err := attempt.install(ctx); err != nil {
		return errors.NewProcessingError("[GetWork] could not install attempt %s", attempt.ID, err)
	}

	previous := m.current.Swap(attempt)
	if previous != nil && previous.IsCurrent() {
		if err := previous.supersede(ctx); err != nil {
			m.logger.Warnf("[GetWork] could not supersede attempt %s: %v", previous.ID, err)
		}
	}

	prometheusAttemptFee.Set(float64(attempt.Fee))
	prometheusAttemptTxs.Observe(float64(len(attempt.Transactions)))
	prometheusAttemptHeight.Set(float64(attempt.Height))

	return nil
}

func (m *Manager) discard(ctx context.Context, attempt *Attempt, why string) {
	if err := attempt.discard(ctx); err != nil {
		m.logger.Warnf("[GetWork] could not discard attempt %s: %v", attempt.ID, err)
	}

	prometheusDiscardedAttempts.Inc()

	m.logger.Infof("[GetWork] discarded attempt %s built on %x: %s", attempt.ID, attempt.Tip.Hash[:], why)
}

// NotifyTip supersedes the current attempt when it was not built on hash.
func (m *Manager) NotifyTip(ctx context.Context, hash chainhash.Hash) {
	attempt := m.current.Load()
	if attempt == nil || attempt.Tip.Hash.IsEqual(&hash) || !attempt.IsCurrent() {
		return
	}

	if err := attempt.supersede(ctx); err != nil {
		m.logger.Debugf("[GetWork] attempt %s already superseded: %v", attempt.ID, err)
		return
	}

	m.logger.Infof("[GetWork] tip changed to %x, superseded attempt %s", hash[:], attempt.ID)
}

func (m *Manager) SubmitWorkHex(ctx context.Context, dataHex string) (*SubmitResult, error) {
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return nil, errors.NewFormatError("[GetWork] submitted data is not valid hex", err)
	}

	return m.SubmitWork(ctx, data)
}

// SubmitWork checks a solved header against the current attempt and hands the
// block to the chain when it meets the target.
func (m *Manager) SubmitWork(ctx context.Context, data []byte) (*SubmitResult, error) {
	start := time.Now()

	result, err := m.submitWork(ctx, data)

	prometheusSubmitWorkLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		prometheusSubmitWork.WithLabelValues("error").Inc()
		return nil, err
	}

	prometheusSubmitWork.WithLabelValues(string(result.Reason)).Inc()

	return result, nil
}

func (m *Manager) submitWork(ctx context.Context, data []byte) (*SubmitResult, error) {
	header, err := model.NewMinerHeaderFromBytes(data)
	if err != nil {
		return nil, err
	}

	key := chainhash.Hash(blake2b.Sum256(data))

	// one attempt reference for the whole check
	attempt := m.current.Load()

	if m.isDuplicate(key, attempt) {
		return &SubmitResult{Reason: ReasonDuplicate}, nil
	}

	if attempt == nil || !attempt.IsCurrent() || !attempt.linkage(header) {
		return &SubmitResult{Reason: ReasonStale}, nil
	}

	if field := attempt.commitmentMismatch(header); field != "" {
		return &SubmitResult{Reason: ReasonInvalid, Detail: "bad-commitment: " + field}, nil
	}

	now := m.clock()

	if header.Time <= attempt.Tip.MedianTime {
		return &SubmitResult{Reason: ReasonInvalid, Detail: "time-too-old"}, nil
	}

	if maxTime := now.Add(m.settings.GetWork.MaxFutureBlockTime).Unix(); maxTime > 0 && header.Time > uint64(maxTime) {
		return &SubmitResult{Reason: ReasonInvalid, Detail: "time-too-new"}, nil
	}

	powHash, err := header.PowHash(attempt.Mask())
	if err != nil {
		return nil, err
	}

	hashHex := hex.EncodeToString(powHash[:])

	if !model.CheckProofOfWork(powHash, attempt.Target) {
		return &SubmitResult{Reason: ReasonHighHash, Hash: hashHex}, nil
	}

	return m.accept(ctx, attempt, header, key, powHash)
}

func (m *Manager) isDuplicate(key chainhash.Hash, attempt *Attempt) bool {
	item := m.solved.Get(key)
	if item == nil {
		return false
	}

	// solutions only count as duplicates while the attempt they solved is the
	// latest one, after that they are stale
	return attempt != nil && item.Value() == attempt.ID
}

// solutionClaim marks an attempt whose solution is being handed to the chain.
// done is closed once the outcome is published.
type solutionClaim struct {
	key  chainhash.Hash
	done chan struct{}
}

func (m *Manager) accept(ctx context.Context, attempt *Attempt, header *model.MinerHeader, key, powHash chainhash.Hash) (*SubmitResult, error) {
	claim, result, err := m.claim(ctx, attempt, key)
	if claim == nil {
		return result, err
	}

	hashHex := hex.EncodeToString(powHash[:])

	block := &model.Block{
		Header:       header,
		Mask:         attempt.Mask(),
		Height:       attempt.Height,
		Transactions: attempt.Transactions,
		Fees:         attempt.Fee,
	}

	acceptErr := m.chain.AcceptBlock(ctx, block)

	m.submitMu.Lock()

	if acceptErr == nil {
		m.solved.Set(key, attempt.ID, ttlcache.DefaultTTL)

		if err := attempt.supersede(ctx); err != nil {
			m.logger.Debugf("[GetWork] attempt %s already superseded: %v", attempt.ID, err)
		}
	}

	delete(m.pending, attempt.ID)
	close(claim.done)

	m.submitMu.Unlock()

	if acceptErr != nil {
		if errors.Is(acceptErr, errors.ErrBlockRejected) {
			m.logger.Warnf("[GetWork] block %s at height %d rejected: %v", hashHex, attempt.Height, acceptErr)

			return &SubmitResult{Reason: ReasonInvalid, Detail: rejectionDetail(acceptErr), Hash: hashHex}, nil
		}

		return nil, errors.NewServiceUnavailableError("[GetWork] could not hand block %s to the chain", hashHex, acceptErr)
	}

	m.logger.Infof("[GetWork] block %s accepted at height %d, fee %d", hashHex, attempt.Height, attempt.Fee)

	if err := m.store.Store(ctx, &model.AcceptedWork{
		AttemptID: attempt.ID,
		BlockHash: powHash,
		PrevBlock: header.PrevBlock,
		Height:    attempt.Height,
		Fee:       attempt.Fee,
		TxCount:   len(attempt.Transactions),
		CreatedAt: m.clock(),
	}); err != nil {
		m.logger.Errorf("[GetWork] could not journal accepted block %s: %v", hashHex, err)
	}

	return &SubmitResult{Accepted: true, Reason: ReasonValid, Hash: hashHex}, nil
}

// claim reserves attempt for the solution with the given key. Only one solution
// per attempt is in flight at a time, others wait for its outcome and are then
// checked again. A nil claim comes with the final result for this submission.
func (m *Manager) claim(ctx context.Context, attempt *Attempt, key chainhash.Hash) (*solutionClaim, *SubmitResult, error) {
	for {
		m.submitMu.Lock()

		if m.isDuplicate(key, attempt) {
			m.submitMu.Unlock()
			return nil, &SubmitResult{Reason: ReasonDuplicate}, nil
		}

		if m.current.Load() != attempt || !attempt.IsCurrent() {
			m.submitMu.Unlock()
			return nil, &SubmitResult{Reason: ReasonStale}, nil
		}

		inFlight, ok := m.pending[attempt.ID]
		if !ok {
			c := &solutionClaim{key: key, done: make(chan struct{})}
			m.pending[attempt.ID] = c
			m.submitMu.Unlock()

			return c, nil, nil
		}

		m.submitMu.Unlock()

		m.logger.Debugf("[GetWork] solution %x waits for pending solution %x of attempt %s", key[:8], inFlight.key[:8], attempt.ID)

		select {
		case <-inFlight.done:
		case <-ctx.Done():
			return nil, nil, errors.NewServiceUnavailableError("[GetWork] gave up waiting for a pending solution of attempt %s", attempt.ID, ctx.Err())
		}
	}
}

func rejectionDetail(err error) string {
	var tErr *errors.Error
	if errors.As(err, &tErr) && tErr.Message() != "" {
		return tErr.Message()
	}

	return err.Error()
}
