package getwork

import (
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

type RebuildReason string

const (
	RebuildNoAttempt      RebuildReason = "no-attempt"
	RebuildSuperseded     RebuildReason = "superseded"
	RebuildTipChanged     RebuildReason = "tip-changed"
	RebuildMempoolChanged RebuildReason = "mempool-changed"
	RebuildTimeRefresh    RebuildReason = "time-refresh"
)

// StalenessInput carries every value the rebuild decision depends on. Times are
// passed in so the decision never reads a clock.
type StalenessInput struct {
	Now            time.Time
	LastActivity   time.Time
	CurrentTip     chainhash.Hash
	AttemptTip     chainhash.Hash
	MempoolChanged bool
	GraceInterval  time.Duration
}

type StalenessDecision struct {
	Rebuild bool
	Reason  RebuildReason
}

// ShouldRebuild decides whether the current attempt must be replaced. Clock
// advance alone never forces a rebuild, only a time refresh.
func ShouldRebuild(in StalenessInput) StalenessDecision {
	if !in.CurrentTip.IsEqual(&in.AttemptTip) {
		return StalenessDecision{Rebuild: true, Reason: RebuildTipChanged}
	}

	if in.MempoolChanged && in.Now.Sub(in.LastActivity) > in.GraceInterval {
		return StalenessDecision{Rebuild: true, Reason: RebuildMempoolChanged}
	}

	return StalenessDecision{Rebuild: false, Reason: RebuildTimeRefresh}
}
