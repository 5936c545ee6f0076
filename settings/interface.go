package settings

import (
	"net/url"
	"time"
)

type GetWorkSettings struct {
	// GraceInterval is how long a miner must have been idle before a mempool change
	// forces a new attempt.
	GraceInterval      time.Duration
	MaxBlockSize       uint64
	MaxBlockTxs        int
	DuplicateTTL       time.Duration
	MaxFutureBlockTime time.Duration
	AcceptedWorkStore  *url.URL
}

type Settings struct {
	ClientName string
	DataFolder string
	LogLevel   string
	PrettyLogs bool
	GetWork    GetWorkSettings
}
