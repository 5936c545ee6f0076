package settings

import (
	"net/url"
	"time"
)

func NewSettings() *Settings {
	acceptedWorkStore := getURL("getwork_acceptedWorkStore", "memory:///")
	if acceptedWorkStore == nil {
		acceptedWorkStore = &url.URL{Scheme: "memory", Path: "/"}
	}

	maxBlockSize := getInt("getwork_maxBlockSize", 1000000)
	if maxBlockSize < 0 {
		maxBlockSize = 0
	}

	return &Settings{
		ClientName: getString("clientName", "hnsnode"),
		DataFolder: getString("dataFolder", "data"),
		LogLevel:   getString("logLevel", "INFO"),
		PrettyLogs: getBool("PRETTY_LOGS", true),
		GetWork: GetWorkSettings{
			GraceInterval:      time.Duration(getInt("getwork_graceIntervalSeconds", 10)) * time.Second,
			MaxBlockSize:       uint64(maxBlockSize),
			MaxBlockTxs:        getInt("getwork_maxBlockTxs", 0), // 0 is unlimited
			DuplicateTTL:       time.Duration(getInt("getwork_duplicateTTLMinutes", 10)) * time.Minute,
			MaxFutureBlockTime: time.Duration(getInt("getwork_maxFutureBlockTimeSeconds", 7200)) * time.Second,
			AcceptedWorkStore:  acceptedWorkStore,
		},
	}
}
