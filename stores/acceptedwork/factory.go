package acceptedwork

import (
	"net/url"

	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/stores/acceptedwork/memory"
	"github.com/hnsnode/hnsnode/stores/acceptedwork/null"
	"github.com/hnsnode/hnsnode/stores/acceptedwork/sql"
	"github.com/hnsnode/hnsnode/ulogger"
)

// New creates the store selected by the url scheme.
func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (Store, error) {
	if storeURL == nil {
		return nil, errors.NewConfigurationError("accepted work store url is not set")
	}

	switch storeURL.Scheme {
	case "null":
		return null.New(logger), nil
	case "memory":
		return memory.New(), nil
	case "postgres", "sqlite", "sqlitememory":
		store, err := sql.New(logger, storeURL, dataFolder)
		if err != nil {
			return nil, errors.NewStorageError("error creating %s accepted work store", storeURL.Scheme, err)
		}

		return store, nil
	}

	return nil, errors.NewConfigurationError("unknown accepted work store type: %s", storeURL.Scheme)
}
