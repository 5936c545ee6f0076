package sql

import (
	"context"
	"database/sql"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/ulogger"
	"github.com/hnsnode/hnsnode/util"
	"github.com/hnsnode/hnsnode/util/usql"
)

type SQL struct {
	url    *url.URL
	db     *usql.DB
	engine util.SQLEngine
	logger ulogger.Logger
}

func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*SQL, error) {
	logger = logger.New("awsql")

	db, err := util.InitSQLDB(logger, storeURL, dataFolder)
	if err != nil {
		return nil, err
	}

	s := &SQL{
		url:    storeURL,
		db:     db,
		engine: util.SQLEngine(storeURL.Scheme),
		logger: logger,
	}

	if err = s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQL) createTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS accepted_work (
		 block_hash  VARCHAR(64) PRIMARY KEY
		,attempt_id  VARCHAR(36) NOT NULL
		,prev_block  VARCHAR(64) NOT NULL
		,height      BIGINT NOT NULL
		,fee         BIGINT NOT NULL
		,tx_count    BIGINT NOT NULL
		,created_at  BIGINT NOT NULL
		);
	`); err != nil {
		return errors.NewStorageError("could not create accepted_work table", err)
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_accepted_work_created_at ON accepted_work (created_at DESC);`); err != nil {
		return errors.NewStorageError("could not create idx_accepted_work_created_at index", err)
	}

	return nil
}

func (s *SQL) Health(ctx context.Context) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, "Database connection error", err
	}

	return http.StatusOK, string(s.engine) + " Store", nil
}

func (s *SQL) Store(ctx context.Context, work *model.AcceptedWork) error {
	if work == nil {
		return errors.NewInvalidArgumentError("accepted work is nil")
	}

	q := `
		INSERT INTO accepted_work (block_hash, attempt_id, prev_block, height, fee, tx_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	//nolint:gosec // fees and counts are far below the int64 limit
	if _, err := s.db.ExecContext(ctx, q,
		hex.EncodeToString(work.BlockHash[:]),
		work.AttemptID,
		hex.EncodeToString(work.PrevBlock[:]),
		int64(work.Height),
		int64(work.Fee),
		int64(work.TxCount),
		work.CreatedAt.UnixNano(),
	); err != nil {
		return errors.NewStorageError("failed to store accepted work for block %x", work.BlockHash[:], err)
	}

	return nil
}

func (s *SQL) Get(ctx context.Context, blockHash chainhash.Hash) (*model.AcceptedWork, error) {
	q := `
		SELECT block_hash, attempt_id, prev_block, height, fee, tx_count, created_at
		FROM accepted_work
		WHERE block_hash = $1
	`

	work, err := scanAcceptedWork(s.db.QueryRowContext(ctx, q, hex.EncodeToString(blockHash[:])))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("accepted work for block %x not found", blockHash[:])
		}

		return nil, errors.NewStorageError("failed to get accepted work for block %x", blockHash[:], err)
	}

	return work, nil
}

func (s *SQL) List(ctx context.Context, limit int) ([]*model.AcceptedWork, error) {
	if limit <= 0 {
		limit = 100
	}

	q := `
		SELECT block_hash, attempt_id, prev_block, height, fee, tx_count, created_at
		FROM accepted_work
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, errors.NewStorageError("failed to list accepted work", err)
	}
	defer rows.Close()

	result := make([]*model.AcceptedWork, 0, limit)

	for rows.Next() {
		work, err := scanAcceptedWork(rows)
		if err != nil {
			return nil, errors.NewStorageError("failed to scan accepted work", err)
		}

		result = append(result, work)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate accepted work", err)
	}

	return result, nil
}

func (s *SQL) Close(_ context.Context) error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAcceptedWork(row scanner) (*model.AcceptedWork, error) {
	var (
		blockHash string
		prevBlock string
		height    int64
		fee       int64
		txCount   int64
		createdAt int64
	)

	work := &model.AcceptedWork{}

	if err := row.Scan(&blockHash, &work.AttemptID, &prevBlock, &height, &fee, &txCount, &createdAt); err != nil {
		return nil, err
	}

	if err := decodeHash(blockHash, &work.BlockHash); err != nil {
		return nil, err
	}

	if err := decodeHash(prevBlock, &work.PrevBlock); err != nil {
		return nil, err
	}

	work.Height = uint32(height) //nolint:gosec
	work.Fee = uint64(fee)       //nolint:gosec
	work.TxCount = int(txCount)
	work.CreatedAt = time.Unix(0, createdAt)

	return work, nil
}

func decodeHash(s string, h *chainhash.Hash) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}

	if len(b) != chainhash.HashSize {
		return errors.NewInvalidLengthError("stored hash should be %d bytes, got %d", chainhash.HashSize, len(b))
	}

	copy(h[:], b)

	return nil
}
