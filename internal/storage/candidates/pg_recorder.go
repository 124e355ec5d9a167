// Package candidates archives ranked scan results into PostgreSQL.
package candidates

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const tableName = "scan_candidates"

const createTable = `CREATE TABLE IF NOT EXISTS scan_candidates (
	cycle          BIGINT           NOT NULL,
	scanned_at     TIMESTAMPTZ      NOT NULL,
	rank           INTEGER          NOT NULL,
	chain_id       TEXT             NOT NULL,
	pair_address   TEXT             NOT NULL,
	dex_id         TEXT,
	base_mint      TEXT             NOT NULL,
	base_symbol    TEXT,
	price_usd      NUMERIC,
	liquidity_usd  DOUBLE PRECISION,
	volume_24h     DOUBLE PRECISION,
	fdv            DOUBLE PRECISION,
	change_h1      DOUBLE PRECISION,
	pair_created   TIMESTAMPTZ,
	score          DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (cycle, pair_address)
)`

var columns = []string{
	"cycle", "scanned_at", "rank", "chain_id", "pair_address", "dex_id", "base_mint", "base_symbol",
	"price_usd", "liquidity_usd", "volume_24h", "fdv", "change_h1", "pair_created", "score",
}

type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes every published candidate list to the scan archive.
type Recorder struct {
	logger  *zap.Logger
	db      copier
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Open connects to dsn and makes sure the archive table exists.
func Open(ctx context.Context, logger *zap.Logger, dsn string) (*Recorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	r := newRecorder(logger, pool)
	r.pool = pool
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func newRecorder(logger *zap.Logger, db copier) *Recorder {
	return &Recorder{
		logger:  logger.With(zap.String("component", "scan-archive")),
		db:      db,
		timeout: 10 * time.Second,
	}
}

// EnsureSchema creates the archive table when missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTable); err != nil {
		return errors.Wrap(err, "create scan_candidates")
	}
	return nil
}

// Record bulk-inserts one candidate list.
func (r *Recorder) Record(ctx context.Context, list domain.CandidateList) error {
	if len(list.Candidates) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows := make([][]any, len(list.Candidates))
	for i, c := range list.Candidates {
		var created any
		if !c.PairCreatedAt.IsZero() {
			created = c.PairCreatedAt
		}
		rows[i] = []any{
			int64(list.Cycle),
			list.ScannedAt,
			i + 1,
			c.Pair.ChainID,
			c.Pair.PairAddress,
			c.DexID,
			c.BaseMint(),
			c.BaseToken.Symbol,
			c.PriceUSD.String(),
			c.LiquidityUSD,
			c.Volume24h,
			c.FDV,
			c.PriceChange.H1,
			created,
			c.Score,
		}
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Wrapf(err, "copy %d candidates of cycle %d", len(rows), list.Cycle)
	}
	if int(n) != len(rows) {
		r.logger.Warn("archived fewer rows than expected", zap.Int64("copied", n), zap.Int("expected", len(rows)))
	}
	return nil
}

// Close releases the connection pool.
func (r *Recorder) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
