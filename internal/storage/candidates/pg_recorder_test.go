package candidates

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

type fakeDB struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
	execs   []string
	err     error
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.table = table
	f.columns = columns
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.rows = append(f.rows, values)
	}
	return int64(len(f.rows)), nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestRecorder_Record(t *testing.T) {
	db := &fakeDB{}
	r := newRecorder(zap.NewNop(), db)
	require.NoError(t, r.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)

	liq := 12000.0
	scannedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	list := domain.CandidateList{
		Cycle:     7,
		ScannedAt: scannedAt,
		Candidates: []domain.ScoredCandidate{
			{MarketSnapshot: domain.MarketSnapshot{
				Pair:         domain.PairRef{ChainID: "solana", PairAddress: "PairA"},
				BaseToken:    domain.Token{Address: "MintA", Symbol: "AAA"},
				PriceUSD:     decimal.RequireFromString("0.0012"),
				LiquidityUSD: &liq,
			}, Score: 71.5},
			{MarketSnapshot: domain.MarketSnapshot{
				Pair:      domain.PairRef{ChainID: "solana", PairAddress: "PairB"},
				BaseToken: domain.Token{Address: "MintB"},
			}, Score: 40},
		},
	}

	require.NoError(t, r.Record(context.Background(), list))
	assert.Equal(t, pgx.Identifier{"scan_candidates"}, db.table)
	assert.Len(t, db.columns, len(columns))
	require.Len(t, db.rows, 2)
	assert.Equal(t, int64(7), db.rows[0][0])
	assert.Equal(t, scannedAt, db.rows[0][1])
	assert.Equal(t, 1, db.rows[0][2])
	assert.Equal(t, "MintA", db.rows[0][6])
	assert.Equal(t, "0.0012", db.rows[0][8])
	assert.Equal(t, 2, db.rows[1][2])
	assert.Nil(t, db.rows[1][13])
}

func TestRecorder_RecordEmptyAndError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	r := newRecorder(zap.NewNop(), db)

	assert.NoError(t, r.Record(context.Background(), domain.CandidateList{Cycle: 1}))

	err := r.Record(context.Background(), domain.CandidateList{
		Cycle:      2,
		Candidates: []domain.ScoredCandidate{{MarketSnapshot: domain.MarketSnapshot{BaseToken: domain.Token{Address: "M"}}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle 2")
}
