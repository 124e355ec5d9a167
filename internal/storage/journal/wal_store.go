// Package journal keeps an append-only log of trade attempts.
package journal

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const (
	DefaultDir   = "./wal/trades"
	segmentLimit = 100
	maxSegments  = 10

	buyKeyPrefix  = "buy_"
	sellKeyPrefix = "sell_"
)

// Entry journaled form of a finished trade attempt.
type Entry struct {
	Index          uint64            `json:"index"`
	AttemptID      string            `json:"attemptId"`
	Side           domain.Side       `json:"side"`
	Mint           string            `json:"mint"`
	State          domain.TradeState `json:"state"`
	Signature      string            `json:"signature,omitempty"`
	Status         string            `json:"status"`
	Class          string            `json:"class,omitempty"`
	Warning        string            `json:"warning,omitempty"`
	Percent        decimal.Decimal   `json:"percent"`
	InAmount       uint64            `json:"inAmount,omitempty"`
	PriceImpactPct decimal.Decimal   `json:"priceImpactPct"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt"`
}

// NewEntry flattens a trade result, errors become strings.
func NewEntry(r domain.TradeResult) Entry {
	e := Entry{
		AttemptID:      r.AttemptID,
		Side:           r.Side,
		Mint:           r.Mint,
		State:          r.State,
		Signature:      r.Signature,
		Status:         r.Status(),
		Class:          domain.Classify(r.Err),
		Percent:        r.Percent,
		InAmount:       r.InAmount,
		PriceImpactPct: r.PriceImpactPct,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
	if r.Warning != nil {
		e.Warning = r.Warning.Error()
	}
	return e
}

// WALStore persists trade entries in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed trade journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init trade WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the finished attempt to the WAL.
func (s *WALStore) Append(r domain.TradeResult) error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}
	if r.Mint == "" {
		return errors.Wrap(domain.ErrValidation, "trade mint is required")
	}

	payload, err := json.Marshal(NewEntry(r))
	if err != nil {
		return errors.Wrap(err, "marshal trade entry")
	}

	key := buyKeyPrefix + r.Mint
	if r.Side == domain.SideSell {
		key = sellKeyPrefix + r.Mint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, key, payload)
}

// EntriesAfter returns all entries written after the provided WAL index.
func (s *WALStore) EntriesAfter(index uint64) ([]Entry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		_, payload, err := s.wal.Get(idx)
		if err != nil {
			// rotated out
			continue
		}

		var e Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, errors.Wrap(err, "decode trade entry")
		}
		e.Index = idx
		entries = append(entries, e)
	}

	return entries, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
