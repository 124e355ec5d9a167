// Package ladders persists the take-profit ladder map in a WAL.
package ladders

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const (
	DefaultDir   = "./wal/ladders"
	segmentLimit = 100
	maxSegments  = 10

	laddersKey = "ladders"
)

// ErrUnchanged returned by an update function to leave the ladder as it is.
var ErrUnchanged = errors.New("ladder unchanged")

// UpdateFunc mutates a copy of the ladder for one mint. exists is false when
// the mint has no ladder yet and l holds the zero value.
type UpdateFunc func(l *domain.Ladder, exists bool) error

// Store owns the ladder map. Every mutation rewrites the full map to the WAL
// before it becomes visible to readers.
type Store struct {
	logger  *zap.Logger
	wal     *gowal.Wal
	mu      sync.Mutex
	ladders map[string]domain.Ladder
}

// NewStore opens the WAL in dir and recovers the last persisted ladder map.
func NewStore(logger *zap.Logger, dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "ladders_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init ladder WAL")
	}

	s := &Store{
		logger:  logger.With(zap.String("component", "ladder-store")),
		wal:     wal,
		ladders: make(map[string]domain.Ladder),
	}

	// records hold the full map, the last readable one wins
	for msg := range wal.Iterator() {
		if msg.Key != laddersKey {
			continue
		}
		recovered := make(map[string]domain.Ladder)
		if err := json.Unmarshal(msg.Value, &recovered); err != nil {
			s.logger.Error("failed to unmarshal ladder map", zap.Error(err))
			continue
		}
		s.ladders = recovered
	}

	s.logger.Info("ladder store opened", zap.String("dir", dir), zap.Int("ladders", len(s.ladders)))
	return s, nil
}

func normalize(mint string) string {
	return strings.TrimSpace(mint)
}

// Get returns a copy of the ladder for mint.
func (s *Store) Get(mint string) (domain.Ladder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ladders[normalize(mint)]
	if !ok {
		return domain.Ladder{}, false
	}
	return l.Clone(), true
}

// Snapshot returns a deep copy of the whole map.
func (s *Store) Snapshot() map[string]domain.Ladder {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneMap(s.ladders)
}

// Update applies fn to a copy of the ladder for mint, validates the result,
// persists the full map and only then publishes it. If fn returns an error,
// nothing changes; ErrUnchanged is swallowed.
func (s *Store) Update(mint string, fn UpdateFunc) (domain.Ladder, error) {
	mint = normalize(mint)
	if mint == "" {
		return domain.Ladder{}, errors.Wrap(domain.ErrValidation, "mint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.ladders[mint]
	next := current.Clone()
	if err := fn(&next, exists); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return current.Clone(), nil
		}
		return current.Clone(), err
	}
	if err := next.Validate(); err != nil {
		return current.Clone(), err
	}

	updated := cloneMap(s.ladders)
	updated[mint] = next
	if err := s.persist(updated); err != nil {
		return current.Clone(), err
	}

	s.ladders = updated
	return next.Clone(), nil
}

// ReplaceAll validates every ladder in m and swaps the whole map in.
func (s *Store) ReplaceAll(m map[string]domain.Ladder) error {
	replacement := make(map[string]domain.Ladder, len(m))
	for mint, l := range m {
		mint = normalize(mint)
		if mint == "" {
			return errors.Wrap(domain.ErrValidation, "ladder with empty mint")
		}
		if err := l.Validate(); err != nil {
			return errors.Wrapf(err, "ladder %s", mint)
		}
		replacement[mint] = l.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(replacement); err != nil {
		return err
	}
	s.ladders = replacement
	return nil
}

func (s *Store) persist(m map[string]domain.Ladder) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshal ladder map")
	}
	if err := s.wal.Write(s.wal.CurrentIndex()+1, laddersKey, payload); err != nil {
		return errors.Wrap(err, "write ladder map to WAL")
	}
	return nil
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func cloneMap(m map[string]domain.Ladder) map[string]domain.Ladder {
	out := make(map[string]domain.Ladder, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
