// Package scanner runs the recurring scan/score/filter pipeline.
package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/internal/services/scoring"
)

// DefaultChain chain scanned by the sniper.
const DefaultChain = "solana"

// Feed market data provider.
type Feed interface {
	LatestPairs(ctx context.Context, chainID string) ([]domain.MarketSnapshot, error)
}

// Publisher receives the result of every successful cycle.
// It returns false when the list was dropped because a fresher one is already published.
type Publisher interface {
	Publish(list domain.CandidateList) bool
}

// SettingsFunc returns the current settings.
type SettingsFunc func() domain.Settings

// Scanner pulls the market feed on a timer and publishes ranked candidates.
type Scanner struct {
	logger    *zap.Logger
	feed      Feed
	publisher Publisher
	settings  SettingsFunc
	chainID   string
	now       func() time.Time

	cycle   atomic.Uint64
	trigger chan struct{}

	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// NewScanner creates a new Scanner.
func NewScanner(logger *zap.Logger, feed Feed, publisher Publisher, settings SettingsFunc) *Scanner {
	return &Scanner{
		logger:    logger.With(zap.String("component", "scanner")),
		feed:      feed,
		publisher: publisher,
		settings:  settings,
		chainID:   DefaultChain,
		now:       time.Now,
		trigger:   make(chan struct{}, 1),
	}
}

// ScanOnce runs one cycle synchronously. On failure nothing is published.
func (s *Scanner) ScanOnce(ctx context.Context) (domain.CandidateList, error) {
	id := s.cycle.Add(1)
	cfg := s.settings()

	snaps, err := s.feed.LatestPairs(ctx, s.chainID)
	if err != nil {
		s.failed.Add(1)
		return domain.CandidateList{}, errors.Wrapf(err, "scan cycle %d", id)
	}

	now := s.now()
	list := domain.CandidateList{
		Cycle:      id,
		ScannedAt:  now,
		Candidates: scoring.Rank(snaps, cfg.Filters, now),
	}
	s.succeeded.Add(1)

	if !s.publisher.Publish(list) {
		s.logger.Debug("stale scan cycle dropped", zap.Uint64("cycle", id))
	}
	return list, nil
}

// Trigger requests an immediate scan; repeated requests before it runs collapse into one.
func (s *Scanner) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stats returns the number of succeeded and failed cycles.
func (s *Scanner) Stats() (succeeded, failed uint64) {
	return s.succeeded.Load(), s.failed.Load()
}

// Run executes scan cycles until ctx is done. Timer cycles run only while
// auto-scan is enabled, triggered cycles always run. Cycle errors are logged.
func (s *Scanner) Run(ctx context.Context) error {
	cfg := s.settings()
	if cfg.AutoScan {
		s.runCycle(ctx)
	}

	timer := time.NewTimer(cfg.EffectiveScanInterval())
	defer timer.Stop()

	s.logger.Info("Starting scan loop", zap.Duration("interval", cfg.EffectiveScanInterval()), zap.Bool("auto_scan", cfg.AutoScan))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context done, stopping scan loop.")
			return ctx.Err()
		case <-s.trigger:
			s.runCycle(ctx)
		case <-timer.C:
			cfg = s.settings()
			if cfg.AutoScan {
				s.runCycle(ctx)
			}
			timer.Reset(cfg.EffectiveScanInterval())
		}
	}
}

func (s *Scanner) runCycle(ctx context.Context) {
	list, err := s.ScanOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("scan cycle failed", zap.String("class", domain.Classify(err)), zap.Error(err))
		return
	}
	s.logger.Debug("scan cycle done", zap.Uint64("cycle", list.Cycle), zap.Int("candidates", len(list.Candidates)))
}
