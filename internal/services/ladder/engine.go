// Package ladder drives take-profit ladders: arming, editing and the periodic tick that sells on level crossings.
package ladder

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/internal/storage/ladders"
)

// DefaultInterval period of the tick loop.
const DefaultInterval = 15 * time.Second

// PriceSource returns the current USD price of a pair's base token.
type PriceSource interface {
	PriceUSD(ctx context.Context, ref domain.PairRef) (decimal.Decimal, error)
}

// Seller sells a percentage of the wallet's holdings of a mint.
type Seller interface {
	Sell(ctx context.Context, mint string, pct decimal.Decimal) domain.TradeResult
}

// TickReport summary of one tick.
type TickReport struct {
	Evaluated int
	// Skipped ladders whose price lookup failed or returned a non-positive price.
	Skipped int
	Sells   int
	Failed  int
}

// Engine owns ladder commands and the tick loop.
type Engine struct {
	logger   *zap.Logger
	store    *ladders.Store
	prices   PriceSource
	seller   Seller
	interval time.Duration
}

// NewEngine creates a new Engine.
func NewEngine(logger *zap.Logger, store *ladders.Store, prices PriceSource, seller Seller, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		logger:   logger.With(zap.String("component", "ladder")),
		store:    store,
		prices:   prices,
		seller:   seller,
		interval: interval,
	}
}

// Arm arms the ladder for mint, creating it with the default shape when absent.
// A positive price becomes the entry price, otherwise the entry is cleared and the
// ladder waits for CaptureEntry. pair, when set, becomes the price source.
func (e *Engine) Arm(mint string, pair *domain.PairRef, price decimal.Decimal) (domain.Ladder, error) {
	l, err := e.store.Update(mint, func(l *domain.Ladder, exists bool) error {
		if !exists {
			*l = domain.NewDefaultLadder()
		}
		l.Armed = true
		if price.IsPositive() {
			l.EntryPrice = decimal.NewNullDecimal(price)
		} else {
			l.EntryPrice = decimal.NullDecimal{}
		}
		if pair != nil && !pair.IsZero() {
			l.ChainID = pair.ChainID
			l.PairAddress = pair.PairAddress
		}
		l.ResetExecuted()
		l.Revision++
		return nil
	})
	if err != nil {
		return domain.Ladder{}, errors.Wrapf(err, "arm ladder %s", mint)
	}

	e.logger.Info("ladder armed", zap.String("mint", mint), zap.String("entry", l.EntryPrice.Decimal.String()),
		zap.Bool("has_entry", l.EntryPrice.Valid))
	return l, nil
}

// Disarm stops the ladder for mint from trading; its shape and progress are kept.
func (e *Engine) Disarm(mint string) (domain.Ladder, error) {
	l, err := e.store.Update(mint, func(l *domain.Ladder, exists bool) error {
		if !exists {
			return errors.Wrapf(domain.ErrValidation, "no ladder for %s", mint)
		}
		l.Armed = false
		return nil
	})
	if err != nil {
		return domain.Ladder{}, err
	}

	e.logger.Info("ladder disarmed", zap.String("mint", mint))
	return l, nil
}

// Edit reshapes the ladder for mint from comma-separated levels and parts.
// Invalid input leaves the stored ladder untouched.
func (e *Engine) Edit(mint, levelsCSV, partsCSV string) (domain.Ladder, error) {
	levels, parts, err := domain.ParseLadderEdit(levelsCSV, partsCSV)
	if err != nil {
		return domain.Ladder{}, err
	}

	l, err := e.store.Update(mint, func(l *domain.Ladder, _ bool) error {
		l.Levels = levels
		l.Parts = parts
		l.ResetExecuted()
		l.Revision++
		return nil
	})
	if err != nil {
		return domain.Ladder{}, errors.Wrapf(err, "edit ladder %s", mint)
	}

	e.logger.Info("ladder edited", zap.String("mint", mint),
		zap.String("levels", levelsCSV), zap.String("parts", partsCSV))
	return l, nil
}

// CaptureEntry records the entry price after a buy, but only for an armed
// ladder that has none yet.
func (e *Engine) CaptureEntry(mint string, pair domain.PairRef, price decimal.Decimal) error {
	if !price.IsPositive() {
		return nil
	}

	captured := false
	_, err := e.store.Update(mint, func(l *domain.Ladder, exists bool) error {
		if !exists || !l.Armed || l.EntryPrice.Valid {
			return ladders.ErrUnchanged
		}
		l.EntryPrice = decimal.NewNullDecimal(price)
		if !pair.IsZero() {
			l.ChainID = pair.ChainID
			l.PairAddress = pair.PairAddress
		}
		l.ResetExecuted()
		l.Revision++
		captured = true
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "capture entry for %s", mint)
	}
	if captured {
		e.logger.Info("entry price captured", zap.String("mint", mint), zap.String("price", price.String()))
	}
	return nil
}

// Tick evaluates every tradable ladder once against its current price.
func (e *Engine) Tick(ctx context.Context) TickReport {
	var report TickReport

	for mint, l := range e.store.Snapshot() {
		if ctx.Err() != nil {
			return report
		}
		if !l.Tradable() {
			continue
		}
		report.Evaluated++

		price, err := e.prices.PriceUSD(ctx, l.Pair())
		if err != nil || !price.IsPositive() {
			report.Skipped++
			e.logger.Debug("price unavailable, skipping ladder", zap.String("mint", mint), zap.Error(err))
			continue
		}

		for i := range l.Levels {
			if l.ExecutedAt(i) || price.LessThan(l.Target(i)) {
				continue
			}

			if l.Parts[i].IsPositive() {
				e.logger.Info("ladder level crossed",
					zap.String("mint", mint),
					zap.Int("level", i),
					zap.String("price", price.String()),
					zap.String("target", l.Target(i).String()),
					zap.String("part", l.Parts[i].String()))

				res := e.seller.Sell(ctx, mint, l.Parts[i])
				report.Sells++
				if res.Err != nil {
					report.Failed++
					e.logger.Error("ladder sell failed", zap.String("mint", mint), zap.Int("level", i), zap.Error(res.Err))
				}
			}

			// a failed sell still consumes the level
			if err := e.markExecuted(mint, l.Revision, i); err != nil {
				e.logger.Error("failed to mark ladder level", zap.String("mint", mint), zap.Int("level", i), zap.Error(err))
			}
		}
	}

	return report
}

func (e *Engine) markExecuted(mint string, revision uint64, level int) error {
	_, err := e.store.Update(mint, func(l *domain.Ladder, exists bool) error {
		if !exists || l.Revision != revision || level >= len(l.Levels) {
			return ladders.ErrUnchanged
		}
		if len(l.Executed) != len(l.Levels) {
			l.ResetExecuted()
		}
		l.Executed[level] = true
		return nil
	})
	return err
}

// Run ticks every interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting ladder loop", zap.Duration("interval", e.interval))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Context done, stopping ladder loop")
			return nil
		case <-ticker.C:
			report := e.Tick(ctx)
			if report.Evaluated > 0 {
				e.logger.Info("ladder tick",
					zap.Int("evaluated", report.Evaluated),
					zap.Int("skipped", report.Skipped),
					zap.Int("sells", report.Sells),
					zap.Int("failed", report.Failed))
			}
		}
	}
}
