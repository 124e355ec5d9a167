package internal

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/internal/services/ladder"
	"github.com/vadiminshakov/dexsnipe/internal/services/scanner"
	"github.com/vadiminshakov/dexsnipe/internal/storage/journal"
	"github.com/vadiminshakov/dexsnipe/internal/storage/ladders"
	"github.com/vadiminshakov/dexsnipe/internal/storage/settings"
)

// Trader executes buys and sells.
type Trader interface {
	Buy(ctx context.Context, mint string, pair *domain.MarketSnapshot) domain.TradeResult
	Sell(ctx context.Context, mint string, pct decimal.Decimal) domain.TradeResult
	Connected() bool
}

// Archive records published candidate lists.
type Archive interface {
	Record(ctx context.Context, list domain.CandidateList) error
}

// TradeLog reads the trade journal.
type TradeLog interface {
	EntriesAfter(index uint64) ([]journal.Entry, error)
	CurrentIndex() uint64
}

// Runner a long-running component started by Bot.Run.
type Runner func(ctx context.Context) error

// Bot owns the settings, the published candidate list and the ladder store, and
// routes operator commands to the scanner, the ladder engine and the trader.
type Bot struct {
	logger        *zap.Logger
	settingsStore *settings.Store
	ladders       *ladders.Store
	latest        *scanner.Latest

	mu       sync.RWMutex
	settings domain.Settings

	scanner *scanner.Scanner
	engine  *ladder.Engine
	trader  Trader
	archive Archive
	trades  TradeLog
	extra   []Runner
}

// NewBot creates a bot with initial settings, overridden by the persisted
// settings document when one exists.
func NewBot(logger *zap.Logger, settingsStore *settings.Store, ladderStore *ladders.Store, initial domain.Settings) (*Bot, error) {
	b := &Bot{
		logger:        logger.With(zap.String("component", "bot")),
		settingsStore: settingsStore,
		ladders:       ladderStore,
		latest:        &scanner.Latest{},
		settings:      initial.Clone(),
	}

	doc, err := settingsStore.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load persisted settings")
	}
	if doc != nil {
		restored, err := doc.Apply(b.settings)
		if err != nil {
			b.logger.Warn("persisted settings are invalid, using defaults", zap.Error(err))
		} else {
			b.settings = restored
			b.logger.Info("settings restored", zap.String("path", settingsStore.Path()))
		}
	}
	return b, nil
}

// Attach wires the components that need the bot as a collaborator.
func (b *Bot) Attach(sc *scanner.Scanner, engine *ladder.Engine, trader Trader) {
	b.scanner = sc
	b.engine = engine
	b.trader = trader
}

// SetArchive enables the scan archive.
func (b *Bot) SetArchive(a Archive) {
	b.archive = a
}

// SetTradeLog enables the trade history.
func (b *Bot) SetTradeLog(l TradeLog) {
	b.trades = l
}

// AddRunner registers an extra component, such as the operator API, run alongside the loops.
func (b *Bot) AddRunner(r Runner) {
	b.extra = append(b.extra, r)
}

// Settings returns a copy of the current settings.
func (b *Bot) Settings() domain.Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings.Clone()
}

// TradingParams returns the current trading parameters.
func (b *Bot) TradingParams() domain.TradingParams {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings.Trading
}

// Publish stores a successful scan result and archives it.
func (b *Bot) Publish(list domain.CandidateList) bool {
	if !b.latest.Publish(list) {
		return false
	}
	if b.archive != nil {
		if err := b.archive.Record(context.Background(), list); err != nil {
			b.logger.Warn("failed to archive scan", zap.Uint64("cycle", list.Cycle), zap.Error(err))
		}
	}
	return true
}

// Candidates returns the latest published candidate list.
func (b *Bot) Candidates() domain.CandidateList {
	return b.latest.Get()
}

// TriggerScan requests an immediate scan.
func (b *Bot) TriggerScan() {
	b.scanner.Trigger()
}

// ScanOnce runs one scan synchronously.
func (b *Bot) ScanOnce(ctx context.Context) (domain.CandidateList, error) {
	return b.scanner.ScanOnce(ctx)
}

// Ladders returns a copy of every ladder.
func (b *Bot) Ladders() map[string]domain.Ladder {
	return b.ladders.Snapshot()
}

// Arm arms the ladder for mint, taking the entry price and pair from the
// current candidate list when the mint is listed there.
func (b *Bot) Arm(mint string) (domain.Ladder, error) {
	if c, ok := b.latest.Get().Find(mint); ok {
		pair := c.Pair
		return b.engine.Arm(mint, &pair, c.PriceUSD)
	}
	return b.engine.Arm(mint, nil, decimal.Zero)
}

// Disarm disarms the ladder for mint.
func (b *Bot) Disarm(mint string) (domain.Ladder, error) {
	return b.engine.Disarm(mint)
}

// EditLadder reshapes the ladder for mint.
func (b *Bot) EditLadder(mint, levelsCSV, partsCSV string) (domain.Ladder, error) {
	return b.engine.Edit(mint, levelsCSV, partsCSV)
}

// Buy buys mint with the configured size.
func (b *Bot) Buy(ctx context.Context, mint string) domain.TradeResult {
	var pair *domain.MarketSnapshot
	if c, ok := b.latest.Get().Find(mint); ok {
		snap := c.MarketSnapshot
		pair = &snap
	}
	return b.trader.Buy(ctx, mint, pair)
}

// Sell sells pct percent of the holdings of mint, the default percent when pct is nil.
func (b *Bot) Sell(ctx context.Context, mint string, pct *decimal.Decimal) domain.TradeResult {
	p := b.TradingParams().DefaultSellPct
	if pct != nil {
		p = *pct
	}
	return b.trader.Sell(ctx, mint, p)
}

// Trades returns journaled trade attempts written after the given index.
func (b *Bot) Trades(after uint64) ([]journal.Entry, error) {
	if b.trades == nil {
		return []journal.Entry{}, nil
	}
	return b.trades.EntriesAfter(after)
}

// Health reports wallet, scan and journal counters.
func (b *Bot) Health() domain.Health {
	var h domain.Health
	if b.trader != nil {
		h.Connected = b.trader.Connected()
	}
	if b.scanner != nil {
		h.ScansSucceeded, h.ScansFailed = b.scanner.Stats()
	}
	if b.trades != nil {
		h.LastTradeIndex = b.trades.CurrentIndex()
	}
	return h
}

// ExportSettings returns the full settings document including ladders.
func (b *Bot) ExportSettings() settings.Document {
	return settings.FromSettings(b.Settings(), b.ladders.Snapshot())
}

// ImportSettings decodes and validates the whole document before applying any
// of it. Missing fields keep their current values; on error nothing changes.
func (b *Bot) ImportSettings(r io.Reader) error {
	doc, err := settings.Decode(r)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := doc.Apply(b.settings)
	if err != nil {
		return errors.Wrap(err, "import settings")
	}
	if err := doc.ValidateLadders(); err != nil {
		return errors.Wrap(err, "import settings")
	}

	var previous map[string]domain.Ladder
	if doc.Ladders != nil {
		previous = b.ladders.Snapshot()
		if err := b.ladders.ReplaceAll(doc.Ladders); err != nil {
			return errors.Wrap(err, "import ladders")
		}
	}

	if err := b.settingsStore.Save(settings.FromSettings(next, b.ladders.Snapshot())); err != nil {
		if previous != nil {
			if rerr := b.ladders.ReplaceAll(previous); rerr != nil {
				b.logger.Error("failed to restore ladders after import failure", zap.Error(rerr))
			}
		}
		return errors.Wrap(err, "save imported settings")
	}

	b.settings = next
	b.logger.Info("settings imported", zap.Bool("with_ladders", doc.Ladders != nil))
	return nil
}

// Run starts the scan loop, the ladder loop and every registered runner, and
// blocks until ctx is done or one of them fails.
func (b *Bot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.scanner.Run(ctx) })
	g.Go(func() error { return b.engine.Run(ctx) })
	for _, r := range b.extra {
		g.Go(func() error { return r(ctx) })
	}

	b.logger.Info("bot started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
