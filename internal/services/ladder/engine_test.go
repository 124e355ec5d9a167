package ladder

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/internal/storage/ladders"
)

const mint = "MintA"

var pair = domain.PairRef{ChainID: "solana", PairAddress: "PairA"}

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f *fakePrices) PriceUSD(context.Context, domain.PairRef) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakeSeller struct {
	mu     sync.Mutex
	pcts   []decimal.Decimal
	err    error
	onSell func()
}

func (f *fakeSeller) Sell(_ context.Context, m string, pct decimal.Decimal) domain.TradeResult {
	f.mu.Lock()
	f.pcts = append(f.pcts, pct)
	hook := f.onSell
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if f.err != nil {
		return domain.TradeResult{Mint: m, State: domain.TradeStateFailed, Err: f.err}
	}
	return domain.TradeResult{Mint: m, State: domain.TradeStateSucceeded, Signature: "sig"}
}

func (f *fakeSeller) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.pcts))
	for _, p := range f.pcts {
		out = append(out, p.String())
	}
	return out
}

func newTestEngine(t *testing.T, prices *fakePrices, seller *fakeSeller) (*Engine, *ladders.Store) {
	t.Helper()

	store, err := ladders.NewStore(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewEngine(zap.NewNop(), store, prices, seller, 0), store
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEngine_ArmDefaults(t *testing.T) {
	e, _ := newTestEngine(t, &fakePrices{}, &fakeSeller{})

	l, err := e.Arm(mint, &pair, d("0.002"))
	require.NoError(t, err)
	assert.True(t, l.Armed)
	assert.True(t, l.EntryPrice.Valid)
	assert.Equal(t, pair, l.Pair())
	assert.Len(t, l.Levels, 4)
	assert.True(t, l.Parts[0].Equal(decimal.NewFromInt(40)))
	assert.Equal(t, []bool{false, false, false, false}, l.Executed)
	assert.Equal(t, uint64(1), l.Revision)

	l, err = e.Arm(mint, nil, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l.Revision)
	assert.False(t, l.EntryPrice.Valid, "arming without a price clears the entry")
	assert.False(t, l.Tradable())
	assert.Equal(t, pair, l.Pair())
}

func TestEngine_ReArmWithoutPriceDoesNotResellLevels(t *testing.T) {
	prices := &fakePrices{price: d("2.5")}
	seller := &fakeSeller{}
	e, store := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)
	e.Tick(context.Background())
	require.Equal(t, []string{"40"}, seller.calls())

	_, err = e.Disarm(mint)
	require.NoError(t, err)
	_, err = e.Arm(mint, nil, decimal.Zero)
	require.NoError(t, err)

	report := e.Tick(context.Background())
	assert.Equal(t, 0, report.Evaluated)
	assert.Equal(t, []string{"40"}, seller.calls())

	// the next buy re-bases the entry
	require.NoError(t, e.CaptureEntry(mint, pair, d("2.5")))
	l, _ := store.Get(mint)
	assert.True(t, l.EntryPrice.Decimal.Equal(d("2.5")))

	e.Tick(context.Background())
	assert.Equal(t, []string{"40"}, seller.calls())
}

func TestEngine_DisarmUnknownMint(t *testing.T) {
	e, _ := newTestEngine(t, &fakePrices{}, &fakeSeller{})

	_, err := e.Disarm("nope")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_EditRejectsBadShapeWithoutChange(t *testing.T) {
	e, store := newTestEngine(t, &fakePrices{}, &fakeSeller{})
	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)

	before, _ := store.Get(mint)
	beforeJSON, err := json.Marshal(before)
	require.NoError(t, err)

	_, err = e.Edit(mint, "2,3", "40")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.Edit(mint, "2,3", "60,50")
	assert.ErrorIs(t, err, domain.ErrValidation)

	after, _ := store.Get(mint)
	afterJSON, err := json.Marshal(after)
	require.NoError(t, err)
	assert.Equal(t, string(beforeJSON), string(afterJSON))
}

func TestEngine_EditResetsProgress(t *testing.T) {
	e, store := newTestEngine(t, &fakePrices{}, &fakeSeller{})
	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)
	_, err = store.Update(mint, func(l *domain.Ladder, _ bool) error {
		l.Executed[0] = true
		return nil
	})
	require.NoError(t, err)

	l, err := e.Edit(mint, "1.5, 4", "50,50")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, l.Executed)
	assert.True(t, l.Armed)
	assert.True(t, l.EntryPrice.Decimal.Equal(d("1")))
	assert.Equal(t, uint64(2), l.Revision)
}

func TestEngine_CaptureEntry(t *testing.T) {
	e, store := newTestEngine(t, &fakePrices{}, &fakeSeller{})

	require.NoError(t, e.CaptureEntry(mint, pair, d("1")))
	_, ok := store.Get(mint)
	assert.False(t, ok, "no ladder is created by a buy")

	_, err := e.Arm(mint, nil, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, e.CaptureEntry(mint, pair, d("0.5")))
	l, _ := store.Get(mint)
	assert.True(t, l.EntryPrice.Decimal.Equal(d("0.5")))
	assert.Equal(t, pair, l.Pair())

	require.NoError(t, e.CaptureEntry(mint, pair, d("9")))
	l, _ = store.Get(mint)
	assert.True(t, l.EntryPrice.Decimal.Equal(d("0.5")), "existing entry is kept")
}

func TestEngine_TickSellsCrossedLevels(t *testing.T) {
	prices := &fakePrices{price: d("2.50")}
	seller := &fakeSeller{}
	e, store := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1.00"))
	require.NoError(t, err)
	_, err = e.Edit(mint, "2,3", "40,30")
	require.NoError(t, err)

	report := e.Tick(context.Background())
	assert.Equal(t, TickReport{Evaluated: 1, Sells: 1}, report)
	assert.Equal(t, []string{"40"}, seller.calls())

	l, _ := store.Get(mint)
	assert.Equal(t, []bool{true, false}, l.Executed)

	// the same price does not sell the level twice
	e.Tick(context.Background())
	assert.Len(t, seller.calls(), 1)
}

func TestEngine_TickMultipleCrossings(t *testing.T) {
	prices := &fakePrices{price: d("6")}
	seller := &fakeSeller{}
	e, store := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)

	report := e.Tick(context.Background())
	assert.Equal(t, 3, report.Sells)
	assert.Equal(t, []string{"40", "20", "20"}, seller.calls())

	l, _ := store.Get(mint)
	assert.Equal(t, []bool{true, true, true, false}, l.Executed)
}

func TestEngine_TickFailedSellStillConsumesLevel(t *testing.T) {
	prices := &fakePrices{price: d("2")}
	seller := &fakeSeller{err: errors.Wrap(domain.ErrNoRoute, "HTTP 400")}
	e, store := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)

	report := e.Tick(context.Background())
	assert.Equal(t, 1, report.Failed)

	l, _ := store.Get(mint)
	assert.True(t, l.Executed[0])
}

func TestEngine_TickSkipsUnpricedAndUntradable(t *testing.T) {
	prices := &fakePrices{err: domain.ErrPriceUnavailable}
	seller := &fakeSeller{}
	e, _ := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)
	_, err = e.Arm("NoEntry", &pair, decimal.Zero)
	require.NoError(t, err)

	report := e.Tick(context.Background())
	assert.Equal(t, TickReport{Evaluated: 1, Skipped: 1}, report)

	prices.err = nil
	prices.price = decimal.Zero
	report = e.Tick(context.Background())
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, seller.calls())
}

func TestEngine_DisarmDuringTickDoesNotPreempt(t *testing.T) {
	prices := &fakePrices{price: d("4")}
	seller := &fakeSeller{}
	e, store := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)

	seller.onSell = func() {
		seller.onSell = nil
		_, err := e.Disarm(mint)
		assert.NoError(t, err)
	}

	e.Tick(context.Background())
	assert.Equal(t, []string{"40", "20"}, seller.calls())

	l, _ := store.Get(mint)
	assert.False(t, l.Armed)
	assert.Equal(t, []bool{true, true, false, false}, l.Executed)

	e.Tick(context.Background())
	assert.Len(t, seller.calls(), 2)
}

func TestEngine_ReArmDuringTickDropsStaleBookkeeping(t *testing.T) {
	prices := &fakePrices{price: d("2")}
	seller := &fakeSeller{}
	e, store := newTestEngine(t, prices, seller)

	_, err := e.Arm(mint, &pair, d("1"))
	require.NoError(t, err)

	seller.onSell = func() {
		seller.onSell = nil
		_, err := e.Arm(mint, &pair, d("1.5"))
		assert.NoError(t, err)
	}

	e.Tick(context.Background())

	l, _ := store.Get(mint)
	assert.Equal(t, uint64(2), l.Revision)
	assert.Equal(t, []bool{false, false, false, false}, l.Executed)
}
