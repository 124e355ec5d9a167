// Package executor runs the buy and sell protocol against the swap aggregator and the chain.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const (
	// DefaultConfirmTimeout how long to wait for the requested commitment.
	DefaultConfirmTimeout = 60 * time.Second

	minProbeLamports = 1_000_000
)

var probeLamports = decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(domain.LamportsPerSOL)).Floor().BigInt().Uint64()

// Signer signs and submits transactions on behalf of the trader wallet.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// RiskGate reports the authority state of a mint.
type RiskGate interface {
	Assess(ctx context.Context, mint string) (domain.RiskVerdict, error)
}

// Quoter quotes, builds and simulates swaps.
type Quoter interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (domain.Quote, error)
	BuildSwap(ctx context.Context, quote domain.Quote, trader solana.PublicKey, opts domain.SwapOptions) (*solana.Transaction, error)
	Simulate(ctx context.Context, tx *solana.Transaction) (domain.SimulationResult, error)
}

// Balances reads token balances.
type Balances interface {
	TokenBalance(ctx context.Context, owner solana.PublicKey, mint string) (domain.TokenBalance, error)
}

// Confirmer waits for a signature to reach a commitment level.
type Confirmer interface {
	Confirm(ctx context.Context, sig solana.Signature, commitment domain.Commitment) error
}

// EntryRecorder records the entry price of a freshly bought mint.
type EntryRecorder interface {
	CaptureEntry(mint string, pair domain.PairRef, price decimal.Decimal) error
}

// Journal keeps a durable record of finished attempts.
type Journal interface {
	Append(r domain.TradeResult) error
}

// ParamsFunc returns the trading parameters in effect for the next attempt.
type ParamsFunc func() domain.TradingParams

// Executor runs buy and sell attempts. Attempts on the same mint are serialized.
type Executor struct {
	logger    *zap.Logger
	risk      RiskGate
	quoter    Quoter
	balances  Balances
	confirmer Confirmer
	params    ParamsFunc
	status    *StatusBoard
	locks     *mintLocks

	signerMu sync.RWMutex
	signer   Signer

	entries        EntryRecorder
	journal        Journal
	confirmTimeout time.Duration
	now            func() time.Time
}

// NewExecutor creates a new Executor.
func NewExecutor(
	logger *zap.Logger,
	risk RiskGate,
	quoter Quoter,
	balances Balances,
	confirmer Confirmer,
	params ParamsFunc,
	status *StatusBoard,
) *Executor {
	if status == nil {
		status = NewStatusBoard()
	}
	return &Executor{
		logger:         logger.With(zap.String("component", "executor")),
		risk:           risk,
		quoter:         quoter,
		balances:       balances,
		confirmer:      confirmer,
		params:         params,
		status:         status,
		locks:          newMintLocks(),
		confirmTimeout: DefaultConfirmTimeout,
		now:            time.Now,
	}
}

// SetSigner connects or, with nil, disconnects the wallet.
func (e *Executor) SetSigner(s Signer) {
	e.signerMu.Lock()
	defer e.signerMu.Unlock()
	e.signer = s
}

// Connected reports whether a signer is available.
func (e *Executor) Connected() bool {
	return e.currentSigner() != nil
}

// SetEntryRecorder sets the sink notified after a successful buy.
func (e *Executor) SetEntryRecorder(r EntryRecorder) {
	e.entries = r
}

// SetJournal sets the store every finished attempt is appended to.
func (e *Executor) SetJournal(j Journal) {
	e.journal = j
}

// SetConfirmTimeout overrides the confirmation deadline.
func (e *Executor) SetConfirmTimeout(d time.Duration) {
	if d > 0 {
		e.confirmTimeout = d
	}
}

// Status returns the board progress lines are written to.
func (e *Executor) Status() *StatusBoard {
	return e.status
}

func (e *Executor) currentSigner() Signer {
	e.signerMu.RLock()
	defer e.signerMu.RUnlock()
	return e.signer
}

// attempt carries the per-call state of one buy or sell.
type attempt struct {
	result domain.TradeResult
	logger *zap.Logger
	// prefix tells apart lines of attempts running in parallel.
	prefix string
}

func (e *Executor) begin(side domain.Side, mint string) *attempt {
	id := uuid.NewString()
	return &attempt{
		result: domain.TradeResult{
			AttemptID: id,
			Side:      side,
			Mint:      mint,
			State:     domain.TradeStateIdle,
			StartedAt: e.now().UTC(),
		},
		logger: e.logger.With(
			zap.String("attempt_id", id),
			zap.String("side", side.String()),
			zap.String("mint", mint),
		),
		prefix: fmt.Sprintf("[%s %s] ", side.String(), shortMint(mint)),
	}
}

func shortMint(mint string) string {
	if len(mint) <= 10 {
		return mint
	}
	return mint[:4] + "…" + mint[len(mint)-4:]
}

func (e *Executor) step(a *attempt, state domain.TradeState, line string) {
	a.result.State = state
	a.logger.Info(line, zap.String("state", string(state)))
	e.status.Set(a.prefix + line)
}

func (e *Executor) fail(a *attempt, err error) domain.TradeResult {
	a.result.State = domain.TradeStateFailed
	a.result.Err = err
	a.result.FinishedAt = e.now().UTC()
	a.logger.Error("trade failed", zap.String("class", domain.Classify(err)), zap.Error(err))
	e.status.Set(a.result.Status())
	e.record(a)
	return a.result
}

func (e *Executor) succeed(a *attempt) domain.TradeResult {
	a.result.State = domain.TradeStateSucceeded
	a.result.FinishedAt = e.now().UTC()
	if a.result.Warning != nil {
		a.logger.Warn("trade submitted without confirmation",
			zap.String("signature", a.result.Signature), zap.Error(a.result.Warning))
	} else {
		a.logger.Info("trade confirmed", zap.String("signature", a.result.Signature))
	}
	e.status.Set(a.result.Status())
	e.record(a)
	return a.result
}

func (e *Executor) record(a *attempt) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(a.result); err != nil {
		a.logger.Warn("failed to journal trade", zap.Error(err))
	}
}

// Buy spends the configured SOL amount on mint. pair, when provided, supplies the
// entry price recorded for an armed ladder without one.
func (e *Executor) Buy(ctx context.Context, mint string, pair *domain.MarketSnapshot) domain.TradeResult {
	mint = strings.TrimSpace(mint)
	a := e.begin(domain.SideBuy, mint)

	signer := e.currentSigner()
	if signer == nil {
		return e.fail(a, domain.ErrNotConnected)
	}
	if mint == "" {
		return e.fail(a, errors.Wrap(domain.ErrValidation, "mint is required"))
	}

	unlock := e.locks.lock(mint)
	defer unlock()

	params := e.params()

	e.step(a, domain.TradeStateRiskChecking, "Checking mint authorities…")
	verdict, err := e.risk.Assess(ctx, mint)
	if err != nil {
		return e.fail(a, err)
	}
	if !verdict.Safe() {
		return e.fail(a, errors.Wrapf(domain.ErrAuthorityRisk,
			"mint authority relinquished: %t, freeze authority relinquished: %t",
			verdict.MintAuthorityRelinquished, verdict.FreezeAuthorityRelinquished))
	}

	if params.PreTradeSimulation {
		e.step(a, domain.TradeStateSimulating, "Simulating probe swap…")
		if err := e.probe(ctx, signer.PublicKey(), mint, params.SlippageBps); err != nil {
			return e.fail(a, errors.Wrap(domain.ErrSimulationFailed, err.Error()))
		}
	}

	lamports := params.BuyLamports()
	if lamports == 0 {
		return e.fail(a, errors.Wrapf(domain.ErrValidation, "buy size %s SOL is too small", params.BuySOL.String()))
	}
	a.result.InAmount = lamports

	e.step(a, domain.TradeStateQuoting, fmt.Sprintf("Quoting %s SOL…", params.BuySOL.String()))
	q, err := e.quoter.Quote(ctx, domain.WSOL, mint, lamports, params.SlippageBps)
	if err != nil {
		return e.fail(a, err)
	}

	if err := e.swap(ctx, a, signer, q, params); err != nil {
		return e.fail(a, err)
	}

	res := e.succeed(a)
	if pair != nil && e.entries != nil && pair.PriceUSD.IsPositive() {
		if err := e.entries.CaptureEntry(mint, pair.Pair, pair.PriceUSD); err != nil {
			a.logger.Warn("failed to capture entry price", zap.Error(err))
		}
	}
	return res
}

// Sell sells pct percent of the wallet's current balance of mint.
func (e *Executor) Sell(ctx context.Context, mint string, pct decimal.Decimal) domain.TradeResult {
	mint = strings.TrimSpace(mint)
	a := e.begin(domain.SideSell, mint)
	a.result.Percent = pct

	signer := e.currentSigner()
	if signer == nil {
		return e.fail(a, domain.ErrNotConnected)
	}
	if mint == "" {
		return e.fail(a, errors.Wrap(domain.ErrValidation, "mint is required"))
	}
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return e.fail(a, errors.Wrapf(domain.ErrValidation, "sell percent %s must be in (0, 100]", pct.String()))
	}

	unlock := e.locks.lock(mint)
	defer unlock()

	params := e.params()

	e.step(a, domain.TradeStateBalance, "Reading token balance…")
	bal, err := e.balances.TokenBalance(ctx, signer.PublicKey(), mint)
	if err != nil {
		return e.fail(a, errors.Wrap(domain.ErrLookup, err.Error()))
	}
	if bal.Amount == 0 {
		return e.fail(a, domain.ErrZeroBalance)
	}

	amount := domain.SellAmount(bal.Amount, pct)
	if amount == 0 {
		return e.fail(a, errors.Wrapf(domain.ErrAmountTooSmall, "%s%% of %d base units", pct.String(), bal.Amount))
	}
	a.result.InAmount = amount

	e.step(a, domain.TradeStateQuoting, fmt.Sprintf("Quoting sell of %s%%…", pct.String()))
	q, err := e.quoter.Quote(ctx, mint, domain.WSOL, amount, params.SlippageBps)
	if err != nil {
		return e.fail(a, err)
	}

	if err := e.swap(ctx, a, signer, q, params); err != nil {
		return e.fail(a, err)
	}
	return e.succeed(a)
}

// swap runs the shared tail of both sides: impact check, build, submit, confirm.
func (e *Executor) swap(ctx context.Context, a *attempt, signer Signer, q domain.Quote, params domain.TradingParams) error {
	e.step(a, domain.TradeStateImpactChecking, "Checking price impact…")
	impact := q.ImpactPercent()
	a.result.PriceImpactPct = impact
	if impact.GreaterThan(params.MaxImpactPct) {
		return errors.Wrapf(domain.ErrImpactExceeded, "impact %s%% > %s%%", impact.String(), params.MaxImpactPct.String())
	}

	e.step(a, domain.TradeStateSubmitting, "Building and sending transaction…")
	tx, err := e.quoter.BuildSwap(ctx, q, signer.PublicKey(), domain.SwapOptions{
		PriorityFeeLamports: params.PriorityFeeLamports,
		WrapAndUnwrapSOL:    true,
	})
	if err != nil {
		return err
	}

	sig, err := signer.SignAndSend(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrSubmitFailed) {
			return err
		}
		return errors.Wrap(domain.ErrSubmitFailed, err.Error())
	}
	a.result.Signature = sig.String()

	e.step(a, domain.TradeStateConfirming, fmt.Sprintf("Confirming %s…", sig.String()))
	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	if err := e.confirmer.Confirm(confirmCtx, sig, params.Commitment); err != nil {
		a.result.Warning = errors.Wrap(domain.ErrConfirmationTimeout, err.Error())
	}
	return nil
}

// probe dry-runs a small buy so that honeypot routes fail before real funds move.
func (e *Executor) probe(ctx context.Context, trader solana.PublicKey, mint string, slippageBps int) error {
	amount := probeLamports
	if amount < minProbeLamports {
		amount = minProbeLamports
	}

	q, err := e.quoter.Quote(ctx, domain.WSOL, mint, amount, slippageBps)
	if err != nil {
		return errors.Wrap(err, "probe quote")
	}
	tx, err := e.quoter.BuildSwap(ctx, q, trader, domain.SwapOptions{WrapAndUnwrapSOL: true})
	if err != nil {
		return errors.Wrap(err, "probe build")
	}
	sim, err := e.quoter.Simulate(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "probe simulate")
	}
	if !sim.Succeeded {
		return errors.Errorf("probe rejected: %s", sim.Err)
	}
	return nil
}
